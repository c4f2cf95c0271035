package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RoundStatus is the overall result of a submission round.
type RoundStatus uint8

const (
	RoundCommitted RoundStatus = iota + 1
	RoundFailed
	RoundCancelled
)

var roundStatusNames = map[RoundStatus]string{
	RoundCommitted: "committed",
	RoundFailed:    "failed",
	RoundCancelled: "cancelled",
}

func (s RoundStatus) String() string {
	if name, ok := roundStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RoundStatus(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s RoundStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RoundStatus) UnmarshalText(text []byte) error {
	for status, name := range roundStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("%w: round status %q", ErrInvalidReceiptField, text)
}

// SubmissionReceipt is the immutable record of one submission round.
// All accessors return copies, so a receipt may be shared between goroutines.
type SubmissionReceipt struct {
	batchID   uint64
	threshold int
	achieved  int
	status    RoundStatus
	outcomes  []SubmissionOutcome
	startedAt time.Time
	duration  time.Duration
}

// NewSubmissionReceipt builds a receipt. The outcomes slice is copied.
func NewSubmissionReceipt(batchID uint64, threshold, achieved int, status RoundStatus, outcomes []SubmissionOutcome, startedAt time.Time, duration time.Duration) *SubmissionReceipt {
	return &SubmissionReceipt{
		batchID:   batchID,
		threshold: threshold,
		achieved:  achieved,
		status:    status,
		outcomes:  cloneOutcomes(outcomes),
		startedAt: startedAt,
		duration:  duration,
	}
}

func (r *SubmissionReceipt) BatchID() uint64         { return r.batchID }
func (r *SubmissionReceipt) Threshold() int          { return r.threshold }
func (r *SubmissionReceipt) Achieved() int           { return r.achieved }
func (r *SubmissionReceipt) Status() RoundStatus     { return r.status }
func (r *SubmissionReceipt) StartedAt() time.Time    { return r.startedAt }
func (r *SubmissionReceipt) Duration() time.Duration { return r.duration }

// Committed reports whether enough backends acknowledged the batch.
func (r *SubmissionReceipt) Committed() bool {
	return r.status == RoundCommitted
}

// Outcomes returns the per-backend outcomes in backend order.
func (r *SubmissionReceipt) Outcomes() []SubmissionOutcome {
	return cloneOutcomes(r.outcomes)
}

// Outcome returns the outcome recorded for backendID.
func (r *SubmissionReceipt) Outcome(backendID string) (SubmissionOutcome, bool) {
	for _, o := range r.outcomes {
		if o.BackendID == backendID {
			return o.clone(), true
		}
	}
	return SubmissionOutcome{}, false
}

// Err returns nil for committed rounds and a descriptive error otherwise.
func (r *SubmissionReceipt) Err() error {
	switch r.status {
	case RoundCommitted:
		return nil
	case RoundCancelled:
		return fmt.Errorf("batch %d: %d/%d acknowledgements: %w", r.batchID, r.achieved, r.threshold, ErrRoundCancelled)
	default:
		return fmt.Errorf("batch %d: %d/%d acknowledgements: %w", r.batchID, r.achieved, r.threshold, ErrRoundFailed)
	}
}

type outcomeJSON struct {
	ID        string        `json:"id"`
	Status    OutcomeStatus `json:"status"`
	Location  []string      `json:"location,omitempty"`
	Reason    FailureReason `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Submitted int           `json:"submitted"`
}

type receiptJSON struct {
	BatchID   uint64        `json:"batch_id"`
	Threshold int           `json:"threshold"`
	Achieved  int           `json:"achieved"`
	Status    RoundStatus   `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  string        `json:"duration"`
	Outcomes  []outcomeJSON `json:"outcomes"`
}

// MarshalJSON encodes the receipt as a structured record.
func (r *SubmissionReceipt) MarshalJSON() ([]byte, error) {
	out := receiptJSON{
		BatchID:   r.batchID,
		Threshold: r.threshold,
		Achieved:  r.achieved,
		Status:    r.status,
		StartedAt: r.startedAt,
		Duration:  r.duration.String(),
		Outcomes:  make([]outcomeJSON, len(r.outcomes)),
	}
	for i, o := range r.outcomes {
		out.Outcomes[i] = outcomeJSON{
			ID:        o.BackendID,
			Status:    o.Status,
			Reason:    o.Reason,
			Detail:    o.Detail,
			Submitted: o.Submitted,
		}
		if o.Status == OutcomeSuccess {
			out.Outcomes[i].Location = o.Location.Strings()
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a receipt written by MarshalJSON. It is meant for
// receipts loaded from the journal; a receipt in use is never re-decoded.
func (r *SubmissionReceipt) UnmarshalJSON(data []byte) error {
	var in receiptJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	duration, err := time.ParseDuration(in.Duration)
	if err != nil {
		return fmt.Errorf("%w: duration: %v", ErrInvalidReceiptField, err)
	}
	outcomes := make([]SubmissionOutcome, len(in.Outcomes))
	for i, o := range in.Outcomes {
		outcomes[i] = SubmissionOutcome{
			BackendID: o.ID,
			Status:    o.Status,
			Reason:    o.Reason,
			Detail:    o.Detail,
			Submitted: o.Submitted,
		}
		for _, s := range o.Location {
			id, err := hex.DecodeString(s)
			if err != nil {
				return fmt.Errorf("%w: location of %s: %v", ErrInvalidReceiptField, o.ID, err)
			}
			outcomes[i].Location = append(outcomes[i].Location, id)
		}
	}
	*r = SubmissionReceipt{
		batchID:   in.BatchID,
		threshold: in.Threshold,
		achieved:  in.Achieved,
		status:    in.Status,
		outcomes:  outcomes,
		startedAt: in.StartedAt,
		duration:  duration,
	}
	return nil
}

func cloneOutcomes(in []SubmissionOutcome) []SubmissionOutcome {
	out := make([]SubmissionOutcome, len(in))
	for i, o := range in {
		out[i] = o.clone()
	}
	return out
}
