package types

import (
	"fmt"
)

// OutcomeStatus is the terminal state of one backend in a round.
type OutcomeStatus uint8

const (
	OutcomeUnknown OutcomeStatus = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeTimedOut
	OutcomeCancelled
)

var outcomeStatusNames = map[OutcomeStatus]string{
	OutcomeUnknown:   "unknown",
	OutcomeSuccess:   "success",
	OutcomeFailure:   "failure",
	OutcomeTimedOut:  "timed-out",
	OutcomeCancelled: "cancelled",
}

func (s OutcomeStatus) String() string {
	if name, ok := outcomeStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OutcomeStatus(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OutcomeStatus) UnmarshalText(text []byte) error {
	for status, name := range outcomeStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("%w: outcome status %q", ErrInvalidReceiptField, text)
}

// FailureReason explains a failed backend submission.
type FailureReason uint8

const (
	ReasonNone FailureReason = iota
	ReasonTimeout
	ReasonRejected
	ReasonNetwork
	ReasonOther
)

var failureReasonNames = map[FailureReason]string{
	ReasonNone:     "",
	ReasonTimeout:  "timeout",
	ReasonRejected: "rejected",
	ReasonNetwork:  "network",
	ReasonOther:    "other",
}

func (r FailureReason) String() string {
	if name, ok := failureReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("FailureReason(%d)", uint8(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r FailureReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *FailureReason) UnmarshalText(text []byte) error {
	for reason, name := range failureReasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("%w: failure reason %q", ErrInvalidReceiptField, text)
}

// SubmissionOutcome is the result of submitting one batch to one backend.
type SubmissionOutcome struct {
	BackendID string
	Status    OutcomeStatus
	// Location is set only for OutcomeSuccess.
	Location Location
	// Reason and Detail are set for OutcomeFailure and OutcomeTimedOut.
	Reason FailureReason
	Detail string
	// Submitted counts the segments the backend acknowledged before the
	// outcome was decided.
	Submitted int
}

// Succeeded reports whether the backend stored every segment.
func (o SubmissionOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

func (o SubmissionOutcome) clone() SubmissionOutcome {
	if o.Location != nil {
		loc := make(Location, len(o.Location))
		for i, id := range o.Location {
			loc[i] = append(ID(nil), id...)
		}
		o.Location = loc
	}
	return o
}
