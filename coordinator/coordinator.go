package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/types"
)

// defaultSubmitTimeout bounds a single backend's submission of one batch.
const defaultSubmitTimeout = 60 * time.Second

var (
	// ErrNoBackends is returned when Submit is called with an empty backend set.
	ErrNoBackends = errors.New("no backends configured")
	// ErrDuplicateBackend is returned when two backends share an ID.
	ErrDuplicateBackend = errors.New("duplicate backend id")
)

// Coordinator broadcasts batches to a set of DA backends and decides, per
// round, whether enough of them acknowledged the batch.
//
// A Coordinator keeps no state between rounds, so concurrent Submit calls for
// different batches are independent. It does not limit how many rounds run at
// once; each round runs one goroutine per backend.
type Coordinator struct {
	logger        log.Logger
	metrics       *Metrics
	submitTimeout time.Duration
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:        log.NewNopLogger(),
		metrics:       NopMetrics(),
		submitTimeout: defaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "coordinator")
	return c
}

// backendResult is sent by a backend worker once its outcome is known.
type backendResult struct {
	index   int
	outcome types.SubmissionOutcome
}

// Submit runs one submission round of batch against backends.
//
// The round commits as soon as the strategy threshold is met; backends still
// running at that point are cancelled and recorded as such. If every backend
// terminates below the threshold the round fails. If ctx is done first the
// round is cancelled and returns immediately; results of backends that ignore
// cancellation are discarded.
//
// An error is returned only for invalid invocations (empty or inconsistent
// backend set). Round failure is reported through the receipt status.
func (c *Coordinator) Submit(ctx context.Context, batch *types.Batch, backends []da.Backend, strategy types.SubmitStrategy) (*types.SubmissionReceipt, error) {
	if err := validateBackends(backends); err != nil {
		return nil, err
	}
	threshold := strategy.Threshold(len(backends))

	plans := make([][]types.Segment, len(backends))
	for i, b := range backends {
		segments, err := types.SegmentBatch(batch, b.MaxSegmentSize())
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", b.ID(), err)
		}
		plans[i] = segments
	}

	c.logger.Debug("starting submission round", "batch", batch.ID, "size", batch.Size(), "backends", len(backends), "strategy", strategy, "threshold", threshold)
	startedAt := time.Now()

	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so that workers finishing after the round ends never block
	results := make(chan backendResult, len(backends))
	for i, b := range backends {
		go c.submitToBackend(roundCtx, i, b, plans[i], results)
	}

	agg := newAggregator(batch.ID, threshold, backends)
	status := c.await(ctx, agg, results, len(backends))
	cancel()

	receipt := agg.finalize(status, startedAt, time.Since(startedAt))
	c.recordRound(receipt, batch)
	return receipt, nil
}

// await consumes backend results until the round outcome is decided.
func (c *Coordinator) await(ctx context.Context, agg *aggregator, results <-chan backendResult, pending int) types.RoundStatus {
	for ; pending > 0; pending-- {
		select {
		case <-ctx.Done():
			return types.RoundCancelled
		case res := <-results:
			agg.record(res.index, res.outcome)
			c.logger.Debug("backend finished", "batch", agg.batchID, "backend", res.outcome.BackendID, "status", res.outcome.Status, "reason", res.outcome.Reason)
			if agg.reached() {
				return types.RoundCommitted
			}
		}
	}
	// every worker may have reported before ctx.Done was selected
	if ctx.Err() != nil {
		return types.RoundCancelled
	}
	return types.RoundFailed
}

// submitToBackend submits segments in order and reports exactly one result.
func (c *Coordinator) submitToBackend(roundCtx context.Context, index int, backend da.Backend, segments []types.Segment, results chan<- backendResult) {
	ctx, cancel := context.WithTimeout(roundCtx, c.submitTimeout)
	defer cancel()

	outcome := types.SubmissionOutcome{BackendID: backend.ID()}
	location := make(types.Location, 0, len(segments))
	for _, seg := range segments {
		id, err := submitSegment(ctx, backend, seg)
		if err != nil {
			outcome.Submitted = len(location)
			outcome.Detail = err.Error()
			switch {
			case roundCtx.Err() != nil:
				outcome.Status = types.OutcomeCancelled
			case errors.Is(ctx.Err(), context.DeadlineExceeded):
				outcome.Status = types.OutcomeTimedOut
				outcome.Reason = types.ReasonTimeout
			default:
				outcome.Status = types.OutcomeFailure
				outcome.Reason = da.Classify(err)
			}
			results <- backendResult{index: index, outcome: outcome}
			return
		}
		location = append(location, id)
	}

	outcome.Status = types.OutcomeSuccess
	outcome.Location = location
	outcome.Submitted = len(location)
	results <- backendResult{index: index, outcome: outcome}
}

type segmentResult struct {
	id  types.ID
	err error
}

// submitSegment bounds a single call by ctx even when the backend does not
// honor it. A late answer lands in the buffered channel and is dropped.
func submitSegment(ctx context.Context, backend da.Backend, seg types.Segment) (types.ID, error) {
	done := make(chan segmentResult, 1)
	go func() {
		id, err := backend.SubmitSegment(ctx, seg)
		done <- segmentResult{id: id, err: err}
	}()

	select {
	case res := <-done:
		return res.id, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) recordRound(receipt *types.SubmissionReceipt, batch *types.Batch) {
	c.metrics.Rounds.With("status", receipt.Status().String()).Add(1)
	c.metrics.RoundDuration.Observe(receipt.Duration().Seconds())
	c.metrics.Threshold.Set(float64(receipt.Threshold()))
	c.metrics.Achieved.Set(float64(receipt.Achieved()))
	for _, o := range receipt.Outcomes() {
		c.metrics.BackendOutcomes.With("backend", o.BackendID, "status", o.Status.String()).Add(1)
		if o.Succeeded() {
			c.metrics.BytesSubmitted.With("backend", o.BackendID).Add(float64(batch.Size()))
		}
	}

	keyvals := []interface{}{
		"batch", receipt.BatchID(),
		"status", receipt.Status(),
		"achieved", receipt.Achieved(),
		"threshold", receipt.Threshold(),
		"duration", receipt.Duration(),
	}
	if receipt.Committed() {
		c.logger.Info("batch committed to DA backends", keyvals...)
		return
	}
	for _, o := range receipt.Outcomes() {
		if !o.Succeeded() {
			keyvals = append(keyvals, o.BackendID, fmt.Sprintf("%s %s %s", o.Status, o.Reason, o.Detail))
		}
	}
	c.logger.Error("batch not committed to DA backends", keyvals...)
}

func validateBackends(backends []da.Backend) error {
	if len(backends) == 0 {
		return ErrNoBackends
	}
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if _, ok := seen[b.ID()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateBackend, b.ID())
		}
		seen[b.ID()] = struct{}{}
	}
	return nil
}
