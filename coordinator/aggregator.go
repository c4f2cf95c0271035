package coordinator

import (
	"time"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/types"
)

// aggregator collects per-backend outcomes of a single round. Each slot is
// written at most once. It is owned by the goroutine running Submit; workers
// only talk to it through the results channel.
type aggregator struct {
	batchID   uint64
	threshold int
	achieved  int
	outcomes  []types.SubmissionOutcome
}

func newAggregator(batchID uint64, threshold int, backends []da.Backend) *aggregator {
	outcomes := make([]types.SubmissionOutcome, len(backends))
	for i, b := range backends {
		outcomes[i].BackendID = b.ID()
	}
	return &aggregator{
		batchID:   batchID,
		threshold: threshold,
		outcomes:  outcomes,
	}
}

// record stores the outcome of backend i. Repeated records for one slot are ignored.
func (a *aggregator) record(i int, outcome types.SubmissionOutcome) {
	if a.outcomes[i].Status != types.OutcomeUnknown {
		return
	}
	a.outcomes[i] = outcome
	if outcome.Succeeded() {
		a.achieved++
	}
}

func (a *aggregator) reached() bool {
	return a.achieved >= a.threshold
}

// finalize marks every backend still outstanding as cancelled and publishes
// the receipt. Nothing recorded afterwards is visible to callers.
func (a *aggregator) finalize(status types.RoundStatus, startedAt time.Time, duration time.Duration) *types.SubmissionReceipt {
	for i := range a.outcomes {
		if a.outcomes[i].Status == types.OutcomeUnknown {
			a.outcomes[i].Status = types.OutcomeCancelled
		}
	}
	return types.NewSubmissionReceipt(a.batchID, a.threshold, a.achieved, status, a.outcomes, startedAt, duration)
}
