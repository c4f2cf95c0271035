package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	damock "github.com/rollkit/multida/da/mock"
	"github.com/rollkit/multida/types"
)

func TestAggregator(t *testing.T) {
	assert := assert.New(t)

	agg := newAggregator(1, 2, backends(
		damock.NewDummyBackend("a", 1),
		damock.NewDummyBackend("b", 1),
		damock.NewDummyBackend("c", 1),
	))

	agg.record(0, types.SubmissionOutcome{BackendID: "a", Status: types.OutcomeSuccess})
	assert.False(agg.reached())

	// slots are write-once
	agg.record(0, types.SubmissionOutcome{BackendID: "a", Status: types.OutcomeSuccess})
	assert.Equal(1, agg.achieved)

	agg.record(1, types.SubmissionOutcome{BackendID: "b", Status: types.OutcomeFailure, Reason: types.ReasonNetwork})
	assert.False(agg.reached())

	receipt := agg.finalize(types.RoundFailed, time.Now(), time.Millisecond)
	outcomes := receipt.Outcomes()
	assert.Equal(types.OutcomeSuccess, outcomes[0].Status)
	assert.Equal(types.OutcomeFailure, outcomes[1].Status)
	assert.Equal(types.OutcomeCancelled, outcomes[2].Status)
	assert.Equal("c", outcomes[2].BackendID)
	assert.Equal(1, receipt.Achieved())
	assert.Equal(2, receipt.Threshold())
}
