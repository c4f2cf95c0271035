package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/multida/da"
	damock "github.com/rollkit/multida/da/mock"
	testlog "github.com/rollkit/multida/log/test"
	"github.com/rollkit/multida/types"
)

// grace is how long a cancelled backend call may keep running.
const grace = 2 * time.Second

func newTestCoordinator(t *testing.T, opts ...Option) *Coordinator {
	return New(append([]Option{WithLogger(testlog.NewTestLogger(t))}, opts...)...)
}

func testBatch(id uint64, size int) *types.Batch {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + int(id))
	}
	return &types.Batch{ID: id, Data: data}
}

func backends(bs ...*damock.DummyBackend) []da.Backend {
	out := make([]da.Backend, len(bs))
	for i, b := range bs {
		out[i] = b
	}
	return out
}

func TestSubmitCommitsWithoutWaitingForStragglers(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	hooked := make(chan struct{}, 1)
	b1 := damock.NewDummyBackend("b1", 64)
	b2 := damock.NewDummyBackend("b2", 64)
	b3 := damock.NewDummyBackend("b3", 64, damock.WithBehavior(damock.Hang), damock.WithCancellationHook(func() { hooked <- struct{}{} }))

	c := newTestCoordinator(t)
	start := time.Now()
	receipt, err := c.Submit(context.Background(), testBatch(1, 200), backends(b1, b2, b3), types.Number(2))
	require.NoError(err)

	assert.Less(time.Since(start), grace)
	assert.Equal(types.RoundCommitted, receipt.Status())
	assert.Equal(2, receipt.Achieved())
	assert.Equal(2, receipt.Threshold())
	assert.NoError(receipt.Err())

	outcomes := receipt.Outcomes()
	require.Len(outcomes, 3)
	assert.Equal(types.OutcomeSuccess, outcomes[0].Status)
	assert.Equal(types.OutcomeSuccess, outcomes[1].Status)
	assert.Equal(types.OutcomeCancelled, outcomes[2].Status)
	assert.Len(outcomes[0].Location, 4)
	assert.Equal(4, outcomes[0].Submitted)

	// the straggler is told to stop
	select {
	case <-hooked:
	case <-time.After(grace):
		t.Fatal("straggler was not cancelled")
	}
	assert.Eventually(func() bool { return b3.Active() == 0 }, grace, 10*time.Millisecond)
}

func TestSubmitAllFailsOnSingleRejection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b1 := damock.NewDummyBackend("b1", 64)
	b2 := damock.NewDummyBackend("b2", 64, damock.WithBehavior(damock.Fail), damock.WithError(fmt.Errorf("quota: %w", da.ErrRejected)))
	b3 := damock.NewDummyBackend("b3", 64, damock.WithDelay(20*time.Millisecond))

	receipt, err := newTestCoordinator(t).Submit(context.Background(), testBatch(2, 100), backends(b1, b2, b3), types.All())
	require.NoError(err)

	assert.Equal(types.RoundFailed, receipt.Status())
	assert.Equal(2, receipt.Achieved())
	assert.Equal(3, receipt.Threshold())
	assert.ErrorIs(receipt.Err(), types.ErrRoundFailed)

	// every backend's outcome is available for diagnosis
	outcomes := receipt.Outcomes()
	assert.Equal(types.OutcomeSuccess, outcomes[0].Status)
	assert.Equal(types.OutcomeFailure, outcomes[1].Status)
	assert.Equal(types.ReasonRejected, outcomes[1].Reason)
	assert.Contains(outcomes[1].Detail, "quota")
	assert.Equal(types.OutcomeSuccess, outcomes[2].Status)
}

func TestSubmitCancelledByCaller(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var mtx sync.Mutex
	cancelled := 0
	hook := func() {
		mtx.Lock()
		defer mtx.Unlock()
		cancelled++
	}
	bs := backends(
		damock.NewDummyBackend("b1", 64, damock.WithBehavior(damock.Hang), damock.WithCancellationHook(hook)),
		damock.NewDummyBackend("b2", 64, damock.WithBehavior(damock.Hang), damock.WithCancellationHook(hook)),
		damock.NewDummyBackend("b3", 64, damock.WithBehavior(damock.Hang), damock.WithCancellationHook(hook)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	receipt, err := newTestCoordinator(t).Submit(ctx, testBatch(3, 10), bs, types.Quorum())
	require.NoError(err)
	assert.Less(time.Since(start), grace)

	assert.Equal(types.RoundCancelled, receipt.Status())
	assert.Equal(0, receipt.Achieved())
	assert.ErrorIs(receipt.Err(), types.ErrRoundCancelled)
	for _, o := range receipt.Outcomes() {
		assert.Equal(types.OutcomeCancelled, o.Status)
	}

	assert.Eventually(func() bool {
		mtx.Lock()
		defer mtx.Unlock()
		return cancelled == 3
	}, grace, 10*time.Millisecond)
	for _, b := range bs {
		assert.Eventually(func() bool { return b.(*damock.DummyBackend).Active() == 0 }, grace, 10*time.Millisecond)
	}
}

func TestSubmitDiscardsResultsOfBackendsIgnoringCancellation(t *testing.T) {
	assert := assert.New(t)

	stubborn := damock.NewDummyBackend("stubborn", 64, damock.WithBehavior(damock.IgnoreCancel), damock.WithDelay(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	receipt, err := newTestCoordinator(t).Submit(ctx, testBatch(4, 10), backends(stubborn), types.All())
	require.NoError(t, err)
	assert.Equal(types.RoundCancelled, receipt.Status())

	// the call runs to completion, but the receipt stays as published
	assert.Eventually(func() bool { return stubborn.Active() == 0 }, grace, 10*time.Millisecond)
	assert.Equal(1, stubborn.Stored())
	o, ok := receipt.Outcome("stubborn")
	require.True(t, ok)
	assert.Equal(types.OutcomeCancelled, o.Status)
	assert.Equal(0, receipt.Achieved())
}

func TestSubmitTimeout(t *testing.T) {
	assert := assert.New(t)

	slow := damock.NewDummyBackend("slow", 64, damock.WithBehavior(damock.Hang))
	fast := damock.NewDummyBackend("fast", 64)

	c := newTestCoordinator(t, WithSubmitTimeout(30*time.Millisecond))
	receipt, err := c.Submit(context.Background(), testBatch(5, 10), backends(slow, fast), types.All())
	require.NoError(t, err)

	assert.Equal(types.RoundFailed, receipt.Status())
	assert.Equal(1, receipt.Achieved())
	o, ok := receipt.Outcome("slow")
	require.True(t, ok)
	assert.Equal(types.OutcomeTimedOut, o.Status)
	assert.Equal(types.ReasonTimeout, o.Reason)
}

func TestSubmitTimeoutIgnoringBackend(t *testing.T) {
	assert := assert.New(t)

	stubborn := damock.NewDummyBackend("stubborn", 64, damock.WithBehavior(damock.IgnoreCancel), damock.WithDelay(1500*time.Millisecond))
	fast := damock.NewDummyBackend("fast", 64)

	c := newTestCoordinator(t, WithSubmitTimeout(50*time.Millisecond))
	start := time.Now()
	receipt, err := c.Submit(context.Background(), testBatch(12, 10), backends(stubborn, fast), types.All())
	require.NoError(t, err)

	assert.Less(time.Since(start), time.Second)
	assert.Equal(types.RoundFailed, receipt.Status())
	assert.Equal(1, receipt.Achieved())
	o, ok := receipt.Outcome("stubborn")
	require.True(t, ok)
	assert.Equal(types.OutcomeTimedOut, o.Status)
	assert.Equal(types.ReasonTimeout, o.Reason)
	assert.Empty(o.Location)

	// the late answer is stored by the backend but never reaches the receipt
	assert.Eventually(func() bool { return stubborn.Active() == 0 }, grace, 10*time.Millisecond)
	assert.Equal(1, stubborn.Stored())
	assert.Equal(1, receipt.Achieved())
}

func TestSubmitQuorumToleratesMinority(t *testing.T) {
	bs := backends(
		damock.NewDummyBackend("b1", 64),
		damock.NewDummyBackend("b2", 64, damock.WithBehavior(damock.Fail), damock.WithError(da.ErrNetwork)),
		damock.NewDummyBackend("b3", 64, damock.WithDelay(10*time.Millisecond)),
		damock.NewDummyBackend("b4", 64, damock.WithDelay(20*time.Millisecond)),
	)

	receipt, err := newTestCoordinator(t).Submit(context.Background(), testBatch(6, 64), bs, types.Quorum())
	require.NoError(t, err)
	assert.Equal(t, types.RoundCommitted, receipt.Status())
	assert.Equal(t, 3, receipt.Threshold())
	assert.GreaterOrEqual(t, receipt.Achieved(), 3)
}

func TestSubmitSegmentsPerBackendLimit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	small := damock.NewDummyBackend("small", 10)
	large := damock.NewDummyBackend("large", 1000)
	batch := testBatch(7, 95)

	c := newTestCoordinator(t)
	receipt, err := c.Submit(context.Background(), batch, backends(small, large), types.All())
	require.NoError(err)
	require.True(receipt.Committed())

	assert.Equal(10, small.Stored())
	assert.Equal(1, large.Stored())

	results, err := c.Verify(context.Background(), batch, receipt, backends(small, large))
	require.NoError(err)
	assert.Len(results, 2)
	for id, err := range results {
		assert.NoError(err, id)
	}
}

func TestSubmitEmptyBatch(t *testing.T) {
	backend := damock.NewDummyBackend("b1", 10)
	receipt, err := newTestCoordinator(t).Submit(context.Background(), &types.Batch{ID: 8}, backends(backend), types.All())
	require.NoError(t, err)
	assert.True(t, receipt.Committed())
	assert.Equal(t, 1, backend.Stored())
}

func TestSubmitInvalidInvocation(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.Submit(context.Background(), testBatch(1, 1), nil, types.Quorum())
	assert.ErrorIs(t, err, ErrNoBackends)

	_, err = c.Submit(context.Background(), testBatch(1, 1), backends(damock.NewDummyBackend("a", 1), damock.NewDummyBackend("a", 1)), types.All())
	assert.ErrorIs(t, err, ErrDuplicateBackend)

	_, err = c.Submit(context.Background(), testBatch(1, 1), backends(damock.NewDummyBackend("a", 0)), types.All())
	assert.ErrorIs(t, err, types.ErrInvalidSegmentSize)
}

func TestSubmitConcurrentRounds(t *testing.T) {
	b1 := damock.NewDummyBackend("b1", 16, damock.WithDelay(5*time.Millisecond))
	b2 := damock.NewDummyBackend("b2", 16, damock.WithDelay(5*time.Millisecond))
	c := newTestCoordinator(t)

	var wg sync.WaitGroup
	receipts := make([]*types.SubmissionReceipt, 10)
	for i := range receipts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.Submit(context.Background(), testBatch(uint64(100+i), 40), backends(b1, b2), types.All())
			assert.NoError(t, err)
			receipts[i] = r
		}(i)
	}
	wg.Wait()

	for i, r := range receipts {
		require.NotNil(t, r)
		assert.Equal(t, uint64(100+i), r.BatchID())
		assert.True(t, r.Committed())
		assert.Equal(t, 2, r.Achieved())
	}
	assert.Equal(t, 30, b1.Stored())
}

func TestSubmitSegmentsInOrder(t *testing.T) {
	batch := &types.Batch{ID: 9, Data: []byte("0123456789")}
	segments, err := types.SegmentBatch(batch, 4)
	require.NoError(t, err)

	m := new(damock.MockBackend)
	m.On("ID").Return("mocked")
	m.On("MaxSegmentSize").Return(uint64(4))
	var calls []uint32
	for i, seg := range segments {
		m.On("SubmitSegment", seg).Return(types.ID{byte(i)}, nil).Once().Run(func(args mock.Arguments) {
			calls = append(calls, args.Get(0).(types.Segment).Index)
		})
	}

	receipt, err := newTestCoordinator(t).Submit(context.Background(), batch, []da.Backend{m}, types.All())
	require.NoError(t, err)
	require.True(t, receipt.Committed())
	m.AssertExpectations(t)

	assert.Equal(t, []uint32{0, 1, 2}, calls)
	o, _ := receipt.Outcome("mocked")
	assert.Equal(t, types.Location{{0}, {1}, {2}}, o.Location)
}

func TestSubmitPartialFailureKeepsSubmittedCount(t *testing.T) {
	batch := &types.Batch{ID: 10, Data: []byte("abcdefgh")}
	segments, err := types.SegmentBatch(batch, 4)
	require.NoError(t, err)

	m := new(damock.MockBackend)
	m.On("ID").Return("flaky")
	m.On("MaxSegmentSize").Return(uint64(4))
	m.On("SubmitSegment", segments[0]).Return(types.ID{0}, nil)
	m.On("SubmitSegment", segments[1]).Return(nil, fmt.Errorf("connection reset: %w", da.ErrNetwork))

	receipt, err := newTestCoordinator(t).Submit(context.Background(), batch, []da.Backend{m}, types.All())
	require.NoError(t, err)
	assert.Equal(t, types.RoundFailed, receipt.Status())

	o, _ := receipt.Outcome("flaky")
	assert.Equal(t, types.OutcomeFailure, o.Status)
	assert.Equal(t, types.ReasonNetwork, o.Reason)
	assert.Equal(t, 1, o.Submitted)
	assert.Empty(t, o.Location)
}

// writeOnly hides the Fetch method of the wrapped backend.
type writeOnly struct {
	da.Backend
}

func TestVerify(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	good := damock.NewDummyBackend("good", 8)
	bad := damock.NewDummyBackend("bad", 8)
	failed := damock.NewDummyBackend("failed", 8, damock.WithBehavior(damock.Fail))
	batch := testBatch(11, 20)

	c := newTestCoordinator(t)
	receipt, err := c.Submit(context.Background(), batch, backends(good, bad, failed), types.Number(2))
	require.NoError(err)
	require.True(receipt.Committed())

	o, _ := receipt.Outcome("bad")
	require.Equal(types.OutcomeSuccess, o.Status)
	bad.Corrupt(o.Location[1], bytes.Repeat([]byte{0xff}, 8))

	results, err := c.Verify(context.Background(), batch, receipt, backends(good, bad, failed))
	require.NoError(err)
	assert.NoError(results["good"])
	assert.ErrorIs(results["bad"], ErrVerificationMismatch)
	assert.NotContains(results, "failed")

	results, err = c.Verify(context.Background(), batch, receipt, []da.Backend{writeOnly{good}})
	require.NoError(err)
	assert.ErrorIs(results["good"], ErrFetchUnsupported)

	_, err = c.Verify(context.Background(), testBatch(12, 1), receipt, backends(good))
	assert.ErrorIs(err, ErrReceiptMismatch)
}
