package mock

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/types"
)

// Behavior selects how DummyBackend answers SubmitSegment.
type Behavior int

const (
	// Succeed stores the segment after Delay.
	Succeed Behavior = iota
	// Fail returns Err after Delay.
	Fail
	// Hang never answers; the call returns only once its context is done.
	Hang
	// IgnoreCancel sleeps for Delay regardless of the context, then succeeds.
	IgnoreCancel
)

// DummyBackend is an in-memory da.Backend with scripted behavior and hooks
// that let tests observe cancellation.
type DummyBackend struct {
	id          string
	maxSegment  uint64
	behavior    Behavior
	delay       time.Duration
	err         error
	onCancelled func()

	mu       sync.RWMutex
	segments map[string][]byte

	active    atomic.Int32
	calls     atomic.Int32
	cancelled atomic.Int32
}

var _ da.Backend = &DummyBackend{}
var _ da.Fetcher = &DummyBackend{}

// Option configures a DummyBackend.
type Option func(*DummyBackend)

// WithBehavior sets the answer behavior.
func WithBehavior(b Behavior) Option {
	return func(d *DummyBackend) { d.behavior = b }
}

// WithDelay delays every answer.
func WithDelay(delay time.Duration) Option {
	return func(d *DummyBackend) { d.delay = delay }
}

// WithError sets the error returned by the Fail behavior.
func WithError(err error) Option {
	return func(d *DummyBackend) { d.err = err }
}

// WithCancellationHook registers fn, called every time a call observes its
// context being done.
func WithCancellationHook(fn func()) Option {
	return func(d *DummyBackend) { d.onCancelled = fn }
}

// NewDummyBackend returns a backend accepting segments up to maxSegment bytes.
func NewDummyBackend(id string, maxSegment uint64, opts ...Option) *DummyBackend {
	d := &DummyBackend{
		id:         id,
		maxSegment: maxSegment,
		segments:   make(map[string][]byte),
		err:        fmt.Errorf("dummy %s: %w", id, da.ErrRejected),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID implements da.Backend.
func (d *DummyBackend) ID() string {
	return d.id
}

// MaxSegmentSize implements da.Backend.
func (d *DummyBackend) MaxSegmentSize() uint64 {
	return d.maxSegment
}

// SubmitSegment implements da.Backend.
func (d *DummyBackend) SubmitSegment(ctx context.Context, seg types.Segment) (types.ID, error) {
	d.calls.Add(1)
	d.active.Add(1)
	defer d.active.Add(-1)

	if uint64(seg.Size()) > d.maxSegment {
		return nil, da.ErrSegmentTooLarge
	}

	switch d.behavior {
	case Hang:
		<-ctx.Done()
		d.observeCancel()
		return nil, ctx.Err()
	case IgnoreCancel:
		time.Sleep(d.delay)
	default:
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			d.observeCancel()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if d.behavior == Fail {
		return nil, d.err
	}

	id := make([]byte, 12)
	binary.BigEndian.PutUint64(id, seg.BatchID)
	binary.BigEndian.PutUint32(id[8:], seg.Index)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.segments[string(id)] = append([]byte(nil), seg.Data...)
	return id, nil
}

// Fetch implements da.Fetcher.
func (d *DummyBackend) Fetch(ctx context.Context, id types.ID) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	blob, ok := d.segments[string(id)]
	if !ok {
		return nil, da.ErrSegmentNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Corrupt overwrites a stored segment, for read-back verification tests.
func (d *DummyBackend) Corrupt(id types.ID, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.segments[string(id)] = data
}

// Active returns the number of SubmitSegment calls currently running.
func (d *DummyBackend) Active() int {
	return int(d.active.Load())
}

// Calls returns the number of SubmitSegment invocations.
func (d *DummyBackend) Calls() int {
	return int(d.calls.Load())
}

// Cancelled returns the number of calls that observed cancellation.
func (d *DummyBackend) Cancelled() int {
	return int(d.cancelled.Load())
}

// Stored returns the number of stored segments.
func (d *DummyBackend) Stored() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.segments)
}

func (d *DummyBackend) observeCancel() {
	d.cancelled.Add(1)
	if d.onCancelled != nil {
		d.onCancelled()
	}
}
