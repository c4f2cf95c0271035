package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/types"
)

// MockBackend is a testify mock for the da.Backend interface.
type MockBackend struct {
	mock.Mock
}

var _ da.Backend = &MockBackend{}
var _ da.Fetcher = &MockBackend{}

func (m *MockBackend) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBackend) MaxSegmentSize() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockBackend) SubmitSegment(ctx context.Context, seg types.Segment) (types.ID, error) {
	args := m.Called(seg)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	var id types.ID
	if v := args.Get(0); v != nil {
		id = v.(types.ID)
	}
	return id, args.Error(1)
}

func (m *MockBackend) Fetch(ctx context.Context, id types.ID) ([]byte, error) {
	args := m.Called(id)
	var blob []byte
	if v := args.Get(0); v != nil {
		blob = v.([]byte)
	}
	return blob, args.Error(1)
}
