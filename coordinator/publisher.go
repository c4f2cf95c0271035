package coordinator

import (
	"context"
	"fmt"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/types"
)

// Journal persists receipts.
type Journal interface {
	SaveReceipt(r *types.SubmissionReceipt) error
}

// Publisher runs rounds against a fixed backend set and journals every
// receipt, whatever its status.
type Publisher struct {
	coordinator *Coordinator
	backends    []da.Backend
	strategy    types.SubmitStrategy
	journal     Journal
}

// NewPublisher creates a Publisher. journal may be nil.
func NewPublisher(c *Coordinator, backends []da.Backend, strategy types.SubmitStrategy, journal Journal) *Publisher {
	return &Publisher{
		coordinator: c,
		backends:    backends,
		strategy:    strategy,
		journal:     journal,
	}
}

// Backends returns the backend set rounds are run against.
func (p *Publisher) Backends() []da.Backend {
	return p.backends
}

// Publish submits batch and journals the receipt. The receipt is returned
// even if journaling fails.
func (p *Publisher) Publish(ctx context.Context, batch *types.Batch) (*types.SubmissionReceipt, error) {
	receipt, err := p.coordinator.Submit(ctx, batch, p.backends, p.strategy)
	if err != nil {
		return nil, err
	}
	if p.journal != nil {
		if err := p.journal.SaveReceipt(receipt); err != nil {
			return receipt, fmt.Errorf("save receipt %d: %w", batch.ID, err)
		}
	}
	return receipt, nil
}
