package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/types"
)

var (
	// ErrFetchUnsupported is reported for backends that cannot read segments back.
	ErrFetchUnsupported = errors.New("backend does not support fetch")
	// ErrVerificationMismatch is reported when fetched data differs from the batch.
	ErrVerificationMismatch = errors.New("fetched payload does not match batch")
	// ErrReceiptMismatch is returned when the receipt was issued for another batch.
	ErrReceiptMismatch = errors.New("receipt does not belong to batch")
)

// Verify reads back every batch copy the receipt reports as stored and
// compares it with the original payload. The result maps backend IDs to nil on
// success or to the verification error. Backends without a success outcome
// are not checked.
func (c *Coordinator) Verify(ctx context.Context, batch *types.Batch, receipt *types.SubmissionReceipt, backends []da.Backend) (map[string]error, error) {
	if receipt.BatchID() != batch.ID {
		return nil, fmt.Errorf("%w: receipt %d, batch %d", ErrReceiptMismatch, receipt.BatchID(), batch.ID)
	}

	var (
		mtx     sync.Mutex
		results = make(map[string]error)
		g       errgroup.Group
	)
	for _, b := range backends {
		outcome, ok := receipt.Outcome(b.ID())
		if !ok || !outcome.Succeeded() {
			continue
		}
		b := b
		g.Go(func() error {
			err := c.verifyBackend(ctx, batch, b, outcome.Location)
			result := "ok"
			if err != nil {
				result = "error"
				c.logger.Error("read-back verification failed", "batch", batch.ID, "backend", b.ID(), "error", err)
			}
			c.metrics.Verifications.With("backend", b.ID(), "result", result).Add(1)

			mtx.Lock()
			defer mtx.Unlock()
			results[b.ID()] = err
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (c *Coordinator) verifyBackend(ctx context.Context, batch *types.Batch, backend da.Backend, location types.Location) error {
	fetcher, ok := backend.(da.Fetcher)
	if !ok {
		return ErrFetchUnsupported
	}

	segments := make([]types.Segment, len(location))
	var offset uint64
	for i, id := range location {
		data, err := fetcher.Fetch(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch segment %d: %w", i, err)
		}
		segments[i] = types.Segment{BatchID: batch.ID, Index: uint32(i), Offset: offset, Data: data}
		offset += uint64(len(data))
	}

	payload, err := types.JoinSegments(segments)
	if err != nil {
		return err
	}
	if !bytes.Equal(payload, batch.Data) {
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrVerificationMismatch, len(payload), len(batch.Data))
	}
	return nil
}
