package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollkit/multida/store"
	"github.com/rollkit/multida/types"
)

const (
	flagFile    = "file"
	flagBatchID = "batch-id"
)

// ErrNotCommitted is returned when a round ends without meeting the submit strategy.
var ErrNotCommitted = errors.New("batch not committed")

// NewSubmitCmd returns the command running one submission round.
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one batch to the configured DA backends",
		Long: `Submit reads a batch payload, runs one submission round against every
configured backend and prints the receipt. The receipt is journaled whatever
the outcome; the command fails unless the batch was committed.
Without --batch-id the batch is numbered after the latest journaled one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString(flagFile)
			if err != nil {
				return err
			}
			data, err := readPayload(cmd, path)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			n, err := newNode(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := n.Close(); err != nil {
					n.logger.Error("failed to close node", "error", err)
				}
			}()

			batchID, err := batchIDFlag(cmd, n.receipts)
			if err != nil {
				return err
			}

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			receipt, err := n.publisher().Publish(ctx, &types.Batch{ID: batchID, Data: data})
			if receipt == nil {
				return err
			}
			if werr := writeReceipt(cmd, receipt); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if !receipt.Committed() {
				return fmt.Errorf("%w: %w", ErrNotCommitted, receipt.Err())
			}
			return nil
		},
	}
	cmd.Flags().String(flagFile, "-", "batch payload file, - for stdin")
	cmd.Flags().Uint64(flagBatchID, 0, "batch sequence number (default: latest journaled + 1)")
	return cmd
}

func batchIDFlag(cmd *cobra.Command, receipts *store.ReceiptStore) (uint64, error) {
	if cmd.Flags().Changed(flagBatchID) {
		return cmd.Flags().GetUint64(flagBatchID)
	}
	latest, ok := receipts.LatestBatchID()
	if !ok {
		return 0, nil
	}
	return latest + 1, nil
}
