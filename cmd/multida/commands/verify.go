package commands

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rollkit/multida/coordinator"
	"github.com/rollkit/multida/types"
)

// NewVerifyCmd returns the command reading a batch back from its backends.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Read a journaled batch back from every backend that stored it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed(flagBatchID) {
				return fmt.Errorf("--%s is required", flagBatchID)
			}
			batchID, err := cmd.Flags().GetUint64(flagBatchID)
			if err != nil {
				return err
			}
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

			receipt, err := n.receipts.GetReceipt(batchID)
			if err != nil {
				return err
			}

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			results, err := n.coordinator.Verify(ctx, &types.Batch{ID: batchID, Data: data}, receipt, n.backends)
			if err != nil {
				return err
			}
			return printVerification(cmd, results)
		},
	}
	cmd.Flags().String(flagFile, "-", "original batch payload file, - for stdin")
	cmd.Flags().Uint64(flagBatchID, 0, "batch sequence number")
	return cmd
}

func printVerification(cmd *cobra.Command, results map[string]error) error {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var failed error
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 0, 2, ' ', 0)
	for _, id := range ids {
		switch err := results[id]; {
		case err == nil:
			fmt.Fprintf(w, "%s\tok\n", id)
		case errors.Is(err, coordinator.ErrFetchUnsupported):
			fmt.Fprintf(w, "%s\tskipped\t%v\n", id, err)
		default:
			fmt.Fprintf(w, "%s\tfailed\t%v\n", id, err)
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", id, err))
		}
	}
	return multierr.Append(w.Flush(), failed)
}
