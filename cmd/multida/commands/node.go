package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/rollkit/multida/config"
	"github.com/rollkit/multida/coordinator"
	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/da/registry"
	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/store"
	"github.com/rollkit/multida/types"
)

const receiptsDB = "receipts"

// node bundles everything a command needs to run rounds.
type node struct {
	config      config.NodeConfig
	logger      log.Logger
	receipts    *store.ReceiptStore
	backends    []da.Backend
	coordinator *coordinator.Coordinator
}

// newNode loads the configuration of cmd and opens the journal and backends.
// metrics may be nil.
func newNode(cmd *cobra.Command, metrics func(config.NodeConfig) *coordinator.Metrics) (*node, error) {
	nc, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewLogger(cmd.ErrOrStderr(), log.Options{Level: nc.Log.Level, Format: log.Format(nc.Log.Format)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}

	kv, err := store.NewDefaultKVStore(nc.DBDir(), receiptsDB)
	if err != nil {
		return nil, fmt.Errorf("open receipt journal: %w", err)
	}
	receipts, err := store.NewReceiptStore(kv)
	if err != nil {
		return nil, multierr.Append(err, kv.Close())
	}

	backends, err := registry.NewBackends(cmd.Context(), nc.DA, logger)
	if err != nil {
		return nil, multierr.Append(err, receipts.Close())
	}

	m := coordinator.NopMetrics()
	if metrics != nil {
		m = metrics(nc)
	}
	c := coordinator.New(
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(m),
		coordinator.WithSubmitTimeout(nc.DA.SubmitTimeout),
	)
	logger.Info("node ready", "backends", len(backends), "strategy", nc.DA.SubmitStrategy, "threshold", nc.DA.Threshold())

	return &node{
		config:      nc,
		logger:      logger,
		receipts:    receipts,
		backends:    backends,
		coordinator: c,
	}, nil
}

func (n *node) publisher() *coordinator.Publisher {
	return coordinator.NewPublisher(n.coordinator, n.backends, n.config.DA.SubmitStrategy, n.receipts)
}

func (n *node) Close() error {
	return multierr.Combine(registry.Close(n.backends), n.receipts.Close())
}

// readPayload reads the batch payload from path, "-" meaning stdin.
func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeReceipt(cmd *cobra.Command, receipt *types.SubmissionReceipt) error {
	out, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// withSignals returns a context cancelled on SIGINT or SIGTERM.
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
