package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/rollkit/multida/config"
	"github.com/rollkit/multida/coordinator"
	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/rpc"
)

// NewServeCmd returns the command running the receipt API and, when enabled,
// the prometheus endpoint.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the receipt API and accept batches over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := newNode(cmd, func(nc config.NodeConfig) *coordinator.Metrics {
				if nc.Instrumentation.IsPrometheusEnabled() {
					return coordinator.PrometheusMetrics(nc.Instrumentation.Namespace)
				}
				return coordinator.NopMetrics()
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := n.Close(); err != nil {
					n.logger.Error("failed to close node", "error", err)
				}
			}()

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			server := rpc.NewServer(n.receipts, n.config.RPC, n.logger, rpc.WithSubmitter(n.publisher()))
			g.Go(func() error {
				return server.Run(ctx)
			})
			if n.config.Instrumentation.IsPrometheusEnabled() {
				g.Go(func() error {
					return servePrometheus(ctx, n.config.Instrumentation, n.logger)
				})
			}
			return g.Wait()
		},
	}
}

func servePrometheus(ctx context.Context, cfg *config.InstrumentationConfig, logger log.Logger) error {
	logger.Info("starting prometheus server", "listen address", cfg.PrometheusListenAddr)
	srv := &http.Server{
		Addr: cfg.PrometheusListenAddr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: cfg.MaxOpenConnections},
			),
		),
		ReadHeaderTimeout: 2 * time.Second,
	}
	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if cfg.MaxOpenConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxOpenConnections)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
