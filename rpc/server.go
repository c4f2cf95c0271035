package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/netutil"

	"github.com/rollkit/multida/config"
	"github.com/rollkit/multida/log"
	"github.com/rollkit/multida/store"
	"github.com/rollkit/multida/types"
)

// Submitter publishes a batch and returns its receipt.
type Submitter interface {
	Publish(ctx context.Context, batch *types.Batch) (*types.SubmissionReceipt, error)
}

// Server exposes the receipt journal as a JSON API. Batch submission is only
// served when a Submitter is configured.
type Server struct {
	config    config.RPCConfig
	receipts  *store.ReceiptStore
	submitter Submitter
	logger    log.Logger

	server http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithSubmitter enables POST /batches/{batch_id}.
func WithSubmitter(submitter Submitter) Option {
	return func(s *Server) { s.submitter = submitter }
}

// NewServer creates new instance of Server with given configuration.
func NewServer(receipts *store.ReceiptStore, config config.RPCConfig, logger log.Logger, opts ...Option) *Server {
	s := &Server{
		config:   config,
		receipts: receipts,
		logger:   logger.With("module", "rpc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes, wrapped with CORS handling when enabled.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = newHandler(s.receipts, s.submitter, s.logger)
	if s.config.IsCorsEnabled() {
		s.logger.Debug("CORS enabled",
			"origins", s.config.CORSAllowedOrigins,
			"methods", s.config.CORSAllowedMethods,
			"headers", s.config.CORSAllowedHeaders,
		)
		c := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSAllowedOrigins,
			AllowedMethods: s.config.CORSAllowedMethods,
			AllowedHeaders: s.config.CORSAllowedHeaders,
		})
		handler = c.Handler(handler)
	}
	return handler
}

// Run serves the API until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.config.ListenAddress == "" {
		s.logger.Info("Listen address not specified - RPC will not be exposed")
		<-ctx.Done()
		return nil
	}
	listener, err := listen(s.config.ListenAddress)
	if err != nil {
		return err
	}
	if s.config.MaxOpenConnections != 0 {
		s.logger.Debug("limiting number of connections", "limit", s.config.MaxOpenConnections)
		listener = netutil.LimitListener(listener, s.config.MaxOpenConnections)
	}

	s.server = http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second * 2,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving HTTP", "listen address", listener.Addr())
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error while shutting down RPC server", "error", err)
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// listen accepts both "host:port" and "proto://host:port".
func listen(address string) (net.Listener, error) {
	proto, addr := "tcp", address
	if parts := strings.SplitN(address, "://", 2); len(parts) == 2 {
		proto, addr = parts[0], parts[1]
	}
	return net.Listen(proto, addr)
}
