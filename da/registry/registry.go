package registry

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/rollkit/multida/config"
	"github.com/rollkit/multida/da"
	"github.com/rollkit/multida/da/ledger"
	"github.com/rollkit/multida/da/objectstore"
	"github.com/rollkit/multida/log"
)

// BackendID names the backend at position i of the configured set, e.g. "ledger-0" or "s3-1".
func BackendID(c config.BackendConfig, i int) string {
	if c.Kind == config.KindObjectStore && c.ObjectStore != nil && c.ObjectStore.Scheme != "" {
		return fmt.Sprintf("%s-%d", c.ObjectStore.Scheme, i)
	}
	return fmt.Sprintf("%s-%d", c.Kind, i)
}

// NewBackends builds one backend per configured server, in configuration
// order. cfg must be normalized.
func NewBackends(ctx context.Context, cfg config.DAConfig, logger log.Logger) ([]da.Backend, error) {
	backends := make([]da.Backend, 0, len(cfg.Servers))
	for i, server := range cfg.Servers {
		b, err := NewBackend(ctx, BackendID(server, i), server, logger)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("server %d: %w", i, err), Close(backends))
		}
		backends = append(backends, b)
	}
	return backends, nil
}

// NewBackend builds a single backend.
func NewBackend(ctx context.Context, id string, server config.BackendConfig, logger log.Logger) (da.Backend, error) {
	switch server.Kind {
	case config.KindLedger:
		lc := server.Ledger
		return ledger.New(id, ledger.Config{
			Namespace:      lc.Namespace,
			Conn:           lc.Conn,
			AuthToken:      lc.AuthToken,
			MaxSegmentSize: server.MaxSegmentSize(),
			GasLimit:       lc.GasLimit,
			Timeout:        lc.RequestTimeout(),
		}, logger)
	case config.KindObjectStore:
		oc := server.ObjectStore
		return objectstore.New(ctx, id, objectstore.Config{
			Scheme:         objectstore.Scheme(oc.Scheme),
			Params:         oc.Params,
			MaxSegmentSize: server.MaxSegmentSize(),
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend kind %q", config.ErrConfig, server.Kind)
	}
}

// Close releases backends holding resources.
func Close(backends []da.Backend) (err error) {
	for _, b := range backends {
		if c, ok := b.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
