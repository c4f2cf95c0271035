package coordinator

import (
	"time"

	"github.com/rollkit/multida/log"
)

// Option is a function that configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithSubmitTimeout bounds the time a single backend may spend on one batch.
// Non-positive values keep the default.
func WithSubmitTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.submitTimeout = timeout
		}
	}
}
