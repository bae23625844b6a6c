package queue

import (
	"time"

	"github.com/okian/oratora/pkg/logger"
)

type config struct {
	capacity int
	name     string
	logger   logger.Logger
	now      func() time.Time
}

// Option applies a configuration option to a Queue.
type Option func(*config)

// WithCapacity bounds the number of waiting jobs. Zero or less means unbounded.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithName sets the queue name used in logs.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets a custom logger for the queue.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for wait-time accounting.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
