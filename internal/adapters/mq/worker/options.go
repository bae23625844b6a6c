package worker

import (
	"time"

	"github.com/okian/oratora/pkg/logger"
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithLogger sets a custom logger for the evaluator.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMirror enables best-effort mirroring of terminal sessions.
func WithMirror(m Mirror) Option {
	return func(e *Evaluator) {
		e.mirror = m
	}
}

// WithMirrorTimeout bounds each mirror write.
func WithMirrorTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.mirrorTimeout = d
		}
	}
}

// WithClock overrides the time source used for completion stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}
