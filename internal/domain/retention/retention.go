// Package retention bounds memory growth by evicting old sessions and their
// audio blobs on a fixed interval.
package retention

import (
	"context"
	"time"

	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/pkg/logger"
	"github.com/okian/oratora/pkg/metrics"
)

const (
	DefaultWindow   = 24 * time.Hour
	DefaultInterval = time.Hour
)

// Sessions is the registry view the sweeper needs.
type Sessions interface {
	DeleteCreatedBefore(cutoff time.Time) []*model.Session
}

// Blobs is the blob store view the sweeper needs.
type Blobs interface {
	Delete(ctx context.Context, key string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Option applies a configuration option to the Sweeper.
type Option func(*Sweeper)

// WithWindow sets the retention window. Entries created before now-window are evicted.
func WithWindow(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithInterval sets how often Run sweeps.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the sweeper.
func WithLogger(l logger.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// Result counts what one sweep removed.
type Result struct {
	Sessions int
	Blobs    int
}

// Sweeper evicts sessions by age, whatever their status. An evaluation still
// in flight for an evicted session finds it missing and is discarded.
type Sweeper struct {
	sessions Sessions
	blobs    Blobs
	window   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// New creates a sweeper. blobs may be nil when no audio is stored.
func New(sessions Sessions, blobs Blobs, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions: sessions,
		blobs:    blobs,
		window:   DefaultWindow,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   logger.Get().Named("retention"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepOnce runs a single pass: expired sessions first, then their blobs,
// then any orphaned blob older than the window.
func (s *Sweeper) SweepOnce(ctx context.Context) Result {
	start := time.Now()
	cutoff := s.now().Add(-s.window)

	var res Result
	removed := s.sessions.DeleteCreatedBefore(cutoff)
	res.Sessions = len(removed)

	if s.blobs != nil {
		for _, sess := range removed {
			for _, key := range sess.AudioKeys {
				if err := s.blobs.Delete(ctx, key); err != nil {
					metrics.RecordErrorByComponent("retention", "blob_delete")
					s.logger.Warn(ctx, "failed to delete blob",
						logger.String("session_id", sess.ID),
						logger.String("key", key),
						logger.Error(err),
					)
					continue
				}
				res.Blobs++
			}
		}
		n, err := s.blobs.DeleteOlderThan(ctx, cutoff)
		res.Blobs += n
		if err != nil {
			metrics.RecordErrorByComponent("retention", "blob_sweep")
			s.logger.Warn(ctx, "orphan blob sweep incomplete", logger.Error(err))
		}
	}

	elapsed := time.Since(start)
	metrics.RecordSweep(res.Sessions, res.Blobs, float64(elapsed.Milliseconds()))
	if res.Sessions > 0 || res.Blobs > 0 {
		s.logger.Info(ctx, "retention sweep",
			logger.Int("sessions", res.Sessions),
			logger.Int("blobs", res.Blobs),
			logger.Duration("took", elapsed),
		)
	}
	return res
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "retention sweeper started",
		logger.Duration("window", s.window),
		logger.Duration("interval", s.interval),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
