package service

import (
	"time"

	"github.com/okian/oratora/internal/adapters/repository"
	"github.com/okian/oratora/internal/domain/scoring"
	"github.com/okian/oratora/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorer sets the scoring client. The default is a simulated scorer.
func WithScorer(c scoring.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.scorer = c
		}
	}
}

// WithStore sets the session store history is mirrored to. The default keeps it in memory.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithBlobs sets the audio blob store. Without it a file store is opened in the audio dir.
func WithBlobs(b Blobs) Option {
	return func(s *Service) {
		if b != nil {
			s.blobs = b
		}
	}
}

// WithAudioDir sets the directory of the default file blob store.
func WithAudioDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.audioDir = dir
		}
	}
}

// WithQueueCapacity bounds the evaluation queue. Zero keeps it unbounded.
func WithQueueCapacity(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.queueCapacity = n
		}
	}
}

// WithMaxPrompts caps totalPrompts on rapid-fire sessions.
func WithMaxPrompts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPrompts = n
		}
	}
}

// WithMaxAudioBytes caps a single audio upload.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAudioBytes = n
		}
	}
}

// WithRetention sets the session retention window and sweep interval.
func WithRetention(window, interval time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.retentionWindow = window
		}
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how server-side session ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
