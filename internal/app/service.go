// Package service provides the evaluation service that implements the
// dependencies required by the HTTP API. It owns the session registry, the
// evaluation queue and its evaluator, the retention sweeper and the stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oratora/internal/adapters/blob"
	"github.com/okian/oratora/internal/adapters/mq/queue"
	"github.com/okian/oratora/internal/adapters/mq/worker"
	"github.com/okian/oratora/internal/adapters/repository"
	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/internal/domain/registry"
	"github.com/okian/oratora/internal/domain/retention"
	"github.com/okian/oratora/internal/domain/scoring"
	"github.com/okian/oratora/internal/domain/status"
	"github.com/okian/oratora/pkg/logger"
	"github.com/okian/oratora/pkg/metrics"
)

// Blobs stores submitted recordings until the sweeper removes them.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Service is the evaluation service. Its state lives for the process
// lifetime; construct a fresh one per test.
type Service struct {
	mu sync.Mutex

	// Core components
	sessions  *registry.Registry
	queue     *queue.Queue[model.Job]
	evaluator *worker.Evaluator
	sweeper   *retention.Sweeper
	scorer    scoring.Client
	store     repository.Store
	blobs     Blobs

	// Configuration
	audioDir        string
	queueCapacity   int
	maxPrompts      int
	maxAudioBytes   int64
	retentionWindow time.Duration
	sweepInterval   time.Duration
	now             func() time.Time
	newID           func() string

	// State
	started   bool
	stopSweep context.CancelFunc
	sweepDone chan struct{}

	logger logger.Logger
}

// New constructs a Service. Components are wired immediately; Start only
// launches the background sweeper.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		audioDir:        "uploads",
		maxPrompts:      50,
		maxAudioBytes:   25 << 20,
		retentionWindow: retention.DefaultWindow,
		sweepInterval:   retention.DefaultInterval,
		now:             time.Now,
		newID:           uuid.NewString,
		logger:          logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.scorer == nil {
		s.scorer = scoring.NewSimulatedScorer()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
	}
	if s.blobs == nil {
		fs, err := blob.NewFileStore(s.audioDir, blob.WithMaxBytes(s.maxAudioBytes))
		if err != nil {
			return nil, fmt.Errorf("service: open audio store: %w", err)
		}
		s.blobs = fs
	}

	s.sessions = registry.New(registry.WithLogger(s.logger))
	s.evaluator = worker.NewEvaluator(s.sessions, s.scorer,
		worker.WithLogger(s.logger),
		worker.WithMirror(s.store),
		worker.WithClock(s.now),
	)
	s.queue = queue.New[model.Job](s.evaluator.Process,
		queue.WithCapacity(s.queueCapacity),
		queue.WithLogger(s.logger),
		queue.WithClock(s.now),
	)
	s.sweeper = retention.New(s.sessions, s.blobs,
		retention.WithWindow(s.retentionWindow),
		retention.WithInterval(s.sweepInterval),
		retention.WithClock(s.now),
		retention.WithLogger(s.logger),
	)
	return s, nil
}

// Start launches the retention sweeper. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting evaluation service...")

	sweepCtx, cancel := context.WithCancel(ctx)
	s.stopSweep = cancel
	s.sweepDone = make(chan struct{})
	go func() {
		defer close(s.sweepDone)
		if err := s.sweeper.Run(sweepCtx); err != nil {
			s.logger.Error(sweepCtx, "retention sweeper stopped", logger.Error(err))
		}
	}()

	s.started = true
	s.logger.Info(ctx, "evaluation service started",
		logger.Int("queueCapacity", s.queueCapacity),
		logger.Int("maxPrompts", s.maxPrompts),
		logger.Duration("retention", s.retentionWindow),
	)
	return nil
}

// Stop closes the queue to new jobs, waits for queued jobs to be evaluated
// (bounded by ctx) and stops the sweeper.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info(ctx, "stopping evaluation service...", logger.Int("queueLength", s.queue.Len()))
	s.queue.Close()
	s.queue.Drain(ctx)
	err := s.queue.Wait(ctx)

	s.mu.Lock()
	if s.started {
		s.stopSweep()
		<-s.sweepDone
		s.started = false
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn(ctx, "stopped with jobs still queued",
			logger.Int("queueLength", s.queue.Len()),
			logger.Error(err),
		)
		return fmt.Errorf("service: drain on stop: %w", err)
	}
	s.logger.Info(ctx, "evaluation service stopped")
	return nil
}

// Sweep runs one retention pass immediately.
func (s *Service) Sweep(ctx context.Context) retention.Result {
	return s.sweeper.SweepOnce(ctx)
}

// Wait blocks until the queue is idle or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	queueLen := s.queue.Len()
	sessions := s.sessions.Len()
	goroutines := runtime.NumGoroutine()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics.UpdateQueueLength(queueLen)
	metrics.UpdateActiveSessions(sessions)
	metrics.UpdateSystemGoroutineCount(goroutines)
	metrics.UpdateSystemMemoryUsage(mem.HeapInuse)

	return map[string]any{
		"started":         started,
		"queueLength":     queueLen,
		"queueState":      s.queue.State().String(),
		"isProcessing":    s.queue.Draining(),
		"queueCapacity":   s.queueCapacity,
		"sessions":        sessions,
		"maxPrompts":      s.maxPrompts,
		"retentionWindow": s.retentionWindow.String(),
		"goroutines":      goroutines,
	}
}

func (s *Service) queueInfo() status.QueueInfo {
	return status.QueueInfo{Length: s.queue.Len(), Processing: s.queue.Draining()}
}

// sessionID validates a client supplied id or mints one when it is empty.
func (s *Service) sessionID(id string) (string, error) {
	if id == "" {
		return s.newID(), nil
	}
	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: invalid sessionId %q", ErrBadRequest, id)
	}
	return id, nil
}

func requireSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: sessionId is required", ErrBadRequest)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid sessionId %q", ErrBadRequest, id)
	}
	return nil
}

func (s *Service) checkAudio(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: audio file is required", ErrBadRequest)
	}
	if int64(len(data)) > s.maxAudioBytes {
		metrics.RecordAdmissionRejected("audio_too_large")
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrAudioTooLarge, len(data), s.maxAudioBytes)
	}
	return nil
}

// open returns session id, creating it with init when absent, and checks
// that it belongs to game.
// A freshly created session that belongs to a user gets a history record.
func (s *Service) open(ctx context.Context, id string, game model.GameType, init func() *model.Session) (*model.Session, error) {
	sess, created := s.sessions.CreateOrGet(id, init)
	if sess.GameType != game {
		metrics.RecordAdmissionRejected("game_mismatch")
		return nil, fmt.Errorf("%w: session %s belongs to %s", ErrInvalidState, id, sess.GameType)
	}
	if created && sess.UserID != "" {
		return s.createRecord(ctx, sess), nil
	}
	return sess, nil
}

// createRecord mirrors a new session into the store. Failures are logged and
// the session carries on without a store id.
func (s *Service) createRecord(ctx context.Context, sess *model.Session) *model.Session {
	rec := games.HistoryRecord(sess, games.MustFor(sess.GameType), s.now())
	saved, err := s.store.CreateSession(ctx, rec)
	if err != nil {
		metrics.RecordPersistenceError("create_session")
		s.logger.Warn(ctx, "failed to create history record",
			logger.String("session_id", sess.ID),
			logger.String("user_id", sess.UserID),
			logger.Error(err),
		)
		return sess
	}
	updated, err := s.sessions.Mutate(sess.ID, func(m *model.Session) error {
		m.StoreID = saved.ID
		return nil
	})
	if err != nil {
		return sess
	}
	return updated
}

// enqueue stores the job's audio and queues it. On failure undo runs against
// the session so the submission can be retried.
func (s *Service) enqueue(ctx context.Context, job model.Job, undo func(*model.Session)) (int, error) {
	release := func() {
		_, _ = s.sessions.Mutate(job.SessionID, func(m *model.Session) error {
			undo(m)
			m.AudioKeys = slices.DeleteFunc(m.AudioKeys, func(k string) bool { return k == job.Audio.Key })
			return nil
		})
	}

	if err := s.blobs.Put(ctx, job.Audio.Key, job.Audio.Data); err != nil {
		release()
		if errors.Is(err, blob.ErrTooLarge) {
			return 0, fmt.Errorf("%w: %w", ErrAudioTooLarge, err)
		}
		return 0, fmt.Errorf("service: store audio: %w", err)
	}

	job.EnqueuedAt = s.now()
	pos, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		release()
		if derr := s.blobs.Delete(ctx, job.Audio.Key); derr != nil {
			s.logger.Warn(ctx, "failed to remove rejected audio", logger.String("key", job.Audio.Key), logger.Error(derr))
		}
		return 0, err
	}
	metrics.RecordJobEnqueued(string(job.Game))
	s.queue.Drain(ctx)

	s.logger.Info(ctx, "evaluation queued",
		logger.String("session_id", job.SessionID),
		logger.String("game", string(job.Game)),
		logger.Int("slot", job.Slot),
		logger.Int("position", pos),
	)
	return pos, nil
}
