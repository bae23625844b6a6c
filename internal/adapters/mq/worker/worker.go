// Package worker processes evaluation jobs popped by the queue: it calls the
// scoring client, turns the reply (or a failure) into an evaluation, merges
// it into the session and mirrors terminal sessions into the session store.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/okian/oratora/internal/domain/games"
	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/internal/domain/registry"
	"github.com/okian/oratora/internal/domain/scoring"
	"github.com/okian/oratora/pkg/logger"
	"github.com/okian/oratora/pkg/metrics"
)

const defaultMirrorTimeout = 10 * time.Second

// Sessions is the part of the registry the evaluator writes through.
type Sessions interface {
	Mutate(id string, fn func(*model.Session) error) (*model.Session, error)
}

// Mirror receives terminal sessions. Failures are logged and dropped.
type Mirror interface {
	UpdateSession(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error)
	RecordGamePlayed(ctx context.Context, userID string, game model.GameType, delta model.StatsDelta, at time.Time) (*model.UserGameStats, error)
}

var (
	errGameMismatch = errors.New("job game does not match session")
	errNotApplied   = errors.New("result not applied")
	errStaleJob     = errors.New("job predates session")
)

// Evaluator handles one job at a time. It is meant to be the handler of a
// single-drain queue and holds no state between jobs.
type Evaluator struct {
	sessions      Sessions
	scorer        scoring.Client
	mirror        Mirror
	mirrorTimeout time.Duration
	now           func() time.Time
	logger        logger.Logger
}

// NewEvaluator creates an evaluator writing results into sessions.
func NewEvaluator(sessions Sessions, scorer scoring.Client, opts ...Option) *Evaluator {
	e := &Evaluator{
		sessions:      sessions,
		scorer:        scorer,
		mirrorTimeout: defaultMirrorTimeout,
		now:           time.Now,
		logger:        logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs job to completion. Scoring failures become placeholder
// results; a session that disappeared while the job was in flight is skipped.
func (e *Evaluator) Process(ctx context.Context, job model.Job) {
	log := e.logger.With(
		logger.String("session_id", job.SessionID),
		logger.String("game", string(job.Game)),
		logger.Int("slot", job.Slot),
	)
	game, err := games.For(job.Game)
	if err != nil {
		metrics.RecordJobProcessed(string(job.Game), metrics.OutcomeDiscarded)
		log.Error(ctx, "dropping job for unknown game", logger.Error(err))
		return
	}

	eval, failed := e.evaluate(ctx, game, job, log)

	// The session may have changed or been evicted while scoring ran, so the
	// merge re-reads it inside one registry step.
	var outcome games.Outcome
	s, err := e.sessions.Mutate(job.SessionID, func(s *model.Session) error {
		if s.GameType != job.Game {
			return errGameMismatch
		}
		// An evicted id can be reused before an old job is popped.
		if job.EnqueuedAt.Before(s.CreatedAt) {
			return errStaleJob
		}
		outcome = game.Apply(s, job, eval, failed, e.now())
		if !outcome.Applied {
			return errNotApplied
		}
		return nil
	})
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		metrics.RecordJobProcessed(string(job.Game), metrics.OutcomeDiscarded)
		log.Info(ctx, "session evicted before evaluation finished, result discarded")
		return
	case err != nil:
		metrics.RecordJobProcessed(string(job.Game), metrics.OutcomeDiscarded)
		log.Warn(ctx, "evaluation result not applied", logger.Error(err))
		return
	}

	if failed {
		metrics.RecordJobProcessed(string(job.Game), metrics.OutcomePlaceholder)
	} else {
		metrics.RecordJobProcessed(string(job.Game), metrics.OutcomeScored)
	}
	log.Debug(ctx, "evaluation applied",
		logger.Int("filled", s.Filled),
		logger.Int("expected", s.Expected),
		logger.Bool("placeholder", failed),
	)

	if outcome.Terminal {
		metrics.RecordSessionTerminal(string(s.GameType), string(s.Status))
		log.Info(ctx, "session finished",
			logger.String("status", string(s.Status)),
			logger.Bool("error", s.Error),
		)
		e.mirrorTerminal(ctx, s, game, log)
	}
}

// evaluate calls the scorer and decodes its reply. Any failure yields the
// game's placeholder and failed=true.
func (e *Evaluator) evaluate(ctx context.Context, game games.Game, job model.Job, log logger.Logger) (model.Evaluation, bool) {
	req := scoring.Request{
		Game:     job.Game,
		Prompt:   game.Prompt(job.Context),
		Audio:    job.Audio.Data,
		MIMEType: job.Audio.MIMEType,
		Context:  job.Context,
	}

	start := time.Now()
	raw, err := e.scorer.Score(ctx, req)
	metrics.RecordScoringLatency(string(job.Game), float64(time.Since(start).Milliseconds()))

	kind := ""
	var eval model.Evaluation
	if err != nil {
		kind = scoringErrorKind(err)
	} else if eval, err = game.Decode(raw); err != nil {
		kind = "unparseable"
	}
	if err == nil {
		return eval, false
	}

	metrics.RecordScoringError(string(job.Game), kind)
	metrics.RecordErrorByComponent("worker", "scoring_"+kind)
	log.Warn(ctx, "scoring failed, using placeholder evaluation",
		logger.String("kind", kind),
		logger.Error(err),
	)
	return game.Placeholder(job.Context), true
}

func scoringErrorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, scoring.ErrBlocked):
		return "blocked"
	case errors.Is(err, scoring.ErrEmptyResponse):
		return "empty"
	default:
		return "upstream"
	}
}

// mirrorTerminal writes the finished session to the store. It never fails
// the job: the registry stays authoritative for polling.
func (e *Evaluator) mirrorTerminal(ctx context.Context, s *model.Session, game games.Game, log logger.Logger) {
	if e.mirror == nil || s.StoreID == "" || s.UserID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.mirrorTimeout)
	defer cancel()

	now := e.now()
	if _, err := e.mirror.UpdateSession(ctx, games.HistoryRecord(s, game, now)); err != nil {
		metrics.RecordPersistenceError("update_session")
		log.Error(ctx, "failed to mirror session", logger.String("record_id", s.StoreID), logger.Error(err))
		return
	}
	if _, err := e.mirror.RecordGamePlayed(ctx, s.UserID, s.GameType, game.StatsDelta(s), now); err != nil {
		metrics.RecordPersistenceError("record_game_played")
		log.Error(ctx, "failed to update user stats", logger.String("user_id", s.UserID), logger.Error(err))
		return
	}
	log.Debug(ctx, "session mirrored", logger.String("record_id", s.StoreID))
}
