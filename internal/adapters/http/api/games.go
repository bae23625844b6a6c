package api

import (
	"context"
	"net/http"

	service "github.com/okian/oratora/internal/app"
	"github.com/okian/oratora/pkg/logger"
)

// GameDependencies defines the submissions of the multi-prompt and the
// word-integration games.
type GameDependencies interface {
	SubmitRapidFire(ctx context.Context, sub service.RapidFireSubmission) (*service.Queued, error)
	SubmitTripleStep(ctx context.Context, sub service.TripleStepSubmission) (*service.TripleStepQueued, error)
}

// GamesHandler handles audio submissions for evaluation.
type GamesHandler struct {
	deps           GameDependencies
	maxUploadBytes int64
	logger         logger.Logger
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(deps GameDependencies, cfg config) *GamesHandler {
	return &GamesHandler{deps: deps, maxUploadBytes: cfg.maxUploadBytes, logger: cfg.logger}
}

// HandleRapidFire handles POST /api/v1/games/rapid-fire/evaluate.
func (h *GamesHandler) HandleRapidFire(w http.ResponseWriter, r *http.Request) {
	const op = "api.rapid_fire_evaluate"
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	audio, mime, err := readAudio(r)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	f := &form{r: r}
	sub := service.RapidFireSubmission{
		SessionID:    f.str("sessionId"),
		UserID:       f.str("userId"),
		Prompt:       f.str("prompt"),
		PromptIndex:  f.int("promptIndex", true),
		TotalPrompts: f.int("totalPrompts", true),
		Difficulty:   f.str("difficulty"),
		Seconds:      f.int("seconds", false),
		ResponseTime: f.float("responseTime"),
		TotalTime:    f.float("totalTime"),
		Audio:        audio,
		MIMEType:     mime,
	}
	if f.err != nil {
		fail(r.Context(), h.logger, w, op, f.err)
		return
	}

	res, err := h.deps.SubmitRapidFire(r.Context(), sub)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// HandleTripleStep handles POST /api/v1/games/triple-step/evaluate.
// The word lists arrive as JSON arrays inside form fields.
func (h *GamesHandler) HandleTripleStep(w http.ResponseWriter, r *http.Request) {
	const op = "api.triple_step_evaluate"
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	audio, mime, err := readAudio(r)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	f := &form{r: r}
	sub := service.TripleStepSubmission{
		SessionID:       f.str("sessionId"),
		UserID:          f.str("userId"),
		Topic:           f.str("topic"),
		WordList:        f.words("wordList"),
		IntegratedWords: f.words("integratedWords"),
		MissedWords:     f.words("missedWords"),
		Transcription:   f.str("transcription"),
		TotalTime:       f.float("totalTime"),
		ActualTime:      f.float("actualTime"),
		CompletedEarly:  f.bool("completedEarly"),
		Audio:           audio,
		MIMEType:        mime,
	}
	if f.err != nil {
		fail(r.Context(), h.logger, w, op, f.err)
		return
	}

	res, err := h.deps.SubmitTripleStep(r.Context(), sub)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
