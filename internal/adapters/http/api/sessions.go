package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/oratora/internal/domain/model"
	"github.com/okian/oratora/internal/domain/status"
	"github.com/okian/oratora/pkg/logger"
)

// SessionDependencies defines the read side of live sessions.
type SessionDependencies interface {
	Status(ctx context.Context, game model.GameType, id string) (status.View, error)
	PromptAudio(ctx context.Context, id string, promptIndex int) ([]byte, string, error)
	RecordingAudio(ctx context.Context, game model.GameType, id string) ([]byte, string, error)
	Debug(ctx context.Context) status.DebugState
}

// SessionsHandler serves session status, stored audio and the debug dump.
type SessionsHandler struct {
	deps   SessionDependencies
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies, cfg config) *SessionsHandler {
	return &SessionsHandler{deps: deps, logger: cfg.logger}
}

// HandleStatus handles GET /api/v1/games/{game}/session/{sessionId}.
func (h *SessionsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_status"
	game, err := model.ParseGameType(r.PathValue("game"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	v, err := h.deps.Status(r.Context(), game, r.PathValue("sessionId"))
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandlePromptAudio handles GET /api/v1/audio/{sessionId}/{promptIndex}.
func (h *SessionsHandler) HandlePromptAudio(w http.ResponseWriter, r *http.Request) {
	const op = "api.prompt_audio"
	idx, err := strconv.Atoi(r.PathValue("promptIndex"))
	if err != nil {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, errors.New("promptIndex must be an integer")))
		return
	}
	data, ctype, err := h.deps.PromptAudio(r.Context(), r.PathValue("sessionId"), idx)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeAudio(w, data, ctype)
}

// HandleRecordingAudio handles GET /api/v1/games/{game}/audio/{sessionId}.
func (h *SessionsHandler) HandleRecordingAudio(w http.ResponseWriter, r *http.Request) {
	const op = "api.recording_audio"
	game, err := model.ParseGameType(r.PathValue("game"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data, ctype, err := h.deps.RecordingAudio(r.Context(), game, r.PathValue("sessionId"))
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeAudio(w, data, ctype)
}

// HandleDebug handles GET /api/v1/debug/state.
func (h *SessionsHandler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Debug(r.Context()))
}

func writeAudio(w http.ResponseWriter, data []byte, ctype string) {
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
