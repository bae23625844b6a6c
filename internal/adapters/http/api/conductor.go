package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	service "github.com/okian/oratora/internal/app"
	"github.com/okian/oratora/pkg/logger"
)

// ConductorDependencies defines the conductor recording lifecycle.
type ConductorDependencies interface {
	StartConductor(ctx context.Context, req service.ConductorStart) (*service.ConductorStarted, error)
	RecordEnergyChange(ctx context.Context, id string, level int, offsetMS int64) (*service.EnergyRecorded, error)
	RecordBreathMoment(ctx context.Context, id string, offsetMS int64) (*service.BreathRecorded, error)
	EndConductor(ctx context.Context, req service.ConductorEnd) (*service.ConductorEnded, error)
}

// ConductorHandler handles the conductor endpoints.
type ConductorHandler struct {
	deps           ConductorDependencies
	maxUploadBytes int64
	logger         logger.Logger
}

// NewConductorHandler creates a new conductor handler.
func NewConductorHandler(deps ConductorDependencies, cfg config) *ConductorHandler {
	return &ConductorHandler{deps: deps, maxUploadBytes: cfg.maxUploadBytes, logger: cfg.logger}
}

// startRequest mirrors the OpenAPI schema for POST /conductor/start.
type startRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Topic     string `json:"topic"`
	Duration  int    `json:"duration"`
}

func (s startRequest) validate() error {
	if strings.TrimSpace(s.SessionID) == "" || strings.TrimSpace(s.Topic) == "" || s.Duration == 0 {
		return fmt.Errorf("%w: sessionId, topic, and duration are required", ErrBadRequest)
	}
	return nil
}

// cueRequest is the body of the energy-change and breath-moment endpoints.
// Timestamp is milliseconds since the recording started.
type cueRequest struct {
	SessionID   string `json:"sessionId"`
	EnergyLevel *int   `json:"energyLevel,omitempty"`
	Timestamp   *int64 `json:"timestamp"`
}

func (c cueRequest) validate(needLevel bool) error {
	switch {
	case strings.TrimSpace(c.SessionID) == "":
		return fmt.Errorf("%w: sessionId is required", ErrBadRequest)
	case needLevel && c.EnergyLevel == nil:
		return fmt.Errorf("%w: energyLevel is required", ErrBadRequest)
	case c.Timestamp == nil:
		return fmt.Errorf("%w: timestamp is required", ErrBadRequest)
	}
	return nil
}

// HandleStart handles POST /api/v1/games/conductor/start.
func (h *ConductorHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.conductor_start"
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	res, err := h.deps.StartConductor(r.Context(), service.ConductorStart{
		SessionID:       strings.TrimSpace(req.SessionID),
		UserID:          strings.TrimSpace(req.UserID),
		Topic:           strings.TrimSpace(req.Topic),
		DurationMinutes: req.Duration,
	})
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEnergyChange handles POST /api/v1/games/conductor/energy-change.
func (h *ConductorHandler) HandleEnergyChange(w http.ResponseWriter, r *http.Request) {
	const op = "api.conductor_energy_change"
	var req cueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	if err := req.validate(true); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	res, err := h.deps.RecordEnergyChange(r.Context(), strings.TrimSpace(req.SessionID), *req.EnergyLevel, *req.Timestamp)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleBreathMoment handles POST /api/v1/games/conductor/breath-moment.
func (h *ConductorHandler) HandleBreathMoment(w http.ResponseWriter, r *http.Request) {
	const op = "api.conductor_breath_moment"
	var req cueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	if err := req.validate(false); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	res, err := h.deps.RecordBreathMoment(r.Context(), strings.TrimSpace(req.SessionID), *req.Timestamp)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEnd handles POST /api/v1/games/conductor/end (multipart with audio).
func (h *ConductorHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	const op = "api.conductor_end"
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	f := &form{r: r}
	id := f.str("sessionId")
	if id == "" {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, errors.New("sessionId is required")))
		return
	}
	audio, mime, err := readAudio(r)
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	res, err := h.deps.EndConductor(r.Context(), service.ConductorEnd{SessionID: id, Audio: audio, MIMEType: mime})
	if err != nil {
		fail(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
