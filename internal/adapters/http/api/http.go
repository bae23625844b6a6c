// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/oratora/pkg/logger"
)

// defaultMaxUploadBytes bounds a multipart submission: the audio plus its form fields.
const defaultMaxUploadBytes = 26 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	GameDependencies
	ConductorDependencies
	SessionDependencies
	AnalyticsDependencies
}

// Option configures the Server.
type Option func(*config)

type config struct {
	maxUploadBytes int64
	logger         logger.Logger
}

// WithMaxUploadBytes caps the size of a multipart submission body.
func WithMaxUploadBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	gamesHandler     *GamesHandler
	conductorHandler *ConductorHandler
	sessionsHandler  *SessionsHandler
	analyticsHandler *AnalyticsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := config{
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		gamesHandler:     NewGamesHandler(deps, cfg),
		conductorHandler: NewConductorHandler(deps, cfg),
		sessionsHandler:  NewSessionsHandler(deps, cfg),
		analyticsHandler: NewAnalyticsHandler(deps, cfg),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/v1/games/rapid-fire/evaluate",
		MetricsMiddleware(s.gamesHandler.HandleRapidFire, "rapid_fire_evaluate"))
	mux.HandleFunc("POST /api/v1/games/triple-step/evaluate",
		MetricsMiddleware(s.gamesHandler.HandleTripleStep, "triple_step_evaluate"))

	mux.HandleFunc("POST /api/v1/games/conductor/start",
		MetricsMiddleware(s.conductorHandler.HandleStart, "conductor_start"))
	mux.HandleFunc("POST /api/v1/games/conductor/energy-change",
		MetricsMiddleware(s.conductorHandler.HandleEnergyChange, "conductor_energy_change"))
	mux.HandleFunc("POST /api/v1/games/conductor/breath-moment",
		MetricsMiddleware(s.conductorHandler.HandleBreathMoment, "conductor_breath_moment"))
	mux.HandleFunc("POST /api/v1/games/conductor/end",
		MetricsMiddleware(s.conductorHandler.HandleEnd, "conductor_end"))

	mux.HandleFunc("GET /api/v1/games/{game}/session/{sessionId}",
		MetricsMiddleware(s.sessionsHandler.HandleStatus, "session_status"))
	mux.HandleFunc("GET /api/v1/games/{game}/audio/{sessionId}",
		MetricsMiddleware(s.sessionsHandler.HandleRecordingAudio, "recording_audio"))
	mux.HandleFunc("GET /api/v1/audio/{sessionId}/{promptIndex}",
		MetricsMiddleware(s.sessionsHandler.HandlePromptAudio, "prompt_audio"))
	mux.HandleFunc("GET /api/v1/debug/state",
		MetricsMiddleware(s.sessionsHandler.HandleDebug, "debug_state"))

	mux.HandleFunc("GET /api/v1/analytics/{userId}",
		MetricsMiddleware(s.analyticsHandler.HandleReport, "analytics"))
	mux.HandleFunc("GET /api/v1/analytics/{userId}/skills",
		MetricsMiddleware(s.analyticsHandler.HandleSkill, "analytics_skills"))
	mux.HandleFunc("GET /api/v1/analytics/{userId}/achievements",
		MetricsMiddleware(s.analyticsHandler.HandleAchievements, "analytics_achievements"))
	mux.HandleFunc("GET /api/v1/analytics/{userId}/stats",
		MetricsMiddleware(s.analyticsHandler.HandleUserStats, "analytics_stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to. Server-side failures
// are logged; client errors are only counted by the middleware.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, Wrap(op, err))
}
