package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rickgao/tsfeed/internal/connection"
	"github.com/rickgao/tsfeed/internal/model"
	"github.com/rickgao/tsfeed/internal/poller"
	"github.com/rickgao/tsfeed/internal/version"
)

// StatusSource is the feed status surface. *connection.StatusPort satisfies it.
type StatusSource interface {
	State() connection.State
	LastError() (string, bool)
	Snapshot() []model.Sample
	Info() connection.Info
	RequestReconnect() error
}

// FrequencySource provides the latest frequency summary. *poller.Poller
// satisfies it.
type FrequencySource interface {
	Latest() (poller.Summary, bool)
	LastError() (string, bool)
}

// Pinger checks an optional dependency such as the archive database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the optional collaborators of a Server.
type Options struct {
	Frequency   FrequencySource // nil when analysis is disabled
	Archive     Pinger          // nil when the archive is disabled
	Metrics     http.Handler    // nil disables the metrics route
	MetricsPath string          // default /metrics
	Logger      *slog.Logger
}

// Server exposes the feed status over HTTP.
type Server struct {
	status StatusSource
	opts   Options
	logger *slog.Logger
}

// New creates a Server.
func New(status StatusSource, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{
		status: status,
		opts:   opts,
		logger: opts.Logger.With("component", "httpapi"),
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, s.opts.MetricsPath, s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/samples", s.handleSamples)
		r.Get("/frequency", s.handleFrequency)
		r.Post("/reconnect", s.handleReconnect)
	})

	return r
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    version.Info   `json:"version"`
	Components map[string]any `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	state := s.status.State()
	health := healthResponse{
		Status:     "healthy",
		Version:    version.Get(),
		Components: map[string]any{},
	}

	feed := map[string]any{"state": state}
	if msg, ok := s.status.LastError(); ok {
		feed["last_error"] = msg
	}
	health.Components["feed"] = feed

	code := http.StatusOK
	if state != connection.StateConnected {
		health.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	if s.opts.Archive != nil {
		if err := s.opts.Archive.Ping(ctx); err != nil {
			health.Components["archive"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		} else {
			health.Components["archive"] = "connected"
		}
	}

	respondJSON(w, code, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.status.Info())
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	samples := s.status.Snapshot()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		if limit < len(samples) {
			samples = samples[len(samples)-limit:]
		}
	}

	if samples == nil {
		samples = []model.Sample{}
	}
	respondJSON(w, http.StatusOK, samples)
}

type frequencyResponse struct {
	Points    []model.FrequencyPoint `json:"points"`
	FetchedAt time.Time              `json:"fetched_at,omitzero"`
	LastError string                 `json:"last_error,omitempty"`
}

func (s *Server) handleFrequency(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Frequency == nil {
		respondError(w, http.StatusNotFound, "analysis_disabled", "frequency analysis is not enabled")
		return
	}

	resp := frequencyResponse{Points: []model.FrequencyPoint{}}
	if summary, ok := s.opts.Frequency.Latest(); ok {
		resp.Points = summary.Points
		resp.FetchedAt = summary.FetchedAt
	}
	if msg, ok := s.opts.Frequency.LastError(); ok {
		resp.LastError = msg
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconnect(w http.ResponseWriter, _ *http.Request) {
	if err := s.status.RequestReconnect(); err != nil {
		if errors.Is(err, connection.ErrClosed) {
			respondError(w, http.StatusConflict, "feed_closed", err.Error())
			return
		}
		s.logger.Error("manual reconnect failed", "error", err)
		respondError(w, http.StatusInternalServerError, "reconnect_failed", err.Error())
		return
	}

	s.logger.Info("manual reconnect requested")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "reconnecting"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
