// Package http exposes the workflow engine over a JSON/SSE API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rishimeka/astro"
	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
	"github.com/rishimeka/astro/pkg/runs"
	"github.com/rishimeka/astro/pkg/validator"
)

// Engine defines the execution surface the server exposes. The concrete
// engine must broadcast its events through the hub handed to NewHandler,
// or subscribers will never see live frames.
type Engine interface {
	Run(ctx context.Context, constellationID, input string) (string, error)
	Confirm(ctx context.Context, runID string, decision domain.ConfirmationDecision) (domain.ConfirmationAck, error)
	Pending(runID string) (domain.Confirmation, bool)
}

// StartRunRequest asks for a new run of a stored constellation.
type StartRunRequest struct {
	ConstellationID string `json:"constellation_id"`
	Input           string `json:"input,omitempty"`
}

// StartRunResponse carries the id of the accepted run.
type StartRunResponse struct {
	RunID string `json:"run_id"`
}

// RunDetail is the stored summary of a run plus its node records.
type RunDetail struct {
	Run   domain.RunRecord    `json:"run"`
	Nodes []domain.NodeRecord `json:"nodes"`
}

// RunList wraps the run index.
type RunList struct {
	Runs []domain.RunRecord `json:"runs"`
}

// ConstellationList wraps the constellation index.
type ConstellationList struct {
	Constellations []domain.Constellation `json:"constellations"`
}

// ValidationResult reports validator findings for a constellation.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Findings []validator.Finding `json:"findings"`
}

// ValidationError is the body of a 422 response: the save or run was
// rejected because the graph has error-severity findings.
type ValidationError struct {
	Error    string              `json:"error"`
	Findings []validator.Finding `json:"findings"`
}

// Server handles the API routes.
type Server struct {
	Engine  Engine
	Streams *Hub

	runs           *runs.Manager
	constellations ports.ConstellationStore
	registry       *prometheus.Registry
	logger         *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRegistry serves /metrics from reg instead of the default
// registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewHandler creates the HTTP handler for the engine. hub must be the same
// hub the engine emits into.
func NewHandler(engine Engine, runMgr *runs.Manager, constellations ports.ConstellationStore, hub *Hub, opts ...Option) http.Handler {
	server := &Server{
		Engine:         engine,
		Streams:        hub,
		runs:           runMgr,
		constellations: constellations,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(server.registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/constellations", func(r chi.Router) {
			r.Get("/", server.ListConstellations)
			r.Post("/", server.CreateConstellation)
			r.Get("/{id}", server.GetConstellation)
			r.Delete("/{id}", server.DeleteConstellation)
			r.Post("/{id}/validate", server.ValidateConstellation)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", server.ListRuns)
			r.Post("/", server.StartRun)
			r.Get("/{id}", server.GetRun)
			r.Delete("/{id}", server.DeleteRun)
			r.Get("/{id}/events", server.SubscribeRunEvents)
			r.Post("/{id}/confirm", server.ConfirmRun)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateConstellation handles POST /api/constellations. Saving is gated on
// the validator: a graph with error-severity findings is rejected with 422
// and never reaches the store.
func (s *Server) CreateConstellation(w http.ResponseWriter, r *http.Request) {
	var c domain.Constellation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("CreateConstellation: invalid request body", "error", err)
		return
	}
	if strings.TrimSpace(c.ID) == "" {
		http.Error(w, "Constellation id is required", http.StatusBadRequest)
		return
	}

	findings := validator.ValidateConstellation(&c)
	if validator.HasErrors(findings) {
		s.writeJSON(w, http.StatusUnprocessableEntity, ValidationError{
			Error:    domain.ErrInvalidConstellation.Error(),
			Findings: findings,
		})
		return
	}

	if err := s.constellations.Save(r.Context(), &c); err != nil {
		http.Error(w, fmt.Sprintf("Save error: %v", err), http.StatusInternalServerError)
		s.logger.Error("CreateConstellation: save failed", "error", err, "constellation_id", c.ID)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

// GetConstellation handles GET /api/constellations/{id}.
func (s *Server) GetConstellation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.constellations.Load(r.Context(), id)
	if errors.Is(err, domain.ErrConstellationNotFound) {
		http.Error(w, "Constellation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("GetConstellation: load failed", "error", err, "constellation_id", id)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// ListConstellations handles GET /api/constellations.
func (s *Server) ListConstellations(w http.ResponseWriter, r *http.Request) {
	list, err := s.constellations.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ListConstellations: list failed", "error", err)
		return
	}
	if list == nil {
		list = []domain.Constellation{}
	}
	s.writeJSON(w, http.StatusOK, ConstellationList{Constellations: list})
}

// DeleteConstellation handles DELETE /api/constellations/{id}.
func (s *Server) DeleteConstellation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.constellations.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrConstellationNotFound) {
			http.Error(w, "Constellation not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		s.logger.Error("DeleteConstellation: delete failed", "error", err, "constellation_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateConstellation handles POST /api/constellations/{id}/validate. It
// re-checks the stored graph and returns every finding; it never mutates.
func (s *Server) ValidateConstellation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.constellations.Load(r.Context(), id)
	if errors.Is(err, domain.ErrConstellationNotFound) {
		http.Error(w, "Constellation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ValidateConstellation: load failed", "error", err, "constellation_id", id)
		return
	}

	findings := validator.ValidateConstellation(c)
	if findings == nil {
		findings = []validator.Finding{}
	}
	s.writeJSON(w, http.StatusOK, ValidationResult{
		Valid:    !validator.HasErrors(findings),
		Findings: findings,
	})
}

// StartRun handles POST /api/runs. The run is accepted, not awaited: the
// response carries the run id and the caller follows progress on the event
// stream.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StartRun: invalid request body", "error", err)
		return
	}
	if strings.TrimSpace(req.ConstellationID) == "" {
		http.Error(w, "constellation_id is required", http.StatusBadRequest)
		return
	}

	runID, err := s.Engine.Run(r.Context(), req.ConstellationID, req.Input)
	switch {
	case errors.Is(err, domain.ErrConstellationNotFound):
		http.Error(w, "Constellation not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrInvalidConstellation):
		s.writeJSON(w, http.StatusUnprocessableEntity, ValidationError{Error: err.Error()})
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("Run error: %v", err), http.StatusInternalServerError)
		s.logger.Error("StartRun: run failed to start", "error", err, "constellation_id", req.ConstellationID)
		return
	}
	s.writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: runID})
}

// GetRun handles GET /api/runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.runs.Load(r.Context(), id)
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("GetRun: load failed", "error", err, "run_id", id)
		return
	}
	nodes, err := s.runs.NodeRecords(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("GetRun: node records failed", "error", err, "run_id", id)
		return
	}
	if nodes == nil {
		nodes = []domain.NodeRecord{}
	}
	s.writeJSON(w, http.StatusOK, RunDetail{Run: rec, Nodes: nodes})
}

// ListRuns handles GET /api/runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	list, err := s.runs.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ListRuns: list failed", "error", err)
		return
	}
	if list == nil {
		list = []domain.RunRecord{}
	}
	s.writeJSON(w, http.StatusOK, RunList{Runs: list})
}

// DeleteRun handles DELETE /api/runs/{id}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.runs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Delete error: %v", err), http.StatusInternalServerError)
		s.logger.Error("DeleteRun: delete failed", "error", err, "run_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmRun handles POST /api/runs/{id}/confirm.
func (s *Server) ConfirmRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var decision domain.ConfirmationDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("ConfirmRun: invalid request body", "error", err, "run_id", id)
		return
	}

	ack, err := s.Engine.Confirm(r.Context(), id, decision)
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrNoConfirmationPending):
		http.Error(w, "No confirmation pending", http.StatusConflict)
		return
	case errors.Is(err, domain.ErrRunTerminal):
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("Confirm error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ConfirmRun: confirm failed", "error", err, "run_id", id)
		return
	}
	s.writeJSON(w, http.StatusOK, ack)
}

// SubscribeRunEvents handles GET /api/runs/{id}/events (SSE). A viewer of a
// live run replays the hub's history and then follows live frames; a viewer
// of a finished or historical run gets the sequence reconstructed from the
// store. The stream closes after a terminal frame.
func (s *Server) SubscribeRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeRunEvents: streaming not supported")
		return
	}

	replay, live, cancel := s.Streams.Subscribe(runID)
	defer cancel()

	if len(replay) == 0 {
		// The hub has no memory of this run: it is unknown, not yet
		// started, or already terminal. The store decides which.
		rec, err := s.runs.Load(r.Context(), runID)
		if errors.Is(err, domain.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
			s.logger.Error("SubscribeRunEvents: load failed", "error", err, "run_id", runID)
			return
		}
		if rec.Status != domain.RunIdle {
			nodes, err := s.runs.NodeRecords(r.Context(), runID)
			if err != nil {
				http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
				s.logger.Error("SubscribeRunEvents: node records failed", "error", err, "run_id", runID)
				return
			}
			replay = replayEvents(rec, nodes)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE: subscriber attached", "run_id", runID, "replayed", len(replay))

	for _, ev := range replay {
		if err := writeEvent(w, ev); err != nil {
			return
		}
		flusher.Flush()
		if terminalEvent(ev) {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE: subscriber disconnected", "run_id", runID)
			return
		case ev, open := <-live:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if terminalEvent(ev) {
				return
			}
		}
	}
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "astro-http",
		"version": strings.TrimSpace(astro.Version),
	})
}

func writeEvent(w io.Writer, ev domain.RunEvent) error {
	payload, err := ev.Data()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
