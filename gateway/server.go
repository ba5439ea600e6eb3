package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/meganemura/norikra/engine"
	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/output"
)

// Deps holds runtime dependencies for the admin API server.
type Deps struct {
	Engine *engine.Engine // orchestrator (required)
	// Results is the sink fan-out live streams attach to. Nil disables
	// the /stream endpoint.
	Results *output.Tee
	Logger  *slog.Logger
}

// Server is the HTTP admin API.
type Server struct {
	engine  *engine.Engine
	results *output.Tee
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates the admin API server listening on addr.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "NewServer", "engine validation")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:  deps.Engine,
		results: deps.Results,
		logger:  logger,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /targets", s.handleListTargets)
	mux.HandleFunc("POST /targets", s.handleOpenTarget)
	mux.HandleFunc("DELETE /targets/{name}", s.handleCloseTarget)
	mux.HandleFunc("POST /targets/{name}/reserve", s.handleReserve)
	mux.HandleFunc("POST /targets/{name}/events", s.handleSendEvents)

	mux.HandleFunc("GET /queries", s.handleListQueries)
	mux.HandleFunc("POST /queries", s.handleRegisterQuery)
	mux.HandleFunc("DELETE /queries/{name}", s.handleDeregisterQuery)

	mux.HandleFunc("GET /stream", s.handleStream)

	return mux
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("admin API listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Gateway", "Start", s.server.Addr)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeEngineError maps the engine's error classes to HTTP statuses:
// invalid input is the caller's fault, everything else is ours.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.IsInvalid(err) {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
