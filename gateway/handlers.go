package gateway

import (
	"io"
	"net/http"

	"github.com/meganemura/norikra/engine"
)

type openTargetRequest struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields,omitempty"`
}

type reserveRequest struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

type statusResponse struct {
	Name    string `json:"name"`
	Created bool   `json:"created,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Targets())
}

func (s *Server) handleOpenTarget(w http.ResponseWriter, r *http.Request) {
	var req openTargetRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "target name is required"})
		return
	}

	created, err := s.engine.Open(req.Name, req.Fields)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	status := http.StatusOK // already open, benign
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, statusResponse{Name: req.Name, Created: created})
}

func (s *Server) handleCloseTarget(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	closed, err := s.engine.Close(name)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if !closed {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "target not open: " + name})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Name: name, Removed: true})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req reserveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Field == "" || req.Type == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "field and type are required"})
		return
	}

	reserved, err := s.engine.Reserve(name, req.Field, req.Type)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if !reserved {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "target not open: " + name})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Name: name})
}

func (s *Server) handleSendEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	events, err := decodeEvents(body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be a JSON object or array of objects"})
		return
	}

	if err := s.engine.Send(name, events); err != nil {
		s.writeEngineError(w, err)
		return
	}
	// Accepted covers the silently-discarded cases too: ingestion never
	// reports per-event outcomes.
	s.writeJSON(w, http.StatusAccepted, map[string]int{"received": len(events)})
}

func (s *Server) handleListQueries(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Queries())
}

func (s *Server) handleRegisterQuery(w http.ResponseWriter, r *http.Request) {
	var q engine.Query
	if !s.decodeBody(w, r, &q) {
		return
	}
	if err := s.engine.Register(q); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, statusResponse{Name: q.Name, Created: true})
}

func (s *Server) handleDeregisterQuery(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	removed, err := s.engine.Deregister(name)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if !removed {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "query not found: " + name})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Name: name, Removed: true})
}
