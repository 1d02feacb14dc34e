// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/agentlens/internal/pipeline"
	"github.com/pdiddy/agentlens/internal/quality"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type runRequest struct {
	Question *string `json:"question"`
}

type runError struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error"`
}

func (s *Server) runAgent(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == nil {
		writeError(w, http.StatusUnprocessableEntity, "question is required")
		return
	}

	res, err := s.runs.Run(r.Context(), *req.Question)
	if err != nil {
		s.log.Error("run failed", zap.String("run_id", res.RunID), zap.Error(err))
		writeJSONStatus(w, runError{RunID: res.RunID, Error: err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func (s *Server) trace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.traces.Trace(r.Context(), chi.URLParam(r, "runID")))
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.traces.Analytics(r.Context(), chi.URLParam(r, "runID")))
}

func (s *Server) drift(w http.ResponseWriter, r *http.Request) {
	var state map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, "expected a JSON object: "+err.Error())
		return
	}
	writeJSON(w, quality.DriftFromMap(state))
}

func (s *Server) graphSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, pipeline.SchemaFor(s.graph))
}
