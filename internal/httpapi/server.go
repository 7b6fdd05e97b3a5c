// Package httpapi exposes the Engine's Submit/GetStatus/GetElements/
// GetResult/Cancel contract over HTTP. It is a pure caller of that
// contract: nothing here participates in the core's invariants.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flowrun/flowengine"
	"github.com/flowrun/flowengine/internal/registry"
	"github.com/flowrun/flowengine/internal/store"
)

// Server wraps an *flowengine.Engine with an HTTP router.
type Server struct {
	engine *flowengine.Engine
	log    *slog.Logger
	router *mux.Router
}

// New builds a Server and wires up its routes.
func New(engine *flowengine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: engine, log: logger, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP lets Server satisfy http.Handler directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/flows/{name}/runs", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/elements", s.handleGetElements).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/result", s.handleGetResult).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.InfoContext(r.Context(), "http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

type submitRequest struct {
	Input  any    `json:"input"`
	UserID string `json:"user_id"`
}

type submitResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runID, err := s.engine.Submit(r.Context(), name, req.Input, req.UserID)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownFlow) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{RunID: runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := s.engine.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetElements(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	elements, err := s.engine.GetElements(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, elements)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := s.engine.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	canceled := s.engine.Cancel(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": canceled})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
