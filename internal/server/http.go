package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered, wrapped
// in request logging and panic recovery.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /events", s.handleCreateOccurrence)
	mux.HandleFunc("GET /events", s.handleListOccurrences)
	mux.HandleFunc("GET /events/calendar.ics", s.handleCalendar)
	mux.HandleFunc("GET /events/stream", s.handleEventStream)
	mux.Handle("POST /events/generate", AuthMiddleware(s.adminToken, http.HandlerFunc(s.handleGenerate)))
	mux.HandleFunc("GET /events/{id}", s.handleGetOccurrence)
	mux.HandleFunc("GET /events/{id}/activity", s.handleListActivity)
	mux.Handle("POST /events/{id}/register", s.withIdentity(s.rateLimited(s.handleRegister)))
	mux.Handle("DELETE /events/{id}/register", s.withIdentity(s.rateLimited(s.handleCancel)))
	mux.Handle("GET /events/{id}/participants", s.withIdentity(s.handleParticipants))
	return RequestLogger(s.logger, Recovery(s.logger, mux))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string     `json:"error"`
	Kind  model.Kind `json:"kind"`
}

// writeError writes err as a JSON error response, choosing the status from
// its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	var ie inputError
	if errors.As(err, &ie) {
		kind = model.KindValidation
	}
	status := statusForKind(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeErrorStatus writes an error response with an explicit status.
func writeErrorStatus(w http.ResponseWriter, status int, kind model.Kind, message string) {
	writeJSON(w, status, errorBody{Error: message, Kind: kind})
}

func statusForKind(k model.Kind) int {
	switch k {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindStructuralConflict, model.KindConflict:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindExpired:
		return http.StatusGone
	case model.KindInvalidState:
		return http.StatusUnprocessableEntity
	case model.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err and logs it when the status signals a server-side problem.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := statusForKind(model.KindOf(err)); status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}
