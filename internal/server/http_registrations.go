package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
)

type registerRequest struct {
	Role string `json:"role"`
}

// handleRegister handles POST /events/{id}/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, inputError("invalid JSON body"))
		return
	}
	if req.Role == "" {
		req.Role = id.Role
	}

	reg, err := s.registrations.Register(r.Context(), id, r.PathValue("id"), req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// handleCancel handles DELETE /events/{id}/register.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	if err := s.registrations.Cancel(r.Context(), id, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleParticipants handles GET /events/{id}/participants.
func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	regs, err := s.registrations.ListParticipants(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if regs == nil {
		regs = []*model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}
