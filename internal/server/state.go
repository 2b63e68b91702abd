package server

import (
	"encoding/json"
	"net/http"

	"advocase/pkg/types"
)

func (s *Service) handleGetClientState(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	state, err := s.clientState.Load(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, state)
}

func (s *Service) handlePutClientState(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	var state types.ClientState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.clientState.Save(r.Context(), userID, &state); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
