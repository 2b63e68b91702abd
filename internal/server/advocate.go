package server

import (
	"net/http"

	"github.com/alexedwards/flow"
)

func (s *Service) handleAdvocateClients(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	clients, err := s.grants.ClientsForAdvocate(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, clients)
}

// handleAdvocateClientCases lists one client's cases, restricted to those the
// calling advocate actually holds a grant on.
func (s *Service) handleAdvocateClientCases(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	clientID := flow.Param(r.Context(), "clientID")

	results, err := s.cases.ListSharedByOwner(r.Context(), userID, clientID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, results)
}
