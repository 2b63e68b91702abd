package server

import (
	"encoding/json"
	"net/http"
)

type inviteRequest struct {
	CaseID        string `json:"caseId"`
	AdvocateEmail string `json:"advocateEmail"`
	CanEdit       bool   `json:"canEdit"`
}

func (s *Service) handlePostInvite(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaseID == "" {
		s.respondError(w, http.StatusBadRequest, "caseId is required")
		return
	}

	result, err := s.invites.Invite(r.Context(), req.CaseID, userID, req.AdvocateEmail, req.CanEdit)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"shareUrl":       result.ShareURL,
		"advocateUserId": result.AdvocateUserID,
		"canEdit":        result.CanEdit,
	})
}
