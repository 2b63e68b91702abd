package server

import (
	"encoding/json"
	"net/http"
	"time"

	"advocase/internal/cases"
	"advocase/pkg/types"

	"github.com/alexedwards/flow"
)

type createCaseRequest struct {
	Name        *string           `json:"name"`
	StateCode   *string           `json:"state_code"`
	Application types.Application `json:"application"`
	CreateToken string            `json:"create_token"`
}

type caseEnvelope struct {
	Case *types.Case `json:"case"`
}

type casesEnvelope struct {
	Cases []*types.CaseWithAccess `json:"cases"`
}

type accessView struct {
	Role    types.GrantRole `json:"role"`
	CanView bool            `json:"can_view"`
	CanEdit bool            `json:"can_edit"`
}

type caseResponse struct {
	Case      *types.Case          `json:"case"`
	Documents []types.DocumentView `json:"documents,omitempty"`
	Access    accessView           `json:"access"`
}

func (s *Service) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.cases.Create(r.Context(), cases.CreateInput{
		OwnerID:     userID,
		Application: req.Application,
		Name:        req.Name,
		StateCode:   req.StateCode,
		CreateToken: req.CreateToken,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, caseEnvelope{Case: c})
}

type listCasesQuery struct {
	Role string `form:"role"`
}

func (s *Service) handleListCases(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	var query listCasesQuery
	if err := decoder.Decode(&query, r.URL.Query()); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	results, err := s.cases.ListForUser(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	if query.Role != "" {
		filtered := make([]*types.CaseWithAccess, 0, len(results))
		for _, c := range results {
			if string(c.Role) == query.Role {
				filtered = append(filtered, c)
			}
		}
		results = filtered
	}

	s.respondJSON(w, http.StatusOK, casesEnvelope{Cases: results})
}

func (s *Service) handleGetCase(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	caseID := flow.Param(r.Context(), "caseID")

	c, decision, err := s.cases.Load(r.Context(), caseID, userID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	resp := caseResponse{
		Case: c,
		Access: accessView{
			Role:    decision.Role,
			CanView: decision.CanView,
			CanEdit: decision.CanEdit,
		},
	}

	docs, err := s.documents.DocumentsByCase(r.Context(), caseID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	for _, doc := range docs {
		url, err := s.objects.PresignGet(r.Context(), doc.StorageKey, 15*time.Minute)
		if err != nil {
			s.logger.WithError(err).WithField("document_id", doc.ID).Warn("failed to presign document")
		}
		resp.Documents = append(resp.Documents, types.DocumentView{CaseDocument: *doc, URL: url})
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Service) handlePatchCase(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	caseID := flow.Param(r.Context(), "caseID")

	var patch types.CasePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.cases.Patch(r.Context(), caseID, userID, patch)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, c)
}

func (s *Service) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	caseID := flow.Param(r.Context(), "caseID")

	if err := s.cases.Delete(r.Context(), caseID, userID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
