package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"advocase/pkg/types"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode response body")
	}
}

func (s *Service) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondServiceError maps domain errors onto HTTP statuses. Access denials
// say so outright instead of masquerading as not-found.
func (s *Service) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrCaseNotFound):
		s.respondError(w, http.StatusNotFound, "case not found")
	case errors.Is(err, types.ErrDocumentNotFound):
		s.respondError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, types.ErrUserNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "this case is not shared with you")
	case errors.Is(err, types.ErrReadOnly):
		s.respondError(w, http.StatusForbidden, "you have view-only access to this case")
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
