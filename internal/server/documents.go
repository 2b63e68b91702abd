package server

import (
	"fmt"
	"net/http"
	"time"

	"advocase/internal/utils"
	"advocase/pkg/types"

	"github.com/alexedwards/flow"
)

const maxUploadBytes = 25 << 20

// handleUploadDocument accepts one multipart file plus a documentType field,
// writes the bytes to object storage, and records the metadata row. Editing
// rights on the case are required.
func (s *Service) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	caseID := flow.Param(r.Context(), "caseID")

	_, decision, err := s.cases.Load(r.Context(), caseID, userID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if !decision.AllowEdit() {
		s.respondServiceError(w, r, types.ErrReadOnly)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	documentType := r.FormValue("documentType")
	if documentType == "" {
		documentType = "other"
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &types.CaseDocument{
		ID:            utils.NanoID(),
		CaseID:        caseID,
		UserID:        userID,
		DocumentType:  documentType,
		FileName:      header.Filename,
		FileSizeBytes: header.Size,
		MimeType:      contentType,
	}
	doc.StorageKey = fmt.Sprintf("cases/%s/%s/%s", caseID, doc.ID, header.Filename)

	if _, err := s.objects.Upload(r.Context(), doc.StorageKey, file, contentType); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	if err := s.documents.Create(r.Context(), doc); err != nil {
		// The metadata row is the source of truth; drop the orphaned object.
		if delErr := s.objects.Delete(r.Context(), doc.StorageKey); delErr != nil {
			s.logger.WithError(delErr).WithField("storage_key", doc.StorageKey).
				Warn("failed to clean up orphaned upload")
		}
		s.respondServiceError(w, r, err)
		return
	}

	url, err := s.objects.PresignGet(r.Context(), doc.StorageKey, 15*time.Minute)
	if err != nil {
		s.logger.WithError(err).WithField("document_id", doc.ID).Warn("failed to presign uploaded document")
	}

	s.respondJSON(w, http.StatusCreated, types.DocumentView{CaseDocument: *doc, URL: url})
}

func (s *Service) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	caseID := flow.Param(r.Context(), "caseID")
	documentID := flow.Param(r.Context(), "documentID")

	_, decision, err := s.cases.Load(r.Context(), caseID, userID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if !decision.AllowEdit() {
		s.respondServiceError(w, r, types.ErrReadOnly)
		return
	}

	doc, err := s.documents.Document(r.Context(), caseID, documentID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	if err := s.documents.Delete(r.Context(), caseID, documentID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	if err := s.objects.Delete(r.Context(), doc.StorageKey); err != nil {
		s.logger.WithError(err).WithField("storage_key", doc.StorageKey).
			Warn("failed to delete stored object")
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
