package types

import "time"

// CaseDocument is metadata for one file attached to a case. Bytes live in
// object storage under StorageKey; this row is what the API serves.
type CaseDocument struct {
	ID            string    `db:"id" json:"id"`
	CaseID        string    `db:"case_id" json:"case_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	DocumentType  string    `db:"document_type" json:"document_type"`
	FileName      string    `db:"file_name" json:"file_name"`
	FileSizeBytes int64     `db:"file_size_bytes" json:"file_size_bytes"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	StorageKey    string    `db:"storage_key" json:"-"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// DocumentView is a CaseDocument plus a short-lived presigned download URL.
type DocumentView struct {
	CaseDocument
	URL string `json:"url,omitempty"`
}
