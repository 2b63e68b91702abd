package types

import "errors"

var (
	// ErrCaseNotFound means the case row does not exist. Always distinct
	// from ErrForbidden so callers can say "doesn't exist" honestly.
	ErrCaseNotFound = errors.New("case not found")

	// ErrForbidden means a valid credential with no grant, or a grant whose
	// booleans don't cover the attempted operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUserNotFound means no account exists in the identity directory.
	ErrUserNotFound = errors.New("user not found")

	ErrGrantNotFound    = errors.New("grant not found")
	ErrDocumentNotFound = errors.New("document not found")

	// ErrReadOnly is returned by the draft engine when a view-only grantee
	// attempts a local mutation.
	ErrReadOnly = errors.New("case is read-only for this user")

	// ErrValidation marks malformed request bodies; wrap with %w and detail.
	ErrValidation = errors.New("validation failed")
)
