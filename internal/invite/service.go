// Package invite implements owner-initiated advocate invitations: resolve the
// grantee's email to an account, upsert their grant, hand back a share link.
package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"advocase/internal/access"
	"advocase/internal/identity"
	"advocase/pkg/types"

	"github.com/sirupsen/logrus"
)

type Service struct {
	ledger        *access.Ledger
	directory     identity.Directory
	publicBaseURL string
	logger        *logrus.Logger
}

func NewService(ledger *access.Ledger, directory identity.Directory, publicBaseURL string, logger *logrus.Logger) *Service {
	return &Service{
		ledger:        ledger,
		directory:     directory,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

type Result struct {
	ShareURL       string `json:"shareUrl"`
	AdvocateUserID string `json:"advocateUserId"`
	CanEdit        bool   `json:"canEdit"`
}

// Invite grants an advocate access to a case by email. Idempotent: inviting
// the same email twice updates the existing grant, and the second call's
// canEdit wins.
func (s *Service) Invite(ctx context.Context, caseID, callerID, granteeEmail string, canEdit bool) (*Result, error) {
	granteeEmail = strings.TrimSpace(strings.ToLower(granteeEmail))
	if granteeEmail == "" {
		return nil, fmt.Errorf("%w: advocate email is required", types.ErrValidation)
	}

	// Owner check comes before the directory lookup so a non-owner learns
	// nothing about which emails have accounts.
	decision, err := s.ledger.Check(ctx, caseID, callerID)
	if err != nil {
		return nil, err
	}
	if !decision.IsOwner() || !decision.CanEdit {
		return nil, types.ErrForbidden
	}

	grantee, err := s.directory.LookupByEmail(ctx, granteeEmail)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, fmt.Errorf("no account found for that email; ask them to register first: %w", types.ErrUserNotFound)
		}
		return nil, err
	}

	grant, err := s.ledger.Grant(ctx, caseID, callerID, grantee.ID, canEdit)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":     caseID,
		"advocate_id": grantee.ID,
		"can_edit":    canEdit,
	}).Info("advocate invited")

	return &Result{
		ShareURL:       fmt.Sprintf("%s/cases/%s/intake", s.publicBaseURL, caseID),
		AdvocateUserID: grantee.ID,
		CanEdit:        grant.CanEdit,
	}, nil
}
