// Package cases owns the case lifecycle: single-owner creation, access-checked
// loads, shallow-merge patches, owner-only cascading deletes.
package cases

import (
	"context"
	"errors"
	"fmt"

	"advocase/internal/access"
	"advocase/internal/eligibility"
	"advocase/pkg/types"

	"github.com/sirupsen/logrus"
)

// CaseStore is the slice of the case repository the service needs.
type CaseStore interface {
	Case(ctx context.Context, caseID string) (*types.Case, error)
	CaseByCreateToken(ctx context.Context, ownerID, token string) (*types.Case, error)
	CreateWithOwnerGrant(ctx context.Context, c *types.Case, g *types.AccessGrant) error
	Update(ctx context.Context, caseID string, c *types.Case) error
	DeleteCascade(ctx context.Context, caseID string) error
	CasesForUser(ctx context.Context, userID string) ([]*types.CaseWithAccess, error)
	CasesSharedByOwner(ctx context.Context, userID, ownerID string) ([]*types.CaseWithAccess, error)
}

type Service struct {
	store  CaseStore
	ledger *access.Ledger
	logger *logrus.Logger
}

func NewService(store CaseStore, ledger *access.Ledger, logger *logrus.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

type CreateInput struct {
	OwnerID     string
	Application types.Application
	Name        *string
	StateCode   *string

	// Optional client-generated idempotency token. A replay with the same
	// token returns the case created the first time.
	CreateToken string
}

// Create inserts a new draft case owned by OwnerID, together with its owner
// grant, atomically.
func (s *Service) Create(ctx context.Context, in CreateInput) (*types.Case, error) {
	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", types.ErrValidation)
	}

	if in.CreateToken != "" {
		existing, err := s.store.CaseByCreateToken(ctx, in.OwnerID, in.CreateToken)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"case_id":  existing.ID,
				"owner_id": in.OwnerID,
			}).Info("create replayed, returning existing case")
			return existing, nil
		}
		if !errors.Is(err, types.ErrCaseNotFound) {
			return nil, err
		}
	}

	application := in.Application
	if application == nil {
		application = types.NewApplication()
	}

	c := &types.Case{
		OwnerUserID: in.OwnerID,
		Status:      types.CaseStatusDraft,
		StateCode:   in.StateCode,
		Name:        in.Name,
		Application: application,
	}
	if in.CreateToken != "" {
		token := in.CreateToken
		c.CreateToken = &token
	}

	ownerGrant := &types.AccessGrant{
		UserID:  in.OwnerID,
		Role:    types.GrantRoleOwner,
		CanView: true,
		CanEdit: true,
	}

	if err := s.store.CreateWithOwnerGrant(ctx, c, ownerGrant); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":  c.ID,
		"owner_id": in.OwnerID,
	}).Info("case created")

	return c, nil
}

// Load returns the case and the caller's own access decision, so the caller
// can determine can_edit. NotFound and Forbidden are never conflated: a case
// that exists but isn't shared with the caller is Forbidden.
func (s *Service) Load(ctx context.Context, caseID, userID string) (*types.Case, access.Decision, error) {
	decision, err := s.ledger.Check(ctx, caseID, userID)
	if err != nil {
		return nil, access.Decision{}, err
	}

	if !decision.AllowView() {
		return nil, access.Decision{}, s.denyError(ctx, caseID)
	}

	c, err := s.store.Case(ctx, caseID)
	if err != nil {
		return nil, access.Decision{}, err
	}

	return c, decision, nil
}

// Patch applies a partial update with section-level shallow merge semantics.
// Concurrent patches are last-write-wins at the granularity of the whole
// merge call. Saving eligibility answers recomputes result and readiness;
// client-supplied values for either are never trusted.
func (s *Service) Patch(ctx context.Context, caseID, userID string, patch types.CasePatch) (*types.Case, error) {
	decision, err := s.ledger.Check(ctx, caseID, userID)
	if err != nil {
		return nil, err
	}

	if !decision.AllowEdit() {
		return nil, s.denyError(ctx, caseID)
	}

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", types.ErrValidation, *patch.Status)
	}

	c, err := s.store.Case(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if patch.Application != nil {
		c.Application = c.Application.Merge(patch.Application)
	}
	if patch.Name != nil {
		c.Name = patch.Name
	}
	if patch.StateCode != nil {
		c.StateCode = patch.StateCode
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.EligibilityAnswers != nil {
		answers := *patch.EligibilityAnswers
		outcome := eligibility.ComputeOutcome(answers)
		c.EligibilityAnswers = &answers
		c.EligibilityResult = &outcome.Result
		c.EligibilityReadiness = &outcome.Readiness
	}

	if err := s.store.Update(ctx, caseID, c); err != nil {
		return nil, err
	}

	return c, nil
}

// Delete removes a case and all its grants. Owner only.
func (s *Service) Delete(ctx context.Context, caseID, userID string) error {
	decision, err := s.ledger.Check(ctx, caseID, userID)
	if err != nil {
		return err
	}

	if !decision.IsOwner() {
		return s.denyError(ctx, caseID)
	}

	if err := s.store.DeleteCascade(ctx, caseID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"case_id": caseID,
		"user_id": userID,
	}).Info("case deleted")

	return nil
}

// ListForUser returns every case the user can view, newest first, annotated
// with the user's own grant. Absence from the list is filtering, not an error.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*types.CaseWithAccess, error) {
	return s.store.CasesForUser(ctx, userID)
}

// ListSharedByOwner narrows ListForUser to cases owned by one client, for the
// advocate aggregation views.
func (s *Service) ListSharedByOwner(ctx context.Context, userID, ownerID string) ([]*types.CaseWithAccess, error) {
	return s.store.CasesSharedByOwner(ctx, userID, ownerID)
}

// denyError distinguishes "doesn't exist" from "not shared with you" once the
// ledger has already denied the caller.
func (s *Service) denyError(ctx context.Context, caseID string) error {
	_, err := s.store.Case(ctx, caseID)
	if errors.Is(err, types.ErrCaseNotFound) {
		return types.ErrCaseNotFound
	}
	return types.ErrForbidden
}
