// Package access is the single source of truth for who may see or change
// which case. Every lifecycle and sync operation consults it before touching
// the case store; there is no convenience path around it.
package access

import (
	"context"
	"errors"
	"fmt"

	"advocase/pkg/types"
)

// GrantStore is the slice of the grant repository the ledger needs.
type GrantStore interface {
	Grant(ctx context.Context, caseID, userID string) (*types.AccessGrant, error)
	Upsert(ctx context.Context, g *types.AccessGrant) error
}

// Decision is the outcome of a grant lookup. Known=false means no grant row
// exists; that absence is treated identically to an explicit deny, as its own
// branch rather than an accidental fallthrough.
type Decision struct {
	Known   bool
	Role    types.GrantRole
	CanView bool
	CanEdit bool
}

func (d Decision) AllowView() bool {
	return d.Known && d.CanView
}

func (d Decision) AllowEdit() bool {
	return d.Known && d.CanEdit
}

func (d Decision) IsOwner() bool {
	return d.Known && d.Role == types.GrantRoleOwner
}

type Ledger struct {
	grants GrantStore
}

func NewLedger(grants GrantStore) *Ledger {
	return &Ledger{grants: grants}
}

// Check looks up the caller's grant on a case. A missing grant is not an
// error: it yields the unknown decision, which denies everything.
func (l *Ledger) Check(ctx context.Context, caseID, userID string) (Decision, error) {
	g, err := l.grants.Grant(ctx, caseID, userID)
	if err != nil {
		if errors.Is(err, types.ErrGrantNotFound) {
			return Decision{}, nil
		}
		return Decision{}, fmt.Errorf("failed to check access: %w", err)
	}

	return Decision{
		Known:   true,
		Role:    g.Role,
		CanView: g.CanView,
		CanEdit: g.CanEdit,
	}, nil
}

// Grant upserts an advocate grant for granteeID. Only a caller holding the
// owner role with can_edit may grant; a non-owner can never hand out access,
// so self-service escalation is impossible. The grantee always receives
// role=advocate and can_view=true. The owner grant itself is never rewritten:
// granting to the owner's own id would demote their role on upsert.
func (l *Ledger) Grant(ctx context.Context, caseID, granterID, granteeID string, canEdit bool) (*types.AccessGrant, error) {
	decision, err := l.Check(ctx, caseID, granterID)
	if err != nil {
		return nil, err
	}

	if !decision.IsOwner() || !decision.CanEdit {
		return nil, types.ErrForbidden
	}

	if granteeID == granterID {
		return nil, fmt.Errorf("%w: you already own this case", types.ErrValidation)
	}

	g := &types.AccessGrant{
		CaseID:  caseID,
		UserID:  granteeID,
		Role:    types.GrantRoleAdvocate,
		CanView: true,
		CanEdit: canEdit,
	}

	if err := l.grants.Upsert(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to write grant: %w", err)
	}

	return g, nil
}
