package access

import (
	"context"
	"testing"
	"time"

	"advocase/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memGrantStore struct {
	grants map[string]*types.AccessGrant
}

func newMemGrantStore() *memGrantStore {
	return &memGrantStore{grants: make(map[string]*types.AccessGrant)}
}

func key(caseID, userID string) string {
	return caseID + "|" + userID
}

func (s *memGrantStore) Grant(_ context.Context, caseID, userID string) (*types.AccessGrant, error) {
	g, ok := s.grants[key(caseID, userID)]
	if !ok {
		return nil, types.ErrGrantNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *memGrantStore) Upsert(_ context.Context, g *types.AccessGrant) error {
	now := time.Now()
	existing, ok := s.grants[key(g.CaseID, g.UserID)]
	if ok {
		existing.Role = g.Role
		existing.CanView = g.CanView
		existing.CanEdit = g.CanEdit
		existing.UpdatedAt = now
		return nil
	}
	copied := *g
	copied.CreatedAt = now
	copied.UpdatedAt = now
	s.grants[key(g.CaseID, g.UserID)] = &copied
	return nil
}

func ownerGrant(caseID, userID string) *types.AccessGrant {
	return &types.AccessGrant{
		CaseID:  caseID,
		UserID:  userID,
		Role:    types.GrantRoleOwner,
		CanView: true,
		CanEdit: true,
	}
}

func TestCheckNoGrantDeniesEverything(t *testing.T) {
	ledger := NewLedger(newMemGrantStore())

	decision, err := ledger.Check(context.Background(), "case-1", "stranger")
	require.NoError(t, err)

	assert.False(t, decision.Known)
	assert.False(t, decision.AllowView())
	assert.False(t, decision.AllowEdit())
	assert.False(t, decision.IsOwner())
}

func TestCheckViewOnlyGrant(t *testing.T) {
	store := newMemGrantStore()
	require.NoError(t, store.Upsert(context.Background(), &types.AccessGrant{
		CaseID:  "case-1",
		UserID:  "viewer",
		Role:    types.GrantRoleAdvocate,
		CanView: true,
		CanEdit: false,
	}))

	ledger := NewLedger(store)
	decision, err := ledger.Check(context.Background(), "case-1", "viewer")
	require.NoError(t, err)

	assert.True(t, decision.Known)
	assert.True(t, decision.AllowView())
	assert.False(t, decision.AllowEdit())
}

func TestGrantRequiresOwner(t *testing.T) {
	store := newMemGrantStore()
	require.NoError(t, store.Upsert(context.Background(), ownerGrant("case-1", "owner")))
	require.NoError(t, store.Upsert(context.Background(), &types.AccessGrant{
		CaseID:  "case-1",
		UserID:  "advocate",
		Role:    types.GrantRoleAdvocate,
		CanView: true,
		CanEdit: true,
	}))

	ledger := NewLedger(store)

	// An advocate with can_edit still cannot grant.
	_, err := ledger.Grant(context.Background(), "case-1", "advocate", "someone-else", true)
	assert.ErrorIs(t, err, types.ErrForbidden)

	// A stranger cannot grant.
	_, err = ledger.Grant(context.Background(), "case-1", "stranger", "someone-else", true)
	assert.ErrorIs(t, err, types.ErrForbidden)

	// The owner can.
	g, err := ledger.Grant(context.Background(), "case-1", "owner", "someone-else", false)
	require.NoError(t, err)
	assert.Equal(t, types.GrantRoleAdvocate, g.Role)
	assert.True(t, g.CanView)
	assert.False(t, g.CanEdit)
}

func TestGrantNeverRewritesOwnerGrant(t *testing.T) {
	store := newMemGrantStore()
	require.NoError(t, store.Upsert(context.Background(), ownerGrant("case-1", "owner")))

	ledger := NewLedger(store)

	_, err := ledger.Grant(context.Background(), "case-1", "owner", "owner", false)
	assert.ErrorIs(t, err, types.ErrValidation)

	// The owner row must be untouched: still owner, still editable.
	decision, err := ledger.Check(context.Background(), "case-1", "owner")
	require.NoError(t, err)
	assert.True(t, decision.IsOwner())
	assert.True(t, decision.AllowEdit())
}

func TestGrantUpsertsOnRepeat(t *testing.T) {
	store := newMemGrantStore()
	require.NoError(t, store.Upsert(context.Background(), ownerGrant("case-1", "owner")))

	ledger := NewLedger(store)

	_, err := ledger.Grant(context.Background(), "case-1", "owner", "advocate", true)
	require.NoError(t, err)

	_, err = ledger.Grant(context.Background(), "case-1", "owner", "advocate", false)
	require.NoError(t, err)

	assert.Len(t, store.grants, 2) // owner + one advocate row

	decision, err := ledger.Check(context.Background(), "case-1", "advocate")
	require.NoError(t, err)
	assert.True(t, decision.AllowView())
	assert.False(t, decision.AllowEdit(), "second invite's can_edit must win")
}
