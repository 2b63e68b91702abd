package invite

import (
	"context"
	"io"
	"testing"

	"advocase/internal/access"
	"advocase/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memGrantStore struct {
	grants map[string]*types.AccessGrant
}

func (s *memGrantStore) Grant(_ context.Context, caseID, userID string) (*types.AccessGrant, error) {
	g, ok := s.grants[caseID+"|"+userID]
	if !ok {
		return nil, types.ErrGrantNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *memGrantStore) Upsert(_ context.Context, g *types.AccessGrant) error {
	copied := *g
	s.grants[g.CaseID+"|"+g.UserID] = &copied
	return nil
}

type fakeDirectory struct {
	byEmail map[string]*types.DirectoryUser
}

func (d *fakeDirectory) LookupByEmail(_ context.Context, email string) (*types.DirectoryUser, error) {
	u, ok := d.byEmail[email]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return u, nil
}

func newTestService() (*Service, *memGrantStore) {
	store := &memGrantStore{grants: map[string]*types.AccessGrant{
		"case-1|owner-1": {
			CaseID:  "case-1",
			UserID:  "owner-1",
			Role:    types.GrantRoleOwner,
			CanView: true,
			CanEdit: true,
		},
	}}
	directory := &fakeDirectory{byEmail: map[string]*types.DirectoryUser{
		"advocate@example.com": {ID: "adv-42", Email: "advocate@example.com"},
	}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(access.NewLedger(store), directory, "https://app.example.org/", logger), store
}

func TestInviteHappyPath(t *testing.T) {
	svc, store := newTestService()

	res, err := svc.Invite(context.Background(), "case-1", "owner-1", "Advocate@Example.com", false)
	require.NoError(t, err)

	assert.Equal(t, "adv-42", res.AdvocateUserID)
	assert.False(t, res.CanEdit)
	assert.Equal(t, "https://app.example.org/cases/case-1/intake", res.ShareURL)

	g, err := store.Grant(context.Background(), "case-1", "adv-42")
	require.NoError(t, err)
	assert.Equal(t, types.GrantRoleAdvocate, g.Role)
	assert.True(t, g.CanView)
	assert.False(t, g.CanEdit)
}

func TestInviteIsIdempotentAndLastWriteWins(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Invite(ctx, "case-1", "owner-1", "advocate@example.com", true)
	require.NoError(t, err)

	res, err := svc.Invite(ctx, "case-1", "owner-1", "advocate@example.com", false)
	require.NoError(t, err)
	assert.False(t, res.CanEdit)

	// Exactly one grant row for the pair: owner + advocate = 2 rows total.
	assert.Len(t, store.grants, 2)

	g, err := store.Grant(ctx, "case-1", "adv-42")
	require.NoError(t, err)
	assert.False(t, g.CanEdit)
}

func TestInviteUnknownEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Invite(context.Background(), "case-1", "owner-1", "nobody@example.com", true)
	assert.ErrorIs(t, err, types.ErrUserNotFound)
	assert.Contains(t, err.Error(), "register first")
}

func TestInviteRequiresOwner(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Invite(ctx, "case-1", "stranger", "advocate@example.com", true)
	assert.ErrorIs(t, err, types.ErrForbidden)

	// A can_edit advocate is still not an owner.
	require.NoError(t, store.Upsert(ctx, &types.AccessGrant{
		CaseID:  "case-1",
		UserID:  "adv-42",
		Role:    types.GrantRoleAdvocate,
		CanView: true,
		CanEdit: true,
	}))
	_, err = svc.Invite(ctx, "case-1", "adv-42", "advocate@example.com", true)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestInviteOwnEmailLeavesOwnerGrantIntact(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	svc.directory.(*fakeDirectory).byEmail["owner@example.com"] = &types.DirectoryUser{
		ID:    "owner-1",
		Email: "owner@example.com",
	}

	_, err := svc.Invite(ctx, "case-1", "owner-1", "owner@example.com", false)
	assert.ErrorIs(t, err, types.ErrValidation)

	g, err := store.Grant(ctx, "case-1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, types.GrantRoleOwner, g.Role)
	assert.True(t, g.CanEdit)
}

func TestInviteValidatesEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Invite(context.Background(), "case-1", "owner-1", "   ", true)
	assert.ErrorIs(t, err, types.ErrValidation)
}
