package store

import (
	"context"
	"fmt"
	"time"

	"advocase/internal/utils"
	"advocase/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const grantTableName = "advocase.access_grants"

var grantColumns = utils.StructTagValues(types.AccessGrant{})

type GrantRepository struct {
	pool *pgxpool.Pool
}

func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{pool: pool}
}

func (r *GrantRepository) Grant(ctx context.Context, caseID, userID string) (*types.AccessGrant, error) {
	query, args, err := psql().
		Select(grantColumns...).
		From(grantTableName).
		Where(sq.Eq{"case_id": caseID, "user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate grant query: %w", err)
	}

	var g types.AccessGrant
	err = pgxscan.Get(ctx, r.pool, &g, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to fetch grant: %w", err)
	}

	return &g, nil
}

func (r *GrantRepository) GrantsForCase(ctx context.Context, caseID string) ([]*types.AccessGrant, error) {
	query, args, err := psql().
		Select(grantColumns...).
		From(grantTableName).
		Where(sq.Eq{"case_id": caseID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate grants-for-case query: %w", err)
	}

	var grants []*types.AccessGrant
	if err := pgxscan.Select(ctx, r.pool, &grants, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch grants for case: %w", err)
	}

	return grants, nil
}

// Upsert writes a grant keyed on (case_id, user_id). Re-granting the same
// user updates the row in place rather than duplicating it.
func (r *GrantRepository) Upsert(ctx context.Context, g *types.AccessGrant) error {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	query, args, err := psql().
		Insert(grantTableName).
		Columns("case_id", "user_id", "role", "can_view", "can_edit", "created_at", "updated_at").
		Values(g.CaseID, g.UserID, g.Role, g.CanView, g.CanEdit, g.CreatedAt, g.UpdatedAt).
		Suffix("ON CONFLICT (case_id, user_id) DO UPDATE SET role = EXCLUDED.role, can_view = EXCLUDED.can_view, can_edit = EXCLUDED.can_edit, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate upsert grant query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert grant")
}

// ClientsForAdvocate aggregates the owners whose cases the advocate can see,
// built strictly from the grant rows.
func (r *GrantRepository) ClientsForAdvocate(ctx context.Context, advocateID string) ([]*types.ClientSummary, error) {
	query, args, err := psql().
		Select("c.owner_user_id AS user_id", "COUNT(*) AS case_count", "BOOL_OR(g.can_edit) AS can_edit").
		From(grantTableName+" g").
		Join(caseTableName+" c ON c.id = g.case_id").
		Where(sq.Eq{"g.user_id": advocateID, "g.can_view": true, "g.role": types.GrantRoleAdvocate}).
		GroupBy("c.owner_user_id").
		OrderBy("c.owner_user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate clients-for-advocate query: %w", err)
	}

	var clients []*types.ClientSummary
	if err := pgxscan.Select(ctx, r.pool, &clients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch clients for advocate: %w", err)
	}

	return clients, nil
}
