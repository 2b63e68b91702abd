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

const caseTableName = "advocase.cases"

var caseColumns = utils.StructTagValues(types.Case{})

type CaseRepository struct {
	pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

func (r *CaseRepository) Case(ctx context.Context, caseID string) (*types.Case, error) {
	query, args, err := psql().
		Select(caseColumns...).
		From(caseTableName).
		Where(sq.Eq{"id": caseID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate case query: %w", err)
	}

	var c types.Case
	err = pgxscan.Get(ctx, r.pool, &c, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}

	if c.Application == nil {
		c.Application = types.NewApplication()
	}

	return &c, nil
}

// CaseByCreateToken looks up a case previously created by the same owner with
// the same client idempotency token.
func (r *CaseRepository) CaseByCreateToken(ctx context.Context, ownerID, token string) (*types.Case, error) {
	query, args, err := psql().
		Select(caseColumns...).
		From(caseTableName).
		Where(sq.Eq{"owner_user_id": ownerID, "create_token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate case-by-token query: %w", err)
	}

	var c types.Case
	err = pgxscan.Get(ctx, r.pool, &c, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to fetch case by create token: %w", err)
	}

	if c.Application == nil {
		c.Application = types.NewApplication()
	}

	return &c, nil
}

// CreateWithOwnerGrant inserts the case row and the owner's grant in one
// transaction. There is never a window where the case exists without its
// owner grant.
func (r *CaseRepository) CreateWithOwnerGrant(ctx context.Context, c *types.Case, g *types.AccessGrant) error {
	now := time.Now()
	if c.ID == "" {
		c.ID = utils.NanoID()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	g.CaseID = c.ID
	g.CreatedAt = now
	g.UpdatedAt = now

	caseQuery, caseArgs, err := psql().
		Insert(caseTableName).
		SetMap(utils.StructToMap(c)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert case query: %w", err)
	}

	grantQuery, grantArgs, err := psql().
		Insert(grantTableName).
		SetMap(utils.StructToMap(g)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert owner grant query: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin create case tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, caseQuery, caseArgs...); err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	if _, err := tx.Exec(ctx, grantQuery, grantArgs...); err != nil {
		return fmt.Errorf("failed to insert owner grant: %w", err)
	}

	return utils.ErrorWrapOrNil(tx.Commit(ctx), "failed to commit create case tx")
}

func (r *CaseRepository) Update(ctx context.Context, caseID string, c *types.Case) error {
	c.ID = caseID
	c.UpdatedAt = time.Now()

	query, args, err := psql().
		Update(caseTableName).
		SetMap(utils.StructToMap(c)).
		Where(sq.Eq{"id": caseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update case query for case %s: %w", caseID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to update case")
}

// DeleteCascade removes the case and every access grant on it in one
// transaction.
func (r *CaseRepository) DeleteCascade(ctx context.Context, caseID string) error {
	grantQuery, grantArgs, err := psql().
		Delete(grantTableName).
		Where(sq.Eq{"case_id": caseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete grants query for case %s: %w", caseID, err)
	}

	caseQuery, caseArgs, err := psql().
		Delete(caseTableName).
		Where(sq.Eq{"id": caseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete case query for case %s: %w", caseID, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete case tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, grantQuery, grantArgs...); err != nil {
		return fmt.Errorf("failed to delete grants: %w", err)
	}

	if _, err := tx.Exec(ctx, caseQuery, caseArgs...); err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}

	return utils.ErrorWrapOrNil(tx.Commit(ctx), "failed to commit delete case tx")
}

type caseWithGrantRow struct {
	types.Case
	GrantRole    types.GrantRole `db:"grant_role"`
	GrantCanView bool            `db:"grant_can_view"`
	GrantCanEdit bool            `db:"grant_can_edit"`
}

// CasesForUser returns every case the user holds a visible grant on, newest
// first, annotated with that grant's role and booleans.
func (r *CaseRepository) CasesForUser(ctx context.Context, userID string) ([]*types.CaseWithAccess, error) {
	cols := make([]string, 0, len(caseColumns)+3)
	for _, c := range caseColumns {
		cols = append(cols, "c."+c)
	}
	cols = append(cols,
		"g.role AS grant_role",
		"g.can_view AS grant_can_view",
		"g.can_edit AS grant_can_edit",
	)

	query, args, err := psql().
		Select(cols...).
		From(caseTableName+" c").
		Join(grantTableName+" g ON g.case_id = c.id").
		Where(sq.Eq{"g.user_id": userID, "g.can_view": true}).
		OrderBy("c.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate cases-for-user query: %w", err)
	}

	var rows []*caseWithGrantRow
	if err := pgxscan.Select(ctx, r.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch cases for user: %w", err)
	}

	out := make([]*types.CaseWithAccess, 0, len(rows))
	for _, row := range rows {
		if row.Application == nil {
			row.Application = types.NewApplication()
		}
		out = append(out, &types.CaseWithAccess{
			Case:    row.Case,
			Role:    row.GrantRole,
			CanView: row.GrantCanView,
			CanEdit: row.GrantCanEdit,
		})
	}

	return out, nil
}

// CasesSharedByOwner is CasesForUser narrowed to one owner, for the advocate
// client views.
func (r *CaseRepository) CasesSharedByOwner(ctx context.Context, userID, ownerID string) ([]*types.CaseWithAccess, error) {
	all, err := r.CasesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*types.CaseWithAccess, 0, len(all))
	for _, c := range all {
		if c.OwnerUserID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}
