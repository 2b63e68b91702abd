package types

import "time"

type GrantRole string

const (
	GrantRoleOwner    GrantRole = "owner"
	GrantRoleAdvocate GrantRole = "advocate"
)

// AccessGrant authorizes one user on one case. At most one row exists per
// (case_id, user_id); writes upsert on that composite key.
type AccessGrant struct {
	CaseID    string    `db:"case_id" json:"case_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      GrantRole `db:"role" json:"role"`
	CanView   bool      `db:"can_view" json:"can_view"`
	CanEdit   bool      `db:"can_edit" json:"can_edit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
