package types

type UserRole string

const (
	UserRoleVictim   UserRole = "victim"
	UserRoleAdvocate UserRole = "advocate"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleVictim, UserRoleAdvocate:
		return true
	}
	return false
}

// DirectoryUser is what the identity directory yields for an account lookup.
type DirectoryUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// ClientSummary is one row of the advocate's client list: an owner whose
// cases the advocate holds at least one visible grant on.
type ClientSummary struct {
	UserID    string `json:"user_id"`
	CaseCount int    `json:"case_count"`
	CanEdit   bool   `json:"can_edit"`
}
