package types

import "time"

type CaseStatus string

const (
	CaseStatusDraft          CaseStatus = "draft"
	CaseStatusReadyForReview CaseStatus = "ready_for_review"
	CaseStatusSubmitted      CaseStatus = "submitted"
	CaseStatusClosed         CaseStatus = "closed"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusDraft, CaseStatusReadyForReview, CaseStatusSubmitted, CaseStatusClosed:
		return true
	}
	return false
}

type Case struct {
	ID          string     `db:"id" json:"id"`
	OwnerUserID string     `db:"owner_user_id" json:"owner_user_id"`
	Status      CaseStatus `db:"status" json:"status"`
	StateCode   *string    `db:"state_code" json:"state_code,omitempty"`
	Name        *string    `db:"name" json:"name,omitempty"`

	// Client-generated idempotency token, unique per owner. Replaying a
	// create with the same token returns the existing case.
	CreateToken *string `db:"create_token" json:"-"`

	Application Application `db:"application" json:"application"`

	EligibilityAnswers   *EligibilityAnswers   `db:"eligibility_answers" json:"eligibility_answers,omitempty"`
	EligibilityResult    *EligibilityResult    `db:"eligibility_result" json:"eligibility_result,omitempty"`
	EligibilityReadiness *EligibilityReadiness `db:"eligibility_readiness" json:"eligibility_readiness,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CaseWithAccess annotates a case with the requesting user's own grant,
// as returned by list endpoints.
type CaseWithAccess struct {
	Case
	Role    GrantRole `json:"role"`
	CanView bool      `json:"can_view"`
	CanEdit bool      `json:"can_edit"`
}

// CasePatch is a partial update applied with section-level shallow merge
// semantics. Nil fields are left untouched.
type CasePatch struct {
	Name               *string             `json:"name,omitempty"`
	Status             *CaseStatus         `json:"status,omitempty"`
	StateCode          *string             `json:"state_code,omitempty"`
	Application        Application         `json:"application,omitempty"`
	EligibilityAnswers *EligibilityAnswers `json:"eligibility_answers,omitempty"`
}
