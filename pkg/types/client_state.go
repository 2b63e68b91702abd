package types

import "time"

// IntakeProgress is the UI cursor a client persists between sessions.
type IntakeProgress struct {
	CaseID       string    `json:"caseId"`
	Step         string    `json:"step"`
	MaxStepIndex int       `json:"maxStepIndex"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ClientState is everything persisted per user to survive page reloads and
// brief disconnection: the active-case pointer, the intake cursor, and the
// not-yet-pushed draft application. Never authoritative; keyed by user id so
// switching accounts cannot leak another user's draft.
type ClientState struct {
	ActiveCaseID string          `json:"activeCaseId,omitempty"`
	Progress     *IntakeProgress `json:"progress,omitempty"`
	Draft        Application     `json:"draft,omitempty"`
}
