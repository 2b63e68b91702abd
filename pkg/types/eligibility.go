package types

type EligibilityResult string

const (
	EligibilityResultEligible    EligibilityResult = "eligible"
	EligibilityResultNotEligible EligibilityResult = "not_eligible"
	EligibilityResultNeedsReview EligibilityResult = "needs_review"
)

// EligibilityReadiness signals whether enough information exists to proceed
// confidently, independent of the result itself.
type EligibilityReadiness string

const (
	EligibilityReadinessReady       EligibilityReadiness = "ready"
	EligibilityReadinessNotReady    EligibilityReadiness = "not_ready"
	EligibilityReadinessMissingInfo EligibilityReadiness = "missing_info"
)

// Applicant type answers. The four qualifying categories are everything
// except "none" and "not_sure".
const (
	ApplicantTypeNone               = "none"
	ApplicantTypeVictim18PlusOwn    = "victim_18plus_own"
	ApplicantTypeGuardianForMinor   = "guardian_for_minor"
	ApplicantTypeRelativeOfDeceased = "relative_of_deceased"
	ApplicantTypeRepForAdult        = "rep_for_adult"
	ApplicantTypeNotSure            = "not_sure"
)

// Generic yes/no/not-sure answer values.
const (
	AnswerYes     = "yes"
	AnswerNo      = "no"
	AnswerNotSure = "not_sure"
)

const (
	SignerApplicant   = "applicant"
	SignerSomeoneElse = "someone_else"
)

const (
	ReportDetailsHave     = "have"
	ReportDetailsDontHave = "dont_have"
)

// EligibilityAnswers is the fixed seven-question pre-check structure stored
// on the case. Result and readiness are derived from it on every save, never
// patched incrementally.
type EligibilityAnswers struct {
	ApplicantType              string   `json:"applicantType"`
	VictimMinorityOrDisability string   `json:"victimMinorityOrDisability,omitempty"`
	WhoWillSign                string   `json:"whoWillSign,omitempty"`
	CrimeReportedToPolice      string   `json:"crimeReportedToPolice,omitempty"`
	PoliceReportDetails        string   `json:"policeReportDetails,omitempty"`
	ExpensesSought             []string `json:"expensesSought,omitempty"`
	CanReceiveContact45Days    string   `json:"canReceiveContact45Days,omitempty"`
}
