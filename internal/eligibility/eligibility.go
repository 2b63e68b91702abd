// Package eligibility implements the pre-check decision over the fixed
// seven-question answer set. The outcome is always re-derivable from the
// stored answers; callers recompute and overwrite it on every save.
package eligibility

import (
	"slices"

	"advocase/pkg/types"
)

type Outcome struct {
	Result    types.EligibilityResult
	Readiness types.EligibilityReadiness
}

var qualifyingApplicantTypes = []string{
	types.ApplicantTypeVictim18PlusOwn,
	types.ApplicantTypeGuardianForMinor,
	types.ApplicantTypeRelativeOfDeceased,
	types.ApplicantTypeRepForAdult,
}

// ComputeOutcome applies the decision policy in order, first match wins.
// An eligibility outcome gates navigation hints only; it never blocks the
// intake flow.
func ComputeOutcome(answers types.EligibilityAnswers) Outcome {
	if answers.ApplicantType == types.ApplicantTypeNone {
		return Outcome{
			Result:    types.EligibilityResultNotEligible,
			Readiness: types.EligibilityReadinessReady,
		}
	}

	if !slices.Contains(qualifyingApplicantTypes, answers.ApplicantType) {
		// Covers "not_sure" and unset.
		return Outcome{
			Result:    types.EligibilityResultNeedsReview,
			Readiness: types.EligibilityReadinessReady,
		}
	}

	if answers.WhoWillSign == "" || answers.WhoWillSign == types.AnswerNotSure {
		return Outcome{
			Result:    types.EligibilityResultEligible,
			Readiness: types.EligibilityReadinessNotReady,
		}
	}

	switch answers.CanReceiveContact45Days {
	case types.AnswerNo:
		return Outcome{
			Result:    types.EligibilityResultEligible,
			Readiness: types.EligibilityReadinessNotReady,
		}
	case types.AnswerNotSure:
		return Outcome{
			Result:    types.EligibilityResultEligible,
			Readiness: types.EligibilityReadinessMissingInfo,
		}
	}

	readiness := types.EligibilityReadinessReady

	switch {
	case answers.CrimeReportedToPolice == types.AnswerNo,
		answers.CrimeReportedToPolice == types.AnswerNotSure:
		readiness = types.EligibilityReadinessMissingInfo
	case answers.PoliceReportDetails == types.ReportDetailsDontHave:
		readiness = types.EligibilityReadinessMissingInfo
	case slices.Contains(answers.ExpensesSought, types.AnswerNotSure):
		readiness = types.EligibilityReadinessMissingInfo
	}

	return Outcome{
		Result:    types.EligibilityResultEligible,
		Readiness: readiness,
	}
}
