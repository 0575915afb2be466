package placement

import (
	"fmt"
	"strings"
	"time"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
)

// MajorPolicy decides how an opportunity's preferred major filters applicants.
type MajorPolicy string

const (
	// MajorPolicyOpen lets every student apply regardless of major.
	MajorPolicyOpen MajorPolicy = "open"
	// MajorPolicyPreferred requires the wildcard or a case-insensitive match.
	MajorPolicyPreferred MajorPolicy = "preferred"
)

// Eligibility rule names, in evaluation order.
const (
	RuleMaxActiveApplications    = "MAX_ACTIVE_APPLICATIONS"
	RulePlacementAlreadyAccepted = "PLACEMENT_ALREADY_ACCEPTED"
	RuleOpportunityNotOpen       = "OPPORTUNITY_NOT_OPEN"
	RuleOpportunityFull          = "OPPORTUNITY_FULL"
	RuleMajorMismatch            = "MAJOR_MISMATCH"
	RuleLevelIneligible          = "LEVEL_INELIGIBLE"
)

// CanApply reports whether student may apply to opp at now, returning the
// first failed rule as a BUSINESS_RULE_VIOLATION. It has no side effects.
func CanApply(student models.Student, opp models.Opportunity, now time.Time, policy Policy) error {
	limit := policy.MaxActiveApplications
	if limit <= 0 {
		limit = DefaultPolicy().MaxActiveApplications
	}

	if len(student.Applications) >= limit {
		return apperrors.NewBusinessRuleError(RuleMaxActiveApplications,
			fmt.Sprintf("maximum %d active applications", limit),
			fmt.Sprintf("studentId: %s, active: %d", student.ID, len(student.Applications)))
	}
	if student.HasPlacement() {
		return apperrors.NewBusinessRuleError(RulePlacementAlreadyAccepted,
			"student already has an accepted placement",
			fmt.Sprintf("studentId: %s, applicationId: %s", student.ID, student.AcceptedPlacement))
	}
	if !isOpen(opp, now) {
		return apperrors.NewBusinessRuleError(RuleOpportunityNotOpen,
			"internship not accepting applications",
			fmt.Sprintf("opportunityId: %s, status: %s, visible: %t", opp.ID, opp.Status, opp.Visible))
	}
	if !opp.HasFreeSlot() {
		return apperrors.NewBusinessRuleError(RuleOpportunityFull,
			"internship has no remaining slots",
			fmt.Sprintf("opportunityId: %s, filledSlots: %d, totalSlots: %d", opp.ID, opp.FilledSlots, opp.TotalSlots))
	}
	if !majorMatches(policy.MajorPolicy, opp.PreferredMajor, student.Major) {
		return apperrors.NewBusinessRuleError(RuleMajorMismatch,
			"preferred major does not match",
			fmt.Sprintf("preferredMajor: %s, major: %s", opp.PreferredMajor, student.Major))
	}
	if !levelEligible(student.YearOfStudy, opp.Level) {
		return apperrors.NewBusinessRuleError(RuleLevelIneligible,
			"level ineligible",
			fmt.Sprintf("yearOfStudy: %d, level: %s", student.YearOfStudy, opp.Level))
	}
	return nil
}

func isOpen(opp models.Opportunity, now time.Time) bool {
	if opp.Status != models.OpportunityApproved || !opp.Visible {
		return false
	}
	today := calendarDay(now)
	return calendarDay(opp.OpeningDate) <= today && today <= calendarDay(opp.ClosingDate)
}

// calendarDay collapses t to a comparable yyyymmdd number in UTC.
func calendarDay(t time.Time) int {
	y, m, d := t.UTC().Date()
	return y*10000 + int(m)*100 + d
}

func majorMatches(policy MajorPolicy, preferred, major string) bool {
	if policy != MajorPolicyPreferred {
		return true
	}
	preferred = strings.TrimSpace(preferred)
	if preferred == "" || strings.EqualFold(preferred, models.AnyMajor) {
		return true
	}
	return strings.EqualFold(preferred, strings.TrimSpace(major))
}

// Students in their first two years may only take basic placements.
func levelEligible(yearOfStudy int, level models.Level) bool {
	if yearOfStudy <= 2 {
		return level == models.LevelBasic
	}
	return true
}
