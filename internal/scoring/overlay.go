package scoring

import (
	"strconv"
	"strings"
)

const shortDescriptionThreshold = 100

// applyRuleOverlay clamps the LLM's raw analysis against a few hard
// rules that don't need a model call to decide: budget floor, skill
// mismatch, and thin descriptions each cap the score rather than
// trusting the model's own judgment on them. hasSkills reports whether
// the opportunity declared any required skills at all; with none
// declared there's nothing to mismatch against, so the clamp is
// skipped.
func applyRuleOverlay(a rawAnalysis, budget, minBudget int, description string, hasSkills bool) rawAnalysis {
	if budget > 0 && budget < minBudget {
		a.Score = min(a.Score, 40)
		a.Reason = "Budget too low ($" + strconv.Itoa(budget) + "). " + a.Reason
		a.BudgetReasonable = false
		a.notRecommended = true
	}

	if hasSkills && a.MatchScore < 30 {
		a.Score = min(a.Score, 50)
		if !strings.Contains(a.Reason, "skill mismatch") {
			a.Reason = "Skill mismatch. " + a.Reason
		}
		a.notRecommended = true
	}

	if len(description) < shortDescriptionThreshold {
		a.Score = min(a.Score, 60)
		a.RequirementClear = false
		if !strings.Contains(a.Reason, "short description") {
			a.Reason = "Requirements too short to judge clearly. " + a.Reason
		}
	}

	return a
}
