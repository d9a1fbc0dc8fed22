package scoring

import (
	"fmt"
	"strings"

	"github.com/learnbot/opportunity-hunter/internal/model"
)

const descriptionPreviewLen = 800

// buildPrompt renders the single user-turn prompt sent to the LLM for
// one opportunity, asking for a strict JSON object in return.
func buildPrompt(opp *model.ScrapedOpportunity, mySkills []string, minBudget int) string {
	skillsStr := "unspecified"
	if len(opp.SkillsRequired) > 0 {
		skillsStr = strings.Join(opp.SkillsRequired, ", ")
	}

	desc := opp.Description
	if runes := []rune(desc); len(runes) > descriptionPreviewLen {
		desc = string(runes[:descriptionPreviewLen])
	}

	budget := "unspecified"
	if opp.BudgetMin != nil && opp.BudgetMax != nil {
		budget = fmt.Sprintf("%d-%d", *opp.BudgetMin, *opp.BudgetMax)
	} else if opp.BudgetMin != nil {
		budget = fmt.Sprintf("%d", *opp.BudgetMin)
	}

	return fmt.Sprintf(`You are a seasoned freelance contracting advisor. Evaluate whether the following opportunity is worth pursuing.

Opportunity:
- Title: %s
- Budget: $%s
- Skills required: %s
- Description: %s...

My skills:
%s

Evaluation dimensions:
1. Budget reasonableness (below $%d is not recommended)
2. Skill match (skills I'm strong in)
3. Requirement clarity (is the scope well defined)
4. Project complexity (achievable in reasonable time)
5. Competition level (inferred from budget and requirements)

Respond with exactly this JSON shape and nothing else:
{
    "score": 85,
    "reason": "one sentence on why this is or isn't worth pursuing",
    "match_score": 90,
    "budget_reasonable": true,
    "requirement_clear": true,
    "estimated_hours": 40,
    "suggested_bid": 1200,
    "risks": ["possible risk"],
    "strengths": ["project strength"]
}`, opp.Title, budget, skillsStr, desc, strings.Join(mySkills, ", "), minBudget)
}
