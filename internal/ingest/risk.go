package ingest

import (
	"strings"

	"github.com/contractiq/backend/internal/models"
)

// Clause keywords that drive the heuristic risk score. Matching is
// case-insensitive substring search over the full contract text.
var (
	highRiskTerms = []string{
		"unlimited liability",
		"indemnif",
		"liquidated damages",
		"non-compete",
		"exclusive dealing",
		"irrevocabl",
	}
	mediumRiskTerms = []string{
		"automatic renewal",
		"auto-renew",
		"termination for convenience",
		"late fee",
		"penalty",
		"assignment without consent",
	}
)

// ScoreRisk assigns Low/Medium/High from clause keywords: any high-risk term
// scores 3 points, any medium-risk term 1 point; 3+ points is High, 1-2 is
// Medium.
func ScoreRisk(text string) string {
	lower := strings.ToLower(text)

	points := 0
	for _, t := range highRiskTerms {
		if strings.Contains(lower, t) {
			points += 3
		}
	}
	for _, t := range mediumRiskTerms {
		if strings.Contains(lower, t) {
			points++
		}
	}

	switch {
	case points >= 3:
		return models.RiskHigh
	case points >= 1:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
