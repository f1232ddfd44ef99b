package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contractiq/backend/internal/models"
)

func TestScoreRisk(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "benign text",
			text: "This agreement covers office space rental at market rates.",
			want: models.RiskLow,
		},
		{
			name: "single high risk clause",
			text: "Supplier accepts UNLIMITED LIABILITY for any breach.",
			want: models.RiskHigh,
		},
		{
			name: "indemnification stem matches variants",
			text: "Customer shall indemnify and hold harmless the Provider.",
			want: models.RiskHigh,
		},
		{
			name: "single medium risk clause",
			text: "The term continues under automatic renewal each year.",
			want: models.RiskMedium,
		},
		{
			name: "medium clauses accumulate to high",
			text: "Automatic renewal applies; a late fee accrues monthly and a penalty applies on default.",
			want: models.RiskHigh,
		},
		{
			name: "two medium clauses stay medium",
			text: "A late fee accrues and a penalty applies.",
			want: models.RiskMedium,
		},
		{
			name: "empty text",
			text: "",
			want: models.RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreRisk(tt.text))
		})
	}
}
