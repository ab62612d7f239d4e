package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverallFromScores(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]int
		want   int
	}{
		{"empty", nil, 0},
		{"single", map[string]int{"GDPR": 80}, 80},
		{"mean floors", map[string]int{"GDPR": 70, "HIPAA": 85, "SOX": 80}, 78},
		{"all equal", map[string]int{"GDPR": 90, "HIPAA": 90}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallFromScores(tt.scores))
		})
	}
}

func TestStatusForScore(t *testing.T) {
	assert.Equal(t, "excellent", StatusForScore(95))
	assert.Equal(t, "excellent", StatusForScore(90))
	assert.Equal(t, "good", StatusForScore(85))
	assert.Equal(t, "fair", StatusForScore(72))
	assert.Equal(t, "needs_improvement", StatusForScore(69))
}

func TestCoarseRiskLevel(t *testing.T) {
	assert.Equal(t, "low", CoarseRiskLevel(92))
	assert.Equal(t, "medium", CoarseRiskLevel(75))
	assert.Equal(t, "high", CoarseRiskLevel(74))
}

func TestPriorityForScore(t *testing.T) {
	assert.Equal(t, "high", PriorityForScore(79))
	assert.Equal(t, "medium", PriorityForScore(80))
	assert.Equal(t, "medium", PriorityForScore(89))
	assert.Equal(t, "low", PriorityForScore(90))
}

func TestHighSeverityGaps(t *testing.T) {
	analysis := &AnalysisResult{
		GapAnalysis: []Gap{
			{Regulation: "GDPR", GapType: "consent_management", Severity: SeverityHigh},
			{Regulation: "HIPAA", GapType: "access_controls", Severity: SeverityLow},
			{Regulation: "SOX", GapType: "audit_trails", Severity: SeverityHigh},
		},
	}

	high := analysis.HighSeverityGaps()
	assert.Len(t, high, 2)
	assert.Equal(t, "GDPR", high[0].Regulation)
	assert.Equal(t, "SOX", high[1].Regulation)

	empty := &AnalysisResult{}
	assert.Empty(t, empty.HighSeverityGaps())
}
