package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

func testDataset(regulations ...string) *compliance.RegulatoryDataset {
	dataset := &compliance.RegulatoryDataset{
		Regulations:    make(map[string]compliance.RegulationData),
		SourcesChecked: len(regulations),
	}
	for _, regulation := range regulations {
		dataset.Regulations[regulation] = compliance.RegulationData{
			Regulation: regulation,
			Status:     compliance.FetchSuccess,
		}
		dataset.SuccessfulFetches++
	}
	return dataset
}

func testCompanyData(companyID string) *compliance.EnrichedCompanyData {
	return &compliance.EnrichedCompanyData{
		Profile: compliance.CompanyProfile{
			CompanyID:     companyID,
			Industry:      "technology",
			EmployeeCount: 250,
		},
	}
}

func TestCollectEnrichesProfile(t *testing.T) {
	analyzer := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 3)...)

	profile := &compliance.CompanyProfile{CompanyID: "acme-corp", EmployeeCount: 500}
	enriched, err := analyzer.Collect(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, "acme-corp", enriched.Profile.CompanyID)
	assert.GreaterOrEqual(t, enriched.PoliciesAnalyzed, 5)
	assert.LessOrEqual(t, enriched.PoliciesAnalyzed, 15)
	assert.GreaterOrEqual(t, enriched.SystemsInventoried, 10)
	assert.LessOrEqual(t, enriched.SystemsInventoried, 25)
	assert.Equal(t, 500, enriched.EmployeesCovered)
	assert.NotZero(t, enriched.CollectedAt)
}

func TestAnalyzeScoresEachSuccessfulRegulation(t *testing.T) {
	analyzer := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 5)...)

	result, err := analyzer.Analyze(context.Background(), testCompanyData("acme-corp"), testDataset("GDPR", "HIPAA", "SOX"))
	require.NoError(t, err)

	require.Len(t, result.RegulationScores, 3)
	sum := 0
	for regulation, score := range result.RegulationScores {
		assert.GreaterOrEqual(t, score, minRegulationScore, regulation)
		assert.LessOrEqual(t, score, maxRegulationScore, regulation)
		sum += score
	}
	assert.Equal(t, sum/3, result.OverallScore, "overall score is the floored mean")

	// Two gaps and two recommendations per regulation.
	assert.Len(t, result.GapAnalysis, 6)
	assert.Len(t, result.Recommendations, 6)

	for _, gap := range result.GapAnalysis {
		assert.Contains(t, []string{"GDPR", "HIPAA", "SOX"}, gap.Regulation)
		assert.Contains(t, severities, gap.Severity)
		assert.Len(t, gap.AffectedAreas, 2)
		assert.NotEmpty(t, gap.Description)
	}
	for _, rec := range result.Recommendations {
		assert.Equal(t, compliance.PriorityForScore(result.RegulationScores[rec.Regulation]), rec.Priority)
		assert.Contains(t, remediationTimelines, rec.Timeline)
	}
}

func TestAnalyzeSkipsFailedFetches(t *testing.T) {
	analyzer := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 5)...)

	dataset := testDataset("GDPR")
	dataset.Regulations["HIPAA"] = compliance.RegulationData{
		Regulation: "HIPAA",
		Status:     compliance.FetchFailed,
		Error:      "source unavailable",
	}
	dataset.SourcesChecked = 2

	result, err := analyzer.Analyze(context.Background(), testCompanyData("acme-corp"), dataset)
	require.NoError(t, err)

	assert.Contains(t, result.RegulationScores, "GDPR")
	assert.NotContains(t, result.RegulationScores, "HIPAA")
	assert.Len(t, result.GapAnalysis, 2)
}

func TestAnalyzeEmptyDataset(t *testing.T) {
	analyzer := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 5)...)

	result, err := analyzer.Analyze(context.Background(), testCompanyData("acme-corp"), testDataset())
	require.NoError(t, err)

	assert.Equal(t, 0, result.OverallScore)
	assert.Empty(t, result.RegulationScores)
	assert.Empty(t, result.GapAnalysis)
	assert.Equal(t, "high", result.RiskSummary.RiskLevel)
}

func TestAnalyzeRiskSummary(t *testing.T) {
	analyzer := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 11)...)

	result, err := analyzer.Analyze(context.Background(), testCompanyData("acme-corp"), testDataset("GDPR", "HIPAA"))
	require.NoError(t, err)

	summary := result.RiskSummary
	assert.Equal(t, compliance.CoarseRiskLevel(result.OverallScore), summary.RiskLevel)
	assert.GreaterOrEqual(t, summary.ConfidenceScore, 85)
	assert.LessOrEqual(t, summary.ConfidenceScore, 98)
	assert.Equal(t, result.HighSeverityGaps(), summary.KeyRisks)
	assert.Equal(t, monitoringRecommendations, summary.MonitoringRecommendations)
}

func TestAnalyzeDeterministicWithSeed(t *testing.T) {
	first := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 99)...)
	second := NewAnalyzer(zaptest.NewLogger(t), testOptions(t, 99)...)

	a, err := first.Analyze(context.Background(), testCompanyData("acme-corp"), testDataset("GDPR", "HIPAA", "SOX"))
	require.NoError(t, err)
	b, err := second.Analyze(context.Background(), testCompanyData("acme-corp"), testDataset("GDPR", "HIPAA", "SOX"))
	require.NoError(t, err)

	assert.Equal(t, a.RegulationScores, b.RegulationScores)
	assert.Equal(t, a.GapAnalysis, b.GapAnalysis)
}
