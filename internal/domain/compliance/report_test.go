package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		OverallScore: 78,
		RegulationScores: map[string]int{
			"GDPR":  70,
			"HIPAA": 85,
			"SOX":   80,
		},
		GapAnalysis: []Gap{
			{Regulation: "GDPR", GapType: "consent_management", Severity: SeverityHigh},
			{Regulation: "GDPR", GapType: "data_mapping", Severity: SeverityMedium},
			{Regulation: "HIPAA", GapType: "access_controls", Severity: SeverityLow},
		},
		Recommendations: []Recommendation{
			{Regulation: "GDPR", Priority: "high", Action: "Address consent_management gap"},
			{Regulation: "GDPR", Priority: "high", Action: "Address data_mapping gap"},
			{Regulation: "HIPAA", Priority: "medium", Action: "Address access_controls gap"},
			{Regulation: "SOX", Priority: "medium", Action: "Address documentation gap"},
		},
	}
}

func testRiskAssessment() *RiskAssessment {
	return &RiskAssessment{
		OverallRiskScore: 22,
		MitigationStrategies: []MitigationStrategy{
			{RiskType: "high_severity_gaps", Strategy: "Immediate gap remediation"},
		},
	}
}

func TestNewReportID(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "COMP-20250301-100000", NewReportID(at))
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	report := BuildReport(testAnalysisResult(), testRiskAssessment(), now)

	assert.Equal(t, "COMP-20250301-100000", report.ReportID)
	assert.Equal(t, now, report.GeneratedAt)
	assert.Equal(t, "1.0", report.ReportVersion)

	summary := report.ExecutiveSummary
	assert.Equal(t, 78, summary.OverallComplianceScore)
	assert.Equal(t, 22, summary.OverallRiskScore)
	assert.Equal(t, "fair", summary.ComplianceStatus)
	assert.Contains(t, summary.KeyFindings, "Overall compliance score: 78%")
	assert.Contains(t, summary.KeyFindings, "Identified 3 compliance gaps")
	assert.Contains(t, summary.KeyFindings, "High-risk areas: 1")
}

func TestBuildReportDetailedAnalysis(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	report := BuildReport(testAnalysisResult(), testRiskAssessment(), now)

	detail := report.DetailedAnalysis
	require.Len(t, detail.RegulationPerformance, 3)
	assert.Equal(t, "fair", detail.RegulationPerformance["GDPR"].Status)
	assert.Equal(t, "good", detail.RegulationPerformance["HIPAA"].Status)

	// 85 and above is a strength, below 75 a weakness.
	assert.Equal(t, []string{"HIPAA"}, detail.Strengths)
	assert.Equal(t, []string{"GDPR"}, detail.Weaknesses)
	assert.Equal(t, detail.Weaknesses, detail.ImprovementAreas)

	assert.Len(t, detail.GapBreakdown["GDPR"], 2)
	assert.Len(t, detail.GapBreakdown["HIPAA"], 1)
}

func TestBuildReportRecommendations(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	analysis := testAnalysisResult()
	report := BuildReport(analysis, testRiskAssessment(), now)

	recs := report.Recommendations
	assert.Len(t, recs.ImmediateActions, 2)
	assert.Len(t, recs.ShortTermActions, 2)
	assert.Len(t, recs.LongTermStrategies, 1)
	assert.Equal(t, "Allocate immediate resources", recs.ResourceAllocation["high_priority"])
}

func TestBuildReportCapsImmediateActions(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	analysis := testAnalysisResult()
	for i := 0; i < 5; i++ {
		analysis.Recommendations = append(analysis.Recommendations,
			Recommendation{Regulation: "SOX", Priority: "high"})
	}

	report := BuildReport(analysis, testRiskAssessment(), now)
	assert.Len(t, report.Recommendations.ImmediateActions, 3)
}

func TestBuildReportMetricsAndAuditReadiness(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	report := BuildReport(testAnalysisResult(), testRiskAssessment(), now)

	perf := report.Metrics.CurrentPerformance
	assert.Equal(t, 78, perf.OverallScore)
	assert.Equal(t, 3, perf.RegulationCount)
	assert.Equal(t, 3, perf.GapsIdentified)
	assert.Equal(t, 1, perf.HighRiskGaps)
	assert.Equal(t, 85, report.Metrics.Benchmarks["industry_average"])

	audit := report.AuditReadiness
	assert.Equal(t, "partially_prepared", audit.ReadinessLevel)
	assert.Equal(t, "partial", audit.DocumentationStatus)
	assert.Equal(t, "needs_work", audit.EvidenceAvailability)
}

func TestBuildAuditReadinessBands(t *testing.T) {
	tests := []struct {
		score     int
		readiness string
		docs      string
		evidence  string
	}{
		{95, "fully_prepared", "complete", "available"},
		{82, "mostly_prepared", "complete", "needs_work"},
		{75, "partially_prepared", "partial", "needs_work"},
		{50, "not_prepared", "partial", "needs_work"},
	}

	for _, tt := range tests {
		got := buildAuditReadiness(tt.score)
		assert.Equal(t, tt.readiness, got.ReadinessLevel, "score %d", tt.score)
		assert.Equal(t, tt.docs, got.DocumentationStatus, "score %d", tt.score)
		assert.Equal(t, tt.evidence, got.EvidenceAvailability, "score %d", tt.score)
	}
}
