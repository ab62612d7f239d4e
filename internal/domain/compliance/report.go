package compliance

import (
	"fmt"
	"time"
)

// ExecutiveSummary heads the report.
type ExecutiveSummary struct {
	OverallComplianceScore int      `json:"overall_compliance_score"`
	OverallRiskScore       int      `json:"overall_risk_score"`
	ComplianceStatus       string   `json:"compliance_status"`
	KeyFindings            []string `json:"key_findings"`
	PriorityActions        []string `json:"priority_actions"`
}

// RegulationPerformance is one regulation's row in the detailed analysis.
type RegulationPerformance struct {
	Score     int    `json:"score"`
	Status    string `json:"status"`
	Benchmark string `json:"benchmark"`
	Trend     string `json:"trend"`
}

// DetailedAnalysis is the report's per-regulation breakdown.
type DetailedAnalysis struct {
	RegulationPerformance map[string]RegulationPerformance `json:"regulation_performance"`
	GapBreakdown          map[string][]Gap                 `json:"gap_breakdown"`
	Strengths             []string                         `json:"strengths"`
	Weaknesses            []string                         `json:"weaknesses"`
	ImprovementAreas      []string                         `json:"improvement_areas"`
}

// ReportRecommendations splits recommendations by urgency.
type ReportRecommendations struct {
	ImmediateActions   []Recommendation     `json:"immediate_actions"`
	ShortTermActions   []Recommendation     `json:"short_term_actions"`
	LongTermStrategies []MitigationStrategy `json:"long_term_strategies"`
	ResourceAllocation map[string]string    `json:"resource_allocation"`
}

// ActionPlan is the report's remediation timeline.
type ActionPlan struct {
	Timeline         map[string][]string `json:"timeline"`
	Responsibilities map[string][]string `json:"responsibilities"`
	SuccessMetrics   map[string]string   `json:"success_metrics"`
}

// PerformanceSnapshot captures the headline numbers for the metrics section.
type PerformanceSnapshot struct {
	OverallScore    int `json:"overall_score"`
	RegulationCount int `json:"regulation_count"`
	GapsIdentified  int `json:"gaps_identified"`
	HighRiskGaps    int `json:"high_risk_gaps"`
}

// ReportMetrics is the compliance-metrics section.
type ReportMetrics struct {
	CurrentPerformance PerformanceSnapshot `json:"current_performance"`
	Benchmarks         map[string]int      `json:"benchmarks"`
}

// AuditReadiness grades how prepared the company is for an external audit.
type AuditReadiness struct {
	ReadinessLevel          string   `json:"readiness_level"`
	DocumentationStatus     string   `json:"documentation_status"`
	EvidenceAvailability    string   `json:"evidence_availability"`
	RecommendedPreparations []string `json:"recommended_preparations"`
}

// Report is the final compliance report, derived deterministically from an
// analysis result and a risk assessment.
type Report struct {
	ReportID         string                `json:"report_id"`
	ExecutiveSummary ExecutiveSummary      `json:"executive_summary"`
	DetailedAnalysis DetailedAnalysis      `json:"detailed_analysis"`
	Recommendations  ReportRecommendations `json:"recommendations"`
	ActionPlan       ActionPlan            `json:"action_plan"`
	Metrics          ReportMetrics         `json:"compliance_metrics"`
	AuditReadiness   AuditReadiness        `json:"audit_readiness"`
	GeneratedAt      time.Time             `json:"generated_at"`
	ReportVersion    string                `json:"report_version"`
}

// NewReportID derives the report identifier from the generation timestamp.
func NewReportID(t time.Time) string {
	return "COMP-" + t.Format("20060102-150405")
}

// BuildReport assembles a full report from the analysis and risk stages'
// outputs. Pure except for the supplied timestamp.
func BuildReport(analysis *AnalysisResult, risk *RiskAssessment, now time.Time) *Report {
	highGaps := analysis.HighSeverityGaps()

	report := &Report{
		ReportID:      NewReportID(now),
		GeneratedAt:   now,
		ReportVersion: "1.0",
	}

	report.ExecutiveSummary = ExecutiveSummary{
		OverallComplianceScore: analysis.OverallScore,
		OverallRiskScore:       risk.OverallRiskScore,
		ComplianceStatus:       StatusForScore(analysis.OverallScore),
		KeyFindings: []string{
			fmt.Sprintf("Overall compliance score: %d%%", analysis.OverallScore),
			fmt.Sprintf("Identified %d compliance gaps", len(analysis.GapAnalysis)),
			fmt.Sprintf("High-risk areas: %d", len(highGaps)),
		},
		PriorityActions: []string{
			"Address high-severity compliance gaps",
			"Implement recommended controls",
			"Schedule follow-up assessment",
		},
	}

	report.DetailedAnalysis = buildDetailedAnalysis(analysis)
	report.Recommendations = buildRecommendations(analysis, risk)
	report.ActionPlan = buildActionPlan()
	report.Metrics = ReportMetrics{
		CurrentPerformance: PerformanceSnapshot{
			OverallScore:    analysis.OverallScore,
			RegulationCount: len(analysis.RegulationScores),
			GapsIdentified:  len(analysis.GapAnalysis),
			HighRiskGaps:    len(highGaps),
		},
		Benchmarks: map[string]int{
			"industry_average":        85,
			"regulatory_requirements": 100,
			"internal_target":         90,
		},
	}
	report.AuditReadiness = buildAuditReadiness(analysis.OverallScore)

	return report
}

func buildDetailedAnalysis(analysis *AnalysisResult) DetailedAnalysis {
	detail := DetailedAnalysis{
		RegulationPerformance: make(map[string]RegulationPerformance, len(analysis.RegulationScores)),
		GapBreakdown:          make(map[string][]Gap),
	}

	for regulation, score := range analysis.RegulationScores {
		detail.RegulationPerformance[regulation] = RegulationPerformance{
			Score:     score,
			Status:    StatusForScore(score),
			Benchmark: "Industry Average: 85%",
			Trend:     "stable",
		}
		if score >= 85 {
			detail.Strengths = append(detail.Strengths, regulation)
		}
		if score < 75 {
			detail.Weaknesses = append(detail.Weaknesses, regulation)
		}
	}

	for _, gap := range analysis.GapAnalysis {
		detail.GapBreakdown[gap.Regulation] = append(detail.GapBreakdown[gap.Regulation], gap)
	}

	detail.ImprovementAreas = detail.Weaknesses
	return detail
}

func buildRecommendations(analysis *AnalysisResult, risk *RiskAssessment) ReportRecommendations {
	recs := ReportRecommendations{
		LongTermStrategies: risk.MitigationStrategies,
		ResourceAllocation: map[string]string{
			"high_priority":   "Allocate immediate resources",
			"medium_priority": "Plan for next quarter",
			"low_priority":    "Monitor and review",
		},
	}

	for _, rec := range analysis.Recommendations {
		switch rec.Priority {
		case "high":
			if len(recs.ImmediateActions) < 3 {
				recs.ImmediateActions = append(recs.ImmediateActions, rec)
			}
		case "medium":
			if len(recs.ShortTermActions) < 5 {
				recs.ShortTermActions = append(recs.ShortTermActions, rec)
			}
		}
	}
	return recs
}

func buildActionPlan() ActionPlan {
	return ActionPlan{
		Timeline: map[string][]string{
			"immediate": {"Address critical gaps", "Implement urgent controls"},
			"30_days":   {"Medium priority fixes", "Documentation updates"},
			"90_days":   {"Process improvements", "Training programs"},
		},
		Responsibilities: map[string][]string{
			"compliance_team": {"Gap remediation", "Policy updates"},
			"it_department":   {"Technical controls", "System configurations"},
			"hr_department":   {"Training programs", "Policy communication"},
		},
		SuccessMetrics: map[string]string{
			"compliance_score_target": "90%",
			"gap_reduction_target":    "80%",
			"audit_readiness_target":  "Fully prepared",
		},
	}
}

func buildAuditReadiness(score int) AuditReadiness {
	var readiness string
	switch {
	case score >= 90:
		readiness = "fully_prepared"
	case score >= 80:
		readiness = "mostly_prepared"
	case score >= 70:
		readiness = "partially_prepared"
	default:
		readiness = "not_prepared"
	}

	docs := "partial"
	if score >= 80 {
		docs = "complete"
	}
	evidence := "needs_work"
	if score >= 85 {
		evidence = "available"
	}

	return AuditReadiness{
		ReadinessLevel:       readiness,
		DocumentationStatus:  docs,
		EvidenceAvailability: evidence,
		RecommendedPreparations: []string{
			"Organize compliance documentation",
			"Prepare evidence for key controls",
			"Conduct mock audit",
		},
	}
}
