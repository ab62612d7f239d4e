package compliance

import "time"

// Severity grades a compliance gap.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Gap is one identified compliance gap.
type Gap struct {
	Regulation    string   `json:"regulation"`
	GapType       string   `json:"gap_type"`
	Severity      Severity `json:"severity"`
	Description   string   `json:"description"`
	AffectedAreas []string `json:"affected_areas"`
}

// Recommendation is one remediation recommendation tied to a gap.
type Recommendation struct {
	Regulation      string `json:"regulation"`
	Priority        string `json:"priority"`
	Action          string `json:"action"`
	EstimatedEffort string `json:"estimated_effort"`
	Timeline        string `json:"timeline"`
	Impact          string `json:"impact"`
}

// RiskSummary is the analyzer's coarse risk view, embedded in the analysis
// result before the dedicated risk stage runs.
type RiskSummary struct {
	RiskLevel                 string   `json:"risk_level"`
	ConfidenceScore           int      `json:"confidence_score"`
	KeyRisks                  []Gap    `json:"key_risks"`
	MonitoringRecommendations []string `json:"monitoring_recommendations"`
}

// AnalysisResult is the Analyze stage's scoring output.
type AnalysisResult struct {
	OverallScore     int              `json:"overall_score"`
	RegulationScores map[string]int   `json:"regulation_scores"`
	GapAnalysis      []Gap            `json:"gap_analysis"`
	Recommendations  []Recommendation `json:"recommendations"`
	RiskSummary      RiskSummary      `json:"risk_assessment"`
	Timestamp        time.Time        `json:"timestamp"`
}

// OverallFromScores computes the overall compliance score as the mean of the
// per-regulation scores, rounded down. An empty score map yields zero.
func OverallFromScores(scores map[string]int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return sum / len(scores)
}

// HighSeverityGaps filters the gap list down to high-severity entries,
// preserving order.
func (a *AnalysisResult) HighSeverityGaps() []Gap {
	var gaps []Gap
	for _, g := range a.GapAnalysis {
		if g.Severity == SeverityHigh {
			gaps = append(gaps, g)
		}
	}
	return gaps
}

// StatusForScore maps a compliance score to its reporting label.
func StatusForScore(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 70:
		return "fair"
	default:
		return "needs_improvement"
	}
}

// CoarseRiskLevel is the analyzer's three-band risk label.
func CoarseRiskLevel(score int) string {
	switch {
	case score >= 90:
		return "low"
	case score >= 75:
		return "medium"
	default:
		return "high"
	}
}

// PriorityForScore maps a per-regulation score to a recommendation priority.
func PriorityForScore(score int) string {
	switch {
	case score < 80:
		return "high"
	case score < 90:
		return "medium"
	default:
		return "low"
	}
}
