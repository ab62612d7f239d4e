package compliance

import (
	"fmt"
	"strings"
	"time"
)

// regulationWeights biases weighted risk toward regulations with the harshest
// enforcement exposure.
var regulationWeights = map[string]float64{
	"GDPR":  1.2,
	"HIPAA": 1.1,
	"SOX":   1.15,
}

const defaultRegulationWeight = 1.0

// RegulationRisk is the per-regulation slice of a risk assessment.
type RegulationRisk struct {
	Score        int     `json:"score"`
	RiskLevel    string  `json:"risk_level"`
	WeightedRisk float64 `json:"weighted_risk"`
}

// RiskFactor is one identified contributor to overall risk.
type RiskFactor struct {
	Type        string `json:"type"`
	Count       int    `json:"count,omitempty"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
	Probability string `json:"probability,omitempty"`
}

// MitigationStrategy is the prescribed response to one risk factor.
type MitigationStrategy struct {
	RiskType        string   `json:"risk_type"`
	Strategy        string   `json:"strategy"`
	Priority        string   `json:"priority"`
	Timeline        string   `json:"timeline"`
	ResourcesNeeded []string `json:"resources_needed"`
}

// ComplianceHealth summarizes the overall posture.
type ComplianceHealth struct {
	Status                string `json:"status"`
	Score                 int    `json:"score"`
	Trend                 string `json:"trend"`
	NextReviewRecommended string `json:"next_review_recommended"`
}

// PredictedRisk is a forward-looking risk scenario.
type PredictedRisk struct {
	Scenario                  string `json:"scenario"`
	Probability               string `json:"probability"`
	Timeframe                 string `json:"timeframe"`
	PotentialImpact           string `json:"potential_impact"`
	PreparationRecommendation string `json:"preparation_recommendation"`
}

// RiskAssessment is the RiskAssess stage's output.
type RiskAssessment struct {
	OverallRiskScore     int                       `json:"overall_risk_score"`
	RiskBreakdown        map[string]RegulationRisk `json:"risk_breakdown"`
	RiskFactors          []RiskFactor              `json:"risk_factors"`
	MitigationStrategies []MitigationStrategy      `json:"mitigation_strategies"`
	ComplianceHealth     ComplianceHealth          `json:"compliance_health"`
	PredictedRisks       []PredictedRisk           `json:"predicted_risks"`
	Timestamp            time.Time                 `json:"timestamp"`
}

// RiskScoreFromCompliance inverts a compliance score onto the risk scale,
// clamped to [0, 100].
func RiskScoreFromCompliance(score int) int {
	risk := 100 - score
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}

// RiskLevelForScore is the four-band risk label keyed on compliance score.
func RiskLevelForScore(score int) string {
	switch {
	case score >= 90:
		return "low"
	case score >= 75:
		return "medium"
	case score >= 60:
		return "high"
	default:
		return "critical"
	}
}

// WeightedRisk scales a regulation's inverted score by its enforcement weight.
func WeightedRisk(regulation string, score int) float64 {
	weight, ok := regulationWeights[strings.ToUpper(regulation)]
	if !ok {
		weight = defaultRegulationWeight
	}
	return float64(100-score) * weight
}

// RiskFactorsFromGaps derives severity-count risk factors from a gap list.
func RiskFactorsFromGaps(gaps []Gap) []RiskFactor {
	var high, medium int
	for _, g := range gaps {
		switch g.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
	}

	var factors []RiskFactor
	if high > 0 {
		factors = append(factors, RiskFactor{
			Type:        "high_severity_gaps",
			Count:       high,
			Impact:      "high",
			Description: fmt.Sprintf("%d high severity compliance gaps identified", high),
		})
	}
	if medium > 0 {
		factors = append(factors, RiskFactor{
			Type:        "medium_severity_gaps",
			Count:       medium,
			Impact:      "medium",
			Description: fmt.Sprintf("%d medium severity compliance gaps identified", medium),
		})
	}
	return factors
}

// MitigationsFor maps risk factor types to their standing mitigation
// strategies. Factors with no catalog entry produce no strategy.
func MitigationsFor(factors []RiskFactor) []MitigationStrategy {
	var strategies []MitigationStrategy
	for _, f := range factors {
		switch f.Type {
		case "high_severity_gaps":
			strategies = append(strategies, MitigationStrategy{
				RiskType:        f.Type,
				Strategy:        "Immediate gap remediation",
				Priority:        "critical",
				Timeline:        "30 days",
				ResourcesNeeded: []string{"compliance_team", "technical_staff", "budget"},
			})
		case "medium_severity_gaps":
			strategies = append(strategies, MitigationStrategy{
				RiskType:        f.Type,
				Strategy:        "Phased gap remediation",
				Priority:        "high",
				Timeline:        "90 days",
				ResourcesNeeded: []string{"compliance_team", "department_heads"},
			})
		case "regulatory_changes":
			strategies = append(strategies, MitigationStrategy{
				RiskType:        f.Type,
				Strategy:        "Enhanced regulatory monitoring",
				Priority:        "medium",
				Timeline:        "Ongoing",
				ResourcesNeeded: []string{"monitoring_tools", "legal_review"},
			})
		}
	}
	return strategies
}

// HealthStatusForScore maps a compliance score to a health label.
func HealthStatusForScore(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 70:
		return "fair"
	default:
		return "poor"
	}
}
