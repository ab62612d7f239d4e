package stages

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

// generalRiskFactors are standing risks appended to every assessment.
var generalRiskFactors = []compliance.RiskFactor{
	{
		Type:        "regulatory_changes",
		Impact:      "medium",
		Description: "Potential regulatory changes in next 6 months",
		Probability: "medium",
	},
	{
		Type:        "staff_training",
		Impact:      "low",
		Description: "Compliance training completion rate below target",
		Probability: "high",
	},
}

var riskScenarios = []compliance.PredictedRisk{
	{
		Scenario:                  "New data privacy regulation",
		Probability:               "medium",
		Timeframe:                 "6-12 months",
		PotentialImpact:           "high",
		PreparationRecommendation: "Review data handling practices",
	},
	{
		Scenario:                  "Increased enforcement activity",
		Probability:               "high",
		Timeframe:                 "3-6 months",
		PotentialImpact:           "medium",
		PreparationRecommendation: "Document compliance efforts",
	},
	{
		Scenario:                  "Industry-wide compliance audit",
		Probability:               "low",
		Timeframe:                 "12+ months",
		PotentialImpact:           "high",
		PreparationRecommendation: "Conduct internal audit",
	},
}

var healthTrends = []string{"improving", "stable", "declining"}

// RiskAssessor converts analysis results into a weighted risk assessment.
type RiskAssessor struct {
	engine
}

// NewRiskAssessor creates the risk assessor.
func NewRiskAssessor(logger *zap.Logger, opts ...Option) *RiskAssessor {
	r := &RiskAssessor{}
	r.init(StageRisk, logger, opts...)
	return r
}

// Assess scores the compliance risk implied by an analysis result.
func (r *RiskAssessor) Assess(ctx context.Context, analysis *compliance.AnalysisResult) (*compliance.RiskAssessment, error) {
	r.markRequest("assess_risk")
	r.logger.Info("starting risk assessment", zap.Int("overall_score", analysis.OverallScore))

	if err := r.simulateWork(ctx, 300*time.Millisecond); err != nil {
		r.markError()
		return nil, err
	}

	assessment := &compliance.RiskAssessment{
		OverallRiskScore: compliance.RiskScoreFromCompliance(analysis.OverallScore),
		RiskBreakdown:    make(map[string]compliance.RegulationRisk, len(analysis.RegulationScores)),
		Timestamp:        r.clock.Now(),
	}

	for regulation, score := range analysis.RegulationScores {
		assessment.RiskBreakdown[regulation] = compliance.RegulationRisk{
			Score:        score,
			RiskLevel:    compliance.RiskLevelForScore(score),
			WeightedRisk: compliance.WeightedRisk(regulation, score),
		}
	}

	assessment.RiskFactors = append(compliance.RiskFactorsFromGaps(analysis.GapAnalysis), generalRiskFactors...)
	assessment.MitigationStrategies = compliance.MitigationsFor(assessment.RiskFactors)

	assessment.ComplianceHealth = compliance.ComplianceHealth{
		Status:                compliance.HealthStatusForScore(analysis.OverallScore),
		Score:                 analysis.OverallScore,
		Trend:                 pick(&r.engine, healthTrends),
		NextReviewRecommended: r.clock.Now().AddDate(0, 0, 30).Format("2006-01-02"),
	}
	assessment.PredictedRisks = sample(&r.engine, riskScenarios, 2)

	r.logger.Info("risk assessment completed",
		zap.Int("overall_risk_score", assessment.OverallRiskScore),
		zap.Int("risk_factors", len(assessment.RiskFactors)))

	return assessment, nil
}
