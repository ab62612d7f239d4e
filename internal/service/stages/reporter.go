package stages

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

// Reporter assembles the final compliance report from the upstream stage
// outputs. The report structure itself is pure domain logic; this engine adds
// the simulated generation latency and metrics.
type Reporter struct {
	engine
}

// NewReporter creates the report generator.
func NewReporter(logger *zap.Logger, opts ...Option) *Reporter {
	r := &Reporter{}
	r.init(StageReporter, logger, opts...)
	return r
}

// Generate builds the audit-ready report.
func (r *Reporter) Generate(ctx context.Context, analysis *compliance.AnalysisResult, risk *compliance.RiskAssessment) (*compliance.Report, error) {
	r.markRequest("generate_report")
	r.logger.Info("generating compliance report")

	if err := r.simulateWork(ctx, 400*time.Millisecond); err != nil {
		r.markError()
		return nil, err
	}

	report := compliance.BuildReport(analysis, risk, r.clock.Now())

	r.logger.Info("compliance report generated",
		zap.String("report_id", report.ReportID),
		zap.Int("compliance_score", report.ExecutiveSummary.OverallComplianceScore))

	return report, nil
}
