package workflow

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
	"github.com/davidleathers/compliance-guard-backend/internal/errors"
	"github.com/davidleathers/compliance-guard-backend/internal/memorybank"
	"github.com/davidleathers/compliance-guard-backend/internal/metrics"
	"github.com/davidleathers/compliance-guard-backend/internal/service/stages"
	"github.com/davidleathers/compliance-guard-backend/internal/session"
)

type testHarness struct {
	orchestrator *Orchestrator
	sessions     *session.MemoryStore
	bank         *memorybank.Bank
	clock        *compliance.MockClock
}

func newHarness(t *testing.T, config Config, stageOpts ...stages.Option) *testHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}

	opts := append([]stages.Option{
		stages.WithClock(clock),
		stages.WithRand(rand.New(rand.NewSource(17))),
		stages.WithLatencyFactor(0),
	}, stageOpts...)

	registry, err := stages.NewRegistry(
		stages.NewMonitor([]string{"GDPR", "HIPAA", "SOX"}, logger, opts),
		stages.NewAnalyzer(logger, opts...),
		stages.NewRiskAssessor(logger, opts...),
		stages.NewReporter(logger, opts...),
	)
	require.NoError(t, err)

	sessions := session.NewMemoryStore(session.DefaultConfig(), logger, session.WithClock(clock))
	bank := memorybank.New(memorybank.DefaultConfig(), logger, memorybank.WithClock(clock))

	return &testHarness{
		orchestrator: New(config, registry, sessions, bank, logger, WithClock(clock)),
		sessions:     sessions,
		bank:         bank,
		clock:        clock,
	}
}

func testProfile() *compliance.CompanyProfile {
	return &compliance.CompanyProfile{
		CompanyID:     "acme-corp",
		Name:          "Acme Corp",
		Industry:      "technology",
		EmployeeCount: 250,
	}
}

func TestExecuteComplianceCheck(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	result, err := h.orchestrator.ExecuteComplianceCheck(ctx, testProfile())
	require.NoError(t, err)

	assert.Equal(t, "WF-20250301-100000", result.WorkflowID)
	require.NotNil(t, result.Report)
	require.NotNil(t, result.Analysis)
	require.NotNil(t, result.RiskAssessment)

	assert.Equal(t, result.Analysis.OverallScore, result.Report.ExecutiveSummary.OverallComplianceScore)
	assert.Equal(t, result.RiskAssessment.OverallRiskScore, result.Report.ExecutiveSummary.OverallRiskScore)
	assert.Equal(t, compliance.RiskScoreFromCompliance(result.Analysis.OverallScore), result.RiskAssessment.OverallRiskScore)

	metrics := result.WorkflowMetrics
	assert.Equal(t, compliance.WorkflowCompleted, metrics.Status)
	assert.Equal(t, result.Analysis.OverallScore, metrics.FinalScore)
	assert.Empty(t, metrics.Error)
	assert.Empty(t, metrics.PersistenceError)
}

func TestExecuteComplianceCheckRecordsRun(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	_, err := h.orchestrator.ExecuteComplianceCheck(ctx, testProfile())
	require.NoError(t, err)

	history := h.orchestrator.RunHistory()
	require.Len(t, history, 1, "exactly one run per check")
	assert.Equal(t, compliance.WorkflowCompleted, history[0].Status)
	assert.Equal(t, "acme-corp", history[0].CompanyID)
}

func TestExecuteComplianceCheckPersistsReport(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	result, err := h.orchestrator.ExecuteComplianceCheck(ctx, testProfile())
	require.NoError(t, err)

	entries := h.bank.RetrieveHistory("acme-corp", 1)
	require.Len(t, entries, 1)
	assert.Equal(t, result.Report.ReportID, entries[0].Report.ReportID)
	assert.Equal(t, result.Analysis.OverallScore, entries[0].ComplianceScore)
}

func TestExecuteComplianceCheckSessionLifecycle(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	_, err := h.orchestrator.ExecuteComplianceCheck(ctx, testProfile())
	require.NoError(t, err)

	records := h.sessions.SessionsForCompany(ctx, "acme-corp")
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, session.StatusCompleted, record.Status)
	assert.Equal(t, 100, record.Progress, "all four milestones reached")
	assert.Len(t, record.Interactions, 4)
	require.NotNil(t, record.FinalMetrics)
	assert.Equal(t, 4, record.FinalMetrics.TotalStagesUsed)

	collection, ok := record.Context["data_collection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, collection["sources_checked"])
}

func TestExecuteComplianceCheckInvalidProfile(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.orchestrator.ExecuteComplianceCheck(context.Background(), &compliance.CompanyProfile{})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_COMPANY_PROFILE", appErr.Code)

	assert.Empty(t, h.orchestrator.RunHistory(), "invalid input never creates a run")
}

func TestExecuteComplianceCheckStageTimeout(t *testing.T) {
	// Real latency with a sub-millisecond stage budget forces the timeout path.
	h := newHarness(t, Config{StageTimeout: time.Nanosecond, PollInterval: time.Hour},
		stages.WithLatencyFactor(1))
	ctx := context.Background()

	_, err := h.orchestrator.ExecuteComplianceCheck(ctx, testProfile())
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "STAGE_FAILED", appErr.Code)

	history := h.orchestrator.RunHistory()
	require.Len(t, history, 1)
	assert.Equal(t, compliance.WorkflowFailed, history[0].Status)
	assert.NotEmpty(t, history[0].Error)

	records := h.sessions.SessionsForCompany(ctx, "acme-corp")
	require.Len(t, records, 1)
	assert.Equal(t, session.StatusFailed, records[0].Status)
	assert.NotEmpty(t, records[0].Errors)

	assert.Empty(t, h.bank.RetrieveHistory("acme-corp", 1), "failed runs persist nothing")
}

func TestRunHistoryIsACopy(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.orchestrator.ExecuteComplianceCheck(context.Background(), testProfile())
	require.NoError(t, err)

	history := h.orchestrator.RunHistory()
	history[0].Status = compliance.WorkflowFailed

	assert.Equal(t, compliance.WorkflowCompleted, h.orchestrator.RunHistory()[0].Status)
}

func TestContinuousMonitoringLifecycle(t *testing.T) {
	h := newHarness(t, Config{StageTimeout: 0, PollInterval: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, h.orchestrator.StartContinuousMonitoring(ctx))

	err := h.orchestrator.StartContinuousMonitoring(ctx)
	require.Error(t, err, "double start must fail")

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, h.orchestrator.Shutdown(shutdownCtx))

	// The loop recorded at least the first detection pass.
	assert.GreaterOrEqual(t, h.orchestrator.StageMetrics()[stages.StageMonitor].RequestsProcessed, int64(1))
}

func TestExecuteComplianceCheckGatherFailureDiscardsCollect(t *testing.T) {
	logger := zaptest.NewLogger(t)
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}

	fast := []stages.Option{
		stages.WithClock(clock),
		stages.WithRand(rand.New(rand.NewSource(17))),
		stages.WithLatencyFactor(0),
	}
	// The monitor keeps its real latency so the stage budget below only ever
	// expires the gather branch.
	slow := []stages.Option{
		stages.WithClock(clock),
		stages.WithRand(rand.New(rand.NewSource(17))),
		stages.WithLatencyFactor(1),
	}

	registry, err := stages.NewRegistry(
		stages.NewMonitor([]string{"GDPR"}, logger, slow),
		stages.NewAnalyzer(logger, fast...),
		stages.NewRiskAssessor(logger, fast...),
		stages.NewReporter(logger, fast...),
	)
	require.NoError(t, err)

	sessions := session.NewMemoryStore(session.DefaultConfig(), logger, session.WithClock(clock))
	bank := memorybank.New(memorybank.DefaultConfig(), logger, memorybank.WithClock(clock))
	orchestrator := New(Config{StageTimeout: 50 * time.Millisecond, PollInterval: time.Hour},
		registry, sessions, bank, logger, WithClock(clock))
	ctx := context.Background()

	_, err = orchestrator.ExecuteComplianceCheck(ctx, testProfile())
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "STAGE_FAILED", appErr.Code)
	assert.Contains(t, appErr.Message, stages.StageMonitor)

	// The collect branch finished cleanly; its output must be discarded.
	analyzer := orchestrator.StageMetrics()[stages.StageAnalyzer]
	assert.Equal(t, int64(1), analyzer.RequestsProcessed, "collect ran")
	assert.Equal(t, int64(0), analyzer.ErrorCount, "collect completed before the gather expired")

	assert.Empty(t, bank.RetrieveHistory("acme-corp", 1), "no report reaches the memory bank")

	history := orchestrator.RunHistory()
	require.Len(t, history, 1)
	assert.Equal(t, compliance.WorkflowFailed, history[0].Status)

	records := sessions.SessionsForCompany(ctx, "acme-corp")
	require.Len(t, records, 1)
	assert.Equal(t, session.StatusFailed, records[0].Status)
}

func TestContinuousMonitoringCountsDetectedChanges(t *testing.T) {
	logger := zaptest.NewLogger(t)
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts := []stages.Option{
		stages.WithClock(clock),
		stages.WithRand(rand.New(rand.NewSource(17))),
		stages.WithLatencyFactor(0),
	}
	registry, err := stages.NewRegistry(
		stages.NewMonitor([]string{"GDPR"}, logger, opts),
		stages.NewAnalyzer(logger, opts...),
		stages.NewRiskAssessor(logger, opts...),
		stages.NewReporter(logger, opts...),
	)
	require.NoError(t, err)

	domainMetrics := metrics.NewRegistry(prometheus.NewRegistry())
	sessions := session.NewMemoryStore(session.DefaultConfig(), logger, session.WithClock(clock))
	bank := memorybank.New(memorybank.DefaultConfig(), logger, memorybank.WithClock(clock))
	orchestrator := New(Config{PollInterval: time.Millisecond}, registry, sessions, bank, logger,
		WithClock(clock), WithMetrics(domainMetrics))

	require.NoError(t, orchestrator.StartContinuousMonitoring(context.Background()))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(domainMetrics.RegulatoryChanges) > 0
	}, 2*time.Second, 5*time.Millisecond, "roughly a fifth of detection passes flag a change")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, orchestrator.Shutdown(shutdownCtx))
}

func TestStageMetricsAfterCheck(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.orchestrator.ExecuteComplianceCheck(context.Background(), testProfile())
	require.NoError(t, err)

	metrics := h.orchestrator.StageMetrics()
	assert.Equal(t, int64(1), metrics[stages.StageMonitor].RequestsProcessed)
	assert.Equal(t, int64(2), metrics[stages.StageAnalyzer].RequestsProcessed, "collect plus analyze")
	assert.Equal(t, int64(1), metrics[stages.StageRisk].RequestsProcessed)
	assert.Equal(t, int64(1), metrics[stages.StageReporter].RequestsProcessed)
}
