// Package workflow coordinates the four-stage compliance check pipeline:
// parallel data collection, sequential analysis, risk assessment, and report
// generation, with session tracking and memory-bank persistence around it.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
	"github.com/davidleathers/compliance-guard-backend/internal/errors"
	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/compliance-guard-backend/internal/memorybank"
	"github.com/davidleathers/compliance-guard-backend/internal/metrics"
	"github.com/davidleathers/compliance-guard-backend/internal/service/stages"
	"github.com/davidleathers/compliance-guard-backend/internal/session"
)

const (
	// monitorErrorBackoff is how long the continuous monitoring loop waits
	// after a failed detection pass before retrying.
	monitorErrorBackoff = 5 * time.Minute

	workflowType = "compliance_check"
)

// Config holds orchestrator tuning.
type Config struct {
	// StageTimeout bounds each pipeline stage individually. Zero disables
	// per-stage timeouts.
	StageTimeout time.Duration

	// PollInterval is the continuous monitoring cadence.
	PollInterval time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		StageTimeout: 2 * time.Minute,
		PollInterval: time.Hour,
	}
}

// Orchestrator drives compliance checks across the stage engines. All
// dependencies are injected; one orchestrator owns one registry, one session
// store, and one memory bank.
type Orchestrator struct {
	config   Config
	registry *stages.Registry
	sessions session.Store
	bank     *memorybank.Bank
	logger   *zap.Logger
	clock    compliance.Clock
	tracer   trace.Tracer
	metrics  *metrics.Registry

	mu      sync.Mutex
	history []compliance.WorkflowRun

	monitorMu     sync.Mutex
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a clock for tests.
func WithClock(clock compliance.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithMetrics attaches the Prometheus registry. Without it the monitoring
// loop's counters are skipped.
func WithMetrics(registry *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = registry }
}

// New creates an orchestrator over the given stages and stores.
func New(config Config, registry *stages.Registry, sessions session.Store, bank *memorybank.Bank, logger *zap.Logger, opts ...Option) *Orchestrator {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	o := &Orchestrator{
		config:   config,
		registry: registry,
		sessions: sessions,
		bank:     bank,
		logger:   logger.Named("orchestrator"),
		clock:    compliance.RealClock{},
		tracer:   otel.Tracer("workflow"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteComplianceCheck runs the full pipeline for one company. Regulatory
// and company data collection run in parallel; analysis, risk assessment, and
// reporting run sequentially on their outputs. The report is persisted to the
// memory bank best-effort: a storage failure is surfaced on the workflow
// record, never as a check failure.
func (o *Orchestrator) ExecuteComplianceCheck(ctx context.Context, profile *compliance.CompanyProfile) (*compliance.CheckResult, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	start := o.clock.Now()
	workflowID := compliance.NewWorkflowID(start)

	ctx, span := o.tracer.Start(ctx, "compliance_check", trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("company.id", profile.CompanyID),
	))
	defer span.End()

	logger := telemetry.WithTraceContext(ctx, o.logger)
	logger.Info("starting compliance check workflow",
		zap.String("workflow_id", workflowID),
		zap.String("company_id", profile.CompanyID))

	sessionID, err := o.sessions.Create(ctx, profile.CompanyID, workflowType)
	if err != nil {
		return nil, errors.NewDomainError("SESSION_CREATE_FAILED", "could not open workflow session").WithCause(err)
	}

	// Phase 1: regulatory and company data collection in parallel. Either
	// failure aborts the workflow.
	var (
		dataset  *compliance.RegulatoryDataset
		enriched *compliance.EnrichedCompanyData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var stageErr error
		dataset, stageErr = o.runGather(gctx, sessionID)
		return stageErr
	})
	g.Go(func() error {
		var stageErr error
		enriched, stageErr = o.runCollect(gctx, profile)
		return stageErr
	})
	if err := g.Wait(); err != nil {
		return nil, o.failWorkflow(ctx, workflowID, profile.CompanyID, sessionID, start, err)
	}

	o.sessions.UpdateContext(ctx, sessionID, map[string]any{
		"data_collection": map[string]any{
			"sources_checked":     dataset.SourcesChecked,
			"successful_fetches":  dataset.SuccessfulFetches,
			"policies_analyzed":   enriched.PoliciesAnalyzed,
			"systems_inventoried": enriched.SystemsInventoried,
		},
	})

	// Phase 2: sequential analysis pipeline.
	analysis, err := o.runAnalyze(ctx, sessionID, enriched, dataset)
	if err != nil {
		return nil, o.failWorkflow(ctx, workflowID, profile.CompanyID, sessionID, start, err)
	}

	risk, err := o.runAssess(ctx, sessionID, analysis)
	if err != nil {
		return nil, o.failWorkflow(ctx, workflowID, profile.CompanyID, sessionID, start, err)
	}

	// Phase 3: report generation.
	report, err := o.runGenerate(ctx, sessionID, analysis, risk)
	if err != nil {
		return nil, o.failWorkflow(ctx, workflowID, profile.CompanyID, sessionID, start, err)
	}

	// Phase 4: best-effort persistence.
	persistenceErr := ""
	if o.bank != nil {
		if _, storeErr := o.bank.Store(ctx, profile.CompanyID, report); storeErr != nil {
			persistenceErr = storeErr.Error()
			o.logger.Warn("report persistence failed",
				zap.String("workflow_id", workflowID),
				zap.Error(storeErr))
		}
	}

	run := compliance.WorkflowRun{
		WorkflowID:       workflowID,
		CompanyID:        profile.CompanyID,
		StartedAt:        start,
		Status:           compliance.WorkflowCompleted,
		Duration:         o.clock.Now().Sub(start),
		FinalScore:       analysis.OverallScore,
		RiskScore:        risk.OverallRiskScore,
		PersistenceError: persistenceErr,
	}
	o.appendRun(run)
	o.sessions.End(ctx, sessionID, session.StatusCompleted)

	logger.Info("compliance check completed",
		zap.String("workflow_id", workflowID),
		zap.Duration("duration", run.Duration),
		zap.Int("final_score", run.FinalScore),
		zap.Int("risk_score", run.RiskScore))

	return &compliance.CheckResult{
		WorkflowID:      workflowID,
		Report:          report,
		Analysis:        analysis,
		RiskAssessment:  risk,
		WorkflowMetrics: run,
	}, nil
}

// failWorkflow records the failure on the run history and the session, then
// returns the wrapped stage error for the caller.
func (o *Orchestrator) failWorkflow(ctx context.Context, workflowID, companyID, sessionID string, start time.Time, err error) error {
	telemetry.WithTraceContext(ctx, o.logger).Error("compliance workflow failed",
		zap.String("workflow_id", workflowID),
		zap.String("company_id", companyID),
		zap.Error(err))

	o.appendRun(compliance.WorkflowRun{
		WorkflowID: workflowID,
		CompanyID:  companyID,
		StartedAt:  start,
		Status:     compliance.WorkflowFailed,
		Duration:   o.clock.Now().Sub(start),
		Error:      err.Error(),
	})

	o.sessions.RecordError(ctx, sessionID, err.Error())
	o.sessions.End(ctx, sessionID, session.StatusFailed)
	return err
}

func (o *Orchestrator) appendRun(run compliance.WorkflowRun) {
	o.mu.Lock()
	o.history = append(o.history, run)
	o.mu.Unlock()
}

// stageContext applies the per-stage timeout, if configured.
func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.StageTimeout > 0 {
		return context.WithTimeout(ctx, o.config.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) runGather(ctx context.Context, sessionID string) (*compliance.RegulatoryDataset, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	started := time.Now()
	dataset, err := o.registry.Monitor.Gather(ctx)
	if err != nil {
		return nil, errors.NewStageError(stages.StageMonitor, "regulatory data gathering failed").WithCause(err)
	}

	o.sessions.RecordInteraction(ctx, sessionID, stages.StageMonitor,
		map[string]any{"regulations": o.registry.Monitor.Regulations()},
		dataset, time.Since(started))
	return dataset, nil
}

func (o *Orchestrator) runCollect(ctx context.Context, profile *compliance.CompanyProfile) (*compliance.EnrichedCompanyData, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	enriched, err := o.registry.Analyzer.Collect(ctx, profile)
	if err != nil {
		return nil, errors.NewStageError(stages.StageAnalyzer, "company data collection failed").WithCause(err)
	}
	return enriched, nil
}

func (o *Orchestrator) runAnalyze(ctx context.Context, sessionID string, enriched *compliance.EnrichedCompanyData, dataset *compliance.RegulatoryDataset) (*compliance.AnalysisResult, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	started := time.Now()
	analysis, err := o.registry.Analyzer.Analyze(ctx, enriched, dataset)
	if err != nil {
		return nil, errors.NewStageError(stages.StageAnalyzer, "compliance analysis failed").WithCause(err)
	}

	o.sessions.RecordInteraction(ctx, sessionID, stages.StageAnalyzer, enriched, analysis, time.Since(started))
	return analysis, nil
}

func (o *Orchestrator) runAssess(ctx context.Context, sessionID string, analysis *compliance.AnalysisResult) (*compliance.RiskAssessment, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	started := time.Now()
	risk, err := o.registry.Risk.Assess(ctx, analysis)
	if err != nil {
		return nil, errors.NewStageError(stages.StageRisk, "risk assessment failed").WithCause(err)
	}

	o.sessions.RecordInteraction(ctx, sessionID, stages.StageRisk, analysis, risk, time.Since(started))
	return risk, nil
}

func (o *Orchestrator) runGenerate(ctx context.Context, sessionID string, analysis *compliance.AnalysisResult, risk *compliance.RiskAssessment) (*compliance.Report, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	started := time.Now()
	report, err := o.registry.Reporter.Generate(ctx, analysis, risk)
	if err != nil {
		return nil, errors.NewStageError(stages.StageReporter, "report generation failed").WithCause(err)
	}

	o.sessions.RecordInteraction(ctx, sessionID, stages.StageReporter, analysis, report, time.Since(started))
	return report, nil
}

// RunHistory returns a copy of the workflow run history, oldest first.
func (o *Orchestrator) RunHistory() []compliance.WorkflowRun {
	o.mu.Lock()
	defer o.mu.Unlock()

	history := make([]compliance.WorkflowRun, len(o.history))
	copy(history, o.history)
	return history
}

// StageMetrics snapshots every stage engine's counters.
func (o *Orchestrator) StageMetrics() map[string]stages.Metrics {
	return o.registry.MetricsByStage()
}

// StartContinuousMonitoring launches the background change-detection loop.
// Detected changes are logged; failed passes back off before retrying. Calling
// it twice without a shutdown is an error.
func (o *Orchestrator) StartContinuousMonitoring(ctx context.Context) error {
	o.monitorMu.Lock()
	defer o.monitorMu.Unlock()

	if o.monitorCancel != nil {
		return errors.NewDomainError("MONITORING_ACTIVE", "continuous monitoring already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	o.monitorCancel = cancel
	o.monitorDone = make(chan struct{})

	go o.monitoringLoop(ctx, o.monitorDone)

	o.logger.Info("continuous compliance monitoring started",
		zap.Duration("poll_interval", o.config.PollInterval))
	return nil
}

func (o *Orchestrator) monitoringLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		wait := o.config.PollInterval

		report, err := o.registry.Monitor.DetectChanges(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				o.logger.Info("monitoring loop stopped")
				return
			}
			o.logger.Error("monitoring loop error", zap.Error(err))
			wait = monitorErrorBackoff
		case report.HasChanges:
			if o.metrics != nil {
				o.metrics.RegulatoryChanges.Add(float64(len(report.Changes)))
			}
			for _, change := range report.Changes {
				o.logger.Info("regulatory change detected",
					zap.String("regulation", change.Regulation),
					zap.String("change_type", change.ChangeType),
					zap.String("impact_level", change.ImpactLevel),
					zap.String("description", change.Description))
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.logger.Info("monitoring loop stopped")
			return
		case <-timer.C:
		}
	}
}

// Shutdown stops continuous monitoring and shuts down every stage engine.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("shutting down orchestrator")

	o.monitorMu.Lock()
	if o.monitorCancel != nil {
		o.monitorCancel()
		done := o.monitorDone
		o.monitorCancel = nil
		o.monitorDone = nil
		o.monitorMu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("monitoring loop did not stop: %w", ctx.Err())
		}
	} else {
		o.monitorMu.Unlock()
	}

	return o.registry.Shutdown(ctx)
}
