package compliance

import "time"

// WorkflowStatus is the terminal (or in-flight) state of one workflow run.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// WorkflowRun records one end-to-end pipeline execution for one company. It is
// created at orchestration start, mutated exactly once at completion or
// failure, and immutable thereafter.
type WorkflowRun struct {
	WorkflowID string         `json:"workflow_id"`
	CompanyID  string         `json:"company_id"`
	StartedAt  time.Time      `json:"timestamp"`
	Status     WorkflowStatus `json:"status"`
	Duration   time.Duration  `json:"duration"`
	FinalScore int            `json:"final_score"`
	RiskScore  int            `json:"risk_score"`
	Error      string         `json:"error,omitempty"`

	// PersistenceError surfaces a best-effort memory-bank write failure
	// without affecting Status.
	PersistenceError string `json:"persistence_error,omitempty"`
}

// NewWorkflowID derives the run identifier from the start timestamp.
func NewWorkflowID(start time.Time) string {
	return "WF-" + start.Format("20060102-150405")
}

// CheckResult is what a completed compliance check returns to the caller.
type CheckResult struct {
	WorkflowID      string          `json:"workflow_id"`
	Report          *Report         `json:"report"`
	Analysis        *AnalysisResult `json:"analysis"`
	RiskAssessment  *RiskAssessment `json:"risk_assessment"`
	WorkflowMetrics WorkflowRun     `json:"workflow_metrics"`
}
