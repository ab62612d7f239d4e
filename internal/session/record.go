package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Stage progress milestones. Progress only ever ratchets upward.
var stageMilestones = map[string]int{
	"regulation_monitor":  25,
	"compliance_analyzer": 50,
	"risk_assessor":       75,
	"report_generator":    100,
}

// PayloadSummary is what gets recorded about a stage's input or output. Raw
// payloads are never stored in a session.
type PayloadSummary struct {
	DataType           string `json:"data_type"`
	SizeEstimate       int    `json:"size_estimate"`
	HasCompanyData     bool   `json:"has_company_data,omitempty"`
	HasRegulatoryData  bool   `json:"has_regulatory_data,omitempty"`
	HasComplianceScore bool   `json:"has_compliance_score,omitempty"`
	HasRiskAssessment  bool   `json:"has_risk_assessment,omitempty"`
	HasRecommendations bool   `json:"has_recommendations,omitempty"`
}

// Interaction is one recorded stage invocation within a session.
type Interaction struct {
	Stage          string         `json:"stage"`
	Timestamp      time.Time      `json:"timestamp"`
	InputSummary   PayloadSummary `json:"input_summary"`
	OutputSummary  PayloadSummary `json:"output_summary"`
	ProcessingTime time.Duration  `json:"processing_time"`
}

// FinalMetrics is computed once, when a session ends.
type FinalMetrics struct {
	TotalStagesUsed       int           `json:"total_stages_used"`
	TotalInteractions     int           `json:"total_interactions"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	DurationMinutes       float64       `json:"session_duration_minutes"`
	SuccessRate           int           `json:"success_rate"`
}

// Record is one workflow session. A record lives in exactly one of the active
// set or the history set, never both.
type Record struct {
	SessionID    string    `json:"session_id"`
	CompanyID    string    `json:"company_id"`
	WorkflowType string    `json:"workflow_type"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	EndedAt      time.Time `json:"ended_at,omitzero"`
	Status       Status    `json:"status"`

	CurrentStep  string         `json:"current_step"`
	Progress     int            `json:"workflow_progress"`
	Context      map[string]any `json:"context"`
	Interactions []Interaction  `json:"agent_interactions"`
	Errors       []string       `json:"errors_encountered"`
	StagesUsed   []string       `json:"stages_used"`

	FinalMetrics *FinalMetrics `json:"final_metrics,omitempty"`
}

// AppendInteraction records a summarized stage invocation, ratchets progress
// to the stage's milestone, and advances the current step. Raw payloads are
// reduced to summaries before storage.
func (r *Record) AppendInteraction(stage string, input, output any, elapsed time.Duration, now time.Time) {
	r.Interactions = append(r.Interactions, Interaction{
		Stage:          stage,
		Timestamp:      now,
		InputSummary:   summarizePayload(input),
		OutputSummary:  summarizePayload(output),
		ProcessingTime: elapsed,
	})
	r.StagesUsed = append(r.StagesUsed, stage)

	if milestone, ok := stageMilestones[stage]; ok && milestone > r.Progress {
		r.Progress = milestone
	}
	r.CurrentStep = "completed_" + stage
	r.LastActivity = now
}

// Finish marks the record ended and computes its final metrics.
func (r *Record) Finish(status Status, endedAt time.Time) {
	r.EndedAt = endedAt
	r.Status = status
	r.FinalMetrics = finalMetrics(r, endedAt)
}

func finalMetrics(r *Record, endedAt time.Time) *FinalMetrics {
	distinct := make(map[string]bool, len(r.StagesUsed))
	for _, stage := range r.StagesUsed {
		distinct[stage] = true
	}

	var avg time.Duration
	if len(r.Interactions) > 0 {
		var total time.Duration
		for _, interaction := range r.Interactions {
			total += interaction.ProcessingTime
		}
		avg = total / time.Duration(len(r.Interactions))
	}

	success := 0
	if r.Status == StatusCompleted {
		success = 100
	}

	return &FinalMetrics{
		TotalStagesUsed:       len(distinct),
		TotalInteractions:     len(r.Interactions),
		AverageProcessingTime: avg,
		DurationMinutes:       endedAt.Sub(r.CreatedAt).Minutes(),
		SuccessRate:           success,
	}
}

// clone returns a detached copy so readers cannot mutate store state behind
// the store's back.
func (r *Record) clone() *Record {
	out := *r

	out.Context = make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		out.Context[k] = cloneValue(v)
	}
	out.Interactions = append([]Interaction(nil), r.Interactions...)
	out.Errors = append([]string(nil), r.Errors...)
	out.StagesUsed = append([]string(nil), r.StagesUsed...)
	if r.FinalMetrics != nil {
		m := *r.FinalMetrics
		out.FinalMetrics = &m
	}
	return &out
}

func cloneValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, inner := range m {
			out[k] = cloneValue(inner)
		}
		return out
	}
	return v
}

// summarizePayload reduces an arbitrary stage payload to its summary flags.
func summarizePayload(v any) PayloadSummary {
	encoded, err := json.Marshal(v)
	if err != nil {
		return PayloadSummary{DataType: "unencodable"}
	}
	text := string(encoded)
	lower := strings.ToLower(text)

	return PayloadSummary{
		DataType:           dataType(v),
		SizeEstimate:       len(text),
		HasCompanyData:     strings.Contains(text, "company_id"),
		HasRegulatoryData:  containsAny(text, "GDPR", "HIPAA", "SOX"),
		HasComplianceScore: strings.Contains(lower, "compliance_score") || strings.Contains(lower, "overall_score"),
		HasRiskAssessment:  strings.Contains(lower, "risk"),
		HasRecommendations: strings.Contains(lower, "recommendation"),
	}
}

func dataType(v any) string {
	if v == nil {
		return "nil"
	}
	name := fmt.Sprintf("%T", v)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
