package memorybank

import (
	"fmt"
	"sort"
	"time"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

// KeyFindings is the summarized view of one stored compliance check, extracted
// at store time so trend analysis never has to walk full report payloads.
type KeyFindings struct {
	OverallScore        int      `json:"overall_score"`
	RiskLevel           string   `json:"risk_level"`
	HighPriorityGaps    []string `json:"high_priority_gaps"`
	TopRegulations      []string `json:"top_regulations"`
	RecommendationCount int      `json:"recommendation_count"`
}

// Entry is one immutable memory-bank record. Entries are created on store and
// never mutated; compaction may drop them, nothing updates them.
type Entry struct {
	EntryID          string             `json:"entry_id"`
	CompanyID        string             `json:"company_id"`
	Timestamp        time.Time          `json:"timestamp"`
	ComplianceScore  int                `json:"compliance_score"`
	RiskScore        int                `json:"risk_score"`
	KeyFindings      KeyFindings        `json:"key_findings"`
	GapCount         int                `json:"gap_count"`
	RegulationScores map[string]int     `json:"regulation_scores"`
	Report           *compliance.Report `json:"raw_data"`
}

// AuditRecord is one append-only audit-trail line.
type AuditRecord struct {
	Action          string    `json:"action"`
	CompanyID       string    `json:"company_id"`
	EntryID         string    `json:"entry_id"`
	Timestamp       time.Time `json:"timestamp"`
	ComplianceScore int       `json:"compliance_score"`
}

// newEntryID derives the entry identifier from the company, the store time,
// and a per-bank sequence. The sequence keeps same-instant stores distinct so
// compaction's dedupe-by-ID never collapses two different entries.
func newEntryID(companyID string, t time.Time, seq int64) string {
	return fmt.Sprintf("COMP-%s-%s-%d", companyID, t.Format("20060102-150405.000000000"), seq)
}

// extractKeyFindings builds the findings summary from a report payload.
// Missing report sections degrade to zero values rather than failing.
func extractKeyFindings(report *compliance.Report) KeyFindings {
	if report == nil {
		return KeyFindings{RiskLevel: "unknown"}
	}

	findings := KeyFindings{
		OverallScore:        report.ExecutiveSummary.OverallComplianceScore,
		RiskLevel:           report.ExecutiveSummary.ComplianceStatus,
		RecommendationCount: len(report.Recommendations.ImmediateActions),
	}
	if findings.RiskLevel == "" {
		findings.RiskLevel = "unknown"
	}

	for _, gaps := range report.DetailedAnalysis.GapBreakdown {
		for _, gap := range gaps {
			if gap.Severity == compliance.SeverityHigh {
				findings.HighPriorityGaps = append(findings.HighPriorityGaps, gap.Description)
			}
		}
	}
	sort.Strings(findings.HighPriorityGaps)

	regulations := make([]string, 0, len(report.DetailedAnalysis.RegulationPerformance))
	for regulation := range report.DetailedAnalysis.RegulationPerformance {
		regulations = append(regulations, regulation)
	}
	sort.Strings(regulations)
	if len(regulations) > 3 {
		regulations = regulations[:3]
	}
	findings.TopRegulations = regulations

	return findings
}

// hasHighSeverityFinding reports whether the entry mentions a high-severity
// gap. Compaction never evicts such entries.
func (e *Entry) hasHighSeverityFinding() bool {
	return len(e.KeyFindings.HighPriorityGaps) > 0
}
