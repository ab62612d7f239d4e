package memorybank

import (
	"fmt"
	"sort"
	"time"

	"github.com/davidleathers/compliance-guard-backend/internal/errors"
)

const (
	trendLookbackDays  = 180
	recurringGapLimit  = 5
	improvementLimit   = 3
	maxTrendConfidence = 95

	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// TrendReport is the read-side trend analysis over a company's stored history.
type TrendReport struct {
	CompanyID          string    `json:"company_id"`
	AnalysisPeriod     string    `json:"analysis_period"`
	CurrentScore       int       `json:"current_score"`
	AverageScore       float64   `json:"average_score"`
	ScoreTrend         string    `json:"score_trend"`
	RiskTrend          string    `json:"risk_trend"`
	RecurringGaps      []string  `json:"recurring_gaps"`
	ImprovementAreas   []string  `json:"improvement_areas"`
	ConfidenceInTrends int       `json:"confidence_in_trends"`
	AnalysisTimestamp  time.Time `json:"analysis_timestamp"`
}

// Trends analyzes the 180-day window of a company's history. It errors only
// when the window holds no entries at all.
func (b *Bank) Trends(companyID string) (*TrendReport, error) {
	history := b.RetrieveHistory(companyID, trendLookbackDays)
	if len(history) == 0 {
		return nil, errors.NewDomainError("NO_HISTORY", fmt.Sprintf("no compliance history found for %s", companyID))
	}

	// history is newest first; trend compares the newest entry against the
	// oldest one in the window.
	newest := history[0]
	oldest := history[len(history)-1]

	scoreTrend := TrendInsufficientData
	riskTrend := TrendInsufficientData
	if len(history) >= 2 {
		scoreTrend = direction(newest.ComplianceScore, oldest.ComplianceScore)
		// Risk improves when it falls.
		riskTrend = direction(oldest.RiskScore, newest.RiskScore)
	}

	sum := 0
	for _, entry := range history {
		sum += entry.ComplianceScore
	}

	recurring, counts := recurringGaps(history)

	confidence := len(history) * 10
	if confidence > maxTrendConfidence {
		confidence = maxTrendConfidence
	}

	return &TrendReport{
		CompanyID:          companyID,
		AnalysisPeriod:     fmt.Sprintf("Last %d assessments", len(history)),
		CurrentScore:       newest.ComplianceScore,
		AverageScore:       float64(sum) / float64(len(history)),
		ScoreTrend:         scoreTrend,
		RiskTrend:          riskTrend,
		RecurringGaps:      recurring,
		ImprovementAreas:   improvementAreas(recurring, counts),
		ConfidenceInTrends: confidence,
		AnalysisTimestamp:  b.clock.Now(),
	}, nil
}

func direction(newer, older int) string {
	switch {
	case newer > older:
		return TrendImproving
	case newer < older:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// recurringGaps returns the most frequent high-severity gap descriptions in
// the window (at most five), ties broken by first-seen order, together with
// their occurrence counts.
func recurringGaps(history []*Entry) ([]string, map[string]int) {
	counts := make(map[string]int)
	var firstSeen []string
	for _, entry := range history {
		for _, gap := range entry.KeyFindings.HighPriorityGaps {
			if counts[gap] == 0 {
				firstSeen = append(firstSeen, gap)
			}
			counts[gap]++
		}
	}

	ranked := make([]string, len(firstSeen))
	copy(ranked, firstSeen)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})

	if len(ranked) > recurringGapLimit {
		ranked = ranked[:recurringGapLimit]
	}
	return ranked, counts
}

// improvementAreas suggests remediation for gaps that recur at least twice,
// capped at three suggestions.
func improvementAreas(ranked []string, counts map[string]int) []string {
	var areas []string
	for _, gap := range ranked {
		if len(areas) == improvementLimit {
			break
		}
		if counts[gap] >= 2 {
			areas = append(areas, "Address recurring gap: "+gap)
		}
	}
	return areas
}
