package memorybank

import (
	"sort"
	"strings"
)

// Benchmark is one industry/regulation benchmark row.
type Benchmark struct {
	AverageScore     int      `json:"average_score"`
	TopPerformers    int      `json:"top_performers"`
	CommonChallenges []string `json:"common_challenges"`
}

// BenchmarkLookup carries a benchmark lookup outcome. A miss is a value, not
// an error, and enumerates the industries the table knows about.
type BenchmarkLookup struct {
	Found           bool      `json:"found"`
	Industry        string    `json:"industry,omitempty"`
	Regulation      string    `json:"regulation,omitempty"`
	Benchmark       Benchmark `json:"benchmarks,omitempty"`
	ValidIndustries []string  `json:"valid_industries,omitempty"`
}

var industryBenchmarks = map[string]map[string]Benchmark{
	"technology": {
		"GDPR": {AverageScore: 82, TopPerformers: 95, CommonChallenges: []string{"data_mapping", "consent_management"}},
		"SOX":  {AverageScore: 88, TopPerformers: 96, CommonChallenges: []string{"internal_controls", "documentation"}},
	},
	"healthcare": {
		"HIPAA": {AverageScore: 85, TopPerformers: 98, CommonChallenges: []string{"phi_protection", "breach_response"}},
		"GDPR":  {AverageScore: 78, TopPerformers: 92, CommonChallenges: []string{"cross_border_transfers", "patient_rights"}},
	},
	"finance": {
		"SOX":  {AverageScore: 90, TopPerformers: 98, CommonChallenges: []string{"financial_reporting", "audit_trails"}},
		"GDPR": {AverageScore: 80, TopPerformers: 94, CommonChallenges: []string{"customer_data", "consent_management"}},
	},
}

// IndustryBenchmark resolves a static benchmark, case-insensitively on both
// keys.
func (b *Bank) IndustryBenchmark(industry, regulation string) BenchmarkLookup {
	if byRegulation, ok := industryBenchmarks[strings.ToLower(industry)]; ok {
		if benchmark, ok := byRegulation[strings.ToUpper(regulation)]; ok {
			return BenchmarkLookup{
				Found:      true,
				Industry:   industry,
				Regulation: regulation,
				Benchmark:  benchmark,
			}
		}
	}

	industries := make([]string, 0, len(industryBenchmarks))
	for name := range industryBenchmarks {
		industries = append(industries, name)
	}
	sort.Strings(industries)
	return BenchmarkLookup{Found: false, ValidIndustries: industries}
}
