package memorybank

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

const (
	// perCompanyCompactionThreshold is the entry count above which a single
	// company's history is compacted.
	perCompanyCompactionThreshold = 100

	// recentKeepCount is how many most-recent entries survive compaction
	// unconditionally.
	recentKeepCount = 50

	// mustKeepScoreCeiling marks entries as must-keep during compaction when
	// their compliance score falls below it.
	mustKeepScoreCeiling = 70
)

// Archiver is an optional durable sink the bank writes through to. Archive
// failures are logged and swallowed; the in-memory store is authoritative.
type Archiver interface {
	ArchiveEntry(ctx context.Context, entry *Entry) error
}

// Config holds memory bank tuning.
type Config struct {
	// MaxEntries is the global entry count across all companies that triggers
	// a compaction pass.
	MaxEntries int
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{MaxEntries: 10000}
}

// Bank is the in-process compliance history store: append-only per-company
// entries, an audit trail, and volume-triggered compaction. All access goes
// through its methods; construct one per orchestrator (or per test) rather
// than sharing a process-wide global.
type Bank struct {
	mu sync.RWMutex

	config   Config
	clock    compliance.Clock
	logger   *zap.Logger
	archiver Archiver

	entries    map[string][]*Entry
	auditTrail []AuditRecord

	totalStored    int64
	compactions    int64
	lastCompaction time.Time
	entrySeq       int64
}

// Option configures a Bank.
type Option func(*Bank)

// WithClock injects a clock, used by tests for deterministic timestamps.
func WithClock(clock compliance.Clock) Option {
	return func(b *Bank) { b.clock = clock }
}

// WithArchiver attaches a durable write-through sink.
func WithArchiver(archiver Archiver) Option {
	return func(b *Bank) { b.archiver = archiver }
}

// New creates a memory bank.
func New(config Config, logger *zap.Logger, opts ...Option) *Bank {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	b := &Bank{
		config:  config,
		clock:   compliance.RealClock{},
		logger:  logger.Named("memorybank"),
		entries: make(map[string][]*Entry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store appends one compliance check for a company and returns the new entry
// ID. It never fails for well-formed payloads; missing report sections are
// recorded as zero values.
func (b *Bank) Store(ctx context.Context, companyID string, report *compliance.Report) (string, error) {
	now := b.clock.Now()

	entry := &Entry{
		CompanyID:   companyID,
		Timestamp:   now,
		KeyFindings: extractKeyFindings(report),
	}
	if report != nil {
		entry.ComplianceScore = report.ExecutiveSummary.OverallComplianceScore
		entry.RiskScore = report.ExecutiveSummary.OverallRiskScore
		entry.GapCount = len(report.DetailedAnalysis.GapBreakdown)
		entry.RegulationScores = regulationScores(report)
		entry.Report = report
	}

	b.mu.Lock()
	b.entrySeq++
	entry.EntryID = newEntryID(companyID, now, b.entrySeq)
	b.entries[companyID] = append(b.entries[companyID], entry)
	b.auditTrail = append(b.auditTrail, AuditRecord{
		Action:          "compliance_check_stored",
		CompanyID:       companyID,
		EntryID:         entry.EntryID,
		Timestamp:       now,
		ComplianceScore: entry.ComplianceScore,
	})
	b.totalStored++

	if b.countLocked() > b.config.MaxEntries {
		b.compactLocked()
	}
	b.mu.Unlock()

	if b.archiver != nil {
		if err := b.archiver.ArchiveEntry(ctx, entry); err != nil {
			b.logger.Warn("entry archive failed",
				zap.String("entry_id", entry.EntryID),
				zap.String("company_id", companyID),
				zap.Error(err))
		}
	}

	b.logger.Info("stored compliance check",
		zap.String("entry_id", entry.EntryID),
		zap.String("company_id", companyID),
		zap.Int("compliance_score", entry.ComplianceScore))

	return entry.EntryID, nil
}

// RetrieveHistory returns a company's entries within the lookback window,
// newest first. Unknown companies yield an empty slice, never an error.
func (b *Bank) RetrieveHistory(companyID string, lookbackDays int) []*Entry {
	cutoff := b.clock.Now().AddDate(0, 0, -lookbackDays)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var history []*Entry
	for _, entry := range b.entries[companyID] {
		if !entry.Timestamp.Before(cutoff) {
			history = append(history, entry)
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})
	return history
}

// Metrics reports bank health counters.
type Metrics struct {
	TotalStored          int64     `json:"total_stored"`
	CompactionsPerformed int64     `json:"compactions_performed"`
	LastCompaction       time.Time `json:"last_compaction,omitzero"`
	CurrentEntries       int       `json:"current_entries"`
	CompaniesTracked     int       `json:"companies_tracked"`
	AuditTrailEntries    int       `json:"audit_trail_entries"`
	MemoryHealth         string    `json:"memory_health"`
}

// Metrics returns a snapshot of the bank's counters.
func (b *Bank) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	current := b.countLocked()
	health := "good"
	if float64(current) >= float64(b.config.MaxEntries)*0.8 {
		health = "needs_compaction"
	}

	return Metrics{
		TotalStored:          b.totalStored,
		CompactionsPerformed: b.compactions,
		LastCompaction:       b.lastCompaction,
		CurrentEntries:       current,
		CompaniesTracked:     len(b.entries),
		AuditTrailEntries:    len(b.auditTrail),
		MemoryHealth:         health,
	}
}

// AuditTrail returns a copy of the audit trail.
func (b *Bank) AuditTrail() []AuditRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	trail := make([]AuditRecord, len(b.auditTrail))
	copy(trail, b.auditTrail)
	return trail
}

func (b *Bank) countLocked() int {
	total := 0
	for _, entries := range b.entries {
		total += len(entries)
	}
	return total
}

// compactLocked runs one compaction pass over every company whose entry count
// exceeds the per-company threshold. Kept set = must-keep entries (low score
// or high-severity finding) unioned with the 50 most recent, deduplicated by
// entry ID keeping the first occurrence. Caller holds b.mu.
func (b *Bank) compactLocked() {
	b.logger.Info("performing memory compaction")

	for companyID, entries := range b.entries {
		if len(entries) <= perCompanyCompactionThreshold {
			continue
		}

		var mustKeep []*Entry
		for _, entry := range entries {
			if entry.ComplianceScore < mustKeepScoreCeiling || entry.hasHighSeverityFinding() {
				mustKeep = append(mustKeep, entry)
			}
		}

		recent := make([]*Entry, len(entries))
		copy(recent, entries)
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].Timestamp.After(recent[j].Timestamp)
		})
		if len(recent) > recentKeepCount {
			recent = recent[:recentKeepCount]
		}

		seen := make(map[string]bool, len(mustKeep)+len(recent))
		var compacted []*Entry
		for _, entry := range append(mustKeep, recent...) {
			if seen[entry.EntryID] {
				continue
			}
			seen[entry.EntryID] = true
			compacted = append(compacted, entry)
		}

		b.logger.Info("compacted company history",
			zap.String("company_id", companyID),
			zap.Int("before", len(entries)),
			zap.Int("after", len(compacted)))
		b.entries[companyID] = compacted
	}

	b.compactions++
	b.lastCompaction = b.clock.Now()
}

func regulationScores(report *compliance.Report) map[string]int {
	scores := make(map[string]int, len(report.DetailedAnalysis.RegulationPerformance))
	for regulation, perf := range report.DetailedAnalysis.RegulationPerformance {
		scores[regulation] = perf.Score
	}
	return scores
}
