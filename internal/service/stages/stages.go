// Package stages implements the four pipeline stage engines behind a
// compliance check: regulation monitoring, compliance analysis, risk
// assessment, and report generation. The engines simulate their external
// integrations with injectable randomness so tests stay deterministic.
package stages

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

// Stage names. The session store keys its progress milestones on these.
const (
	StageMonitor  = "regulation_monitor"
	StageAnalyzer = "compliance_analyzer"
	StageRisk     = "risk_assessor"
	StageReporter = "report_generator"
)

// Metrics is a snapshot of one stage's counters.
type Metrics struct {
	RequestsProcessed int64     `json:"requests_processed"`
	ErrorCount        int64     `json:"errors"`
	LastActivity      time.Time `json:"last_activity,omitzero"`
}

// CallRecord is one line of a stage's append-only call history.
type CallRecord struct {
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Stage is the surface every engine shares.
type Stage interface {
	Name() string
	Metrics() Metrics
	History() []CallRecord
	Shutdown(ctx context.Context) error
}

// engine carries the plumbing common to all stage engines: counters, a clock,
// and a mutex-guarded rand source. Embedding engines own the domain logic.
type engine struct {
	name          string
	logger        *zap.Logger
	clock         compliance.Clock
	latencyFactor float64

	requests     atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Pointer[time.Time]

	randMu sync.Mutex
	rng    *rand.Rand

	historyMu sync.Mutex
	history   []CallRecord

	shutdown atomic.Bool
}

// Option configures a stage engine.
type Option func(*engine)

// WithClock injects a clock for tests.
func WithClock(clock compliance.Clock) Option {
	return func(e *engine) { e.clock = clock }
}

// WithRand injects the random source so simulated outcomes are reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(e *engine) { e.rng = rng }
}

// WithLatencyFactor scales simulated processing delays. Zero disables them.
func WithLatencyFactor(factor float64) Option {
	return func(e *engine) { e.latencyFactor = factor }
}

func (e *engine) init(name string, logger *zap.Logger, opts ...Option) {
	e.name = name
	e.logger = logger.Named(name)
	e.clock = compliance.RealClock{}
	e.latencyFactor = 1
	e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, opt := range opts {
		opt(e)
	}
}

func (e *engine) Name() string { return e.name }

// Metrics returns the engine's counter snapshot.
func (e *engine) Metrics() Metrics {
	m := Metrics{
		RequestsProcessed: e.requests.Load(),
		ErrorCount:        e.errorCount.Load(),
	}
	if last := e.lastActivity.Load(); last != nil {
		m.LastActivity = *last
	}
	return m
}

// Shutdown marks the engine stopped. Engines hold no external connections, so
// there is nothing else to release.
func (e *engine) Shutdown(ctx context.Context) error {
	e.shutdown.Store(true)
	e.logger.Info("stage shut down")
	return nil
}

// History returns a copy of the call history, oldest first.
func (e *engine) History() []CallRecord {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	history := make([]CallRecord, len(e.history))
	copy(history, e.history)
	return history
}

func (e *engine) markRequest(operation string) {
	e.requests.Add(1)
	now := e.clock.Now()
	e.lastActivity.Store(&now)

	e.historyMu.Lock()
	e.history = append(e.history, CallRecord{Operation: operation, Timestamp: now})
	e.historyMu.Unlock()
}

func (e *engine) markError() {
	e.errorCount.Add(1)
}

// randIntn returns a uniform int in [0, n). Safe for concurrent fetches.
func (e *engine) randIntn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rng.Intn(n)
}

// randBetween returns a uniform int in [lo, hi].
func (e *engine) randBetween(lo, hi int) int {
	return lo + e.randIntn(hi-lo+1)
}

func (e *engine) randFloat64() float64 {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rng.Float64()
}

// pick returns one uniformly chosen element.
func pick[T any](e *engine, items []T) T {
	return items[e.randIntn(len(items))]
}

// sample returns up to k elements chosen without replacement, preserving
// nothing of the input order.
func sample[T any](e *engine, items []T, k int) []T {
	if k > len(items) {
		k = len(items)
	}
	shuffled := make([]T, len(items))
	copy(shuffled, items)

	e.randMu.Lock()
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	e.randMu.Unlock()

	return shuffled[:k]
}

// simulateWork stands in for an external call, honoring cancellation.
func (e *engine) simulateWork(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * e.latencyFactor)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
