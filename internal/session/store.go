package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

// Store is the session store contract. Not-found outcomes are boolean
// signals, never errors; callers must check them.
type Store interface {
	Create(ctx context.Context, companyID, workflowType string) (string, error)
	Get(ctx context.Context, sessionID string) (*Record, bool)
	UpdateContext(ctx context.Context, sessionID string, updates map[string]any) bool
	RecordInteraction(ctx context.Context, sessionID, stage string, input, output any, elapsed time.Duration) bool
	RecordError(ctx context.Context, sessionID, message string) bool
	End(ctx context.Context, sessionID string, status Status) bool
	Active(ctx context.Context) []*Record
	SessionsForCompany(ctx context.Context, companyID string) []*Record
}

// Config holds session store tuning.
type Config struct {
	// HistoryLimit bounds the ended-session history; the oldest ended
	// sessions are evicted first.
	HistoryLimit int
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{HistoryLimit: 1000}
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu sync.RWMutex

	config Config
	clock  compliance.Clock
	logger *zap.Logger

	active  map[string]*Record
	history map[string]*Record
	// historyOrder tracks insertion order for bounded eviction.
	historyOrder []string
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock injects a clock, used by tests for deterministic timestamps.
func WithClock(clock compliance.Clock) Option {
	return func(s *MemoryStore) { s.clock = clock }
}

// NewMemoryStore creates an in-process session store.
func NewMemoryStore(config Config, logger *zap.Logger, opts ...Option) *MemoryStore {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	s := &MemoryStore{
		config:  config,
		clock:   compliance.RealClock{},
		logger:  logger.Named("session"),
		active:  make(map[string]*Record),
		history: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new session and returns its freshly generated ID.
func (s *MemoryStore) Create(ctx context.Context, companyID, workflowType string) (string, error) {
	now := s.clock.Now()
	record := &Record{
		SessionID:    uuid.New().String(),
		CompanyID:    companyID,
		WorkflowType: workflowType,
		CreatedAt:    now,
		LastActivity: now,
		Status:       StatusActive,
		CurrentStep:  "initialized",
		Context:      make(map[string]any),
	}

	s.mu.Lock()
	s.active[record.SessionID] = record
	s.mu.Unlock()

	s.logger.Info("created session",
		zap.String("session_id", record.SessionID),
		zap.String("company_id", companyID),
		zap.String("workflow_type", workflowType))

	return record.SessionID, nil
}

// Get returns a copy of the session. An active hit touches last_activity;
// ended sessions are served from history untouched.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.active[sessionID]; ok {
		record.LastActivity = s.clock.Now()
		return record.clone(), true
	}
	if record, ok := s.history[sessionID]; ok {
		return record.clone(), true
	}
	return nil, false
}

// UpdateContext shallow-merges the update into the session context: when both
// sides of a key are maps their keys merge, anything else overwrites.
func (s *MemoryStore) UpdateContext(ctx context.Context, sessionID string, updates map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.active[sessionID]
	if !ok {
		s.logger.Warn("session not found for context update", zap.String("session_id", sessionID))
		return false
	}

	for key, value := range updates {
		existing, hasExisting := record.Context[key].(map[string]any)
		incoming, isMap := value.(map[string]any)
		if hasExisting && isMap {
			for k, v := range incoming {
				existing[k] = v
			}
			continue
		}
		record.Context[key] = cloneValue(value)
	}
	record.LastActivity = s.clock.Now()
	return true
}

// RecordInteraction appends a summarized interaction and advances workflow
// progress to the stage's milestone. Progress never decreases.
func (s *MemoryStore) RecordInteraction(ctx context.Context, sessionID, stage string, input, output any, elapsed time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.active[sessionID]
	if !ok {
		return false
	}

	record.AppendInteraction(stage, input, output, elapsed, s.clock.Now())
	return true
}

// RecordError appends an error line to the session.
func (s *MemoryStore) RecordError(ctx context.Context, sessionID, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.active[sessionID]
	if !ok {
		return false
	}
	record.Errors = append(record.Errors, message)
	record.LastActivity = s.clock.Now()
	return true
}

// End removes the session from the active set, computes its final metrics,
// and moves it into history permanently.
func (s *MemoryStore) End(ctx context.Context, sessionID string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.active[sessionID]
	if !ok {
		s.logger.Warn("session not found for ending", zap.String("session_id", sessionID))
		return false
	}
	delete(s.active, sessionID)

	record.Finish(status, s.clock.Now())

	s.history[sessionID] = record
	s.historyOrder = append(s.historyOrder, sessionID)
	for len(s.historyOrder) > s.config.HistoryLimit {
		evicted := s.historyOrder[0]
		s.historyOrder = s.historyOrder[1:]
		delete(s.history, evicted)
	}

	s.logger.Info("ended session",
		zap.String("session_id", sessionID),
		zap.String("status", string(status)))
	return true
}

// Active returns copies of all active sessions.
func (s *MemoryStore) Active(ctx context.Context) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.active))
	for _, record := range s.active {
		records = append(records, record.clone())
	}
	return records
}

// SessionsForCompany lists a company's sessions across active and history,
// newest first.
func (s *MemoryStore) SessionsForCompany(ctx context.Context, companyID string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*Record
	for _, record := range s.active {
		if record.CompanyID == companyID {
			records = append(records, record.clone())
		}
	}
	for _, record := range s.history {
		if record.CompanyID == companyID {
			records = append(records, record.clone())
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}
