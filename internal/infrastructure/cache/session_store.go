package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
	"github.com/davidleathers/compliance-guard-backend/internal/session"
)

// Key prefixes. Active and ended sessions live under separate namespaces so
// the reaper can scan active sessions without touching history.
const (
	activeSessionPrefix  = "cgb:session:active:"
	historySessionPrefix = "cgb:session:history:"
)

// historyTTL bounds how long ended sessions stay queryable. Redis expiry
// replaces the in-memory store's count-based history limit.
const historyTTL = 7 * 24 * time.Hour

// RedisSessionStore is a session.Store backed by Redis, for deployments where
// sessions must survive process restarts. Records are stored as JSON.
type RedisSessionStore struct {
	client *redis.Client
	clock  compliance.Clock
	logger *zap.Logger
}

// Option configures a RedisSessionStore.
type Option func(*RedisSessionStore)

// WithClock injects a clock for tests.
func WithClock(clock compliance.Clock) Option {
	return func(s *RedisSessionStore) { s.clock = clock }
}

// NewRedisSessionStore creates a Redis-backed session store and verifies
// connectivity with a ping.
func NewRedisSessionStore(ctx context.Context, client *redis.Client, logger *zap.Logger, opts ...Option) (*RedisSessionStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	s := &RedisSessionStore{
		client: client,
		clock:  compliance.RealClock{},
		logger: logger.Named("session.redis"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ session.Store = (*RedisSessionStore)(nil)

// Create opens a new session and returns its freshly generated ID.
func (s *RedisSessionStore) Create(ctx context.Context, companyID, workflowType string) (string, error) {
	now := s.clock.Now()
	record := &session.Record{
		SessionID:    uuid.New().String(),
		CompanyID:    companyID,
		WorkflowType: workflowType,
		CreatedAt:    now,
		LastActivity: now,
		Status:       session.StatusActive,
		CurrentStep:  "initialized",
		Context:      make(map[string]any),
	}
	if err := s.writeActive(ctx, record); err != nil {
		return "", err
	}

	s.logger.Info("created session",
		zap.String("session_id", record.SessionID),
		zap.String("company_id", companyID),
		zap.String("workflow_type", workflowType))
	return record.SessionID, nil
}

// Get returns the session. An active hit touches last_activity; ended
// sessions are served from history untouched.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*session.Record, bool) {
	record, err := s.readRecord(ctx, activeSessionPrefix+sessionID)
	if err == nil {
		record.LastActivity = s.clock.Now()
		if err := s.writeActive(ctx, record); err != nil {
			s.logger.Warn("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return record, true
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("session read failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}

	record, err = s.readRecord(ctx, historySessionPrefix+sessionID)
	if err != nil {
		return nil, false
	}
	return record, true
}

// UpdateContext shallow-merges the update into the session context: when both
// sides of a key are maps their keys merge, anything else overwrites.
func (s *RedisSessionStore) UpdateContext(ctx context.Context, sessionID string, updates map[string]any) bool {
	return s.mutateActive(ctx, sessionID, func(record *session.Record) {
		for key, value := range updates {
			existing, hasExisting := record.Context[key].(map[string]any)
			incoming, isMap := value.(map[string]any)
			if hasExisting && isMap {
				for k, v := range incoming {
					existing[k] = v
				}
				continue
			}
			record.Context[key] = value
		}
	})
}

// RecordInteraction appends a summarized interaction and ratchets workflow
// progress to the stage's milestone.
func (s *RedisSessionStore) RecordInteraction(ctx context.Context, sessionID, stage string, input, output any, elapsed time.Duration) bool {
	return s.mutateActive(ctx, sessionID, func(record *session.Record) {
		record.AppendInteraction(stage, input, output, elapsed, s.clock.Now())
	})
}

// RecordError appends an error line to the session.
func (s *RedisSessionStore) RecordError(ctx context.Context, sessionID, message string) bool {
	return s.mutateActive(ctx, sessionID, func(record *session.Record) {
		record.Errors = append(record.Errors, message)
	})
}

// End moves the session from the active namespace to history, computing its
// final metrics. Returns false if the session is not active.
func (s *RedisSessionStore) End(ctx context.Context, sessionID string, status session.Status) bool {
	record, err := s.readRecord(ctx, activeSessionPrefix+sessionID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("session read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return false
	}

	record.Finish(status, s.clock.Now())

	encoded, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("session encode failed", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, historySessionPrefix+sessionID, encoded, historyTTL)
	pipe.Del(ctx, activeSessionPrefix+sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("session end pipeline failed", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}

	s.logger.Info("ended session",
		zap.String("session_id", sessionID),
		zap.String("status", string(status)))
	return true
}

// Active scans the active namespace and returns all live sessions.
func (s *RedisSessionStore) Active(ctx context.Context) []*session.Record {
	return s.scan(ctx, activeSessionPrefix+"*", nil)
}

// SessionsForCompany lists a company's sessions across active and history,
// newest first.
func (s *RedisSessionStore) SessionsForCompany(ctx context.Context, companyID string) []*session.Record {
	match := func(record *session.Record) bool { return record.CompanyID == companyID }
	records := s.scan(ctx, activeSessionPrefix+"*", match)
	records = append(records, s.scan(ctx, historySessionPrefix+"*", match)...)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

func (s *RedisSessionStore) writeActive(ctx context.Context, record *session.Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, activeSessionPrefix+record.SessionID, encoded, 0).Err()
}

func (s *RedisSessionStore) readRecord(ctx context.Context, key string) (*session.Record, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var record session.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	if record.Context == nil {
		record.Context = make(map[string]any)
	}
	return &record, nil
}

// mutateActive is a read-modify-write on an active session. Sessions are
// owned by a single workflow, so no cross-process locking is needed.
func (s *RedisSessionStore) mutateActive(ctx context.Context, sessionID string, mutate func(*session.Record)) bool {
	record, err := s.readRecord(ctx, activeSessionPrefix+sessionID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("session read failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return false
	}

	mutate(record)
	record.LastActivity = s.clock.Now()

	if err := s.writeActive(ctx, record); err != nil {
		s.logger.Error("session write failed", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisSessionStore) scan(ctx context.Context, pattern string, match func(*session.Record) bool) []*session.Record {
	var records []*session.Record

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		record, err := s.readRecord(ctx, iter.Val())
		if err != nil {
			// Keys can expire between scan and read.
			if !errors.Is(err, redis.Nil) {
				s.logger.Warn("session scan read failed", zap.String("key", iter.Val()), zap.Error(err))
			}
			continue
		}
		if match == nil || match(record) {
			records = append(records, record)
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("session scan failed", zap.String("pattern", pattern), zap.Error(err))
	}
	return records
}
