// Package database provides the optional durable archive behind the memory
// bank. The in-memory bank stays authoritative; the archive is a write-through
// sink for entries that must survive restarts and compaction.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/config"
	"github.com/davidleathers/compliance-guard-backend/internal/memorybank"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS compliance_entries (
	entry_id         TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL,
	recorded_at      TIMESTAMPTZ NOT NULL,
	compliance_score INT NOT NULL,
	risk_score       INT NOT NULL,
	gap_count        INT NOT NULL,
	report           JSONB
);
CREATE INDEX IF NOT EXISTS idx_compliance_entries_company
	ON compliance_entries (company_id, recorded_at DESC);
`

// Archive persists memory-bank entries to PostgreSQL.
type Archive struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewArchive connects to the database and ensures the archive schema exists.
func NewArchive(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Archive, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(connectCtx, archiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring archive schema: %w", err)
	}

	logger.Info("report archive connected")
	return &Archive{pool: pool, logger: logger.Named("archive")}, nil
}

var _ memorybank.Archiver = (*Archive)(nil)

// ArchiveEntry writes one entry. Re-archiving the same entry is a no-op, so
// retries are safe.
func (a *Archive) ArchiveEntry(ctx context.Context, entry *memorybank.Entry) error {
	report, err := json.Marshal(entry.Report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO compliance_entries
			(entry_id, company_id, recorded_at, compliance_score, risk_score, gap_count, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entry_id) DO NOTHING`,
		entry.EntryID, entry.CompanyID, entry.Timestamp,
		entry.ComplianceScore, entry.RiskScore, entry.GapCount, report)
	if err != nil {
		return fmt.Errorf("archiving entry %s: %w", entry.EntryID, err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	a.pool.Close()
}
