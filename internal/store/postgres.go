package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists health snapshots in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_snapshots (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			context TEXT NOT NULL,
			drift DOUBLE PRECISION,
			coherence DOUBLE PRECISION,
			qa_ratio DOUBLE PRECISION,
			fragmented BOOLEAN NOT NULL DEFAULT FALSE,
			alert_kinds TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_health_snapshots_session_created ON health_snapshots (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, record SnapshotRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.AlertKinds == nil {
		record.AlertKinds = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO health_snapshots (id, session_id, speaker, text, status, context, drift, coherence, qa_ratio, fragmented, alert_kinds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID,
		record.SessionID,
		record.Speaker,
		record.Text,
		record.Status,
		record.Context,
		record.Drift,
		record.Coherence,
		record.QARatio,
		record.Fragmented,
		record.AlertKinds,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, speaker, text, status, context, drift, coherence, qa_ratio, fragmented, alert_kinds, created_at
		 FROM health_snapshots WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent snapshots: %w", err)
	}
	defer rows.Close()

	items := make([]SnapshotRecord, 0, limit)
	for rows.Next() {
		var r SnapshotRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Speaker, &r.Text, &r.Status, &r.Context, &r.Drift, &r.Coherence, &r.QARatio, &r.Fragmented, &r.AlertKinds, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	// Reverse into chronological order for timeline rendering.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
