package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists health snapshots in a local SQLite file. Useful when
// a single-node deployment wants durable telemetry without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_snapshots (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			context TEXT NOT NULL,
			drift REAL,
			coherence REAL,
			qa_ratio REAL,
			fragmented INTEGER NOT NULL DEFAULT 0,
			alert_kinds TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_health_snapshots_session_created ON health_snapshots (session_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, record SnapshotRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_snapshots (id, session_id, speaker, text, status, context, drift, coherence, qa_ratio, fragmented, alert_kinds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		strings.Join(record.AlertKinds, ","),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, speaker, text, status, context, drift, coherence, qa_ratio, fragmented, alert_kinds, created_at
		 FROM health_snapshots WHERE session_id=? ORDER BY created_at DESC LIMIT ?`,
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
		var kinds string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Speaker, &r.Text, &r.Status, &r.Context, &r.Drift, &r.Coherence, &r.QARatio, &r.Fragmented, &kinds, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if kinds != "" {
			r.AlertKinds = strings.Split(kinds, ",")
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
