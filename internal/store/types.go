package store

import (
	"context"
	"time"
)

// SnapshotRecord is the telemetry row written after each turn ingestion:
// the turn that triggered the evaluation (text already PII-redacted by the
// caller) plus the evaluation result.
type SnapshotRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Speaker    string    `json:"speaker"`
	Text       string    `json:"text"`
	Status     string    `json:"status"`
	Context    string    `json:"context"`
	Drift      *float64  `json:"drift,omitempty"`
	Coherence  *float64  `json:"coherence,omitempty"`
	QARatio    *float64  `json:"qa_ratio,omitempty"`
	Fragmented bool      `json:"fragmented"`
	AlertKinds []string  `json:"alert_kinds,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists health snapshots for later inspection. Persistence is
// best-effort from the caller's point of view: a store error never fails
// turn ingestion.
type Store interface {
	SaveSnapshot(ctx context.Context, record SnapshotRecord) error
	RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]SnapshotRecord, error)
	Close() error
}
