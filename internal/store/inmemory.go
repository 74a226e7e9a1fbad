package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process snapshot store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]SnapshotRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]SnapshotRecord)}
}

func (s *InMemoryStore) SaveSnapshot(_ context.Context, record SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.records[record.SessionID] = append(s.records[record.SessionID], record)
	return nil
}

func (s *InMemoryStore) RecentSnapshots(_ context.Context, sessionID string, limit int) ([]SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]SnapshotRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
