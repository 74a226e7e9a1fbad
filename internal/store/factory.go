package store

import (
	"context"
	"strings"
)

// NewStore picks a backend: Postgres when a database URL is configured,
// SQLite when a file path is configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(ctx, sqlitePath)
	}
	return NewInMemoryStore(), nil
}
