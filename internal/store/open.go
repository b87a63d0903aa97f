package store

import (
	"context"
	"strings"
)

// Open picks the activity log implementation from the database URL:
// postgres:// and postgresql:// URLs use PostgreSQL, anything else is a SQLite data source.
func Open(ctx context.Context, databaseURL string) (ActivityLog, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := NewSQLiteStore(databaseURL)
	if err != nil {
		return nil, err
	}
	return lite, nil
}
