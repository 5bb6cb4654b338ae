package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaDirty indicates a migration failed half-way.
var ErrSchemaDirty = errors.New("platform/db: schema is dirty")

// ErrSchemaMissing indicates migrations were never applied.
var ErrSchemaMissing = errors.New("platform/db: schema not initialised")

// SchemaVersion reads the applied migration version.
func SchemaVersion(ctx context.Context, conn *sql.DB) (uint, error) {
	var (
		version int64
		dirty   bool
	)
	err := conn.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSchemaMissing
	}
	if err != nil {
		return 0, fmt.Errorf("platform/db: schema version: %w", err)
	}
	if dirty {
		return uint(version), ErrSchemaDirty
	}
	return uint(version), nil
}
