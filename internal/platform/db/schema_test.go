package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSchemaVersionReadsCleanVersion(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(3, false))

	version, err := SchemaVersion(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, uint(3), version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaVersionFlagsDirtyState(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(2, true))

	version, err := SchemaVersion(context.Background(), conn)
	require.ErrorIs(t, err, ErrSchemaDirty)
	require.Equal(t, uint(2), version)
}

func TestSchemaVersionMissingTable(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`SELECT version, dirty FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}))

	_, err = SchemaVersion(context.Background(), conn)
	require.ErrorIs(t, err, ErrSchemaMissing)
}
