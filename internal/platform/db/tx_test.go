package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestTranslateSerializationFailure(t *testing.T) {
	err := Translate(fmt.Errorf("update item: %w", &pgconn.PgError{Code: "40001", Message: "could not serialize access"}))
	require.ErrorIs(t, err, shared.ErrConflict)

	err = Translate(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestTranslateLeavesOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	require.Same(t, plain, Translate(plain))
	require.Nil(t, Translate(nil))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "uq_accounts_code"}
	require.False(t, errors.Is(Translate(unique), shared.ErrConflict))
	require.True(t, IsUniqueViolation(unique, "uq_accounts_code"))
	require.True(t, IsUniqueViolation(unique, ""))
	require.False(t, IsUniqueViolation(unique, "uq_other"))
}
