package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := NewAlreadyAssigned("t-1")
	require.True(t, HasCode(err, CodeAlreadyAssigned))
	require.False(t, HasCode(err, CodeNotFound))

	wrapped := fmt.Errorf("handling request: %w", err)
	require.True(t, HasCode(wrapped, CodeAlreadyAssigned))

	require.False(t, HasCode(errors.New("plain"), CodeAlreadyAssigned))
	require.False(t, HasCode(nil, CodeAlreadyAssigned))
}

func TestToDomainErrorPassesThrough(t *testing.T) {
	original := NewNoCurrentAssignment("t-1")
	mapped := ToDomainError(original)
	require.Equal(t, CodeNoCurrentAssignment, mapped.Code)
	require.Equal(t, http.StatusConflict, mapped.HTTPStatus)
}

func TestToDomainErrorNoRows(t *testing.T) {
	mapped := ToDomainError(pgx.ErrNoRows)
	require.Equal(t, CodeNotFound, mapped.Code)
	require.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
}

func TestToDomainErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ticket_assignments_current_uq"}
	mapped := ToDomainError(fmt.Errorf("insert assignment: %w", pgErr))
	require.Equal(t, CodeConcurrentModification, mapped.Code)
	require.Equal(t, http.StatusConflict, mapped.HTTPStatus)
}

func TestToDomainErrorUnknownBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset")
	mapped := ToDomainError(cause)
	require.Equal(t, CodeInternal, mapped.Code)
	require.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	require.ErrorIs(t, mapped, cause)
}

func TestMapErrorNil(t *testing.T) {
	require.NoError(t, MapError(nil))
	require.Nil(t, ToDomainError(nil))
}
