package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes surfaced by the ledger operations.
const (
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodeAlreadyAssigned        = "ALREADY_ASSIGNED"
	CodeNoCurrentAssignment    = "NO_CURRENT_ASSIGNMENT"
	CodeInvalidHierarchy       = "INVALID_HIERARCHY"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewAlreadyAssigned reports an initial assignment attempted on a ticket that
// already has a current assignee.
func NewAlreadyAssigned(ticketID string) error {
	return NewDomainError(CodeAlreadyAssigned, "ticket already has a current assignment",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

// NewNoCurrentAssignment reports a close/reassign/escalate attempted on a
// ticket with no current assignee.
func NewNoCurrentAssignment(ticketID string) error {
	return NewDomainError(CodeNoCurrentAssignment, "ticket has no current assignment",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

// NewInvalidHierarchy reports a broken manager chain or an inconsistent
// escalation level.
func NewInvalidHierarchy(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidHierarchy, message, http.StatusUnprocessableEntity, details)
}

// NewConcurrentModification reports a transaction conflict on the per-ticket
// current-assignment marker. Callers may retry.
func NewConcurrentModification(ticketID string) error {
	return NewDomainError(CodeConcurrentModification, "assignment changed concurrently, retry",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// uniqueViolation is the Postgres error code raised when the partial unique
// index on (ticket_id) WHERE is_current rejects a second current row.
const uniqueViolation = "23505"

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return NewDomainError(CodeConcurrentModification, "assignment changed concurrently, retry",
			http.StatusConflict, nil)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to the error interface form of DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
