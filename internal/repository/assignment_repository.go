package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticketflow/internal/domain"
)

// AssignmentRepository stores the per-ticket ownership ledger. Rows are
// immutable once superseded; only the is_current marker and completed_at of
// the current row ever change, and both change exactly once.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	GetCurrent(ctx context.Context, ticketID string) (*domain.Assignment, error)
	// CloseCurrent flips is_current off on the ticket's current row. With
	// completed set it also stamps completed_at. Returns pgx.ErrNoRows when
	// the ticket has no current assignment.
	CloseCurrent(ctx context.Context, ticketID string, completed bool) (*domain.Assignment, error)
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Assignment, error)
	ListCurrentByUser(ctx context.Context, userID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `id, ticket_id, assigned_to, assigned_by, kind, is_current,
               assigned_at, completed_at, notes, created_at, updated_at`

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO ticket_assignments (ticket_id, assigned_to, assigned_by, kind, is_current, notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, assigned_at, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		assignment.TicketID,
		assignment.AssignedTo,
		assignment.AssignedBy,
		assignment.Kind,
		assignment.IsCurrent,
		assignment.Notes,
	).Scan(&assignment.ID, &assignment.AssignedAt, &assignment.CreatedAt, &assignment.UpdatedAt)
}

func (r *assignmentRepository) GetCurrent(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	const query = `
        SELECT ` + assignmentColumns + `
        FROM ticket_assignments WHERE ticket_id=$1 AND is_current=TRUE`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *assignmentRepository) CloseCurrent(ctx context.Context, ticketID string, completed bool) (*domain.Assignment, error) {
	// Conditional update: the WHERE clause on is_current makes the close a
	// compare-and-swap, so a racing close observes zero rows instead of
	// double-closing.
	const query = `
        UPDATE ticket_assignments
        SET is_current=FALSE,
            completed_at=CASE WHEN $2 THEN NOW() ELSE completed_at END,
            updated_at=NOW()
        WHERE ticket_id=$1 AND is_current=TRUE
        RETURNING ` + assignmentColumns
	var a domain.Assignment
	if err := r.db.QueryRow(ctx, query, ticketID, completed).Scan(
		&a.ID,
		&a.TicketID,
		&a.AssignedTo,
		&a.AssignedBy,
		&a.Kind,
		&a.IsCurrent,
		&a.AssignedAt,
		&a.CompletedAt,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Assignment, error) {
	var a domain.Assignment
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.TicketID,
		&a.AssignedTo,
		&a.AssignedBy,
		&a.Kind,
		&a.IsCurrent,
		&a.AssignedAt,
		&a.CompletedAt,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT ` + assignmentColumns + `
        FROM ticket_assignments WHERE ticket_id=$1
        ORDER BY assigned_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (r *assignmentRepository) ListCurrentByUser(ctx context.Context, userID string) ([]domain.Assignment, error) {
	const query = `
        SELECT ` + assignmentColumns + `
        FROM ticket_assignments WHERE assigned_to=$1 AND is_current=TRUE
        ORDER BY assigned_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	var result []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.ID,
			&a.TicketID,
			&a.AssignedTo,
			&a.AssignedBy,
			&a.Kind,
			&a.IsCurrent,
			&a.AssignedAt,
			&a.CompletedAt,
			&a.Notes,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
