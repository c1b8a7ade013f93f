package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticketflow/internal/domain"
)

// EscalationRepository stores the append-only escalation audit trail.
// There is deliberately no update or delete.
type EscalationRepository interface {
	Create(ctx context.Context, escalation *domain.Escalation) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Escalation, error)
	GetLast(ctx context.Context, ticketID string) (*domain.Escalation, error)
}

type escalationRepository struct {
	db DBTX
}

// NewEscalationRepository builds repository.
func NewEscalationRepository(db DBTX) EscalationRepository {
	return &escalationRepository{db: db}
}

const escalationColumns = `id, ticket_id, escalated_from, escalated_to, escalation_level,
               reason, escalated_at, created_at`

func (r *escalationRepository) Create(ctx context.Context, escalation *domain.Escalation) error {
	const query = `
        INSERT INTO ticket_escalations (ticket_id, escalated_from, escalated_to, escalation_level, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, escalated_at, created_at`
	return r.db.QueryRow(ctx, query,
		escalation.TicketID,
		escalation.EscalatedFrom,
		escalation.EscalatedTo,
		escalation.Level,
		escalation.Reason,
	).Scan(&escalation.ID, &escalation.EscalatedAt, &escalation.CreatedAt)
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Escalation, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT ` + escalationColumns + `
        FROM ticket_escalations WHERE ticket_id=$1
        ORDER BY escalated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEscalations(rows)
}

func (r *escalationRepository) GetLast(ctx context.Context, ticketID string) (*domain.Escalation, error) {
	const query = `
        SELECT ` + escalationColumns + `
        FROM ticket_escalations WHERE ticket_id=$1
        ORDER BY escalated_at DESC LIMIT 1`
	var e domain.Escalation
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&e.ID,
		&e.TicketID,
		&e.EscalatedFrom,
		&e.EscalatedTo,
		&e.Level,
		&e.Reason,
		&e.EscalatedAt,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEscalations(rows pgx.Rows) ([]domain.Escalation, error) {
	var result []domain.Escalation
	for rows.Next() {
		var e domain.Escalation
		if err := rows.Scan(
			&e.ID,
			&e.TicketID,
			&e.EscalatedFrom,
			&e.EscalatedTo,
			&e.Level,
			&e.Reason,
			&e.EscalatedAt,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
