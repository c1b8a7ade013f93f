package repository

import (
	"context"

	"github.com/opsdesk/ticketflow/internal/domain"
)

// CandidateLoad pairs an eligible agent with their active assignment count.
type CandidateLoad struct {
	User       domain.User
	ActiveLoad int
}

// UserRepository defines persistence access for users and the manager chain.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListCandidatesByLoad returns active, accepting agents under capacity,
	// least loaded first. Load counts current assignments on active tickets.
	ListCandidatesByLoad(ctx context.Context) ([]CandidateLoad, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, manager_id, email, first_name, last_name, password_hash,
               role, is_active, is_accepting_tickets, capacity, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (manager_id, email, first_name, last_name, password_hash, role, is_active, is_accepting_tickets, capacity)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		user.ManagerID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.IsAcceptingTickets,
		user.Capacity,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.ManagerID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.IsAcceptingTickets,
		&user.Capacity,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListCandidatesByLoad(ctx context.Context) ([]CandidateLoad, error) {
	const query = `
        SELECT ` + userColumns + `, COALESCE(load.active_count, 0) AS active_count
        FROM users u
        LEFT JOIN (
            SELECT a.assigned_to, COUNT(a.id) AS active_count
            FROM ticket_assignments a
            JOIN tickets t ON t.id = a.ticket_id
            WHERE a.is_current = TRUE AND t.status IN ('queued','assigned','in-progress')
            GROUP BY a.assigned_to
        ) load ON load.assigned_to = u.id
        WHERE u.role = 'user'
          AND u.is_active = TRUE
          AND u.is_accepting_tickets = TRUE
          AND COALESCE(load.active_count, 0) < u.capacity
        ORDER BY COALESCE(load.active_count, 0) ASC, u.created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CandidateLoad
	for rows.Next() {
		var c CandidateLoad
		if err := rows.Scan(
			&c.User.ID,
			&c.User.ManagerID,
			&c.User.Email,
			&c.User.FirstName,
			&c.User.LastName,
			&c.User.PasswordHash,
			&c.User.Role,
			&c.User.IsActive,
			&c.User.IsAcceptingTickets,
			&c.User.Capacity,
			&c.User.CreatedAt,
			&c.User.UpdatedAt,
			&c.ActiveLoad,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
