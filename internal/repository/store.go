package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx used by repositories. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so the same repository code runs inside and outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the repositories behind a single transactional boundary.
// WithinTx hands the closure a Store whose repositories share one
// transaction; any error rolls the whole unit back.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	Assignments() AssignmentRepository
	Escalations() EscalationRepository
	Notifications() NotificationRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

type pgStore struct {
	db   DBTX
	pool *pgxpool.Pool // nil when already inside a transaction
}

// NewStore builds a Postgres-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool, pool: pool}
}

func (s *pgStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *pgStore) Tickets() TicketRepository             { return &ticketRepository{db: s.db} }
func (s *pgStore) Assignments() AssignmentRepository     { return &assignmentRepository{db: s.db} }
func (s *pgStore) Escalations() EscalationRepository     { return &escalationRepository{db: s.db} }
func (s *pgStore) Notifications() NotificationRepository { return &notificationRepository{db: s.db} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if s.pool == nil {
		// Already transactional; join the enclosing transaction.
		return fn(ctx, s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	txStore := &pgStore{db: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
