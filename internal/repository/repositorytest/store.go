// Package repositorytest provides an in-memory repository.Store used by
// service tests. It mirrors the Postgres semantics that matter to callers:
// pgx.ErrNoRows on missing rows, a unique-violation error when a second
// current assignment would be inserted for a ticket, and full rollback of a
// WithinTx closure that returns an error.
package repositorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository"
)

type state struct {
	users         map[string]domain.User
	tickets       map[string]domain.Ticket
	assignments   []domain.Assignment
	escalations   []domain.Escalation
	notifications []domain.Notification
	seq           int64
}

func (st *state) clone() *state {
	dup := &state{
		users:         make(map[string]domain.User, len(st.users)),
		tickets:       make(map[string]domain.Ticket, len(st.tickets)),
		assignments:   append([]domain.Assignment(nil), st.assignments...),
		escalations:   append([]domain.Escalation(nil), st.escalations...),
		notifications: append([]domain.Notification(nil), st.notifications...),
		seq:           st.seq,
	}
	for id, u := range st.users {
		dup.users[id] = u
	}
	for id, t := range st.tickets {
		dup.tickets[id] = t
	}
	return dup
}

// now returns a strictly increasing timestamp so newest-first ordering is
// deterministic even when operations land in the same wall-clock instant.
func (st *state) now() time.Time {
	st.seq++
	return time.Unix(0, 0).Add(time.Duration(st.seq) * time.Millisecond)
}

// Store is the in-memory repository.Store.
type Store struct {
	mu    sync.Mutex
	state *state
	inTx  bool
}

// NewStore builds an empty in-memory store.
func NewStore() *Store {
	return &Store{state: &state{
		users:   make(map[string]domain.User),
		tickets: make(map[string]domain.Ticket),
	}}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx runs fn against a snapshot and commits it only on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	txStore := &Store{state: snapshot, inTx: true}
	if err := fn(ctx, txStore); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Tickets() repository.TicketRepository             { return &ticketRepo{s} }
func (s *Store) Assignments() repository.AssignmentRepository     { return &assignmentRepo{s} }
func (s *Store) Escalations() repository.EscalationRepository     { return &escalationRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }

// SeedUser inserts a user fixture, generating an ID when absent.
func (s *Store) SeedUser(user domain.User) domain.User {
	defer s.lock()()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.state.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Capacity == 0 {
		user.Capacity = 5
	}
	s.state.users[user.ID] = user
	return user
}

// SeedTicket inserts a ticket fixture, generating an ID when absent.
func (s *Store) SeedTicket(ticket domain.Ticket) domain.Ticket {
	defer s.lock()()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusQueued
	}
	now := s.state.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.state.tickets[ticket.ID] = ticket
	return ticket
}

// AllAssignments returns raw ledger rows for invariant checks in tests.
func (s *Store) AllAssignments() []domain.Assignment {
	defer s.lock()()
	return append([]domain.Assignment(nil), s.state.assignments...)
}

// AllNotifications returns stored notification rows.
func (s *Store) AllNotifications() []domain.Notification {
	defer s.lock()()
	return append([]domain.Notification(nil), s.state.notifications...)
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	defer r.s.lock()()
	user.ID = uuid.NewString()
	now := r.s.state.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.state.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.s.lock()()
	user, ok := r.s.state.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.s.lock()()
	for _, user := range r.s.state.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepo) ListCandidatesByLoad(ctx context.Context) ([]repository.CandidateLoad, error) {
	defer r.s.lock()()
	loads := make(map[string]int)
	for _, a := range r.s.state.assignments {
		if !a.IsCurrent {
			continue
		}
		ticket, ok := r.s.state.tickets[a.TicketID]
		if ok && ticket.Status.IsActive() {
			loads[a.AssignedTo]++
		}
	}
	var result []repository.CandidateLoad
	for _, user := range r.s.state.users {
		if user.Role != domain.RoleUser || !user.IsActive || !user.IsAcceptingTickets {
			continue
		}
		if loads[user.ID] >= user.Capacity {
			continue
		}
		result = append(result, repository.CandidateLoad{User: user, ActiveLoad: loads[user.ID]})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ActiveLoad != result[j].ActiveLoad {
			return result[i].ActiveLoad < result[j].ActiveLoad
		}
		return result[i].User.CreatedAt.Before(result[j].User.CreatedAt)
	})
	return result, nil
}

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock()()
	ticket.ID = uuid.NewString()
	now := r.s.state.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.s.state.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	defer r.s.lock()()
	ticket, ok := r.s.state.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) SetStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	defer r.s.lock()()
	ticket, ok := r.s.state.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	ticket.UpdatedAt = r.s.state.now()
	r.s.state.tickets[id] = ticket
	return nil
}

func (r *ticketRepo) ListByStatus(ctx context.Context, status domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	defer r.s.lock()()
	var result []domain.Ticket
	for _, ticket := range r.s.state.tickets {
		if ticket.Status == status {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type assignmentRepo struct{ s *Store }

func (r *assignmentRepo) Create(ctx context.Context, assignment *domain.Assignment) error {
	defer r.s.lock()()
	if assignment.IsCurrent {
		for _, a := range r.s.state.assignments {
			if a.TicketID == assignment.TicketID && a.IsCurrent {
				// Same failure the partial unique index produces.
				return &pgconn.PgError{Code: "23505", ConstraintName: "ticket_assignments_current_uq"}
			}
		}
	}
	assignment.ID = uuid.NewString()
	now := r.s.state.now()
	assignment.AssignedAt = now
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	r.s.state.assignments = append(r.s.state.assignments, *assignment)
	return nil
}

func (r *assignmentRepo) GetCurrent(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	defer r.s.lock()()
	for _, a := range r.s.state.assignments {
		if a.TicketID == ticketID && a.IsCurrent {
			dup := a
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *assignmentRepo) CloseCurrent(ctx context.Context, ticketID string, completed bool) (*domain.Assignment, error) {
	defer r.s.lock()()
	for i, a := range r.s.state.assignments {
		if a.TicketID == ticketID && a.IsCurrent {
			now := r.s.state.now()
			a.IsCurrent = false
			if completed {
				a.CompletedAt = &now
			}
			a.UpdatedAt = now
			r.s.state.assignments[i] = a
			dup := a
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *assignmentRepo) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Assignment, error) {
	defer r.s.lock()()
	var result []domain.Assignment
	for _, a := range r.s.state.assignments {
		if a.TicketID == ticketID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssignedAt.After(result[j].AssignedAt)
	})
	return window(result, limit, offset), nil
}

func (r *assignmentRepo) ListCurrentByUser(ctx context.Context, userID string) ([]domain.Assignment, error) {
	defer r.s.lock()()
	var result []domain.Assignment
	for _, a := range r.s.state.assignments {
		if a.AssignedTo == userID && a.IsCurrent {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssignedAt.After(result[j].AssignedAt)
	})
	return result, nil
}

type escalationRepo struct{ s *Store }

func (r *escalationRepo) Create(ctx context.Context, escalation *domain.Escalation) error {
	defer r.s.lock()()
	escalation.ID = uuid.NewString()
	now := r.s.state.now()
	escalation.EscalatedAt = now
	escalation.CreatedAt = now
	r.s.state.escalations = append(r.s.state.escalations, *escalation)
	return nil
}

func (r *escalationRepo) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Escalation, error) {
	defer r.s.lock()()
	var result []domain.Escalation
	for _, e := range r.s.state.escalations {
		if e.TicketID == ticketID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EscalatedAt.After(result[j].EscalatedAt)
	})
	return window(result, limit, offset), nil
}

func (r *escalationRepo) GetLast(ctx context.Context, ticketID string) (*domain.Escalation, error) {
	history, err := r.ListByTicket(ctx, ticketID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &history[0], nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(ctx context.Context, notification *domain.Notification) error {
	defer r.s.lock()()
	notification.ID = uuid.NewString()
	notification.CreatedAt = r.s.state.now()
	r.s.state.notifications = append(r.s.state.notifications, *notification)
	return nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	defer r.s.lock()()
	var result []domain.Notification
	for _, n := range r.s.state.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return window(result, limit, offset), nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string) error {
	defer r.s.lock()()
	for i, n := range r.s.state.notifications {
		if n.ID == id {
			r.s.state.notifications[i].IsRead = true
			return nil
		}
	}
	return nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
