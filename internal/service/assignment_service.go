package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/events"
	"github.com/opsdesk/ticketflow/internal/repository"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// AssignmentService owns the per-ticket ownership ledger. Every mutation
// runs in a single transaction holding the ticket row lock, so the
// close-old/create-new pair can never interleave for the same ticket.
type AssignmentService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	sla        *SLAService
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	SLA        *SLAService
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		sla:        deps.SLA,
		logger:     logger,
	}
}

// Assign creates the initial assignment for a ticket. assignedBy is nil for
// system-initiated routing. Fails with ALREADY_ASSIGNED when the ticket
// already has a current owner.
func (s *AssignmentService) Assign(ctx context.Context, ticketID, assigneeID string, assignedBy *string, notes *string) (*domain.Assignment, error) {
	var created *domain.Assignment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := lockTicket(ctx, tx, ticketID); err != nil {
			return err
		}
		assignee, err := fetchActiveUser(ctx, tx, assigneeID)
		if err != nil {
			return err
		}
		if _, err := tx.Assignments().GetCurrent(ctx, ticketID); err == nil {
			return apperrors.NewAlreadyAssigned(ticketID)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return apperrors.MapError(err)
		}
		assignment := &domain.Assignment{
			TicketID:   ticketID,
			AssignedTo: assignee.ID,
			AssignedBy: assignedBy,
			Kind:       domain.AssignmentKindAssigned,
			IsCurrent:  true,
			Notes:      notes,
		}
		if err := tx.Assignments().Create(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}
		if err := tx.Tickets().SetStatus(ctx, ticketID, domain.TicketStatusAssigned); err != nil {
			return apperrors.MapError(err)
		}
		created = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterHandoff(ctx, created, events.EventTicketAssigned)
	return created, nil
}

// Reassign atomically closes the current assignment and creates a new one of
// kind reassigned. Lateral move; no escalation record is written.
func (s *AssignmentService) Reassign(ctx context.Context, ticketID, newAssigneeID string, assignedBy *string, notes *string) (*domain.Assignment, error) {
	var created *domain.Assignment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := lockTicket(ctx, tx, ticketID); err != nil {
			return err
		}
		assignee, err := fetchActiveUser(ctx, tx, newAssigneeID)
		if err != nil {
			return err
		}
		if _, err := tx.Assignments().CloseCurrent(ctx, ticketID, false); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNoCurrentAssignment(ticketID)
			}
			return apperrors.MapError(err)
		}
		assignment := &domain.Assignment{
			TicketID:   ticketID,
			AssignedTo: assignee.ID,
			AssignedBy: assignedBy,
			Kind:       domain.AssignmentKindReassigned,
			IsCurrent:  true,
			Notes:      notes,
		}
		if err := tx.Assignments().Create(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}
		if err := tx.Tickets().SetStatus(ctx, ticketID, domain.TicketStatusAssigned); err != nil {
			return apperrors.MapError(err)
		}
		created = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterHandoff(ctx, created, events.EventTicketReassigned)
	return created, nil
}

// Complete closes the current assignment with a completion stamp and marks
// the ticket done. No successor assignment is created. A non-nil actor must
// be the current assignee or hold an assigning role.
func (s *AssignmentService) Complete(ctx context.Context, ticketID string, actor *domain.User) (*domain.Assignment, error) {
	var closed *domain.Assignment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := lockTicket(ctx, tx, ticketID); err != nil {
			return err
		}
		previous, err := tx.Assignments().CloseCurrent(ctx, ticketID, true)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNoCurrentAssignment(ticketID)
			}
			return apperrors.MapError(err)
		}
		if actor != nil && actor.ID != previous.AssignedTo && !actor.Role.CanAssign() {
			return apperrors.NewForbidden("only the assignee or a manager may complete a ticket")
		}
		if err := tx.Tickets().SetStatus(ctx, ticketID, domain.TicketStatusDone); err != nil {
			return apperrors.MapError(err)
		}
		closed = previous
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sla != nil {
		_ = s.sla.Stop(ctx, ticketID)
	}
	s.publish(ctx, events.Event{
		ID:       uuid.NewString(),
		Type:     events.EventTicketCompleted,
		TicketID: ticketID,
		Payload: events.TicketCompletedPayload{
			AssignedTo:  closed.AssignedTo,
			CompletedAt: derefTime(closed.CompletedAt),
		},
	})
	return closed, nil
}

// GetCurrent returns the current assignment, or nil when the ticket is
// unassigned (a valid state for queued tickets).
func (s *AssignmentService) GetCurrent(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	assignment, err := s.store.Assignments().GetCurrent(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return assignment, nil
}

// History returns the full assignment trail for a ticket, newest first.
func (s *AssignmentService) History(ctx context.Context, ticketID string, limit, offset int) ([]domain.Assignment, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	history, err := s.store.Assignments().ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// WorkloadForUser returns the user's current assignments.
func (s *AssignmentService) WorkloadForUser(ctx context.Context, userID string) ([]domain.Assignment, error) {
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	assignments, err := s.store.Assignments().ListCurrentByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return assignments, nil
}

func (s *AssignmentService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// afterHandoff runs the post-commit side effects shared by every operation
// that installs a new current assignee.
func (s *AssignmentService) afterHandoff(ctx context.Context, assignment *domain.Assignment, eventType events.EventType) {
	if s.sla != nil {
		_ = s.sla.Start(ctx, assignment.TicketID, assignment.AssignedTo)
	}
	s.publish(ctx, events.Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		TicketID: assignment.TicketID,
		ActorID:  assignment.AssignedBy,
		Payload: events.TicketAssignedPayload{
			AssignedTo: assignment.AssignedTo,
			Kind:       assignment.Kind,
			Notes:      assignment.Notes,
		},
	})
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func lockTicket(ctx context.Context, tx repository.Store, ticketID string) (*domain.Ticket, error) {
	ticket, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func fetchActiveUser(ctx context.Context, tx repository.Store, userID string) (*domain.User, error) {
	user, err := tx.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"user_id": userID})
	}
	return user, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
