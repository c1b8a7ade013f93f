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

// EscalationService moves tickets up the management hierarchy. An escalation
// writes two records in one transaction: a ledger assignment of kind
// escalated (the new owner) and an append-only escalation audit row (the
// hierarchy path). The audit row is never the source of truth for ownership;
// conflating the two would make lateral reassignment indistinguishable from
// vertical escalation in audit queries.
type EscalationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	sla        *SLAService
	logger     *zap.Logger
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	SLA        *SLAService
	Logger     *zap.Logger
}

// NewEscalationService creates the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		sla:        deps.SLA,
		logger:     logger,
	}
}

// EscalateInput parameterizes an escalation. When ToUserID is nil the target
// is resolved from the current assignee's manager chain. When Level is nil
// it is derived as one past the last recorded level; a supplied level must
// be non-negative and strictly above the last recorded level.
type EscalateInput struct {
	ToUserID *string
	Level    *int
	Reason   *string
	ActorID  *string // nil for system-initiated escalation
}

// EscalationResult pairs the two records written by Escalate.
type EscalationResult struct {
	Assignment *domain.Assignment
	Escalation *domain.Escalation
}

// Escalate hands the ticket to the next hierarchy level.
func (s *EscalationService) Escalate(ctx context.Context, ticketID string, input EscalateInput) (*EscalationResult, error) {
	var result EscalationResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if !ticket.Status.IsActive() {
			return apperrors.NewConflict("ticket is not in an escalatable state",
				map[string]any{"ticket_id": ticketID, "status": ticket.Status})
		}
		current, err := tx.Assignments().GetCurrent(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNoCurrentAssignment(ticketID)
			}
			return apperrors.MapError(err)
		}

		target, err := s.resolveTarget(ctx, tx, current.AssignedTo, input.ToUserID)
		if err != nil {
			return err
		}
		level, err := s.resolveLevel(ctx, tx, ticketID, input.Level)
		if err != nil {
			return err
		}

		if _, err := tx.Assignments().CloseCurrent(ctx, ticketID, false); err != nil {
			return apperrors.MapError(err)
		}
		assignment := &domain.Assignment{
			TicketID:   ticketID,
			AssignedTo: target.ID,
			AssignedBy: input.ActorID,
			Kind:       domain.AssignmentKindEscalated,
			IsCurrent:  true,
			Notes:      input.Reason,
		}
		if err := tx.Assignments().Create(ctx, assignment); err != nil {
			return apperrors.MapError(err)
		}
		escalation := &domain.Escalation{
			TicketID:      ticketID,
			EscalatedFrom: current.AssignedTo,
			EscalatedTo:   target.ID,
			Level:         level,
			Reason:        input.Reason,
		}
		if err := tx.Escalations().Create(ctx, escalation); err != nil {
			return apperrors.MapError(err)
		}
		if err := tx.Tickets().SetStatus(ctx, ticketID, domain.TicketStatusAssigned); err != nil {
			return apperrors.MapError(err)
		}
		result = EscalationResult{Assignment: assignment, Escalation: escalation}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sla != nil {
		_ = s.sla.Start(ctx, ticketID, result.Assignment.AssignedTo)
	}
	s.publish(ctx, events.Event{
		ID:       uuid.NewString(),
		Type:     events.EventTicketEscalated,
		TicketID: ticketID,
		ActorID:  input.ActorID,
		Payload: events.TicketEscalatedPayload{
			EscalatedFrom: result.Escalation.EscalatedFrom,
			EscalatedTo:   result.Escalation.EscalatedTo,
			Level:         result.Escalation.Level,
			Reason:        result.Escalation.Reason,
		},
	})
	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticketID),
		zap.String("from", result.Escalation.EscalatedFrom),
		zap.String("to", result.Escalation.EscalatedTo),
		zap.Int("level", result.Escalation.Level))
	return &result, nil
}

// Record inserts a bare escalation audit row. It is a pure insert, rejected
// only when required fields are missing; callers pair it with a ledger
// mutation themselves (Escalate does both in one transaction).
func (s *EscalationService) Record(ctx context.Context, escalation *domain.Escalation) error {
	if escalation.TicketID == "" || escalation.EscalatedFrom == "" || escalation.EscalatedTo == "" {
		return apperrors.NewValidationError("ticket_id, escalated_from, escalated_to required", nil)
	}
	if escalation.Level < 0 {
		return apperrors.NewInvalidHierarchy("escalation level must be non-negative",
			map[string]any{"level": escalation.Level})
	}
	if err := s.store.Escalations().Create(ctx, escalation); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// History returns the escalation audit trail for a ticket, newest first.
func (s *EscalationService) History(ctx context.Context, ticketID string, limit, offset int) ([]domain.Escalation, error) {
	history, err := s.store.Escalations().ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// Last returns the most recent escalation, or nil when none exists.
func (s *EscalationService) Last(ctx context.Context, ticketID string) (*domain.Escalation, error) {
	escalation, err := s.store.Escalations().GetLast(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return escalation, nil
}

func (s *EscalationService) resolveTarget(ctx context.Context, tx repository.Store, currentAssignee string, explicit *string) (*domain.User, error) {
	if explicit != nil {
		return fetchActiveUser(ctx, tx, *explicit)
	}
	resolver := NewHierarchyResolver(tx.Users())
	target, err := resolver.NextEscalationTarget(ctx, currentAssignee)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperrors.NewInvalidHierarchy("assignee has no manager to escalate to",
			map[string]any{"user_id": currentAssignee})
	}
	return target, nil
}

func (s *EscalationService) resolveLevel(ctx context.Context, tx repository.Store, ticketID string, explicit *int) (int, error) {
	lastLevel := 0
	last, err := tx.Escalations().GetLast(ctx, ticketID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.MapError(err)
	}
	if last != nil {
		lastLevel = last.Level
	}
	if explicit == nil {
		return lastLevel + 1, nil
	}
	if *explicit < 0 {
		return 0, apperrors.NewInvalidHierarchy("escalation level must be non-negative",
			map[string]any{"level": *explicit})
	}
	if *explicit <= lastLevel {
		return 0, apperrors.NewInvalidHierarchy("escalation level must increase",
			map[string]any{"level": *explicit, "last_level": lastLevel})
	}
	return *explicit, nil
}

func (s *EscalationService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
