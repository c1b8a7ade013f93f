package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// AutoAssignService routes queued tickets to the least-loaded eligible
// agent. Eligibility: active, accepting tickets, role user, under capacity.
// Load counts current assignments on tickets that are still open.
type AutoAssignService struct {
	store       repository.Store
	assignments *AssignmentService
	logger      *zap.Logger
}

// NewAutoAssignService creates the service.
func NewAutoAssignService(store repository.Store, assignments *AssignmentService, logger *zap.Logger) *AutoAssignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoAssignService{store: store, assignments: assignments, logger: logger}
}

// AutoAssign picks an agent for a queued ticket and creates the initial
// assignment. actorID is nil when invoked by the retry worker.
func (s *AutoAssignService) AutoAssign(ctx context.Context, ticketID string, actorID *string) (*domain.Assignment, error) {
	ticket, err := s.assignments.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusQueued {
		return nil, apperrors.NewConflict("ticket is not queued",
			map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}

	candidates, err := s.store.Users().ListCandidatesByLoad(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflict("no eligible agents available", map[string]any{"ticket_id": ticketID})
	}

	best := candidates[0]
	s.logger.Info("auto-assigning ticket",
		zap.String("ticket_id", ticketID),
		zap.String("user_id", best.User.ID),
		zap.Int("active_load", best.ActiveLoad))

	// Assign re-checks for an existing current assignment under the ticket
	// row lock, so two racing auto-assigns collapse into one winner.
	return s.assignments.Assign(ctx, ticketID, best.User.ID, actorID, nil)
}
