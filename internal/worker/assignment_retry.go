package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository"
	"github.com/opsdesk/ticketflow/internal/service"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

const retryBatchSize = 100

// AssignmentRetry periodically re-attempts auto-assignment of tickets left
// queued because no agent was available.
type AssignmentRetry struct {
	store      repository.Store
	autoAssign *service.AutoAssignService
	interval   time.Duration
	logger     *zap.Logger
}

// NewAssignmentRetry builds the worker.
func NewAssignmentRetry(store repository.Store, autoAssign *service.AutoAssignService, interval time.Duration, logger *zap.Logger) *AssignmentRetry {
	return &AssignmentRetry{
		store:      store,
		autoAssign: autoAssign,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks retrying queued tickets until ctx is cancelled.
func (w *AssignmentRetry) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("assignment retry worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			assigned := w.sweep(ctx)
			if assigned > 0 {
				w.logger.Info("retry cycle assigned tickets", zap.Int("count", assigned))
			}
		}
	}
}

func (w *AssignmentRetry) sweep(ctx context.Context) int {
	queued, err := w.store.Tickets().ListByStatus(ctx, domain.TicketStatusQueued, retryBatchSize)
	if err != nil {
		w.logger.Error("failed to list queued tickets", zap.Error(err))
		return 0
	}

	assigned := 0
	for _, ticket := range queued {
		if ctx.Err() != nil {
			return assigned
		}
		if _, err := w.autoAssign.AutoAssign(ctx, ticket.ID, nil); err != nil {
			if apperrors.HasCode(err, apperrors.CodeConflict) {
				// Still no capacity, or the ticket moved on; next cycle.
				continue
			}
			w.logger.Warn("retry assignment failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		assigned++
	}
	return assigned
}
