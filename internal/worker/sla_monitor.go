package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/persistence"
	"github.com/opsdesk/ticketflow/internal/repository"
	"github.com/opsdesk/ticketflow/internal/service"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// SLAMonitor escalates tickets whose response timer expired. It subscribes
// to Redis keyspace notifications for expired keys; Redis must be started
// with notify-keyspace-events including "Ex".
type SLAMonitor struct {
	redis       *persistence.Redis
	redisDB     int
	store       repository.Store
	escalations *service.EscalationService
	logger      *zap.Logger
}

// NewSLAMonitor builds the worker.
func NewSLAMonitor(redis *persistence.Redis, redisDB int, store repository.Store, escalations *service.EscalationService, logger *zap.Logger) *SLAMonitor {
	return &SLAMonitor{
		redis:       redis,
		redisDB:     redisDB,
		store:       store,
		escalations: escalations,
		logger:      logger,
	}
}

// Run blocks consuming expiry notifications until ctx is cancelled.
func (w *SLAMonitor) Run(ctx context.Context) error {
	if w.redis == nil || w.redis.Client == nil {
		w.logger.Warn("redis not configured; sla monitor disabled")
		return nil
	}
	channel := fmt.Sprintf("__keyevent@%d__:expired", w.redisDB)
	pubsub := w.redis.Client.Subscribe(ctx, channel)
	defer pubsub.Close()

	w.logger.Info("sla monitor started", zap.String("channel", channel))
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ticketID, valid := service.TicketIDFromSLAKey(msg.Payload)
			if !valid {
				continue
			}
			w.handleExpiry(ctx, ticketID)
		}
	}
}

func (w *SLAMonitor) handleExpiry(ctx context.Context, ticketID string) {
	ticket, err := w.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		w.logger.Warn("sla expiry for unknown ticket", zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	if ticket.Status != domain.TicketStatusAssigned && ticket.Status != domain.TicketStatusInProgress {
		w.logger.Info("sla expiry ignored, ticket not escalatable",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(ticket.Status)))
		return
	}

	reason := "SLA breach: no response within the configured window"
	_, err = w.escalations.Escalate(ctx, ticketID, service.EscalateInput{Reason: &reason})
	if err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeInvalidHierarchy):
			// Top of the hierarchy; nothing above to escalate to. The timer
			// stays cleared and admins learn about it from the log stream.
			w.logger.Warn("final escalation level reached", zap.String("ticket_id", ticketID), zap.Error(err))
		case apperrors.HasCode(err, apperrors.CodeNoCurrentAssignment),
			apperrors.HasCode(err, apperrors.CodeConcurrentModification):
			w.logger.Info("sla escalation skipped", zap.String("ticket_id", ticketID), zap.Error(err))
		default:
			w.logger.Error("sla escalation failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return
	}
	w.logger.Info("sla escalation applied", zap.String("ticket_id", ticketID))
}
