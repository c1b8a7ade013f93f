package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/events"
	"github.com/opsdesk/ticketflow/internal/repository"
)

// NotificationService turns domain events into stored inbox notifications.
// Delivery is best-effort; a failed insert is logged, never propagated back
// into the ledger operation that emitted the event.
type NotificationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleAssigned)
	n.dispatcher.Subscribe(events.EventTicketReassigned, n.handleAssigned)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleEscalated)
	n.dispatcher.Subscribe(events.EventTicketCompleted, n.handleCompleted)
}

func (n *NotificationService) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	n.create(ctx, &domain.Notification{
		UserID:        payload.AssignedTo,
		TicketID:      &event.TicketID,
		RelatedUserID: event.ActorID,
		Type:          domain.NotificationTicketAssigned,
		Title:         "New Ticket Assigned",
		Message:       "You have been assigned a ticket",
	})
	return nil
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return nil
	}
	n.create(ctx, &domain.Notification{
		UserID:        payload.EscalatedTo,
		TicketID:      &event.TicketID,
		RelatedUserID: event.ActorID,
		Type:          domain.NotificationTicketEscalated,
		Title:         "Ticket Escalated To You",
		Message:       "A ticket has been escalated to you for attention",
	})
	return nil
}

func (n *NotificationService) handleCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCompletedPayload)
	if !ok {
		return nil
	}
	n.create(ctx, &domain.Notification{
		UserID:   payload.AssignedTo,
		TicketID: &event.TicketID,
		Type:     domain.NotificationTicketCompleted,
		Title:    "Ticket Completed",
		Message:  "Your ticket has been marked as done",
	})
	return nil
}

func (n *NotificationService) create(ctx context.Context, notification *domain.Notification) {
	if err := n.store.Notifications().Create(ctx, notification); err != nil {
		n.logger.Error("failed to store notification",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
		return
	}
	n.logger.Info("notification stored",
		zap.String("user_id", notification.UserID),
		zap.String("type", string(notification.Type)))
}
