package domain

import "time"

// NotificationType distinguishes what triggered a notification.
type NotificationType string

const (
	NotificationTicketAssigned  NotificationType = "ticket_assigned"
	NotificationTicketEscalated NotificationType = "ticket_escalated"
	NotificationTicketCompleted NotificationType = "ticket_completed"
)

// Notification is a stored message for a user's inbox.
type Notification struct {
	ID            string
	UserID        string
	TicketID      *string
	RelatedUserID *string
	Type          NotificationType
	Title         string
	Message       string
	IsRead        bool
	CreatedAt     time.Time
}
