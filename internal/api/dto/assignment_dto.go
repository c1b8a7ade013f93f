package dto

import (
	"time"

	"github.com/opsdesk/ticketflow/internal/domain"
)

// AssignRequest payload for assign and reassign.
type AssignRequest struct {
	AssigneeID string  `json:"assignee_id"`
	Notes      *string `json:"notes"`
}

// EscalateRequest payload. All fields optional; target and level are
// resolved from the hierarchy when omitted.
type EscalateRequest struct {
	ToUserID *string `json:"to_user_id"`
	Level    *int    `json:"level"`
	Reason   *string `json:"reason"`
}

// AssignmentResponse response.
type AssignmentResponse struct {
	ID          string                `json:"id"`
	TicketID    string                `json:"ticket_id"`
	AssignedTo  string                `json:"assigned_to"`
	AssignedBy  *string               `json:"assigned_by,omitempty"`
	Kind        domain.AssignmentKind `json:"kind"`
	IsCurrent   bool                  `json:"is_current"`
	AssignedAt  time.Time             `json:"assigned_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Notes       *string               `json:"notes,omitempty"`
}

// EscalationResponse response.
type EscalationResponse struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticket_id"`
	EscalatedFrom string    `json:"escalated_from"`
	EscalatedTo   string    `json:"escalated_to"`
	Level         int       `json:"level"`
	Reason        *string   `json:"reason,omitempty"`
	EscalatedAt   time.Time `json:"escalated_at"`
}

// NotificationResponse response.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  *string                 `json:"ticket_id,omitempty"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewAssignmentResponse maps a ledger entry.
func NewAssignmentResponse(a *domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		AssignedTo:  a.AssignedTo,
		AssignedBy:  a.AssignedBy,
		Kind:        a.Kind,
		IsCurrent:   a.IsCurrent,
		AssignedAt:  a.AssignedAt,
		CompletedAt: a.CompletedAt,
		Notes:       a.Notes,
	}
}

// NewEscalationResponse maps an audit entry.
func NewEscalationResponse(e *domain.Escalation) EscalationResponse {
	return EscalationResponse{
		ID:            e.ID,
		TicketID:      e.TicketID,
		EscalatedFrom: e.EscalatedFrom,
		EscalatedTo:   e.EscalatedTo,
		Level:         e.Level,
		Reason:        e.Reason,
		EscalatedAt:   e.EscalatedAt,
	}
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		TicketID:  n.TicketID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
