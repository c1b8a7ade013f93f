package events

import (
	"time"

	"github.com/opsdesk/ticketflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketReassigned EventType = "ticket_reassigned"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventTicketCompleted  EventType = "ticket_completed"
)

// Event represents a domain event emitted by services. ActorID is nil for
// system-initiated operations such as auto-assignment and SLA escalation.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedTo string                `json:"assigned_to"`
	Kind       domain.AssignmentKind `json:"kind"`
	Notes      *string               `json:"notes,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	EscalatedFrom string  `json:"escalated_from"`
	EscalatedTo   string  `json:"escalated_to"`
	Level         int     `json:"level"`
	Reason        *string `json:"reason,omitempty"`
}

// TicketCompletedPayload payload.
type TicketCompletedPayload struct {
	AssignedTo  string    `json:"assigned_to"`
	CompletedAt time.Time `json:"completed_at"`
}
