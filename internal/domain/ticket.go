package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusQueued     TicketStatus = "queued"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusDone       TicketStatus = "done"
)

// ActiveTicketStatuses are the states that count toward an agent's load and
// in which a ticket may still be escalated.
var ActiveTicketStatuses = []TicketStatus{
	TicketStatusQueued,
	TicketStatusAssigned,
	TicketStatusInProgress,
}

// IsActive reports whether the status counts as open work.
func (s TicketStatus) IsActive() bool {
	for _, st := range ActiveTicketStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Ticket is a support request. Current ownership is not stored here; it is
// derived from the assignment ledger.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
