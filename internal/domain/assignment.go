package domain

import "time"

// AssignmentKind captures how an assignment came to be.
type AssignmentKind string

const (
	AssignmentKindAssigned   AssignmentKind = "assigned"
	AssignmentKindEscalated  AssignmentKind = "escalated"
	AssignmentKindReassigned AssignmentKind = "reassigned"
	AssignmentKindCompleted  AssignmentKind = "completed"
)

// Assignment is one entry in the per-ticket ownership ledger. At most one
// entry per ticket has IsCurrent set; superseded entries are never modified.
type Assignment struct {
	ID           string
	TicketID     string
	AssignedTo   string
	AssignedBy   *string // nil for system-initiated assignments
	Kind         AssignmentKind
	IsCurrent    bool
	AssignedAt   time.Time
	CompletedAt  *time.Time // set only when the ticket was resolved under this assignment
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
