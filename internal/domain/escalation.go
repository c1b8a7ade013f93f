package domain

import "time"

// Escalation is an append-only audit record of one hop up the management
// hierarchy. It never changes after insert and is never consulted to decide
// current ownership; that is the assignment ledger's job.
type Escalation struct {
	ID            string
	TicketID      string
	EscalatedFrom string
	EscalatedTo   string
	// Level is the hierarchy depth of the target relative to the original
	// assignee: 0 = employee, 1 = manager, 2 = senior manager, and so on.
	Level       int
	Reason      *string
	EscalatedAt time.Time
	CreatedAt   time.Time
}
