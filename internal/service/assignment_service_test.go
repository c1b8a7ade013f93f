package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/events"
	"github.com/opsdesk/ticketflow/internal/repository/repositorytest"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

func newTestAssignmentService(store *repositorytest.Store, dispatcher events.Dispatcher) *AssignmentService {
	return NewAssignmentService(AssignmentDependencies{Store: store, Dispatcher: dispatcher})
}

// requireOneCurrent asserts the ledger invariant: at most one current row per
// ticket, checked against the raw rows rather than the query path.
func requireOneCurrent(t *testing.T, store *repositorytest.Store, ticketID string) domain.Assignment {
	t.Helper()
	var current []domain.Assignment
	for _, a := range store.AllAssignments() {
		if a.TicketID == ticketID && a.IsCurrent {
			current = append(current, a)
		}
	}
	require.Len(t, current, 1)
	return current[0]
}

func TestAssignAndGetCurrent(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "printer on fire"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	created, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentKindAssigned, created.Kind)
	require.True(t, created.IsCurrent)
	require.Equal(t, jessica.ID, created.AssignedTo)
	require.Equal(t, &john.ID, created.AssignedBy)
	require.Nil(t, created.CompletedAt)

	current, err := svc.GetCurrent(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, created.ID, current.ID)

	updated, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAssigned, updated.Status)
}

func TestAssignRejectsSecondCurrent(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "vpn down"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, ticket.ID, alex.ID, &john.ID, nil)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyAssigned))

	// Failed attempt must leave no trace in the ledger.
	require.Len(t, store.AllAssignments(), 1)
	current := requireOneCurrent(t, store, ticket.ID)
	require.Equal(t, jessica.ID, current.AssignedTo)
}

func TestAssignUnknownTicketAndUser(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "laptop lost"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, "missing-ticket", jessica.ID, &john.ID, nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = svc.Assign(ctx, ticket.ID, "missing-user", &john.ID, nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	require.Empty(t, store.AllAssignments())
}

func TestAssignInactiveAssignee(t *testing.T) {
	store, _, john, _ := seedChain(t)
	ghost := store.SeedUser(domain.User{Email: "ghost@example.com", Role: domain.RoleUser, IsActive: false})
	ticket := store.SeedTicket(domain.Ticket{Title: "stale account"})
	svc := newTestAssignmentService(store, nil)

	_, err := svc.Assign(context.Background(), ticket.ID, ghost.ID, &john.ID, nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestReassignClosesPriorAssignment(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "email bounce"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	first, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	notes := "jessica is out sick"
	second, err := svc.Reassign(ctx, ticket.ID, alex.ID, &john.ID, &notes)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentKindReassigned, second.Kind)
	require.Equal(t, alex.ID, second.AssignedTo)

	current := requireOneCurrent(t, store, ticket.ID)
	require.Equal(t, second.ID, current.ID)

	for _, a := range store.AllAssignments() {
		if a.ID == first.ID {
			require.False(t, a.IsCurrent)
			// Handoff is not completion; no completion stamp.
			require.Nil(t, a.CompletedAt)
		}
	}
}

func TestReassignWithoutCurrentAssignment(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "never assigned"})
	svc := newTestAssignmentService(store, nil)

	_, err := svc.Reassign(context.Background(), ticket.ID, jessica.ID, &john.ID, nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNoCurrentAssignment))
}

func TestCompleteStampsAndTerminates(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "password reset"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	closed, err := svc.Complete(ctx, ticket.ID, &jessica)
	require.NoError(t, err)
	require.False(t, closed.IsCurrent)
	require.NotNil(t, closed.CompletedAt)

	updated, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusDone, updated.Status)

	current, err := svc.GetCurrent(ctx, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, current)

	// Completion is terminal for the assignment chain.
	_, err = svc.Reassign(ctx, ticket.ID, john.ID, &john.ID, nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNoCurrentAssignment))
}

func TestCompleteByManagerOfRecord(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "access request"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, ticket.ID, &john)
	require.NoError(t, err)
}

func TestCompleteForbiddenRollsBack(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	bystander := store.SeedUser(domain.User{
		Email: "sam@example.com", Role: domain.RoleUser, IsActive: true,
	})
	ticket := store.SeedTicket(domain.Ticket{Title: "disk full"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, ticket.ID, &bystander)
	require.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	// The rejected completion must not have closed the assignment.
	current, err := svc.GetCurrent(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, jessica.ID, current.AssignedTo)
	require.Nil(t, current.CompletedAt)
}

func TestHistoryNewestFirst(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "flaky wifi"})
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)
	_, err = svc.Reassign(ctx, ticket.ID, alex.ID, &john.ID, nil)
	require.NoError(t, err)

	history, err := svc.History(ctx, ticket.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.AssignmentKindReassigned, history[0].Kind)
	require.Equal(t, domain.AssignmentKindAssigned, history[1].Kind)

	page, err := svc.History(ctx, ticket.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, domain.AssignmentKindAssigned, page[0].Kind)
}

func TestWorkloadForUser(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	svc := newTestAssignmentService(store, nil)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		ticket := store.SeedTicket(domain.Ticket{Title: title})
		_, err := svc.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
		require.NoError(t, err)
	}
	done := store.SeedTicket(domain.Ticket{Title: "four"})
	_, err := svc.Assign(ctx, done.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, done.ID, &jessica)
	require.NoError(t, err)

	workload, err := svc.WorkloadForUser(ctx, jessica.ID)
	require.NoError(t, err)
	require.Len(t, workload, 3)

	_, err = svc.WorkloadForUser(ctx, "missing")
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
