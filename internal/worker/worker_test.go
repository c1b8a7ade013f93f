package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository/repositorytest"
	"github.com/opsdesk/ticketflow/internal/service"
)

func seedAgentPool(t *testing.T) (*repositorytest.Store, domain.User, domain.User) {
	t.Helper()
	store := repositorytest.NewStore()
	manager := store.SeedUser(domain.User{
		Email: "lead@example.com", Role: domain.RoleManager, IsActive: true,
	})
	agent := store.SeedUser(domain.User{
		Email: "agent@example.com", Role: domain.RoleUser,
		ManagerID: &manager.ID, IsActive: true, IsAcceptingTickets: true,
	})
	return store, agent, manager
}

func newServices(store *repositorytest.Store) (*service.AssignmentService, *service.EscalationService, *service.AutoAssignService) {
	assignments := service.NewAssignmentService(service.AssignmentDependencies{Store: store})
	escalations := service.NewEscalationService(service.EscalationDependencies{Store: store})
	autoAssign := service.NewAutoAssignService(store, assignments, nil)
	return assignments, escalations, autoAssign
}

func TestRetrySweepAssignsQueuedTickets(t *testing.T) {
	store, agent, _ := seedAgentPool(t)
	assignments, _, autoAssign := newServices(store)
	w := NewAssignmentRetry(store, autoAssign, time.Minute, zap.NewNop())
	ctx := context.Background()

	first := store.SeedTicket(domain.Ticket{Title: "stuck one"})
	second := store.SeedTicket(domain.Ticket{Title: "stuck two"})

	assigned := w.sweep(ctx)
	require.Equal(t, 2, assigned)

	for _, id := range []string{first.ID, second.ID} {
		current, err := assignments.GetCurrent(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, current)
		require.Equal(t, agent.ID, current.AssignedTo)
	}
}

func TestRetrySweepLeavesTicketsWhenNoCapacity(t *testing.T) {
	store := repositorytest.NewStore()
	_, _, autoAssign := newServices(store)
	w := NewAssignmentRetry(store, autoAssign, time.Minute, zap.NewNop())
	ctx := context.Background()

	ticket := store.SeedTicket(domain.Ticket{Title: "nobody available"})

	require.Equal(t, 0, w.sweep(ctx))

	fetched, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusQueued, fetched.Status)
}

func TestSLAExpiryEscalatesToManager(t *testing.T) {
	store, agent, manager := seedAgentPool(t)
	assignments, escalations, _ := newServices(store)
	monitor := NewSLAMonitor(nil, 0, store, escalations, zap.NewNop())
	ctx := context.Background()

	ticket := store.SeedTicket(domain.Ticket{Title: "no response"})
	_, err := assignments.Assign(ctx, ticket.ID, agent.ID, &manager.ID, nil)
	require.NoError(t, err)

	monitor.handleExpiry(ctx, ticket.ID)

	current, err := assignments.GetCurrent(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, manager.ID, current.AssignedTo)
	require.Equal(t, domain.AssignmentKindEscalated, current.Kind)

	last, err := escalations.Last(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, 1, last.Level)
	require.NotNil(t, last.Reason)
}

func TestSLAExpiryIgnoresClosedTickets(t *testing.T) {
	store, agent, manager := seedAgentPool(t)
	assignments, escalations, _ := newServices(store)
	monitor := NewSLAMonitor(nil, 0, store, escalations, zap.NewNop())
	ctx := context.Background()

	ticket := store.SeedTicket(domain.Ticket{Title: "wrapped up"})
	_, err := assignments.Assign(ctx, ticket.ID, agent.ID, &manager.ID, nil)
	require.NoError(t, err)
	_, err = assignments.Complete(ctx, ticket.ID, nil)
	require.NoError(t, err)

	monitor.handleExpiry(ctx, ticket.ID)

	last, err := escalations.Last(ctx, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestSLAExpiryAtTopOfHierarchyIsTerminal(t *testing.T) {
	store, _, manager := seedAgentPool(t)
	assignments, escalations, _ := newServices(store)
	monitor := NewSLAMonitor(nil, 0, store, escalations, zap.NewNop())
	ctx := context.Background()

	ticket := store.SeedTicket(domain.Ticket{Title: "top already"})
	_, err := assignments.Assign(ctx, ticket.ID, manager.ID, nil, nil)
	require.NoError(t, err)

	// Manager has no manager; expiry must log and leave ownership alone.
	monitor.handleExpiry(ctx, ticket.ID)

	current, err := assignments.GetCurrent(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, manager.ID, current.AssignedTo)
}
