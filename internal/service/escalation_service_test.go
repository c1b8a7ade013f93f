package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository/repositorytest"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

func newTestEscalationService(store *repositorytest.Store) *EscalationService {
	return NewEscalationService(EscalationDependencies{Store: store})
}

func TestEscalateWalksManagerChain(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "outage"})
	assignments := newTestAssignmentService(store, nil)
	escalations := newTestEscalationService(store)
	ctx := context.Background()

	_, err := assignments.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	reason := "customer waiting too long"
	result, err := escalations.Escalate(ctx, ticket.ID, EscalateInput{Reason: &reason})
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentKindEscalated, result.Assignment.Kind)
	require.Equal(t, john.ID, result.Assignment.AssignedTo)
	require.Equal(t, jessica.ID, result.Escalation.EscalatedFrom)
	require.Equal(t, john.ID, result.Escalation.EscalatedTo)
	require.Equal(t, 1, result.Escalation.Level)
	require.Equal(t, &reason, result.Escalation.Reason)

	// Second hop goes to John's manager and derives the next level.
	result, err = escalations.Escalate(ctx, ticket.ID, EscalateInput{})
	require.NoError(t, err)
	require.Equal(t, alex.ID, result.Assignment.AssignedTo)
	require.Equal(t, john.ID, result.Escalation.EscalatedFrom)
	require.Equal(t, 2, result.Escalation.Level)

	current := requireOneCurrent(t, store, ticket.ID)
	require.Equal(t, alex.ID, current.AssignedTo)

	history, err := escalations.History(ctx, ticket.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, alex.ID, history[0].EscalatedTo)
	require.Equal(t, john.ID, history[1].EscalatedTo)

	last, err := escalations.Last(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, 2, last.Level)
}

func TestEscalateExplicitTarget(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "security incident"})
	assignments := newTestAssignmentService(store, nil)
	escalations := newTestEscalationService(store)
	ctx := context.Background()

	_, err := assignments.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	// Skip straight to Alex, bypassing the immediate manager.
	result, err := escalations.Escalate(ctx, ticket.ID, EscalateInput{ToUserID: &alex.ID, ActorID: &john.ID})
	require.NoError(t, err)
	require.Equal(t, alex.ID, result.Assignment.AssignedTo)
	require.Equal(t, jessica.ID, result.Escalation.EscalatedFrom)
}

func TestEscalateAtTopOfHierarchyRollsBack(t *testing.T) {
	store, _, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "board complaint"})
	assignments := newTestAssignmentService(store, nil)
	escalations := newTestEscalationService(store)
	ctx := context.Background()

	created, err := assignments.Assign(ctx, ticket.ID, alex.ID, &john.ID, nil)
	require.NoError(t, err)

	_, err = escalations.Escalate(ctx, ticket.ID, EscalateInput{})
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))

	// Nothing may have been written: no audit row, ownership unchanged.
	history, err := escalations.History(ctx, ticket.ID, 50, 0)
	require.NoError(t, err)
	require.Empty(t, history)
	current := requireOneCurrent(t, store, ticket.ID)
	require.Equal(t, created.ID, current.ID)
}

func TestEscalateLevelValidation(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "sev1"})
	assignments := newTestAssignmentService(store, nil)
	escalations := newTestEscalationService(store)
	ctx := context.Background()

	_, err := assignments.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)

	negative := -1
	_, err = escalations.Escalate(ctx, ticket.ID, EscalateInput{Level: &negative})
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))

	jump := 5
	result, err := escalations.Escalate(ctx, ticket.ID, EscalateInput{Level: &jump})
	require.NoError(t, err)
	require.Equal(t, 5, result.Escalation.Level)

	// Levels are strictly increasing per ticket.
	stale := 3
	_, err = escalations.Escalate(ctx, ticket.ID, EscalateInput{ToUserID: &alex.ID, Level: &stale})
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))

	result, err = escalations.Escalate(ctx, ticket.ID, EscalateInput{ToUserID: &alex.ID})
	require.NoError(t, err)
	require.Equal(t, 6, result.Escalation.Level)
}

func TestEscalateWithoutCurrentAssignment(t *testing.T) {
	store, _, _, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "orphaned"})
	escalations := newTestEscalationService(store)

	_, err := escalations.Escalate(context.Background(), ticket.ID, EscalateInput{})
	require.True(t, apperrors.HasCode(err, apperrors.CodeNoCurrentAssignment))
}

func TestEscalateClosedTicket(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "resolved"})
	assignments := newTestAssignmentService(store, nil)
	escalations := newTestEscalationService(store)
	ctx := context.Background()

	_, err := assignments.Assign(ctx, ticket.ID, jessica.ID, &john.ID, nil)
	require.NoError(t, err)
	_, err = assignments.Complete(ctx, ticket.ID, &jessica)
	require.NoError(t, err)

	_, err = escalations.Escalate(ctx, ticket.ID, EscalateInput{})
	require.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestLastWithoutEscalations(t *testing.T) {
	store, _, _, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "quiet"})
	escalations := newTestEscalationService(store)

	last, err := escalations.Last(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestRecordValidation(t *testing.T) {
	store, jessica, john, _ := seedChain(t)
	ticket := store.SeedTicket(domain.Ticket{Title: "audit import"})
	escalations := newTestEscalationService(store)
	ctx := context.Background()

	err := escalations.Record(ctx, &domain.Escalation{TicketID: ticket.ID, EscalatedFrom: jessica.ID})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	err = escalations.Record(ctx, &domain.Escalation{
		TicketID: ticket.ID, EscalatedFrom: jessica.ID, EscalatedTo: john.ID, Level: -2,
	})
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))

	err = escalations.Record(ctx, &domain.Escalation{
		TicketID: ticket.ID, EscalatedFrom: jessica.ID, EscalatedTo: john.ID, Level: 1,
	})
	require.NoError(t, err)

	history, err := escalations.History(ctx, ticket.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
