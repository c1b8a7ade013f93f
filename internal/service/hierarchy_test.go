package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository/repositorytest"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// seedChain builds Jessica -> John -> Alex -> (none).
func seedChain(t *testing.T) (*repositorytest.Store, domain.User, domain.User, domain.User) {
	t.Helper()
	store := repositorytest.NewStore()
	alex := store.SeedUser(domain.User{
		Email: "alex@example.com", FirstName: "Alex", LastName: "Stone",
		Role: domain.RoleAdmin, IsActive: true,
	})
	john := store.SeedUser(domain.User{
		Email: "john@example.com", FirstName: "John", LastName: "Reed",
		Role: domain.RoleManager, ManagerID: &alex.ID, IsActive: true,
	})
	jessica := store.SeedUser(domain.User{
		Email: "jessica@example.com", FirstName: "Jessica", LastName: "Lane",
		Role: domain.RoleUser, ManagerID: &john.ID, IsActive: true, IsAcceptingTickets: true,
	})
	return store, jessica, john, alex
}

func TestNextEscalationTarget(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	resolver := NewHierarchyResolver(store.Users())
	ctx := context.Background()

	target, err := resolver.NextEscalationTarget(ctx, jessica.ID)
	require.NoError(t, err)
	require.NotNil(t, target)
	require.Equal(t, john.ID, target.ID)

	target, err = resolver.NextEscalationTarget(ctx, john.ID)
	require.NoError(t, err)
	require.Equal(t, alex.ID, target.ID)

	// Alex has no manager; no further escalation target.
	target, err = resolver.NextEscalationTarget(ctx, alex.ID)
	require.NoError(t, err)
	require.Nil(t, target)
}

func TestNextEscalationTargetUnknownUser(t *testing.T) {
	store, _, _, _ := seedChain(t)
	resolver := NewHierarchyResolver(store.Users())

	_, err := resolver.NextEscalationTarget(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestNextEscalationTargetSelfManager(t *testing.T) {
	store := repositorytest.NewStore()
	id := "self-managed"
	store.SeedUser(domain.User{ID: id, ManagerID: &id, Email: "loop@example.com", Role: domain.RoleManager, IsActive: true})
	resolver := NewHierarchyResolver(store.Users())

	_, err := resolver.NextEscalationTarget(context.Background(), id)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))
}

func TestDepth(t *testing.T) {
	store, jessica, john, alex := seedChain(t)
	resolver := NewHierarchyResolver(store.Users())
	ctx := context.Background()

	depth, err := resolver.Depth(ctx, jessica.ID, jessica.ID)
	require.NoError(t, err)
	require.Equal(t, 0, depth)

	depth, err = resolver.Depth(ctx, jessica.ID, john.ID)
	require.NoError(t, err)
	require.Equal(t, 1, depth)

	depth, err = resolver.Depth(ctx, jessica.ID, alex.ID)
	require.NoError(t, err)
	require.Equal(t, 2, depth)

	// Lateral or downward targets are not reachable.
	_, err = resolver.Depth(ctx, alex.ID, jessica.ID)
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))
}

func TestDepthCycleDetection(t *testing.T) {
	store := repositorytest.NewStore()
	// a -> b -> a: malformed data must fail, not hang.
	idA, idB := "user-a", "user-b"
	store.SeedUser(domain.User{ID: idA, ManagerID: &idB, Email: "a@example.com", Role: domain.RoleUser, IsActive: true})
	store.SeedUser(domain.User{ID: idB, ManagerID: &idA, Email: "b@example.com", Role: domain.RoleManager, IsActive: true})
	resolver := NewHierarchyResolver(store.Users())

	_, err := resolver.Depth(context.Background(), idA, "unreachable")
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidHierarchy))
}
