package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// HierarchyResolver walks the manager chain to find escalation targets.
// The chain is assumed acyclic, but the resolver guards against malformed
// data rather than looping forever.
type HierarchyResolver struct {
	users repository.UserRepository
}

// NewHierarchyResolver builds a resolver over the given user directory.
func NewHierarchyResolver(users repository.UserRepository) *HierarchyResolver {
	return &HierarchyResolver{users: users}
}

// NextEscalationTarget returns the immediate manager of the given user, or
// nil when the user sits at the top of the hierarchy.
func (r *HierarchyResolver) NextEscalationTarget(ctx context.Context, userID string) (*domain.User, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if user.ManagerID == nil {
		return nil, nil
	}
	if *user.ManagerID == user.ID {
		return nil, apperrors.NewInvalidHierarchy("user is their own manager", map[string]any{"user_id": userID})
	}
	manager, err := r.users.GetByID(ctx, *user.ManagerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidHierarchy("manager reference is dangling",
				map[string]any{"user_id": userID, "manager_id": *user.ManagerID})
		}
		return nil, apperrors.MapError(err)
	}
	return manager, nil
}

// Depth returns the number of manager hops from fromID up to toID.
// It fails with an invalid-hierarchy error when the chain cycles or ends
// without reaching the target.
func (r *HierarchyResolver) Depth(ctx context.Context, fromID, toID string) (int, error) {
	visited := map[string]struct{}{}
	currentID := fromID
	depth := 0
	for {
		if currentID == toID {
			return depth, nil
		}
		if _, seen := visited[currentID]; seen {
			return 0, apperrors.NewInvalidHierarchy("manager chain contains a cycle",
				map[string]any{"user_id": currentID})
		}
		visited[currentID] = struct{}{}

		user, err := r.users.GetByID(ctx, currentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, apperrors.NewNotFound("user", map[string]any{"user_id": currentID})
			}
			return 0, apperrors.MapError(err)
		}
		if user.ManagerID == nil {
			return 0, apperrors.NewInvalidHierarchy("target is not above user in the hierarchy",
				map[string]any{"from": fromID, "to": toID})
		}
		currentID = *user.ManagerID
		depth++
	}
}
