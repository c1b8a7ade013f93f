package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/ticketflow/internal/api/dto"
	"github.com/opsdesk/ticketflow/internal/repository"
	"github.com/opsdesk/ticketflow/internal/service"
)

// UsersHandler exposes per-user workload and inbox endpoints.
type UsersHandler struct {
	assignments   *service.AssignmentService
	notifications repository.NotificationRepository
}

// NewUsersHandler constructs handler.
func NewUsersHandler(assignments *service.AssignmentService, notifications repository.NotificationRepository) *UsersHandler {
	return &UsersHandler{assignments: assignments, notifications: notifications}
}

// Workload GET /users/:id/assignments.
func (h *UsersHandler) Workload(c *fiber.Ctx) error {
	assignments, err := h.assignments.WorkloadForUser(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		items = append(items, dto.NewAssignmentResponse(&assignments[i]))
	}
	return c.JSON(fiber.Map{"data": items, "active_load": len(items)})
}

// Notifications GET /notifications for the authenticated user.
func (h *UsersHandler) Notifications(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	notifications, err := h.notifications.ListByUser(c.Context(), actor.ID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		items = append(items, dto.NewNotificationResponse(&notifications[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
