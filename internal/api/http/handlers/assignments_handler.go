package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/ticketflow/internal/api/dto"
	"github.com/opsdesk/ticketflow/internal/auth"
	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/service"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// AssignmentsHandler exposes the ticket ownership ledger over HTTP.
type AssignmentsHandler struct {
	assignments *service.AssignmentService
	escalations *service.EscalationService
	autoAssign  *service.AutoAssignService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignments *service.AssignmentService, escalations *service.EscalationService, autoAssign *service.AutoAssignService) *AssignmentsHandler {
	return &AssignmentsHandler{
		assignments: assignments,
		escalations: escalations,
		autoAssign:  autoAssign,
	}
}

// Assign POST /tickets/:id/assign.
func (h *AssignmentsHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	assignment, err := h.assignments.Assign(c.Context(), c.Params("id"), req.AssigneeID, &actor.ID, req.Notes)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// AutoAssign POST /tickets/:id/auto-assign.
func (h *AssignmentsHandler) AutoAssign(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if err != nil {
		return err
	}
	assignment, err := h.autoAssign.AutoAssign(c.Context(), c.Params("id"), &actor.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Reassign POST /tickets/:id/reassign.
func (h *AssignmentsHandler) Reassign(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	assignment, err := h.assignments.Reassign(c.Context(), c.Params("id"), req.AssigneeID, &actor.ID, req.Notes)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Escalate POST /tickets/:id/escalate.
func (h *AssignmentsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.escalations.Escalate(c.Context(), c.Params("id"), service.EscalateInput{
		ToUserID: req.ToUserID,
		Level:    req.Level,
		Reason:   req.Reason,
		ActorID:  &actor.ID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"assignment": dto.NewAssignmentResponse(result.Assignment),
		"escalation": dto.NewEscalationResponse(result.Escalation),
	}})
}

// Complete POST /tickets/:id/complete.
func (h *AssignmentsHandler) Complete(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if err != nil {
		return err
	}
	assignment, err := h.assignments.Complete(c.Context(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// GetCurrent GET /tickets/:id/assignment.
func (h *AssignmentsHandler) GetCurrent(c *fiber.Ctx) error {
	assignment, err := h.assignments.GetCurrent(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if assignment == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// History GET /tickets/:id/assignments.
func (h *AssignmentsHandler) History(c *fiber.Ctx) error {
	limit, offset := parsePagination(c)
	history, err := h.assignments.History(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentResponse, 0, len(history))
	for i := range history {
		items = append(items, dto.NewAssignmentResponse(&history[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Escalations GET /tickets/:id/escalations.
func (h *AssignmentsHandler) Escalations(c *fiber.Ctx) error {
	limit, offset := parsePagination(c)
	history, err := h.escalations.History(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(history))
	for i := range history {
		items = append(items, dto.NewEscalationResponse(&history[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// LastEscalation GET /tickets/:id/escalations/last.
func (h *AssignmentsHandler) LastEscalation(c *fiber.Ctx) error {
	escalation, err := h.escalations.Last(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if escalation == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationResponse(escalation)})
}

func requireUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	limit = 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
