package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-ticket/internal/api/dto"
	"github.com/spec-kit/service-ticket/internal/auth"
	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
	"github.com/spec-kit/service-ticket/internal/service"
	"github.com/spec-kit/service-ticket/internal/workflow"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		AssignedToID: req.AssignedToID,
	}
	if req.Severity != "" {
		severity, err := domain.ParseTicketSeverity(req.Severity)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		input.Severity = severity
	}
	if input.DueDate, err = dto.ParseDueDate(req.DueDate); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	ticket, err := h.service.Create(c.UserContext(), principal.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.FindAll(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(page.Tickets, page.Total, page.Limit, page.Offset))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketUpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		AssignedToID: req.AssignedToID,
		Reason:       req.Reason,
	}
	if req.Severity != nil {
		severity, err := domain.ParseTicketSeverity(*req.Severity)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		input.Severity = &severity
	}
	if req.Status != nil {
		status, err := domain.ParseTicketStatus(*req.Status)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		input.Status = &status
	}
	if input.DueDate, err = dto.ParseDueDateUpdate(req.DueDate); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	ticket, err := h.service.Update(c.UserContext(), c.Params("id"), input, actorOf(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ApproveTicket POST /tickets/:id/approve.
func (h *TicketsHandler) ApproveTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Approve(c.UserContext(), c.Params("id"), actorOf(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.DeleteTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := h.service.Remove(c.UserContext(), c.Params("id"), principal.ID, req.Reason); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// TicketHistory GET /tickets/:id/history.
func (h *TicketsHandler) TicketHistory(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

// Transitions GET /tickets/transitions.
func (h *TicketsHandler) Transitions(c *fiber.Ctx) error {
	resp := dto.TransitionsResponse{Transitions: map[domain.TicketStatus][]domain.TicketStatus{}}
	for _, status := range domain.TicketStatuses {
		resp.Transitions[status] = workflow.AllowedTransitions(status)
	}
	return c.JSON(resp)
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	var err error

	if filter.Statuses, err = dto.ParseStatuses(c.Query("status")); err != nil {
		return filter, apperrors.NewValidationError(err.Error(), nil)
	}
	if filter.Severities, err = dto.ParseSeverities(c.Query("severity")); err != nil {
		return filter, apperrors.NewValidationError(err.Error(), nil)
	}
	if v := strings.TrimSpace(c.Query("search")); v != "" {
		filter.SearchTerm = &v
	}
	if v := c.Query("assignedToId"); v != "" {
		filter.AssignedToID = &v
	}
	if v := c.Query("createdById"); v != "" {
		filter.CreatedByID = &v
	}
	filter.SortBy = c.Query("sortBy")
	filter.SortDesc = strings.EqualFold(c.Query("sortOrder"), "desc")

	page := parseInt(c.Query("page"), 1)
	limit := parseInt(c.Query("limit"), 10)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	return filter, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func actorOf(principal *auth.Principal) service.Actor {
	return service.Actor{ID: principal.ID, Role: principal.Role}
}
