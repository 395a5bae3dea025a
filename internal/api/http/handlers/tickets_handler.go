package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/AhmadRadith/jycc-sub001/internal/api/dto"
	"github.com/AhmadRadith/jycc-sub001/internal/auth"
	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/lifecycle"
	"github.com/AhmadRadith/jycc-sub001/internal/service"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// TicketsHandler exposes the collaboration surface.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), viewer, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketSummaries(tickets),
		"meta": fiber.Map{"offset": filter.Offset, "count": len(tickets)},
	})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	reporter, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), reporter, service.TicketCreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      req.Priority,
		Status:        req.Status,
		SchoolID:      req.SchoolID,
		SchoolName:    req.SchoolName,
		District:      req.District,
		AssignedMitra: req.AssignedMitra,
		Attachments:   req.DomainAttachments(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(reporter, ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), viewer, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(viewer, ticket)})
}

// PatchTicket PATCH /tickets/:id.
func (h *TicketsHandler) PatchTicket(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	input := service.TicketPatchInput{
		Priority: req.Priority,
		Category: req.Category,
		Status:   req.Status,
		Note:     req.Note,
	}
	if req.AssignedMitra != nil {
		input.AssignedMitra = append([]string{}, (*req.AssignedMitra)...)
	}
	ticket, err := h.service.PatchTicket(c.UserContext(), viewer, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(viewer, ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	ticket, err := h.service.AddComment(c.UserContext(), viewer, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(viewer, ticket)})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Escalate(c.UserContext(), viewer, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(viewer, ticket)})
}

// Transition POST /tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	kind, err := lifecycle.ParseKind(req.Kind)
	if err != nil {
		return apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "kind"})
	}
	ticket, err := h.service.Transition(c.UserContext(), viewer, c.Params("id"), kind, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(viewer, ticket)})
}

// AttachStudentReport POST /tickets/:id/student-reports.
func (h *TicketsHandler) AttachStudentReport(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	var req dto.StudentReportRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	ticket, err := h.service.AttachStudentReport(c.UserContext(), viewer, c.Params("id"), service.StudentReportInput{
		StudentName: req.StudentName,
		Summary:     req.Summary,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(viewer, ticket)})
}

// Advisory GET /tickets/:id/advisory.
func (h *TicketsHandler) Advisory(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	advice, err := h.service.Advisory(c.UserContext(), viewer, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AdvisoryResponse{
		Source:   "rules",
		Role:     viewer.Role.String(),
		Advisory: advice,
	}})
}

// GenerateAdvisory POST /tickets/:id/advisory/ai.
func (h *TicketsHandler) GenerateAdvisory(c *fiber.Ctx) error {
	viewer, err := identity(c)
	if err != nil {
		return err
	}
	refresh := parseBoolQuery(c, "refresh", false)
	result, err := h.service.GenerateAdvisory(c.UserContext(), viewer, c.Params("id"), refresh)
	if err != nil {
		return err
	}
	generatedAt := result.Analysis.GeneratedAt
	return c.JSON(fiber.Map{"data": dto.AdvisoryResponse{
		Source:      "generated",
		Cached:      result.Cached,
		Role:        result.Analysis.Role.String(),
		GeneratedAt: &generatedAt,
		Advisory:    result.Analysis.Advisory,
	}})
}

func identity(c *fiber.Ctx) (domain.Identity, error) {
	viewer, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthenticated("identity required")
	}
	return viewer, nil
}

func invalidPayload() error {
	return apperrors.NewInvalidInput("invalid payload", nil)
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Limit:  parseIntQuery(c, "limit", 0),
		Offset: parseIntQuery(c, "offset", 0),
	}
	for _, raw := range splitQuery(c.Query("status")) {
		status, err := domain.ParseTicketStatus(raw)
		if err != nil {
			return filter, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "status"})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitQuery(c.Query("priority")) {
		priority, err := domain.ParseTicketPriority(raw)
		if err != nil {
			return filter, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "priority"})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter.Category = &category
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		filter.SearchTerm = &term
	}
	return filter, nil
}

func splitQuery(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolQuery(c *fiber.Ctx, key string, defaultVal bool) bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}
