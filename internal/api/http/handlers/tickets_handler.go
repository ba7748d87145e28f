package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fxp-labs/support-bridge/internal/api/dto"
	"github.com/fxp-labs/support-bridge/internal/domain"
	"github.com/fxp-labs/support-bridge/internal/repository"
	"github.com/fxp-labs/support-bridge/internal/service"
	apperrors "github.com/fxp-labs/support-bridge/pkg/util"
)

// TicketsHandler manages operator ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, msgs, err := h.service.GetTicketWithMessages(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, msgs)})
}

// Reply POST /tickets/:id/reply.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AgentName) == "" || strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("agent_name and text required", nil)
	}
	if err := h.service.Reply(c.UserContext(), c.Params("id"), req.AgentName, req.Text); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "reply queued for sending"}})
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.ChangeStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if group := c.Query("group_jid"); group != "" {
		filter.GroupJID = &group
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(s)))
		}
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}
	return filter
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:          ticket.ID,
		Code:        ticket.Code,
		GroupJID:    ticket.GroupJID,
		GroupName:   ticket.GroupName,
		SenderPhone: ticket.SenderPhone,
		SenderName:  ticket.SenderName,
		Subject:     ticket.Subject,
		Status:      ticket.Status,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, msgs []domain.Message) dto.TicketDetailResponse {
	detail := dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		ClosedAt:      ticket.ClosedAt,
		Messages:      make([]dto.MessageResponse, 0, len(msgs)),
	}
	for _, msg := range msgs {
		detail.Messages = append(detail.Messages, dto.MessageResponse{
			ID:            msg.ID,
			Source:        msg.Source,
			Body:          msg.Body,
			AttachmentURL: msg.AttachmentURL,
			CreatedAt:     msg.CreatedAt,
		})
	}
	return detail
}
