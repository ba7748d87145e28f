package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fxp-labs/support-bridge/internal/api/dto"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/service"
	apperrors "github.com/fxp-labs/support-bridge/pkg/util"
)

// ControlHandler exposes the pause flag and the manual job pusher.
type ControlHandler struct {
	flags   queue.Flags
	service *service.TicketService
}

// NewControlHandler constructs handler.
func NewControlHandler(flags queue.Flags, ticketService *service.TicketService) *ControlHandler {
	return &ControlHandler{flags: flags, service: ticketService}
}

// Pause POST /control/pause. Idempotent; produces no notification.
func (h *ControlHandler) Pause(c *fiber.Ctx) error {
	if err := h.flags.Pause(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"paused": true}})
}

// Resume POST /control/resume. Idempotent; produces no notification.
func (h *ControlHandler) Resume(c *fiber.Ctx) error {
	if err := h.flags.Resume(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"paused": false}})
}

// Status GET /control/status.
func (h *ControlHandler) Status(c *fiber.Ctx) error {
	paused, err := h.flags.Paused(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"paused": paused}})
}

// PushOutgoing POST /queue/outgoing enqueues an operator-built job.
func (h *ControlHandler) PushOutgoing(c *fiber.Ctx) error {
	var req dto.ManualJobRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("to and text required", nil)
	}
	if err := h.service.EnqueueManual(c.UserContext(), req.To, req.Text); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"message": "job queued"}})
}
