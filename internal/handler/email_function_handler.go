package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/mailer"
	"go.uber.org/zap"
)

// LeadNotifier is the email fan-out behind the function endpoint.
type LeadNotifier interface {
	NotifyBuyers(ctx context.Context, leadID string) (*mailer.FanoutResult, error)
}

// EmailFunctionHandler serves the function-style notification endpoint the
// channel adapter calls. Its response envelope is always `{data, error}`:
// domain problems (unknown lead, bad input) are a 200 with the error field
// set, while provider outages surface as 502 so callers know to retry.
type EmailFunctionHandler struct {
	notifier LeadNotifier
	logger   *zap.Logger
}

func NewEmailFunctionHandler(notifier LeadNotifier, logger *zap.Logger) (*EmailFunctionHandler, error) {
	if notifier == nil {
		return nil, fmt.Errorf("lead notifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailFunctionHandler{notifier: notifier, logger: logger}, nil
}

func RegisterEmailFunctionRoutes(router fiber.Router, h *EmailFunctionHandler) {
	router.Post("/internal/email/lead-notification", h.NotifyLead)
}

type functionRequest struct {
	LeadID string `json:"leadId"`
}

type functionResponse struct {
	Data  *mailer.FanoutResult `json:"data"`
	Error *string              `json:"error"`
}

func functionError(msg string) functionResponse {
	return functionResponse{Error: &msg}
}

func (h *EmailFunctionHandler) NotifyLead(c *fiber.Ctx) error {
	var req functionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusOK).JSON(functionError("invalid request body"))
	}
	if strings.TrimSpace(req.LeadID) == "" {
		return c.Status(fiber.StatusOK).JSON(functionError("leadId is required"))
	}

	result, err := h.notifier.NotifyBuyers(c.Context(), req.LeadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return c.Status(fiber.StatusOK).JSON(functionError(err.Error()))
		}

		h.logger.Error("lead notification fan-out failed",
			zap.String("leadId", req.LeadID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(functionError(err.Error()))
	}

	return c.Status(fiber.StatusOK).JSON(functionResponse{Data: result})
}
