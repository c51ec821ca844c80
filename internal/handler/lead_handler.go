package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/notify"
	"github.com/leadmarket/leadnotify/internal/queue"
	"go.uber.org/zap"
)

// DispatchService runs one synchronous delivery cycle for a lead.
type DispatchService interface {
	Dispatch(ctx context.Context, leadID string) (*notify.DispatchResult, error)
}

// LeadStore is the lead persistence surface the HTTP layer needs.
type LeadStore interface {
	Create(ctx context.Context, l *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
}

// AttemptReader exposes per-lead ledger lookups.
type AttemptReader interface {
	ByLead(ctx context.Context, leadID string) ([]domain.NotificationAttempt, error)
}

type LeadHandler struct {
	leads      LeadStore
	publisher  queue.Publisher
	dispatcher DispatchService
	attempts   AttemptReader
	logger     *zap.Logger
}

func NewLeadHandler(
	leads LeadStore,
	publisher queue.Publisher,
	dispatcher DispatchService,
	attempts AttemptReader,
	logger *zap.Logger,
) (*LeadHandler, error) {
	if leads == nil {
		return nil, fmt.Errorf("lead store is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LeadHandler{
		leads:      leads,
		publisher:  publisher,
		dispatcher: dispatcher,
		attempts:   attempts,
		logger:     logger,
	}, nil
}

func RegisterLeadRoutes(router fiber.Router, h *LeadHandler) {
	v1 := router.Group("/v1")
	v1.Post("/leads", h.CreateLead)
	v1.Get("/leads/:id", h.GetLead)
	v1.Get("/leads/:id/attempts", h.GetLeadAttempts)
	v1.Post("/leads/:id/notify", h.NotifyLead)
}

type createLeadRequest struct {
	SellerID    string `json:"sellerId"`
	Title       string `json:"title"`
	ServiceType string `json:"serviceType"`
	Location    string `json:"location"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
}

type leadResponse struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"sellerId"`
	Title       string    `json:"title"`
	ServiceType string    `json:"serviceType"`
	Location    string    `json:"location"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type createLeadResponse struct {
	leadResponse
	Warning string `json:"warning,omitempty"`
}

type attemptResponse struct {
	ID              string     `json:"id"`
	LeadID          string     `json:"leadId"`
	Channel         string     `json:"channel"`
	Status          string     `json:"status"`
	AttemptCount    int        `json:"attemptCount"`
	ErrorDetail     *string    `json:"errorDetail,omitempty"`
	ChannelResponse *string    `json:"channelResponse,omitempty"`
	AttemptedAt     time.Time  `json:"attemptedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

type notifyLeadResponse struct {
	Delivered bool            `json:"delivered"`
	Attempt   attemptResponse `json:"attempt"`
}

// CreateLead persists the lead and publishes the trigger event. A broker
// outage must never fail the upload: the event publish is advisory and a
// failure only surfaces as a warning on the response.
func (h *LeadHandler) CreateLead(c *fiber.Ctx) error {
	var req createLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	lead := &domain.Lead{
		ID:          uuid.NewString(),
		SellerID:    strings.TrimSpace(req.SellerID),
		Title:       strings.TrimSpace(req.Title),
		ServiceType: strings.TrimSpace(req.ServiceType),
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
	}
	if err := lead.Validate(); err != nil {
		return err
	}

	if err := h.leads.Create(c.Context(), lead); err != nil {
		return err
	}

	resp := createLeadResponse{leadResponse: toLeadResponse(lead)}

	event := queue.LeadEventMessage{
		LeadID:        lead.ID,
		CorrelationID: requestCorrelationID(c),
		OccurredAt:    time.Now().UTC(),
	}
	if err := h.publisher.Publish(c.Context(), queue.LeadCreatedQueue, event); err != nil {
		h.logger.Warn("lead created but trigger event publish failed",
			zap.String("leadId", lead.ID),
			zap.Error(err),
		)
		resp.Warning = "lead stored but notification trigger could not be published; the sweeper or a manual notify will deliver it"
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *LeadHandler) GetLead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	lead, err := h.leads.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toLeadResponse(lead))
}

func (h *LeadHandler) GetLeadAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if _, err := h.leads.GetByID(c.Context(), id); err != nil {
		return err
	}

	attempts, err := h.attempts.ByLead(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"leadId": id,
		"data":   toAttemptResponses(attempts),
	})
}

// NotifyLead runs a full dispatch cycle synchronously. Retries and backoff
// happen inline, so the request can take several seconds on a flaky channel.
func (h *LeadHandler) NotifyLead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if _, err := h.leads.GetByID(c.Context(), id); err != nil {
		return err
	}

	result, err := h.dispatcher.Dispatch(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(notifyLeadResponse{
		Delivered: result.Delivered,
		Attempt:   toAttemptResponse(result.Attempt),
	})
}

func toLeadResponse(l *domain.Lead) leadResponse {
	return leadResponse{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		ServiceType: l.ServiceType,
		Location:    l.Location,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toAttemptResponse(a *domain.NotificationAttempt) attemptResponse {
	return attemptResponse{
		ID:              a.ID,
		LeadID:          a.LeadID,
		Channel:         a.Channel.String(),
		Status:          a.Status.String(),
		AttemptCount:    a.AttemptCount,
		ErrorDetail:     a.ErrorDetail,
		ChannelResponse: a.ChannelResponse,
		AttemptedAt:     a.AttemptedAt,
		CompletedAt:     a.CompletedAt,
	}
}

func toAttemptResponses(attempts []domain.NotificationAttempt) []attemptResponse {
	out := make([]attemptResponse, 0, len(attempts))
	for i := range attempts {
		out = append(out, toAttemptResponse(&attempts[i]))
	}
	return out
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	return uuid.NewString()
}
