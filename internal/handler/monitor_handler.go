package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/notify"
)

// LedgerMonitor is the read-only ledger projection surface.
type LedgerMonitor interface {
	Recent(ctx context.Context, limit int) ([]domain.NotificationAttempt, error)
	Stats(ctx context.Context) (*notify.LedgerStats, error)
}

type MonitorHandler struct {
	monitor LedgerMonitor
}

func NewMonitorHandler(monitor LedgerMonitor) (*MonitorHandler, error) {
	if monitor == nil {
		return nil, fmt.Errorf("ledger monitor is required")
	}
	return &MonitorHandler{monitor: monitor}, nil
}

func RegisterMonitorRoutes(router fiber.Router, h *MonitorHandler) {
	v1 := router.Group("/v1")
	v1.Get("/notifications/attempts", h.RecentAttempts)
	v1.Get("/notifications/stats", h.LedgerStats)
}

type statsResponse struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"byStatus"`
	SuccessRate int            `json:"successRate"`
}

func (h *MonitorHandler) RecentAttempts(c *fiber.Ctx) error {
	attempts, err := h.monitor.Recent(c.Context(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": toAttemptResponses(attempts),
	})
}

func (h *MonitorHandler) LedgerStats(c *fiber.Ctx) error {
	stats, err := h.monitor.Stats(c.Context())
	if err != nil {
		return err
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[status.String()] = count
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		Total:       stats.Total,
		ByStatus:    byStatus,
		SuccessRate: stats.SuccessRate,
	})
}
