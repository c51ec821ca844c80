package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/notify"
	"github.com/leadmarket/leadnotify/internal/transport"
	"go.uber.org/zap"
)

type stubMonitor struct {
	recentFn func(ctx context.Context, limit int) ([]domain.NotificationAttempt, error)
	statsFn  func(ctx context.Context) (*notify.LedgerStats, error)
}

func (s *stubMonitor) Recent(ctx context.Context, limit int) ([]domain.NotificationAttempt, error) {
	if s.recentFn != nil {
		return s.recentFn(ctx, limit)
	}
	return nil, nil
}

func (s *stubMonitor) Stats(ctx context.Context) (*notify.LedgerStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return &notify.LedgerStats{ByStatus: map[domain.AttemptStatus]int{}}, nil
}

func newMonitorTestApp(t *testing.T, monitor LedgerMonitor) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	h, err := NewMonitorHandler(monitor)
	if err != nil {
		t.Fatalf("NewMonitorHandler() error = %v", err)
	}
	RegisterMonitorRoutes(app, h)

	return app
}

func TestMonitorIntegration_RecentAttempts(t *testing.T) {
	t.Parallel()

	var gotLimit int
	monitor := &stubMonitor{
		recentFn: func(ctx context.Context, limit int) ([]domain.NotificationAttempt, error) {
			gotLimit = limit
			return []domain.NotificationAttempt{
				{ID: "a-1", LeadID: "lead-1", Channel: domain.ChannelEmail, Status: domain.AttemptStatusSuccess, AttemptCount: 1, AttemptedAt: time.Now().UTC()},
				{ID: "a-2", LeadID: "lead-2", Channel: domain.ChannelEmail, Status: domain.AttemptStatusRetrying, AttemptCount: 2, AttemptedAt: time.Now().UTC()},
			}, nil
		},
	}
	app := newMonitorTestApp(t, monitor)

	resp, body := performRequest(t, app, http.MethodGet, "/v1/notifications/attempts?limit=7", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if gotLimit != 7 {
		t.Errorf("limit passed through = %d, want 7", gotLimit)
	}

	var parsed struct {
		Data []attemptResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(parsed.Data))
	}
}

func TestMonitorIntegration_LedgerStats(t *testing.T) {
	t.Parallel()

	monitor := &stubMonitor{
		statsFn: func(ctx context.Context) (*notify.LedgerStats, error) {
			return &notify.LedgerStats{
				Total: 4,
				ByStatus: map[domain.AttemptStatus]int{
					domain.AttemptStatusSuccess: 3,
					domain.AttemptStatusFailed:  1,
				},
				SuccessRate: 75,
			}, nil
		},
	}
	app := newMonitorTestApp(t, monitor)

	resp, body := performRequest(t, app, http.MethodGet, "/v1/notifications/stats", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed statsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Total != 4 || parsed.SuccessRate != 75 {
		t.Errorf("stats = %+v, want total=4 rate=75", parsed)
	}
	if parsed.ByStatus["SUCCESS"] != 3 || parsed.ByStatus["FAILED"] != 1 {
		t.Errorf("byStatus = %v, want SUCCESS=3 FAILED=1", parsed.ByStatus)
	}
}
