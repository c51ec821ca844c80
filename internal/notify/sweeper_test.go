package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/provider"
)

func newTestSweeper(t *testing.T, ledger *memoryLedger, channel *fakeProvider) *Sweeper {
	t.Helper()

	s, err := NewSweeper(ledger, channel, &fakeRateLimiter{}, DefaultStaleness, DefaultSweepBatchSize, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	return s
}

func seedAttempt(t *testing.T, ledger *memoryLedger, id string, status domain.AttemptStatus, attemptedAt time.Time) {
	t.Helper()

	row := &domain.NotificationAttempt{
		ID:           id,
		LeadID:       "lead-" + id,
		Channel:      domain.ChannelEmail,
		Status:       status,
		AttemptCount: 1,
		AttemptedAt:  attemptedAt,
	}
	if status.IsTerminal() {
		completed := attemptedAt.Add(time.Second)
		row.CompletedAt = &completed
	}
	if err := ledger.Create(context.Background(), row); err != nil {
		t.Fatalf("seed attempt %s: %v", id, err)
	}
}

func TestSweeper_Sweep_RedrivesStaleRows(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := newMemoryLedger()
	seedAttempt(t, ledger, "stale-pending", domain.AttemptStatusPending, now.Add(-10*time.Minute))
	seedAttempt(t, ledger, "stale-retrying", domain.AttemptStatusRetrying, now.Add(-6*time.Minute))
	seedAttempt(t, ledger, "fresh-pending", domain.AttemptStatusPending, now.Add(-time.Minute))
	seedAttempt(t, ledger, "done", domain.AttemptStatusSuccess, now.Add(-20*time.Minute))

	channel := &fakeProvider{}
	s := newTestSweeper(t, ledger, channel)
	s.now = func() time.Time { return now }

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if report.Scanned != 2 {
		t.Errorf("scanned = %d, want 2: fresh and terminal rows must be left alone", report.Scanned)
	}
	if report.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", report.Succeeded)
	}
	if channel.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2: one redrive per stale row", channel.callCount())
	}

	for _, id := range []string{"stale-pending", "stale-retrying"} {
		row := ledger.snapshot(id)
		if row.Status != domain.AttemptStatusSuccess {
			t.Errorf("%s status = %s, want %s", id, row.Status, domain.AttemptStatusSuccess)
		}
		if row.AttemptCount != 2 {
			t.Errorf("%s attemptCount = %d, want 2 after redrive", id, row.AttemptCount)
		}
		if row.CompletedAt == nil {
			t.Errorf("%s completedAt is nil, want set", id)
		}
	}

	fresh := ledger.snapshot("fresh-pending")
	if fresh.Status != domain.AttemptStatusPending || fresh.AttemptCount != 1 {
		t.Errorf("fresh row mutated: status=%s attemptCount=%d", fresh.Status, fresh.AttemptCount)
	}
	done := ledger.snapshot("done")
	if done.Status != domain.AttemptStatusSuccess || done.AttemptCount != 1 {
		t.Errorf("terminal row mutated: status=%s attemptCount=%d", done.Status, done.AttemptCount)
	}
}

func TestSweeper_Sweep_FailedRedriveIsTerminal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := newMemoryLedger()
	seedAttempt(t, ledger, "stuck", domain.AttemptStatusRetrying, now.Add(-15*time.Minute))

	channel := &fakeProvider{
		sendFn: func(ctx context.Context, leadID string) (*provider.ChannelResponse, error) {
			return nil, &provider.ChannelError{StatusCode: 500, Message: "boom", Transient: true}
		},
	}
	s := newTestSweeper(t, ledger, channel)
	s.now = func() time.Time { return now }

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if channel.callCount() != 1 {
		t.Errorf("provider calls = %d, want exactly 1: the sweeper never retries within a pass", channel.callCount())
	}

	row := ledger.snapshot("stuck")
	if row.Status != domain.AttemptStatusFailed {
		t.Errorf("status = %s, want %s after a failed redrive", row.Status, domain.AttemptStatusFailed)
	}
	if row.CompletedAt == nil {
		t.Error("completedAt is nil, want set on terminal row")
	}
	if row.ErrorDetail == nil || *row.ErrorDetail == "" {
		t.Error("errorDetail is empty, want failure recorded")
	}
}

func TestSweeper_Sweep_BatchCap(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := newMemoryLedger()
	for i := 0; i < 15; i++ {
		seedAttempt(t, ledger, fmt.Sprintf("row-%02d", i), domain.AttemptStatusPending, now.Add(-time.Hour).Add(time.Duration(i)*time.Second))
	}

	channel := &fakeProvider{}
	s := newTestSweeper(t, ledger, channel)
	s.now = func() time.Time { return now }

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if report.Scanned != DefaultSweepBatchSize {
		t.Errorf("scanned = %d, want batch cap %d", report.Scanned, DefaultSweepBatchSize)
	}
	if channel.callCount() != DefaultSweepBatchSize {
		t.Errorf("provider calls = %d, want %d", channel.callCount(), DefaultSweepBatchSize)
	}

	var pending int
	for i := 0; i < 15; i++ {
		if ledger.snapshot(fmt.Sprintf("row-%02d", i)).Status == domain.AttemptStatusPending {
			pending++
		}
	}
	if pending != 5 {
		t.Errorf("pending rows after pass = %d, want 5 left for the next pass", pending)
	}
}

func TestSweeper_Sweep_RowFailureIsIsolated(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := newMemoryLedger()
	seedAttempt(t, ledger, "a", domain.AttemptStatusPending, now.Add(-30*time.Minute))
	seedAttempt(t, ledger, "b", domain.AttemptStatusPending, now.Add(-20*time.Minute))
	seedAttempt(t, ledger, "c", domain.AttemptStatusPending, now.Add(-10*time.Minute))

	channel := &fakeProvider{
		sendFn: func(ctx context.Context, leadID string) (*provider.ChannelResponse, error) {
			if leadID == "lead-b" {
				return nil, &provider.ChannelError{StatusCode: 400, Message: "rejected"}
			}
			return &provider.ChannelResponse{StatusCode: 200, Body: `{"data":{"recipients":1},"error":null}`}, nil
		},
	}
	s := newTestSweeper(t, ledger, channel)
	s.now = func() time.Time { return now }

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("succeeded=%d failed=%d, want 2/1", report.Succeeded, report.Failed)
	}
	if got := ledger.snapshot("a").Status; got != domain.AttemptStatusSuccess {
		t.Errorf("a status = %s, want SUCCESS despite b failing", got)
	}
	if got := ledger.snapshot("c").Status; got != domain.AttemptStatusSuccess {
		t.Errorf("c status = %s, want SUCCESS despite b failing", got)
	}
}

func TestSweeper_Sweep_SkipsLostClaims(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ledger := newMemoryLedger()
	seedAttempt(t, ledger, "contested", domain.AttemptStatusPending, now.Add(-10*time.Minute))
	ledger.denyClaims = true

	channel := &fakeProvider{}
	s := newTestSweeper(t, ledger, channel)
	s.now = func() time.Time { return now }

	report, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if channel.callCount() != 0 {
		t.Errorf("provider calls = %d, want 0 on a lost claim", channel.callCount())
	}
}
