package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/provider"
	"github.com/leadmarket/leadnotify/internal/queue"
	"github.com/leadmarket/leadnotify/internal/repository"
)

// memoryLedger is an in-memory AttemptRepository that enforces the same
// conditional-update semantics as the gorm implementation, so dispatcher and
// sweeper tests exercise real claim behavior.
type memoryLedger struct {
	mu            sync.Mutex
	rows          map[string]*domain.NotificationAttempt
	startStatuses []domain.AttemptStatus
	denyClaims    bool
	completeErr   error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{rows: make(map[string]*domain.NotificationAttempt)}
}

func (m *memoryLedger) Create(ctx context.Context, a *domain.NotificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *a
	m.rows[a.ID] = &clone
	return nil
}

func (m *memoryLedger) GetByID(ctx context.Context, id string) (*domain.NotificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (m *memoryLedger) GetByLeadID(ctx context.Context, leadID string) ([]domain.NotificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.NotificationAttempt
	for _, row := range m.rows {
		if row.LeadID == leadID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.Before(out[j].AttemptedAt) })
	return out, nil
}

func (m *memoryLedger) StartAttempt(ctx context.Context, id string, status domain.AttemptStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.denyClaims {
		return false, nil
	}

	row, ok := m.rows[id]
	if !ok || row.Status.IsTerminal() {
		return false, nil
	}

	row.Status = status
	row.AttemptCount++
	m.startStatuses = append(m.startStatuses, status)
	return true, nil
}

func (m *memoryLedger) MarkRetrying(ctx context.Context, id string, errorDetail *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok || row.Status.IsTerminal() {
		return domain.ErrConflict
	}

	row.Status = domain.AttemptStatusRetrying
	row.ErrorDetail = errorDetail
	return nil
}

func (m *memoryLedger) Complete(ctx context.Context, id string, status domain.AttemptStatus, errorDetail, channelResponse *string, completedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.completeErr != nil {
		return false, m.completeErr
	}

	row, ok := m.rows[id]
	if !ok || row.Status.IsTerminal() {
		return false, nil
	}

	row.Status = status
	row.CompletedAt = &completedAt
	if errorDetail != nil {
		row.ErrorDetail = errorDetail
	}
	if channelResponse != nil {
		row.ChannelResponse = channelResponse
	}
	return true, nil
}

func (m *memoryLedger) FindStale(ctx context.Context, staleBefore time.Time, limit int) ([]domain.NotificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.NotificationAttempt
	for _, row := range m.rows {
		if row.Status.IsTerminal() {
			continue
		}
		if row.AttemptedAt.After(staleBefore) {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.Before(out[j].AttemptedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryLedger) Recent(ctx context.Context, limit int) ([]domain.NotificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.NotificationAttempt
	for _, row := range m.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryLedger) CountByStatus(ctx context.Context) ([]repository.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStatus := make(map[domain.AttemptStatus]int)
	for _, row := range m.rows {
		byStatus[row.Status]++
	}

	out := make([]repository.StatusCount, 0, len(byStatus))
	for status, count := range byStatus {
		out = append(out, repository.StatusCount{Status: status, Count: count})
	}
	return out, nil
}

func (m *memoryLedger) snapshot(id string) domain.NotificationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

type fakeProvider struct {
	mu      sync.Mutex
	sendFn  func(ctx context.Context, leadID string) (*provider.ChannelResponse, error)
	calls   int
	leadIDs []string
}

func (f *fakeProvider) Send(ctx context.Context, leadID string) (*provider.ChannelResponse, error) {
	f.mu.Lock()
	f.calls++
	f.leadIDs = append(f.leadIDs, leadID)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, leadID)
	}
	return &provider.ChannelResponse{StatusCode: 200, Body: `{"data":{"recipients":1},"error":null}`}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error { return nil }
