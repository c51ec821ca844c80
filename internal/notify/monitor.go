package notify

import (
	"context"
	"fmt"
	"math"

	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/repository"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// LedgerStats is the aggregate projection of the attempt ledger.
type LedgerStats struct {
	Total       int                          `json:"total"`
	ByStatus    map[domain.AttemptStatus]int `json:"byStatus"`
	SuccessRate int                          `json:"successRate"`
}

// Monitor exposes read-only ledger projections for the observability UI.
// It never mutates the ledger.
type Monitor struct {
	attempts repository.AttemptRepository
}

func NewMonitor(attempts repository.AttemptRepository) (*Monitor, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	return &Monitor{attempts: attempts}, nil
}

// Recent returns the most recent attempts, newest first.
func (m *Monitor) Recent(ctx context.Context, limit int) ([]domain.NotificationAttempt, error) {
	if limit < 1 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return m.attempts.Recent(ctx, limit)
}

// ByLead returns every attempt recorded for one lead, oldest first.
func (m *Monitor) ByLead(ctx context.Context, leadID string) ([]domain.NotificationAttempt, error) {
	return m.attempts.GetByLeadID(ctx, leadID)
}

// Stats aggregates counts by status and computes a rounded success rate.
func (m *Monitor) Stats(ctx context.Context) (*LedgerStats, error) {
	counts, err := m.attempts.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &LedgerStats{
		ByStatus: make(map[domain.AttemptStatus]int, len(counts)),
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}

	if stats.Total > 0 {
		succeeded := stats.ByStatus[domain.AttemptStatusSuccess]
		stats.SuccessRate = int(math.Round(float64(succeeded) / float64(stats.Total) * 100))
	}

	return stats, nil
}
