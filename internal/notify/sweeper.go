package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/observability"
	"github.com/leadmarket/leadnotify/internal/provider"
	"github.com/leadmarket/leadnotify/internal/ratelimit"
	"github.com/leadmarket/leadnotify/internal/repository"
	"go.uber.org/zap"
)

const (
	// DefaultStaleness is how long a non-terminal row may sit untouched
	// before a sweep redrives it.
	DefaultStaleness = 5 * time.Minute
	// DefaultSweepBatchSize caps rows redriven per pass so recovery does
	// not flood the channel.
	DefaultSweepBatchSize = 10
	defaultSweepInterval  = time.Minute
)

// SweepRowResult is the per-row outcome of one sweep pass.
type SweepRowResult struct {
	AttemptID string               `json:"attemptId"`
	LeadID    string               `json:"leadId"`
	Outcome   domain.AttemptStatus `json:"outcome"`
	Error     string               `json:"error,omitempty"`
}

// SweepReport summarizes one sweep pass; it is observational only.
type SweepReport struct {
	Scanned   int              `json:"scanned"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Rows      []SweepRowResult `json:"rows,omitempty"`
}

// Sweeper is the backstop for attempts stranded in a non-terminal state by a
// crashed or timed-out dispatch run. Each pass performs exactly one redrive
// per stale row and writes the terminal outcome directly; further redrives
// rely on the next scheduled pass.
type Sweeper struct {
	attempts  repository.AttemptRepository
	provider  provider.Provider
	limiter   ratelimit.RateLimiter
	logger    *zap.Logger
	metrics   *observability.Metrics
	staleness time.Duration
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

func NewSweeper(
	attempts repository.AttemptRepository,
	channel provider.Provider,
	limiter ratelimit.RateLimiter,
	staleness time.Duration,
	batchSize int,
	interval time.Duration,
	logger *zap.Logger,
) (*Sweeper, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if channel == nil {
		return nil, fmt.Errorf("channel provider is required")
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	if batchSize < 1 {
		batchSize = DefaultSweepBatchSize
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		attempts:  attempts,
		provider:  channel,
		limiter:   limiter,
		logger:    logger,
		staleness: staleness,
		batchSize: batchSize,
		interval:  interval,
		now:       time.Now,
	}, nil
}

func (s *Sweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs sweep passes on the configured interval until cancellation.
func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep selects stale non-terminal rows (bounded batch), redrives each once,
// and records terminal outcomes. One row's failure never aborts the rest.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	staleBefore := s.now().UTC().Add(-s.staleness)
	rows, err := s.attempts.FindStale(ctx, staleBefore, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select stale attempts: %w", err)
	}

	report := &SweepReport{
		Scanned: len(rows),
		Rows:    make([]SweepRowResult, 0, len(rows)),
	}

	for i := range rows {
		result := s.redriveRow(ctx, &rows[i])
		report.Rows = append(report.Rows, result)

		switch result.Outcome {
		case domain.AttemptStatusSuccess:
			report.Succeeded++
		case domain.AttemptStatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("sweep pass completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}

	return report, nil
}

// redriveRow performs the single redrive for one stale row. The claim is a
// conditional update, so a row the dispatcher finished or took over in the
// meantime is skipped rather than double-driven.
func (s *Sweeper) redriveRow(ctx context.Context, row *domain.NotificationAttempt) SweepRowResult {
	result := SweepRowResult{
		AttemptID: row.ID,
		LeadID:    row.LeadID,
	}

	claimed, err := s.attempts.StartAttempt(ctx, row.ID, domain.AttemptStatusRetrying)
	if err != nil {
		result.Error = fmt.Sprintf("claim failed: %v", err)
		return result
	}
	if !claimed {
		return result
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rateLimitChannel); err != nil {
			result.Error = fmt.Sprintf("rate limiter wait failed: %v", err)
			return result
		}
	}

	resp, sendErr := s.provider.Send(ctx, row.LeadID)

	if sendErr != nil {
		detail := sendErr.Error()
		if _, err := s.attempts.Complete(ctx, row.ID, domain.AttemptStatusFailed, &detail, nil, s.now().UTC()); err != nil {
			result.Error = fmt.Sprintf("failed to record redrive failure: %v", err)
			return result
		}
		result.Outcome = domain.AttemptStatusFailed
		result.Error = detail
		if s.metrics != nil {
			s.metrics.IncSweeperRedrive("failed")
		}
		return result
	}

	var channelResponse *string
	if resp != nil && strings.TrimSpace(resp.Body) != "" {
		body := resp.Body
		channelResponse = &body
	}
	if _, err := s.attempts.Complete(ctx, row.ID, domain.AttemptStatusSuccess, nil, channelResponse, s.now().UTC()); err != nil {
		result.Error = fmt.Sprintf("failed to record redrive success: %v", err)
		return result
	}

	result.Outcome = domain.AttemptStatusSuccess
	if s.metrics != nil {
		s.metrics.IncSweeperRedrive("success")
	}
	return result
}
