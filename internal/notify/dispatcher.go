package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leadmarket/leadnotify/internal/domain"
	"github.com/leadmarket/leadnotify/internal/observability"
	"github.com/leadmarket/leadnotify/internal/provider"
	"github.com/leadmarket/leadnotify/internal/ratelimit"
	"github.com/leadmarket/leadnotify/internal/repository"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries bounds channel invocations within one dispatch cycle.
	DefaultMaxRetries = 3
	rateLimitChannel  = "email"
)

// DispatchResult reports the terminal outcome of one dispatch cycle.
// Delivered false with a nil error means retries exhausted; the caller's
// own flow (lead upload) is expected to proceed regardless.
type DispatchResult struct {
	Delivered bool
	Attempt   *domain.NotificationAttempt
}

// Dispatcher delivers a new-lead notification with bounded retries and
// records every channel invocation in the attempt ledger. Ledger state is
// persisted before and after each invocation so a killed run leaves a row
// the sweeper can pick up.
type Dispatcher struct {
	attempts   repository.AttemptRepository
	provider   provider.Provider
	limiter    ratelimit.RateLimiter
	logger     *zap.Logger
	metrics    *observability.Metrics
	maxRetries int
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	attempts repository.AttemptRepository,
	channel provider.Provider,
	limiter ratelimit.RateLimiter,
	maxRetries int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if channel == nil {
		return nil, fmt.Errorf("channel provider is required")
	}
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		attempts:   attempts,
		provider:   channel,
		limiter:    limiter,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
		sleep:      sleepWithContext,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Dispatch runs one delivery cycle for a lead. It creates exactly one ledger
// row, invokes the channel up to the retry cap with exponential backoff, and
// always returns the row's final state. Channel failures are absorbed into
// the ledger; only infrastructure errors (ledger writes failing) surface as
// a returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, leadID string) (*DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(leadID) == "" {
		return nil, fmt.Errorf("%w: lead id is required", domain.ErrValidation)
	}

	row := &domain.NotificationAttempt{
		ID:          uuid.NewString(),
		LeadID:      strings.TrimSpace(leadID),
		Channel:     domain.ChannelEmail,
		Status:      domain.AttemptStatusPending,
		AttemptedAt: d.now().UTC(),
	}
	if err := d.attempts.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create attempt row: %w", err)
	}

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		inFlight := domain.AttemptStatusPending
		if attempt > 1 {
			inFlight = domain.AttemptStatusRetrying
		}

		claimed, err := d.attempts.StartAttempt(ctx, row.ID, inFlight)
		if err != nil {
			return nil, fmt.Errorf("failed to record attempt start: %w", err)
		}
		if !claimed {
			// Another writer (the sweeper) took the row; report its state.
			return d.finalResult(ctx, row.ID)
		}

		sendErr := d.invokeChannel(ctx, row)

		if sendErr == nil {
			if d.metrics != nil {
				d.metrics.IncNotificationSent(rateLimitChannel)
			}
			return d.finalResult(ctx, row.ID)
		}

		detail := sendErr.Error()
		d.logger.Warn("channel invocation failed",
			zap.String("attemptId", row.ID),
			zap.String("leadId", row.LeadID),
			zap.Int("attempt", attempt),
			zap.Error(sendErr),
		)

		if attempt == d.maxRetries {
			if _, err := d.attempts.Complete(ctx, row.ID, domain.AttemptStatusFailed, &detail, nil, d.now().UTC()); err != nil {
				return nil, fmt.Errorf("failed to record terminal failure: %w", err)
			}
			if d.metrics != nil {
				reason := "permanent_error"
				if provider.IsTransient(sendErr) {
					reason = "retry_exhausted"
				}
				d.metrics.IncNotificationFailed(rateLimitChannel, reason)
			}
			return d.finalResult(ctx, row.ID)
		}

		if err := d.attempts.MarkRetrying(ctx, row.ID, &detail); err != nil {
			return nil, fmt.Errorf("failed to record retry state: %w", err)
		}
		if d.metrics != nil {
			d.metrics.IncRetryScheduled(rateLimitChannel)
		}

		if err := d.sleep(ctx, BackoffDelay(attempt)); err != nil {
			// The host is shutting down mid-backoff. The row stays RETRYING
			// and the sweeper redrives it once it goes stale.
			d.logger.Warn("dispatch interrupted during backoff, leaving row for sweeper",
				zap.String("attemptId", row.ID),
				zap.String("leadId", row.LeadID),
			)
			return d.finalResult(ctx, row.ID)
		}
	}

	return d.finalResult(ctx, row.ID)
}

// invokeChannel makes one provider call, applying the outbound rate limit
// and recording the terminal success write on the ledger.
func (d *Dispatcher) invokeChannel(ctx context.Context, row *domain.NotificationAttempt) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, rateLimitChannel); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	sendStart := d.now()
	resp, sendErr := d.provider.Send(ctx, row.LeadID)
	if d.metrics != nil {
		d.metrics.ObserveSendDuration(rateLimitChannel, d.now().Sub(sendStart))
	}
	if sendErr != nil {
		return sendErr
	}

	var channelResponse *string
	if resp != nil && strings.TrimSpace(resp.Body) != "" {
		body := resp.Body
		channelResponse = &body
	}

	if _, err := d.attempts.Complete(ctx, row.ID, domain.AttemptStatusSuccess, nil, channelResponse, d.now().UTC()); err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return nil
}

func (d *Dispatcher) finalResult(ctx context.Context, attemptID string) (*DispatchResult, error) {
	row, err := d.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt row: %w", err)
	}

	return &DispatchResult{
		Delivered: row.Status == domain.AttemptStatusSuccess,
		Attempt:   row,
	}, nil
}

// BackoffDelay returns the pause before the next invocation: 2^attempt seconds.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
