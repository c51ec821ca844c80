package notify

import (
	"context"
	"fmt"

	"github.com/leadmarket/leadnotify/internal/observability"
	"github.com/leadmarket/leadnotify/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// Worker consumes lead-created events and drives each through the
// Dispatcher. Delivery failures end up in the ledger, not the queue: only
// infrastructure errors nack a message for redelivery.
type Worker struct {
	dispatcher  *Dispatcher
	consumer    queue.Consumer
	logger      *zap.Logger
	concurrency int
}

func NewWorker(
	dispatcher *Dispatcher,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
) (*Worker, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		dispatcher:  dispatcher,
		consumer:    consumer,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes the lead-created queue until context cancellation.
func (w *Worker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("notification worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.LeadCreatedQueue),
			)

			err := w.consumer.Consume(groupCtx, queue.LeadCreatedQueue, w.processEvent)
			if err != nil {
				w.logger.Error("notification worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("notification worker stopped",
				zap.Int("workerId", workerID),
			)
			return nil
		})
	}

	return g.Wait()
}

func (w *Worker) processEvent(ctx context.Context, msg queue.LeadEventMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(w.logger, ctx)

	result, err := w.dispatcher.Dispatch(ctx, msg.LeadID)
	if err != nil {
		return fmt.Errorf("dispatch failed for lead %s: %w", msg.LeadID, err)
	}

	if !result.Delivered {
		logger.Warn("lead notification not delivered",
			zap.String("leadId", msg.LeadID),
			zap.String("attemptId", result.Attempt.ID),
			zap.String("status", result.Attempt.Status.String()),
			zap.Int("attemptCount", result.Attempt.AttemptCount),
		)
		return nil
	}

	logger.Info("lead notification delivered",
		zap.String("leadId", msg.LeadID),
		zap.String("attemptId", result.Attempt.ID),
		zap.Int("attemptCount", result.Attempt.AttemptCount),
	)
	return nil
}
