package queue

import "context"

const (
	// LeadCreatedQueue carries lead-created trigger events from the upload
	// flow to the notification workers.
	LeadCreatedQueue = "lead.created"
	// LeadCreatedDLQ receives events rejected as unparseable.
	LeadCreatedDLQ = "dlq.lead.created"
)

// Publisher publishes lead events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg LeadEventMessage) error
	Close() error
}

// MessageHandler handles a consumed lead event.
type MessageHandler func(ctx context.Context, msg LeadEventMessage) error

// Consumer consumes lead events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
