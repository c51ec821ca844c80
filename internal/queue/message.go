package queue

import (
	"fmt"
	"strings"
	"time"
)

// LeadEventMessage is the broker payload emitted when a lead is created.
// The notification core only needs the lead id; everything else is for
// tracing.
type LeadEventMessage struct {
	LeadID        string    `json:"leadId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (m LeadEventMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("leadId is required")
	}
	return nil
}
