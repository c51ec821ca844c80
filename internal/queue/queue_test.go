package queue

import (
	"testing"
	"time"
)

func TestLeadEventMessageValidate(t *testing.T) {
	t.Parallel()

	msg := LeadEventMessage{
		LeadID:     "lead-1",
		OccurredAt: time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	msg.LeadID = "  "
	if err := msg.Validate(); err == nil {
		t.Fatal("Validate() expected error for blank lead id")
	}
}
