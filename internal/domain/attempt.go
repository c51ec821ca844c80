package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptStatus represents the lifecycle state of a delivery attempt row.
type AttemptStatus string

const (
	AttemptStatusPending  AttemptStatus = "PENDING"
	AttemptStatusRetrying AttemptStatus = "RETRYING"
	AttemptStatusSuccess  AttemptStatus = "SUCCESS"
	AttemptStatusFailed   AttemptStatus = "FAILED"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptStatusPending, AttemptStatusRetrying, AttemptStatusSuccess, AttemptStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the row may no longer be mutated by normal processing.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusSuccess || s == AttemptStatusFailed
}

func ParseAttemptStatusFromString(s string) (AttemptStatus, error) {
	st := AttemptStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	// ChannelSMS exists for historical ledger rows; no active sender uses it.
	ChannelSMS Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// NotificationAttempt is one ledger row tracking delivery of a lead
// notification over a single channel. Redrives mutate the row in place;
// rows are never deleted.
type NotificationAttempt struct {
	ID              string        `gorm:"type:uuid;primaryKey"`
	LeadID          string        `gorm:"type:uuid;not null"`
	Channel         Channel       `gorm:"type:varchar(10);not null"`
	Status          AttemptStatus `gorm:"type:varchar(10);not null"`
	AttemptCount    int           `gorm:"not null;default:0"`
	ErrorDetail     *string       `gorm:"type:text"`
	ChannelResponse *string       `gorm:"type:text"`
	AttemptedAt     time.Time     `gorm:"not null"`
	CompletedAt     *time.Time
}

// Validate checks the ledger row's internal invariants: a terminal status
// carries a completion timestamp and a non-terminal one does not.
func (a *NotificationAttempt) Validate() error {
	if strings.TrimSpace(a.LeadID) == "" {
		return fmt.Errorf("%w: lead id is required", ErrValidation)
	}
	if !a.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, a.Channel)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: invalid attempt status %q", ErrValidation, a.Status)
	}
	if a.AttemptCount < 0 {
		return fmt.Errorf("%w: attempt count must not be negative", ErrValidation)
	}
	if a.Status.IsTerminal() && a.CompletedAt == nil {
		return fmt.Errorf("%w: terminal attempt is missing completedAt", ErrValidation)
	}
	if !a.Status.IsTerminal() && a.CompletedAt != nil {
		return fmt.Errorf("%w: non-terminal attempt has completedAt set", ErrValidation)
	}
	return nil
}
