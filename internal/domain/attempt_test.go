package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseAttemptStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    AttemptStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "SUCCESS", want: AttemptStatusSuccess},
		{name: "valid lowercase with spaces", input: " retrying ", want: AttemptStatusRetrying},
		{name: "invalid", input: "stuck", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAttemptStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseAttemptStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseAttemptStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseAttemptStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAttemptStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if AttemptStatusPending.IsTerminal() || AttemptStatusRetrying.IsTerminal() {
		t.Fatal("pending and retrying must not be terminal")
	}
	if !AttemptStatusSuccess.IsTerminal() || !AttemptStatusFailed.IsTerminal() {
		t.Fatal("success and failed must be terminal")
	}
}

func TestNotificationAttemptValidate(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	base := NotificationAttempt{
		ID:          "a1",
		LeadID:      "l1",
		Channel:     ChannelEmail,
		Status:      AttemptStatusPending,
		AttemptedAt: now,
	}

	tests := []struct {
		name    string
		mutate  func(*NotificationAttempt)
		wantErr bool
	}{
		{
			name:   "valid pending attempt",
			mutate: func(a *NotificationAttempt) {},
		},
		{
			name: "missing lead id",
			mutate: func(a *NotificationAttempt) {
				a.LeadID = ""
			},
			wantErr: true,
		},
		{
			name: "invalid channel",
			mutate: func(a *NotificationAttempt) {
				a.Channel = Channel("FAX")
			},
			wantErr: true,
		},
		{
			name: "negative attempt count",
			mutate: func(a *NotificationAttempt) {
				a.AttemptCount = -1
			},
			wantErr: true,
		},
		{
			name: "terminal without completedAt",
			mutate: func(a *NotificationAttempt) {
				a.Status = AttemptStatusFailed
			},
			wantErr: true,
		},
		{
			name: "non-terminal with completedAt",
			mutate: func(a *NotificationAttempt) {
				a.Status = AttemptStatusRetrying
				a.CompletedAt = &now
			},
			wantErr: true,
		},
		{
			name: "valid terminal attempt",
			mutate: func(a *NotificationAttempt) {
				a.Status = AttemptStatusSuccess
				a.AttemptCount = 1
				a.CompletedAt = &now
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}
