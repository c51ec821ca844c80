package domain

import (
	"errors"
	"testing"
)

func TestBuyerWantsLead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		buyer Buyer
		want  bool
	}{
		{
			name: "empty preferences mean all leads",
			buyer: Buyer{
				EmailEnabled: true,
			},
			want: true,
		},
		{
			name: "matching service type and location",
			buyer: Buyer{
				EmailEnabled: true,
				ServiceTypes: StringList{"plumbing", "roofing"},
				Locations:    StringList{"Austin"},
			},
			want: true,
		},
		{
			name: "case-insensitive preference match",
			buyer: Buyer{
				EmailEnabled: true,
				ServiceTypes: StringList{"Plumbing"},
				Locations:    StringList{"austin"},
			},
			want: true,
		},
		{
			name: "service type mismatch",
			buyer: Buyer{
				EmailEnabled: true,
				ServiceTypes: StringList{"electrical"},
			},
			want: false,
		},
		{
			name: "location mismatch",
			buyer: Buyer{
				EmailEnabled: true,
				Locations:    StringList{"Dallas"},
			},
			want: false,
		},
		{
			name: "email disabled always excluded",
			buyer: Buyer{
				EmailEnabled: false,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.buyer.WantsLead("plumbing", "Austin"); got != tt.want {
				t.Fatalf("WantsLead() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuyerValidate(t *testing.T) {
	t.Parallel()

	buyer := Buyer{Name: "Acme Plumbing", Email: "ops@acme.test"}
	if err := buyer.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	buyer.Email = "not-an-email"
	if err := buyer.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestStringListScanValue(t *testing.T) {
	t.Parallel()

	value, err := StringList{"a", "b"}.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var got StringList
	if err := got.Scan(value); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Scan() = %v, want [a b]", got)
	}

	var empty StringList
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Scan(nil) = %v, want empty", empty)
	}
}
