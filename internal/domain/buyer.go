package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StringList is a JSON-encoded list column used for buyer preference lists.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(data), nil
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported string list column type %T", value)
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// Contains reports a case-insensitive membership check.
func (l StringList) Contains(value string) bool {
	for _, item := range l {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

// Buyer is a contractor account that receives new-lead notifications.
// Empty ServiceTypes or Locations means "notify for all" rather than
// "notify for none"; that default is relied on by recipient selection.
type Buyer struct {
	ID           string     `gorm:"type:uuid;primaryKey"`
	Name         string     `gorm:"type:varchar(255);not null"`
	Email        string     `gorm:"type:varchar(255);not null"`
	EmailEnabled bool       `gorm:"not null;default:true"`
	ServiceTypes StringList `gorm:"type:text"`
	Locations    StringList `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b *Buyer) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	email := strings.TrimSpace(b.Email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, b.Email)
	}
	return nil
}

// WantsLead reports whether the buyer's preferences match a lead.
func (b *Buyer) WantsLead(serviceType, location string) bool {
	if !b.EmailEnabled {
		return false
	}
	if len(b.ServiceTypes) > 0 && !b.ServiceTypes.Contains(serviceType) {
		return false
	}
	if len(b.Locations) > 0 && !b.Locations.Contains(location) {
		return false
	}
	return true
}
