package domain

import (
	"fmt"
	"strings"
	"time"
)

const maxLeadDescription = 10000

// Lead is a work request uploaded by a seller. The notification core only
// reads leads; ownership of the full marketplace record stays with the
// upload flow.
type Lead struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	SellerID    string `gorm:"type:uuid;not null"`
	Title       string `gorm:"type:varchar(255);not null"`
	ServiceType string `gorm:"type:varchar(100);not null"`
	Location    string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:text"`
	PriceCents  int64  `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (l *Lead) Validate() error {
	if strings.TrimSpace(l.SellerID) == "" {
		return fmt.Errorf("%w: seller id is required", ErrValidation)
	}
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(l.ServiceType) == "" {
		return fmt.Errorf("%w: service type is required", ErrValidation)
	}
	if strings.TrimSpace(l.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if l.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if len([]rune(l.Description)) > maxLeadDescription {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxLeadDescription)
	}
	return nil
}
