package repository

import (
	"time"

	"github.com/leadmarket/leadnotify/internal/domain"
)

// LeadModel is the persistence model for the leads table.
type LeadModel struct {
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

func (LeadModel) TableName() string {
	return "leads"
}

// BuyerModel is the persistence model for the buyers table.
type BuyerModel struct {
	ID           string            `gorm:"type:uuid;primaryKey"`
	Name         string            `gorm:"type:varchar(255);not null"`
	Email        string            `gorm:"type:varchar(255);not null"`
	EmailEnabled bool              `gorm:"not null;default:true"`
	ServiceTypes domain.StringList `gorm:"type:text"`
	Locations    domain.StringList `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (BuyerModel) TableName() string {
	return "buyers"
}

// AttemptModel is the persistence model for notification_attempts.
type AttemptModel struct {
	ID              string               `gorm:"type:uuid;primaryKey"`
	LeadID          string               `gorm:"type:uuid;not null"`
	Channel         domain.Channel       `gorm:"type:varchar(10);not null"`
	Status          domain.AttemptStatus `gorm:"type:varchar(10);not null"`
	AttemptCount    int                  `gorm:"not null;default:0"`
	ErrorDetail     *string              `gorm:"type:text"`
	ChannelResponse *string              `gorm:"type:text"`
	AttemptedAt     time.Time            `gorm:"not null"`
	CompletedAt     *time.Time
}

func (AttemptModel) TableName() string {
	return "notification_attempts"
}

func leadModelFromDomain(l *domain.Lead) *LeadModel {
	if l == nil {
		return nil
	}

	return &LeadModel{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		ServiceType: l.ServiceType,
		Location:    l.Location,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}

	return &domain.Lead{
		ID:          m.ID,
		SellerID:    m.SellerID,
		Title:       m.Title,
		ServiceType: m.ServiceType,
		Location:    m.Location,
		Description: m.Description,
		PriceCents:  m.PriceCents,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func buyerModelFromDomain(b *domain.Buyer) *BuyerModel {
	if b == nil {
		return nil
	}

	return &BuyerModel{
		ID:           b.ID,
		Name:         b.Name,
		Email:        b.Email,
		EmailEnabled: b.EmailEnabled,
		ServiceTypes: b.ServiceTypes,
		Locations:    b.Locations,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func buyerModelToDomain(m *BuyerModel) *domain.Buyer {
	if m == nil {
		return nil
	}

	return &domain.Buyer{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		EmailEnabled: m.EmailEnabled,
		ServiceTypes: m.ServiceTypes,
		Locations:    m.Locations,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.NotificationAttempt) *AttemptModel {
	if a == nil {
		return nil
	}

	return &AttemptModel{
		ID:              a.ID,
		LeadID:          a.LeadID,
		Channel:         a.Channel,
		Status:          a.Status,
		AttemptCount:    a.AttemptCount,
		ErrorDetail:     a.ErrorDetail,
		ChannelResponse: a.ChannelResponse,
		AttemptedAt:     a.AttemptedAt,
		CompletedAt:     a.CompletedAt,
	}
}

func attemptModelToDomain(m *AttemptModel) *domain.NotificationAttempt {
	if m == nil {
		return nil
	}

	return &domain.NotificationAttempt{
		ID:              m.ID,
		LeadID:          m.LeadID,
		Channel:         m.Channel,
		Status:          m.Status,
		AttemptCount:    m.AttemptCount,
		ErrorDetail:     m.ErrorDetail,
		ChannelResponse: m.ChannelResponse,
		AttemptedAt:     m.AttemptedAt,
		CompletedAt:     m.CompletedAt,
	}
}
