package repository

import (
	"context"
	"errors"

	"github.com/leadmarket/leadnotify/internal/domain"
	"gorm.io/gorm"
)

type BuyerRepository interface {
	Create(ctx context.Context, b *domain.Buyer) error
	GetByID(ctx context.Context, id string) (*domain.Buyer, error)
	// ListNotifiable returns buyers with the email channel enabled whose
	// preference lists are empty (meaning "all leads") or contain the
	// lead's service type and location.
	ListNotifiable(ctx context.Context, serviceType, location string) ([]domain.Buyer, error)
}

type GormBuyerRepo struct {
	db *gorm.DB
}

func NewGormBuyerRepo(db *gorm.DB) *GormBuyerRepo {
	return &GormBuyerRepo{db: db}
}

func (r *GormBuyerRepo) Create(ctx context.Context, b *domain.Buyer) error {
	model := buyerModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *buyerModelToDomain(model)
	}
	return nil
}

func (r *GormBuyerRepo) GetByID(ctx context.Context, id string) (*domain.Buyer, error) {
	var model BuyerModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return buyerModelToDomain(&model), nil
}

func (r *GormBuyerRepo) ListNotifiable(ctx context.Context, serviceType, location string) ([]domain.Buyer, error) {
	// Preference lists are JSON text columns; the final empty-means-all and
	// case-insensitive matching happens in the domain filter so the SQL only
	// narrows to enabled buyers.
	var models []BuyerModel
	err := r.db.WithContext(ctx).
		Where("email_enabled = ?", true).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	buyers := make([]domain.Buyer, 0, len(models))
	for i := range models {
		buyer := buyerModelToDomain(&models[i])
		if buyer.WantsLead(serviceType, location) {
			buyers = append(buyers, *buyer)
		}
	}

	return buyers, nil
}
