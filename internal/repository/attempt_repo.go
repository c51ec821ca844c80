package repository

import (
	"context"
	"errors"
	"time"

	"github.com/leadmarket/leadnotify/internal/domain"
	"gorm.io/gorm"
)

// StatusCount is one row of the ledger's aggregate status projection.
type StatusCount struct {
	Status domain.AttemptStatus `gorm:"column:status"`
	Count  int                  `gorm:"column:count"`
}

var nonTerminalStatuses = []domain.AttemptStatus{
	domain.AttemptStatusPending,
	domain.AttemptStatusRetrying,
}

// AttemptRepository is the persistence port for the delivery attempt ledger.
//
// StartAttempt and Complete are conditional updates guarded on the row still
// being non-terminal: a false return means another writer (dispatcher or
// sweeper) claimed the row first and the caller should stop mutating it.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.NotificationAttempt) error
	GetByID(ctx context.Context, id string) (*domain.NotificationAttempt, error)
	GetByLeadID(ctx context.Context, leadID string) ([]domain.NotificationAttempt, error)
	StartAttempt(ctx context.Context, id string, status domain.AttemptStatus) (bool, error)
	MarkRetrying(ctx context.Context, id string, errorDetail *string) error
	Complete(ctx context.Context, id string, status domain.AttemptStatus, errorDetail, channelResponse *string, completedAt time.Time) (bool, error)
	FindStale(ctx context.Context, staleBefore time.Time, limit int) ([]domain.NotificationAttempt, error)
	Recent(ctx context.Context, limit int) ([]domain.NotificationAttempt, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.NotificationAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) GetByID(ctx context.Context, id string) (*domain.NotificationAttempt, error) {
	var model AttemptModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return attemptModelToDomain(&model), nil
}

func (r *GormAttemptRepo) GetByLeadID(ctx context.Context, leadID string) ([]domain.NotificationAttempt, error) {
	var models []AttemptModel
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("attempted_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return attemptModelsToDomain(models), nil
}

// StartAttempt claims the row for one channel invocation: it bumps the
// attempt counter and moves the row to the given in-flight status, but only
// while the row is still non-terminal.
func (r *GormAttemptRepo) StartAttempt(ctx context.Context, id string, status domain.AttemptStatus) (bool, error) {
	if status.IsTerminal() {
		return false, domain.ErrConflict
	}

	result := r.db.WithContext(ctx).
		Model(&AttemptModel{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(map[string]any{
			"status":        status,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormAttemptRepo) MarkRetrying(ctx context.Context, id string, errorDetail *string) error {
	result := r.db.WithContext(ctx).
		Model(&AttemptModel{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(map[string]any{
			"status":       domain.AttemptStatusRetrying,
			"error_detail": errorDetail,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Complete writes the terminal outcome; it refuses to overwrite a row that
// already reached a terminal state.
func (r *GormAttemptRepo) Complete(ctx context.Context, id string, status domain.AttemptStatus, errorDetail, channelResponse *string, completedAt time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrConflict
	}

	updates := map[string]any{
		"status":       status,
		"completed_at": completedAt,
	}
	if errorDetail != nil {
		updates["error_detail"] = errorDetail
	}
	if channelResponse != nil {
		updates["channel_response"] = channelResponse
	}

	result := r.db.WithContext(ctx).
		Model(&AttemptModel{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormAttemptRepo) FindStale(ctx context.Context, staleBefore time.Time, limit int) ([]domain.NotificationAttempt, error) {
	var models []AttemptModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND attempted_at <= ?", nonTerminalStatuses, staleBefore).
		Order("attempted_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return attemptModelsToDomain(models), nil
}

func (r *GormAttemptRepo) Recent(ctx context.Context, limit int) ([]domain.NotificationAttempt, error) {
	var models []AttemptModel
	err := r.db.WithContext(ctx).
		Order("attempted_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return attemptModelsToDomain(models), nil
}

func (r *GormAttemptRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&AttemptModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func attemptModelsToDomain(models []AttemptModel) []domain.NotificationAttempt {
	attempts := make([]domain.NotificationAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts
}
