package repository

import (
	"context"
	"time"

	"radportal/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SecurityLogRepository is append-only apart from retention pruning.
type SecurityLogRepository interface {
	Log(ctx context.Context, log *entity.SecurityLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityLog, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type securityLogRepository struct {
	db *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) SecurityLogRepository {
	return &securityLogRepository{db: db}
}

func (r *securityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *securityLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityLog, error) {
	var logs []entity.SecurityLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *securityLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&entity.SecurityLog{})
	return result.RowsAffected, result.Error
}
