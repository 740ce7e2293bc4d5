package repository

import (
	"context"
	"errors"
	"time"

	"radportal/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationCodeRepository interface {
	Create(ctx context.Context, code *entity.InvitationCode) error
	FindByCode(ctx context.Context, code string) (*entity.InvitationCode, error)
	// HasLiveCode reports whether any active, unexpired, not-exhausted code is
	// scoped to email or global.
	HasLiveCode(ctx context.Context, email string, now time.Time) (bool, error)
	// IncrementUsage bumps used_count only while it is below max_uses.
	IncrementUsage(ctx context.Context, id uuid.UUID) (int64, error)
}

type invitationCodeRepository struct {
	db *gorm.DB
}

func NewInvitationCodeRepository(db *gorm.DB) InvitationCodeRepository {
	return &invitationCodeRepository{db: db}
}

func (r *invitationCodeRepository) Create(ctx context.Context, code *entity.InvitationCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *invitationCodeRepository) FindByCode(ctx context.Context, code string) (*entity.InvitationCode, error) {
	var row entity.InvitationCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *invitationCodeRepository) HasLiveCode(ctx context.Context, email string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.InvitationCode{}).
		Where("is_active = ? AND used_count < max_uses", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("email = ? OR email IS NULL", email).
		Count(&count).Error
	return count > 0, err
}

func (r *invitationCodeRepository) IncrementUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.InvitationCode{}).
		Where("id = ? AND used_count < max_uses", id).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", 1))
	return result.RowsAffected, result.Error
}
