package repository

import (
	"context"
	"errors"
	"time"

	"radportal/internal/entity"

	"gorm.io/gorm"
)

type PendingSessionRepository interface {
	Create(ctx context.Context, session *entity.PendingAuthSession) error
	FindByTokenHash(ctx context.Context, hash string) (*entity.PendingAuthSession, error)
	FindByVerifyTokenHash(ctx context.Context, hash string) (*entity.PendingAuthSession, error)
	// MarkAuthenticated flips is_authenticated for the row holding verifyHash
	// only while it is still false and reports how many rows changed.
	MarkAuthenticated(ctx context.Context, verifyHash string, at time.Time, ip *string) (int64, error)
	Delete(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type pendingSessionRepository struct {
	db *gorm.DB
}

func NewPendingSessionRepository(db *gorm.DB) PendingSessionRepository {
	return &pendingSessionRepository{db: db}
}

func (r *pendingSessionRepository) Create(ctx context.Context, s *entity.PendingAuthSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *pendingSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*entity.PendingAuthSession, error) {
	return r.findBy(ctx, "token_hash = ?", hash)
}

func (r *pendingSessionRepository) FindByVerifyTokenHash(ctx context.Context, hash string) (*entity.PendingAuthSession, error) {
	return r.findBy(ctx, "verify_token_hash = ?", hash)
}

func (r *pendingSessionRepository) findBy(ctx context.Context, query string, hash string) (*entity.PendingAuthSession, error) {
	var session entity.PendingAuthSession
	err := r.db.WithContext(ctx).
		Where(query, hash).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *pendingSessionRepository) MarkAuthenticated(ctx context.Context, verifyHash string, at time.Time, ip *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.PendingAuthSession{}).
		Where("verify_token_hash = ? AND is_authenticated = ?", verifyHash, false).
		Updates(map[string]any{
			"is_authenticated": true,
			"authenticated_at": at,
			"authenticated_ip": ip,
		})
	return result.RowsAffected, result.Error
}

func (r *pendingSessionRepository) Delete(ctx context.Context, hash string) error {
	return r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		Delete(&entity.PendingAuthSession{}).
		Error
}

func (r *pendingSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&entity.PendingAuthSession{})
	return result.RowsAffected, result.Error
}
