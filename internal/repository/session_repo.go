package repository

import (
	"context"
	"errors"
	"time"

	"radportal/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.UserSession) error
	FindActiveByTokenHash(ctx context.Context, hash string) (*entity.UserSession, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserSession, error)
	Deactivate(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) (int64, error)
	DeactivateAllByUser(ctx context.Context, userID uuid.UUID, exceptTokenHash string) (int64, error)
	TouchActivity(ctx context.Context, hash string, at time.Time) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.UserSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepository) FindActiveByTokenHash(ctx context.Context, hash string) (*entity.UserSession, error) {
	var session entity.UserSession
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = ?", hash, true).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserSession, error) {
	var sessions []entity.UserSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_activity DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) Deactivate(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.UserSession{}).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) DeactivateAllByUser(ctx context.Context, userID uuid.UUID, exceptTokenHash string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&entity.UserSession{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if exceptTokenHash != "" {
		query = query.Where("token_hash <> ?", exceptTokenHash)
	}
	result := query.Update("is_active", false)
	return result.RowsAffected, result.Error
}

// TouchActivity is a single UPDATE so concurrent requests never read-modify-write.
func (r *sessionRepository) TouchActivity(ctx context.Context, hash string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.UserSession{}).
		Where("token_hash = ? AND is_active = ?", hash, true).
		UpdateColumn("last_activity", at).
		Error
}
