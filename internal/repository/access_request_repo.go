package repository

import (
	"context"
	"errors"
	"time"

	"radportal/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccessRequestRepository interface {
	Create(ctx context.Context, request *entity.AccessRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.AccessRequest, error)
	FindByEmailAndStatus(ctx context.Context, email string, status entity.AccessRequestStatus) (*entity.AccessRequest, error)
	ListByStatus(ctx context.Context, status entity.AccessRequestStatus, limit, offset int) ([]entity.AccessRequest, error)
	// UpdateStatus only transitions requests that are still pending.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.AccessRequestStatus, reviewer uuid.UUID, at time.Time) (int64, error)
}

type accessRequestRepository struct {
	db *gorm.DB
}

func NewAccessRequestRepository(db *gorm.DB) AccessRequestRepository {
	return &accessRequestRepository{db: db}
}

func (r *accessRequestRepository) Create(ctx context.Context, request *entity.AccessRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *accessRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AccessRequest, error) {
	var request entity.AccessRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *accessRequestRepository) FindByEmailAndStatus(ctx context.Context, email string, status entity.AccessRequestStatus) (*entity.AccessRequest, error) {
	var request entity.AccessRequest
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, status).
		Order("created_at DESC").
		First(&request).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *accessRequestRepository) ListByStatus(ctx context.Context, status entity.AccessRequestStatus, limit, offset int) ([]entity.AccessRequest, error) {
	var requests []entity.AccessRequest
	query := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *accessRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.AccessRequestStatus, reviewer uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.AccessRequest{}).
		Where("id = ? AND status = ?", id, entity.AccessRequestPending).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewer,
			"reviewed_at": at,
		})
	return result.RowsAffected, result.Error
}
