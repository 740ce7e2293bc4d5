package repository

import (
	"context"
	"errors"

	"radportal/internal/entity"

	"gorm.io/gorm"
)

type ApprovedDomainRepository interface {
	IsApproved(ctx context.Context, domain string) (bool, error)
}

type approvedDomainRepository struct {
	db *gorm.DB
}

func NewApprovedDomainRepository(db *gorm.DB) ApprovedDomainRepository {
	return &approvedDomainRepository{db: db}
}

func (r *approvedDomainRepository) IsApproved(ctx context.Context, domain string) (bool, error) {
	var row entity.ApprovedDomain
	err := r.db.WithContext(ctx).
		Where("domain = ? AND is_active = ?", domain, true).
		First(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}
