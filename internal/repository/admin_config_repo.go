package repository

import (
	"context"
	"errors"

	"radportal/internal/entity"

	"gorm.io/gorm"
)

type AdminConfigRepository interface {
	FindByKey(ctx context.Context, key string) (*entity.AdminConfiguration, error)
}

type adminConfigRepository struct {
	db *gorm.DB
}

func NewAdminConfigRepository(db *gorm.DB) AdminConfigRepository {
	return &adminConfigRepository{db: db}
}

func (r *adminConfigRepository) FindByKey(ctx context.Context, key string) (*entity.AdminConfiguration, error) {
	var row entity.AdminConfiguration
	err := r.db.WithContext(ctx).Where("config_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
