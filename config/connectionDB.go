package config

import (
	"context"
	"errors"
	"fmt"

	"radportal/internal/entity"
	"radportal/internal/ratelimit"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

func ConnectDatabase(cfg Config, logger logrus.FieldLogger) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseURL,
		PreferSimpleProtocol: true, // Disable prepared statements completely
	}), &gorm.Config{
		PrepareStmt: false,
		Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := db.AutoMigrate(
			&entity.User{},
			&entity.UserSession{},
			&entity.PendingAuthSession{},
			&entity.AccessRequest{},
			&entity.ApprovedDomain{},
			&entity.InvitationCode{},
			&entity.AdminConfiguration{},
			&entity.SecurityLog{},
		); err != nil {
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		logger.Info("database schema migrated")
	}

	logger.Info("success connect to db")
	return db, nil
}

// ConnectRateLimitStore returns nil when no URL is configured or the store
// cannot be reached, which leaves the limiter allowing every request.
func ConnectRateLimitStore(ctx context.Context, cfg Config, logger logrus.FieldLogger) *ratelimit.RedisStore {
	if cfg.RateLimitRedisURL == "" {
		logger.Warn("RATE_LIMIT_REDIS_URL not set, rate limiting disabled")
		return nil
	}
	store, err := ratelimit.NewRedisStoreFromURL(ctx, cfg.RateLimitRedisURL, cfg.RateLimitRedisToken)
	if err != nil {
		logger.WithError(err).Error("rate limit store unavailable, rate limiting disabled")
		return nil
	}
	return store
}
