package config

import (
	"errors"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment. Every value has a default so a bare
// process still starts; DATABASE_URL and JWT_SECRET are checked at startup.
type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR,default=:8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE,default=false"`

	// TrustedProxies are CIDRs, separated by ';', whose X-Forwarded-For
	// entries are believed. Empty means the TCP peer is the client.
	TrustedProxies []string `env:"TRUSTED_PROXY_CIDRS"`

	RateLimitRedisURL      string `env:"RATE_LIMIT_REDIS_URL"`
	RateLimitRedisToken    string `env:"RATE_LIMIT_REDIS_TOKEN"`
	RateLimitMaxAttempts   int    `env:"RATE_LIMIT_MAX_ATTEMPTS,default=5"`
	RateLimitWindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS,default=3600"`

	MagicLinkExpiryMinutes     int `env:"MAGIC_LINK_EXPIRY_MINUTES,default=15"`
	SessionDurationDays        int `env:"SESSION_DURATION_DAYS,default=7"`
	PendingSessionSweepMinutes int `env:"PENDING_SESSION_SWEEP_MINUTES,default=10"`
	SecurityLogRetentionDays   int `env:"SECURITY_LOG_RETENTION_DAYS,default=90"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER,default=radportal"`

	InstitutionalDomain string `env:"INSTITUTIONAL_DOMAIN,default=med.cornell.edu"`
	AdminStatusURL      string `env:"ADMIN_STATUS_URL"`

	GeolocationBaseURL        string `env:"GEOLOCATION_BASE_URL,default=http://ip-api.com/json"`
	GeolocationTimeoutSeconds int    `env:"GEOLOCATION_TIMEOUT_SECONDS,default=5"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM"`
	AppBaseURL   string `env:"APP_BASE_URL"`

	FingerprintSalted bool `env:"FINGERPRINT_SALTED,default=false"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads .env when present, then the process environment.
func Load(logger logrus.FieldLogger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Debug("no .env file loaded")
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c Config) MagicLinkTTL() time.Duration {
	return time.Duration(c.MagicLinkExpiryMinutes) * time.Minute
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionDurationDays) * 24 * time.Hour
}

func (c Config) PendingSweepInterval() time.Duration {
	minutes := c.PendingSessionSweepMinutes
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

// SecurityLogRetention is zero when pruning is disabled.
func (c Config) SecurityLogRetention() time.Duration {
	if c.SecurityLogRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.SecurityLogRetentionDays) * 24 * time.Hour
}

func (c Config) GeolocationTimeout() time.Duration {
	return time.Duration(c.GeolocationTimeoutSeconds) * time.Second
}
