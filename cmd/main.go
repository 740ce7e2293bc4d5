package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radportal/api/handler"
	apiMiddleware "radportal/api/middleware"
	"radportal/api/routes"
	"radportal/config"
	"radportal/internal/device"
	"radportal/internal/geo"
	"radportal/internal/metrics"
	"radportal/internal/ratelimit"
	"radportal/internal/repository"
	"radportal/internal/service"
	"radportal/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	configureLogger(logger, cfg)

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}

	metrics.Register(prometheus.DefaultRegisterer)
	validate := validator.New()
	clock := service.RealClock{}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	pendingRepo := repository.NewPendingSessionRepository(db)
	accessRequestRepo := repository.NewAccessRequestRepository(db)
	domainRepo := repository.NewApprovedDomainRepository(db)
	invitationRepo := repository.NewInvitationCodeRepository(db)
	adminConfigRepo := repository.NewAdminConfigRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)

	geolocator := geo.NewClient(geo.Options{
		BaseURL: cfg.GeolocationBaseURL,
		Timeout: cfg.GeolocationTimeout(),
		Logger:  logger,
	})

	var store ratelimit.Store
	if redisStore := config.ConnectRateLimitStore(ctx, cfg, logger); redisStore != nil {
		defer redisStore.Close()
		store = redisStore
	}
	accessLimiter := ratelimit.New(store, ratelimit.Config{
		Prefix:      "submit-access-request",
		MaxAttempts: cfg.RateLimitMaxAttempts,
		Window:      cfg.RateLimitWindow(),
	}, logger)

	jwtManager := utils.JWTManager{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		SessionTTL: cfg.SessionTTL(),
	}

	authConfig := service.AuthConfig{
		MagicLinkTTL:        cfg.MagicLinkTTL(),
		SessionTTL:          cfg.SessionTTL(),
		InstitutionalDomain: cfg.InstitutionalDomain,
	}

	adminStatus := service.NewAdminStatusService(adminConfigRepo, userRepo, logger)
	var adminChecker service.AdminChecker = adminStatus
	if cfg.AdminStatusURL != "" {
		adminChecker = service.NewHTTPAdminChecker(cfg.AdminStatusURL)
	}

	var sender service.MagicLinkSender
	if resendSender := service.NewResendMagicLinkSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppBaseURL); resendSender != nil {
		sender = resendSender
	} else {
		logger.Warn("RESEND_API_KEY or EMAIL_FROM not set, magic links will not be emailed")
	}

	sessionManager := service.NewSessionManager(sessionRepo, securityRepo, geolocator, clock, authConfig, logger)
	validation := service.NewAuthValidation(
		domainRepo,
		accessRequestRepo,
		invitationRepo,
		userRepo,
		securityRepo,
		adminChecker,
		clock,
		authConfig,
		logger,
	)
	authSessions := service.NewAuthSessionManager(
		pendingRepo,
		userRepo,
		securityRepo,
		sessionManager,
		validation,
		sender,
		service.JWTSessionIssuer{Manager: &jwtManager},
		device.Generator{Salted: cfg.FingerprintSalted},
		clock,
		authConfig,
		logger,
	)
	accessRequests := service.NewAccessRequestService(accessRequestRepo, securityRepo, geolocator, clock, logger)

	go runSweeper(ctx, authSessions, sessionManager, cfg, logger)

	ipExtractor, err := apiMiddleware.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		logger.WithError(err).Fatal("invalid TRUSTED_PROXY_CIDRS")
	}

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.IPExtractor = ipExtractor
	app.Use(echoMiddleware.Recover())
	app.Use(metrics.Instrument())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    c.Path(),
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &jwtManager, Sessions: sessionManager}
	router := routes.NewRouter(
		app,
		handler.NewAuthHandler(authSessions, validation, validate),
		handler.NewSessionHandler(sessionManager),
		handler.NewPortalHandler(adminStatus, accessRequests, validate, logger),
		handler.NewAdminHandler(accessRequests, validation, validate),
		authMiddleware,
		validation,
		accessLimiter,
	)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
	}
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// runSweeper deletes expired magic-link handshakes and old security events
// until ctx ends.
func runSweeper(ctx context.Context, pending *service.AuthSessionManager, sessions *service.SessionManager, cfg config.Config, logger logrus.FieldLogger) {
	ticker := time.NewTicker(cfg.PendingSweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := pending.PurgeExpired(ctx); err != nil {
				logger.WithError(err).Warn("purge expired pending sessions failed")
			}
			if _, err := sessions.PruneActivity(ctx, cfg.SecurityLogRetention()); err != nil {
				logger.WithError(err).Warn("prune security logs failed")
			}
		}
	}
}
