package service

import (
	"context"
	"errors"
	"time"

	"radportal/internal/device"
	"radportal/internal/entity"
	"radportal/internal/metrics"
	"radportal/internal/repository"
	"radportal/internal/utils"

	"github.com/sirupsen/logrus"
)

const sessionTokenBytes = 32

// AuthSessionManager drives the cross-device magic-link handshake. The
// device that asks for the link polls the pending session; the device that
// opens the link marks it authenticated. Coordination between the two lives
// entirely in the conditional update on is_authenticated.
type AuthSessionManager struct {
	pending      repository.PendingSessionRepository
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository

	sessions     *SessionManager
	validation   *AuthValidation
	sender       MagicLinkSender
	tokens       SessionTokenIssuer
	fingerprints device.Generator
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewAuthSessionManager(
	pending repository.PendingSessionRepository,
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	sessions *SessionManager,
	validation *AuthValidation,
	sender MagicLinkSender,
	tokens SessionTokenIssuer,
	fingerprints device.Generator,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthSessionManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthSessionManager{
		pending:      pending,
		users:        users,
		securityLogs: securityLogs,
		sessions:     sessions,
		validation:   validation,
		sender:       sender,
		tokens:       tokens,
		fingerprints: fingerprints,
		clock:        clock,
		config:       config,
		logger:       logger.WithField("component", "AuthSessionManager"),
	}
}

// CreatePendingSession stores a new handshake record for email and returns
// its poll and verify tokens. Only their hashes are persisted.
func (m *AuthSessionManager) CreatePendingSession(ctx context.Context, email string, attrs device.Attributes) (PendingTokens, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return PendingTokens{}, ErrInvalidInput
	}
	log := m.logger.WithField("email", email)

	var tokens PendingTokens
	var err error
	if tokens.PollToken, err = utils.GenerateRandomToken(sessionTokenBytes); err != nil {
		log.WithError(err).Error("generate poll token failed")
		return PendingTokens{}, err
	}
	if tokens.VerifyToken, err = utils.GenerateRandomToken(sessionTokenBytes); err != nil {
		log.WithError(err).Error("generate verify token failed")
		return PendingTokens{}, err
	}

	session := &entity.PendingAuthSession{
		TokenHash:         utils.HashToken(tokens.PollToken),
		VerifyTokenHash:   utils.HashToken(tokens.VerifyToken),
		Email:             email,
		DeviceInfo:        attrs.UserAgent,
		DeviceFingerprint: m.fingerprints.Generate(attrs),
		ExpiresAt:         m.now().Add(m.config.magicLinkTTL()),
	}

	_, err = utils.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, m.pending.Create(ctx, session)
	}, m.retryOptions(log, "create pending session"))
	if err != nil {
		log.WithError(err).Error("create pending session failed")
		return PendingTokens{}, err
	}
	return tokens, nil
}

// CheckSessionStatus is a read-only poll keyed by the poll token. An expired
// record is reported as ErrSessionExpired, never as "still pending".
func (m *AuthSessionManager) CheckSessionStatus(ctx context.Context, pollToken string) (*SessionStatus, error) {
	session, err := m.findPending(ctx, pollToken, m.pending.FindByTokenHash)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		IsAuthenticated: session.IsAuthenticated,
		Email:           session.Email,
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// AuthenticateSession marks the pending session authenticated. It accepts only
// the emailed verify token, so holding the poll token proves nothing about
// the mailbox. A second call for the same token succeeds without touching the
// record and reports NewlyAuthenticated=false.
func (m *AuthSessionManager) AuthenticateSession(ctx context.Context, verifyToken string, ipAddress *string) (*AuthenticateResult, error) {
	session, err := m.findPending(ctx, verifyToken, m.pending.FindByVerifyTokenHash)
	if err != nil {
		return nil, err
	}

	rows, err := m.pending.MarkAuthenticated(ctx, session.VerifyTokenHash, m.now(), ipAddress)
	if err != nil {
		m.logger.WithError(err).WithField("email", session.Email).Error("authenticate session failed")
		return nil, err
	}

	if rows == 0 {
		metrics.MagicLinkEvents.WithLabelValues("replayed").Inc()
		m.logger.WithField("email", session.Email).Warn("magic link used again after authentication")
		_ = logSecurity(ctx, m.securityLogs, nil, session.Email, ipAddress, entity.MagicLinkReplayed, nil)
		return &AuthenticateResult{NewlyAuthenticated: false}, nil
	}

	metrics.MagicLinkEvents.WithLabelValues("authenticated").Inc()
	_ = logSecurity(ctx, m.securityLogs, nil, session.Email, ipAddress, entity.MagicLinkAuthenticated, nil)
	return &AuthenticateResult{NewlyAuthenticated: true}, nil
}

// CleanupSession deletes the pending record for pollToken. Errors are logged
// and dropped.
func (m *AuthSessionManager) CleanupSession(ctx context.Context, pollToken string) {
	if pollToken == "" {
		return
	}
	if err := m.pending.Delete(ctx, utils.HashToken(pollToken)); err != nil {
		m.logger.WithError(err).Warn("cleanup pending session failed")
	}
}

// PurgeExpired removes pending sessions whose expiry has passed.
func (m *AuthSessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := m.pending.DeleteExpired(ctx, m.now())
	if err != nil {
		m.logger.WithError(err).Error("purge expired pending sessions failed")
		return 0, err
	}
	if removed > 0 {
		m.logger.WithField("removed", removed).Info("purged expired pending sessions")
	}
	return removed, nil
}

// RequestMagicLink checks eligibility, opens a pending session, emails the
// verify link and only then spends the invitation code when one is required.
func (m *AuthSessionManager) RequestMagicLink(ctx context.Context, input MagicLinkInput) (*MagicLinkResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" {
		return nil, ErrInvalidInput
	}
	if m.validation == nil {
		return nil, ErrEmailNotAllowed
	}

	eligibility := m.validation.IsEmailAllowedToAuthenticate(ctx, email)
	result := &MagicLinkResult{Eligibility: eligibility}
	if !eligibility.Allowed {
		return result, ErrEmailNotAllowed
	}
	if eligibility.RequiresInvitationCode {
		if input.InvitationCode == "" {
			return result, ErrInvitationRequired
		}
		if err := m.validation.CheckInvitationCode(ctx, email, input.InvitationCode); err != nil {
			m.logger.WithError(err).WithField("email", email).Warn("invitation code rejected")
			return result, ErrInvalidInvitationCode
		}
	}

	tokens, err := m.CreatePendingSession(ctx, email, input.Attributes)
	if err != nil {
		return nil, err
	}
	result.PollToken = tokens.PollToken
	result.ExpiresAt = m.now().Add(m.config.magicLinkTTL())

	if m.sender == nil {
		m.logger.WithField("email", email).Warn("email sender not configured, magic link not delivered")
	} else if err := m.sender.SendMagicLink(ctx, email, tokens.VerifyToken, result.ExpiresAt); err != nil {
		m.logger.WithError(err).WithField("email", email).Error("send magic link failed")
		m.CleanupSession(ctx, tokens.PollToken)
		return nil, ErrMagicLinkDelivery
	}

	if eligibility.RequiresInvitationCode {
		// The code can run out between the check and here; the link already
		// sent then points at a deleted handshake.
		if err := m.validation.ConsumeInvitationCode(ctx, email, input.InvitationCode); err != nil {
			m.logger.WithError(err).WithField("email", email).Warn("invitation code exhausted before use")
			m.CleanupSession(ctx, tokens.PollToken)
			return result, ErrInvalidInvitationCode
		}
	}

	metrics.MagicLinkEvents.WithLabelValues("requested").Inc()
	_ = logSecurity(ctx, m.securityLogs, nil, email, input.IPAddress, entity.MagicLinkRequested, map[string]any{
		"method": eligibility.Method,
	})
	return result, nil
}

// CompleteLogin is called by the device that requested the link once its
// poll reports authenticated. It issues the bearer token, persists the
// session and removes the pending record.
func (m *AuthSessionManager) CompleteLogin(ctx context.Context, pollToken string, client ClientInfo) (*LoginResult, error) {
	status, err := m.CheckSessionStatus(ctx, pollToken)
	if err != nil {
		return nil, err
	}
	if !status.IsAuthenticated {
		return nil, ErrSessionNotAuthenticated
	}
	if m.tokens == nil || m.sessions == nil {
		return nil, ErrInvalidToken
	}

	user, err := m.users.FindOrCreate(ctx, status.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	accessToken, ttl, err := m.tokens.IssueSessionToken(*user)
	if err != nil {
		return nil, err
	}
	sessionID, err := m.sessions.CreateSession(ctx, SessionInput{
		UserID:    user.ID,
		Token:     accessToken,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		ExpiresIn: ttl,
	})
	if err != nil {
		return nil, err
	}

	if err := m.users.TouchLastLogin(ctx, user.ID, m.now()); err != nil {
		m.logger.WithError(err).WithField("user_id", user.ID).Warn("update last login failed")
	}
	m.CleanupSession(ctx, pollToken)

	role := entity.UserRoleUser
	if m.validation != nil {
		role = m.validation.GetUserRole(ctx, user.ID)
	}

	metrics.MagicLinkEvents.WithLabelValues("completed").Inc()
	_ = logSecurity(ctx, m.securityLogs, &user.ID, user.Email, client.IPAddress, entity.LoginSuccess, map[string]any{
		"session_id": sessionID.String(),
	})

	return &LoginResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(ttl.Seconds()),
		SessionID:   sessionID,
		User:        *user,
		Role:        role,
	}, nil
}

func (m *AuthSessionManager) findPending(
	ctx context.Context,
	token string,
	lookup func(context.Context, string) (*entity.PendingAuthSession, error),
) (*entity.PendingAuthSession, error) {
	if token == "" {
		return nil, ErrInvalidInput
	}
	hash := utils.HashToken(token)

	session, err := utils.Retry(ctx, func() (*entity.PendingAuthSession, error) {
		return lookup(ctx, hash)
	}, m.retryOptions(m.logger, "load pending session"))
	if err != nil {
		m.logger.WithError(err).Error("load pending session failed")
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (m *AuthSessionManager) retryOptions(log logrus.FieldLogger, operation string) utils.RetryOptions {
	opts := m.config.retry()
	opts.OnRetry = func(attempt int, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt,
		}).Warn("retrying datastore call")
	}
	return opts
}

func (m *AuthSessionManager) now() time.Time {
	if m.clock == nil {
		return time.Now()
	}
	return m.clock.Now()
}
