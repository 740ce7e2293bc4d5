package service

import (
	"context"
	"time"

	"radportal/internal/device"
	"radportal/internal/entity"
	"radportal/internal/repository"
	"radportal/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxActivityEntries = 50

// SessionManager owns persisted bearer sessions. Public methods never fail
// on expected datastore errors; they log and fall back to a safe value.
type SessionManager struct {
	sessions     repository.SessionRepository
	securityLogs repository.SecurityLogRepository
	geolocator   Geolocator
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewSessionManager(
	sessions repository.SessionRepository,
	securityLogs repository.SecurityLogRepository,
	geolocator Geolocator,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *SessionManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionManager{
		sessions:     sessions,
		securityLogs: securityLogs,
		geolocator:   geolocator,
		clock:        clock,
		config:       config,
		logger:       logger.WithField("component", "SessionManager"),
	}
}

func (m *SessionManager) CreateSession(ctx context.Context, input SessionInput) (uuid.UUID, error) {
	if input.UserID == uuid.Nil || input.Token == "" {
		return uuid.Nil, ErrInvalidInput
	}

	ttl := input.ExpiresIn
	if ttl <= 0 {
		ttl = m.config.sessionTTL()
	}
	now := m.now()
	info := device.ParseUserAgent(input.UserAgent)

	session := &entity.UserSession{
		UserID:       input.UserID,
		TokenHash:    utils.HashToken(input.Token),
		DeviceName:   info.DeviceName,
		DeviceType:   info.DeviceType,
		BrowserName:  info.BrowserName,
		OSName:       info.OSName,
		IPAddress:    input.IPAddress,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
	}
	if input.IPAddress != nil && m.geolocator != nil {
		if data := m.geolocator.Lookup(ctx, *input.IPAddress); data != nil && data.Status == "success" {
			session.LocationCity = optionalString(data.City)
			session.LocationRegion = optionalString(data.RegionName)
			session.LocationCountry = optionalString(data.Country)
			session.LocationISP = optionalString(data.ISP)
		}
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		m.logger.WithError(err).WithField("user_id", input.UserID).Error("create session failed")
		return uuid.Nil, err
	}
	return session.ID, nil
}

// GetUserSessions lists active sessions, most recently used first.
func (m *SessionManager) GetUserSessions(ctx context.Context, userID uuid.UUID) []entity.UserSession {
	sessions, err := m.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Error("list sessions failed")
		return []entity.UserSession{}
	}
	if sessions == nil {
		return []entity.UserSession{}
	}
	return sessions
}

// RevokeSession deactivates sessionID only when it belongs to userID.
func (m *SessionManager) RevokeSession(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) bool {
	rows, err := m.sessions.Deactivate(ctx, sessionID, userID)
	if err != nil {
		m.logger.WithError(err).WithField("session_id", sessionID).Error("revoke session failed")
		return false
	}
	if rows == 0 {
		return false
	}
	m.audit(ctx, userID, nil, entity.SessionRevoked, map[string]any{"session_id": sessionID.String()})
	return true
}

// Logout ends the caller's own session.
func (m *SessionManager) Logout(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID, ipAddress *string) bool {
	rows, err := m.sessions.Deactivate(ctx, sessionID, userID)
	if err != nil {
		m.logger.WithError(err).WithField("session_id", sessionID).Error("logout failed")
		return false
	}
	if rows == 0 {
		return false
	}
	m.audit(ctx, userID, ipAddress, entity.Logout, map[string]any{"session_id": sessionID.String()})
	return true
}

// RevokeAllSessions deactivates every active session of userID except the
// one whose token hash is exceptTokenHash, if given.
func (m *SessionManager) RevokeAllSessions(ctx context.Context, userID uuid.UUID, exceptTokenHash string) bool {
	rows, err := m.sessions.DeactivateAllByUser(ctx, userID, exceptTokenHash)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Error("revoke all sessions failed")
		return false
	}
	m.audit(ctx, userID, nil, entity.SessionsRevokedOthers, map[string]any{"revoked": rows})
	return true
}

// RecentActivity lists the user's latest security events, newest first.
func (m *SessionManager) RecentActivity(ctx context.Context, userID uuid.UUID, limit int) []entity.SecurityLog {
	if m.securityLogs == nil {
		return []entity.SecurityLog{}
	}
	if limit <= 0 || limit > maxActivityEntries {
		limit = maxActivityEntries
	}
	logs, err := m.securityLogs.ListByUser(ctx, userID, limit)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", userID).Error("list security activity failed")
		return []entity.SecurityLog{}
	}
	if logs == nil {
		return []entity.SecurityLog{}
	}
	return logs
}

// PruneActivity deletes security events older than retention.
func (m *SessionManager) PruneActivity(ctx context.Context, retention time.Duration) (int64, error) {
	if m.securityLogs == nil || retention <= 0 {
		return 0, nil
	}
	removed, err := m.securityLogs.DeleteBefore(ctx, m.now().Add(-retention))
	if err != nil {
		m.logger.WithError(err).Error("prune security logs failed")
		return 0, err
	}
	if removed > 0 {
		m.logger.WithField("removed", removed).Info("pruned security logs")
	}
	return removed, nil
}

func (m *SessionManager) audit(ctx context.Context, userID uuid.UUID, ipAddress *string, action entity.SecurityAction, metadata map[string]any) {
	if err := logSecurity(ctx, m.securityLogs, &userID, "", ipAddress, action, metadata); err != nil {
		m.logger.WithError(err).WithField("action", action).Warn("write security log failed")
	}
}

func (m *SessionManager) UpdateSessionActivity(ctx context.Context, token string) {
	if err := m.sessions.TouchActivity(ctx, utils.HashToken(token), m.now()); err != nil {
		m.logger.WithError(err).Warn("update session activity failed")
	}
}

func (m *SessionManager) VerifySession(ctx context.Context, token string) bool {
	return m.ResolveSession(ctx, token) != nil
}

// ResolveSession returns the session behind token when it is active and
// unexpired, nil otherwise.
func (m *SessionManager) ResolveSession(ctx context.Context, token string) *entity.UserSession {
	if token == "" {
		return nil
	}
	session, err := m.sessions.FindActiveByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		m.logger.WithError(err).Error("verify session failed")
		return nil
	}
	if session == nil || !session.Valid(m.now()) {
		return nil
	}
	return session
}

func (m *SessionManager) now() time.Time {
	if m.clock == nil {
		return time.Now()
	}
	return m.clock.Now()
}
