package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"radportal/internal/entity"
	"radportal/internal/repository"
	"radportal/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var cwidPattern = regexp.MustCompile(`^[a-zA-Z]{3}\d{4}$`)

const (
	reasonInvalidEmail   = "Invalid email address"
	reasonInvalidCWID    = "Invalid CWID format"
	reasonRequestAccess  = "Email not authorized. Please request access."
	reasonCheckFailed    = "Unable to verify eligibility. Please try again later."
	invitationCodeLength = 9
)

// AuthValidation makes authorization decisions. Eligibility and admin checks
// fail closed.
type AuthValidation struct {
	domains        repository.ApprovedDomainRepository
	accessRequests repository.AccessRequestRepository
	invitations    repository.InvitationCodeRepository
	users          repository.UserRepository
	securityLogs   repository.SecurityLogRepository
	admin          AdminChecker
	clock          Clock
	config         AuthConfig
	logger         logrus.FieldLogger
}

func NewAuthValidation(
	domains repository.ApprovedDomainRepository,
	accessRequests repository.AccessRequestRepository,
	invitations repository.InvitationCodeRepository,
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	admin AdminChecker,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthValidation {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthValidation{
		domains:        domains,
		accessRequests: accessRequests,
		invitations:    invitations,
		users:          users,
		securityLogs:   securityLogs,
		admin:          admin,
		clock:          clock,
		config:         config,
		logger:         logger.WithField("component", "AuthValidation"),
	}
}

// IsEmailAllowedToAuthenticate evaluates, in order: institutional CWID,
// approved domain, approved access request, live invitation code. The first
// branch that decides wins. A malformed CWID on the institutional domain is
// a hard deny.
func (v *AuthValidation) IsEmailAllowedToAuthenticate(ctx context.Context, email string) Eligibility {
	email = utils.NormalizeEmail(email)
	local, domain, ok := utils.SplitEmail(email)
	if !ok {
		return Eligibility{Reason: reasonInvalidEmail}
	}

	if domain == strings.ToLower(v.config.institutionalDomain()) {
		if cwidPattern.MatchString(local) {
			return Eligibility{Allowed: true, Method: MethodCWID}
		}
		return Eligibility{Reason: reasonInvalidCWID}
	}

	log := v.logger.WithField("domain", domain)

	approved, err := v.domains.IsApproved(ctx, domain)
	if err != nil {
		log.WithError(err).Error("approved domain lookup failed")
		return Eligibility{Reason: reasonCheckFailed}
	}
	if approved {
		return Eligibility{Allowed: true, Method: MethodApprovedDomain}
	}

	request, err := v.accessRequests.FindByEmailAndStatus(ctx, email, entity.AccessRequestApproved)
	if err != nil {
		log.WithError(err).Error("access request lookup failed")
		return Eligibility{Reason: reasonCheckFailed}
	}
	if request != nil {
		return Eligibility{Allowed: true, Method: MethodAccessRequest}
	}

	live, err := v.invitations.HasLiveCode(ctx, email, v.now())
	if err != nil {
		log.WithError(err).Error("invitation code lookup failed")
		return Eligibility{Reason: reasonCheckFailed}
	}
	if live {
		return Eligibility{Allowed: true, Method: MethodInvitationCode, RequiresInvitationCode: true}
	}

	return Eligibility{Reason: reasonRequestAccess}
}

// CheckIsAdmin asks the server-side admin checker. Errors count as false.
func (v *AuthValidation) CheckIsAdmin(ctx context.Context, email string, userID uuid.UUID) bool {
	if v.admin == nil {
		return false
	}
	isAdmin, err := v.admin.IsAdmin(ctx, utils.NormalizeEmail(email), userID)
	if err != nil {
		v.logger.WithError(err).WithField("user_id", userID).Warn("admin status check failed")
		return false
	}
	return isAdmin
}

// GetUserRole returns the stored role, except that a stored admin role is
// only trusted after CheckIsAdmin confirms it.
func (v *AuthValidation) GetUserRole(ctx context.Context, userID uuid.UUID) entity.UserRole {
	user, err := v.users.FindByID(ctx, userID)
	if err != nil {
		v.logger.WithError(err).WithField("user_id", userID).Error("load user profile failed")
		return entity.UserRoleUser
	}
	if user == nil {
		return entity.UserRoleUser
	}
	if user.Role != entity.UserRoleAdmin {
		return entity.UserRoleUser
	}
	if v.CheckIsAdmin(ctx, user.Email, user.ID) {
		return entity.UserRoleAdmin
	}

	v.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Warn("stored admin role not confirmed by server, downgrading to user")
	_ = logSecurity(ctx, v.securityLogs, &user.ID, user.Email, nil, entity.RoleDowngraded, map[string]any{
		"stored_role": string(user.Role),
	})
	return entity.UserRoleUser
}

func (v *AuthValidation) CurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := v.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Deprecated: admin status is resolved server side. Always false.
func (v *AuthValidation) IsHardcodedAdmin(email string) bool {
	v.logger.WithField("email", email).Warn("IsHardcodedAdmin is deprecated and always returns false")
	return false
}

// Deprecated: admin status is resolved server side. Always empty.
func (v *AuthValidation) HardcodedAdminEmails() []string {
	v.logger.Warn("HardcodedAdminEmails is deprecated and always returns an empty list")
	return []string{}
}

// CheckInvitationCode validates code for email without spending a use.
func (v *AuthValidation) CheckInvitationCode(ctx context.Context, email string, code string) error {
	_, err := v.liveInvitation(ctx, email, code)
	return err
}

// ConsumeInvitationCode validates code for email and spends one use.
func (v *AuthValidation) ConsumeInvitationCode(ctx context.Context, email string, code string) error {
	invitation, err := v.liveInvitation(ctx, email, code)
	if err != nil {
		return err
	}

	rows, err := v.invitations.IncrementUsage(ctx, invitation.ID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidInvitationCode
	}
	return nil
}

func (v *AuthValidation) liveInvitation(ctx context.Context, email string, code string) (*entity.InvitationCode, error) {
	email = utils.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvitationRequired
	}

	invitation, err := v.invitations.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if invitation == nil || !invitation.Live(v.now()) {
		return nil, ErrInvalidInvitationCode
	}
	if invitation.Email != nil && utils.NormalizeEmail(*invitation.Email) != email {
		return nil, ErrInvalidInvitationCode
	}
	return invitation, nil
}

func (v *AuthValidation) IssueInvitationCode(ctx context.Context, input InvitationInput) (*entity.InvitationCode, error) {
	maxUses := input.MaxUses
	if maxUses <= 0 {
		maxUses = 1
	}
	code, err := utils.GenerateRandomToken(invitationCodeLength)
	if err != nil {
		return nil, err
	}

	invitation := &entity.InvitationCode{
		Code:     code,
		MaxUses:  maxUses,
		IsActive: true,
	}
	if input.Email != nil {
		email := utils.NormalizeEmail(*input.Email)
		if email != "" {
			invitation.Email = &email
		}
	}
	if input.ExpiresIn > 0 {
		expiresAt := v.now().Add(input.ExpiresIn)
		invitation.ExpiresAt = &expiresAt
	}
	if input.CreatedBy != uuid.Nil {
		createdBy := input.CreatedBy
		invitation.CreatedBy = &createdBy
	}

	if err := v.invitations.Create(ctx, invitation); err != nil {
		return nil, err
	}
	return invitation, nil
}

func (v *AuthValidation) now() time.Time {
	if v.clock == nil {
		return time.Now()
	}
	return v.clock.Now()
}
