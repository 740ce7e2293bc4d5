package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"radportal/internal/device"
	"radportal/internal/entity"
	"radportal/internal/geo"
	"radportal/internal/utils"
)

type harness struct {
	clock       *fakeClock
	pending     *memPendingRepo
	sessions    *memSessionRepo
	users       *memUserRepo
	requests    *memAccessRequestRepo
	domains     *memDomainRepo
	invitations *memInvitationRepo
	configs     *memAdminConfigRepo
	logs        *memSecurityLogRepo
	geo         *stubGeolocator
	admin       *stubAdminChecker
	sender      *stubSender
	tokens      *stubTokenIssuer

	sessionManager *SessionManager
	validation     *AuthValidation
	auth           *AuthSessionManager
}

func newHarness() *harness {
	h := &harness{
		clock:       newFakeClock(),
		pending:     newMemPendingRepo(),
		sessions:    newMemSessionRepo(),
		users:       newMemUserRepo(),
		requests:    newMemAccessRequestRepo(),
		domains:     &memDomainRepo{approved: map[string]bool{}},
		invitations: newMemInvitationRepo(),
		configs:     &memAdminConfigRepo{},
		logs:        &memSecurityLogRepo{},
		geo: &stubGeolocator{data: &geo.Data{
			Status:     "success",
			City:       "Mountain View",
			RegionName: "California",
			Country:    "United States",
			ISP:        "Google LLC",
		}},
		admin:  &stubAdminChecker{},
		sender: &stubSender{},
		tokens: &stubTokenIssuer{ttl: 7 * 24 * time.Hour},
	}
	config := AuthConfig{
		Retry: utils.RetryOptions{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 1},
	}
	logger := quietLogger()

	h.sessionManager = NewSessionManager(h.sessions, h.logs, h.geo, h.clock, config, logger)
	h.validation = NewAuthValidation(h.domains, h.requests, h.invitations, h.users, h.logs, h.admin, h.clock, config, logger)
	h.auth = NewAuthSessionManager(
		h.pending, h.users, h.logs,
		h.sessionManager, h.validation, h.sender, h.tokens,
		device.Generator{}, h.clock, config, logger,
	)
	return h
}

func TestMagicLinkHandshake(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	tokens, err := h.auth.CreatePendingSession(ctx, "user@med.cornell.edu", device.Attributes{UserAgent: "ua"})
	if err != nil || tokens.PollToken == "" || tokens.VerifyToken == "" {
		t.Fatalf("CreatePendingSession = (%+v, %v)", tokens, err)
	}
	if tokens.PollToken == tokens.VerifyToken {
		t.Fatal("poll and verify tokens must differ")
	}

	status, err := h.auth.CheckSessionStatus(ctx, tokens.PollToken)
	if err != nil {
		t.Fatalf("CheckSessionStatus: %v", err)
	}
	if status.IsAuthenticated {
		t.Fatal("fresh session must not be authenticated")
	}

	result, err := h.auth.AuthenticateSession(ctx, tokens.VerifyToken, nil)
	if err != nil || !result.NewlyAuthenticated {
		t.Fatalf("AuthenticateSession = (%+v, %v)", result, err)
	}

	status, err = h.auth.CheckSessionStatus(ctx, tokens.PollToken)
	if err != nil {
		t.Fatalf("CheckSessionStatus: %v", err)
	}
	if !status.IsAuthenticated || status.Email != "user@med.cornell.edu" {
		t.Fatalf("unexpected status %+v", status)
	}

	h.auth.CleanupSession(ctx, tokens.PollToken)
	if _, err := h.auth.CheckSessionStatus(ctx, tokens.PollToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after cleanup, got %v", err)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	result, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: "vic1234@med.cornell.edu"})
	if err != nil {
		t.Fatalf("RequestMagicLink: %v", err)
	}

	if _, err := h.auth.AuthenticateSession(ctx, result.PollToken, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("AuthenticateSession(poll token) err = %v, want ErrSessionNotFound", err)
	}
	if _, err := h.auth.CompleteLogin(ctx, result.PollToken, ClientInfo{}); !errors.Is(err, ErrSessionNotAuthenticated) {
		t.Fatalf("CompleteLogin err = %v, want ErrSessionNotAuthenticated", err)
	}
	if len(h.sessions.rows) != 0 {
		t.Fatal("no bearer session may exist before the emailed link is opened")
	}

	emailed := h.sender.tokens[0]
	if _, err := h.auth.CheckSessionStatus(ctx, emailed); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("CheckSessionStatus(verify token) err = %v, want ErrSessionNotFound", err)
	}
	if _, err := h.auth.CompleteLogin(ctx, emailed, ClientInfo{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("CompleteLogin(verify token) err = %v, want ErrSessionNotFound", err)
	}
}

func TestPendingSessionStoresOnlyTokenHash(t *testing.T) {
	h := newHarness()
	tokens, err := h.auth.CreatePendingSession(context.Background(), "  ABC1234@Med.Cornell.EDU ", device.Attributes{UserAgent: "ua", Language: "en-US"})
	if err != nil {
		t.Fatalf("CreatePendingSession: %v", err)
	}

	if h.pending.get(tokens.PollToken) != nil {
		t.Fatal("raw token must not be a storage key")
	}
	row := h.pending.get(utils.HashToken(tokens.PollToken))
	if row == nil {
		t.Fatal("pending row not stored under token hash")
	}
	if row.VerifyTokenHash != utils.HashToken(tokens.VerifyToken) {
		t.Fatal("verify token hash not stored")
	}
	if row.Email != "abc1234@med.cornell.edu" {
		t.Fatalf("email not normalized: %q", row.Email)
	}
	if row.DeviceInfo != "ua" || row.DeviceFingerprint == "" {
		t.Fatalf("device metadata missing: %+v", row)
	}
	if want := h.clock.Now().Add(15 * time.Minute); !row.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", row.ExpiresAt, want)
	}
}

func TestAuthenticateSessionIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tokens, _ := h.auth.CreatePendingSession(ctx, "abc1234@med.cornell.edu", device.Attributes{})
	pollHash := utils.HashToken(tokens.PollToken)

	first, err := h.auth.AuthenticateSession(ctx, tokens.VerifyToken, nil)
	if err != nil || !first.NewlyAuthenticated {
		t.Fatalf("first AuthenticateSession = (%+v, %v)", first, err)
	}
	authenticatedAt := *h.pending.get(pollHash).AuthenticatedAt

	h.clock.Advance(time.Minute)
	second, err := h.auth.AuthenticateSession(ctx, tokens.VerifyToken, nil)
	if err != nil {
		t.Fatalf("second AuthenticateSession: %v", err)
	}
	if second.NewlyAuthenticated {
		t.Fatal("replay must not report a new authentication")
	}
	if got := *h.pending.get(pollHash).AuthenticatedAt; !got.Equal(authenticatedAt) {
		t.Fatalf("authenticatedAt overwritten: %v -> %v", authenticatedAt, got)
	}
	if n := h.logs.count(entity.MagicLinkReplayed); n != 1 {
		t.Fatalf("expected one replay audit entry, got %d", n)
	}
}

func TestExpiredPendingSessionIsAnError(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	tokens, _ := h.auth.CreatePendingSession(ctx, "abc1234@med.cornell.edu", device.Attributes{})

	h.clock.Advance(16 * time.Minute)
	if _, err := h.auth.CheckSessionStatus(ctx, tokens.PollToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("CheckSessionStatus error = %v, want ErrSessionExpired", err)
	}
	if _, err := h.auth.AuthenticateSession(ctx, tokens.VerifyToken, nil); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("AuthenticateSession error = %v, want ErrSessionExpired", err)
	}
	if _, err := h.auth.AuthenticateSession(ctx, "unknown", nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("AuthenticateSession(unknown) error = %v, want ErrSessionNotFound", err)
	}
}

func TestCreatePendingSessionRetries(t *testing.T) {
	h := newHarness()
	h.pending.createFails = 2
	tokens, err := h.auth.CreatePendingSession(context.Background(), "abc1234@med.cornell.edu", device.Attributes{})
	if err != nil || tokens.PollToken == "" {
		t.Fatalf("expected success on third attempt, got (%+v, %v)", tokens, err)
	}
	if h.pending.createCalls != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", h.pending.createCalls)
	}

	h = newHarness()
	h.pending.createFails = 3
	tokens, err = h.auth.CreatePendingSession(context.Background(), "abc1234@med.cornell.edu", device.Attributes{})
	if err == nil || tokens.PollToken != "" {
		t.Fatalf("expected failure after retries, got (%+v, %v)", tokens, err)
	}
}

func TestPurgeExpired(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	old, _ := h.auth.CreatePendingSession(ctx, "abc1234@med.cornell.edu", device.Attributes{})
	h.clock.Advance(10 * time.Minute)
	fresh, _ := h.auth.CreatePendingSession(ctx, "xyz9876@med.cornell.edu", device.Attributes{})
	h.clock.Advance(6 * time.Minute)

	removed, err := h.auth.PurgeExpired(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("PurgeExpired = (%d, %v)", removed, err)
	}
	if h.pending.get(utils.HashToken(old.PollToken)) != nil {
		t.Fatal("expired session should be gone")
	}
	if h.pending.get(utils.HashToken(fresh.PollToken)) == nil {
		t.Fatal("live session should remain")
	}
}

func TestRequestMagicLink(t *testing.T) {
	ctx := context.Background()

	t.Run("cwid sends link", func(t *testing.T) {
		h := newHarness()
		result, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: "abc1234@med.cornell.edu"})
		if err != nil {
			t.Fatalf("RequestMagicLink: %v", err)
		}
		if len(h.sender.tokens) != 1 {
			t.Fatalf("sender got %v, want one link", h.sender.tokens)
		}
		if h.sender.tokens[0] == result.PollToken {
			t.Fatal("the emailed token must not be the poll token")
		}
		row := h.pending.get(utils.HashToken(result.PollToken))
		if row == nil || row.VerifyTokenHash != utils.HashToken(h.sender.tokens[0]) {
			t.Fatal("emailed token should verify the returned handshake")
		}
		if result.Eligibility.Method != MethodCWID {
			t.Fatalf("method = %q", result.Eligibility.Method)
		}
		if h.logs.count(entity.MagicLinkRequested) != 1 {
			t.Fatal("request should be audited")
		}
	})

	t.Run("denied email", func(t *testing.T) {
		h := newHarness()
		result, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: "someone@example.com"})
		if !errors.Is(err, ErrEmailNotAllowed) {
			t.Fatalf("err = %v, want ErrEmailNotAllowed", err)
		}
		if result == nil || result.Eligibility.Reason == "" {
			t.Fatal("denial should carry a reason")
		}
		if len(h.sender.tokens) != 0 {
			t.Fatal("no email may be sent for a denied address")
		}
	})

	t.Run("invitation required then consumed", func(t *testing.T) {
		h := newHarness()
		email := "guest@example.com"
		invitation, err := h.validation.IssueInvitationCode(ctx, InvitationInput{Email: &email, MaxUses: 1})
		if err != nil {
			t.Fatalf("IssueInvitationCode: %v", err)
		}

		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: email}); !errors.Is(err, ErrInvitationRequired) {
			t.Fatalf("err = %v, want ErrInvitationRequired", err)
		}
		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: email, InvitationCode: "wrong"}); !errors.Is(err, ErrInvalidInvitationCode) {
			t.Fatalf("err = %v, want ErrInvalidInvitationCode", err)
		}
		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: email, InvitationCode: invitation.Code}); err != nil {
			t.Fatalf("RequestMagicLink with code: %v", err)
		}
		stored, _ := h.invitations.FindByCode(ctx, invitation.Code)
		if stored.UsedCount != 1 {
			t.Fatalf("UsedCount = %d, want 1", stored.UsedCount)
		}
	})

	t.Run("delivery failure keeps invitation code", func(t *testing.T) {
		h := newHarness()
		email := "guest@example.com"
		invitation, _ := h.validation.IssueInvitationCode(ctx, InvitationInput{Email: &email, MaxUses: 1})

		h.sender.err = errors.New("smtp down")
		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: email, InvitationCode: invitation.Code}); !errors.Is(err, ErrMagicLinkDelivery) {
			t.Fatalf("err = %v, want ErrMagicLinkDelivery", err)
		}
		stored, _ := h.invitations.FindByCode(ctx, invitation.Code)
		if stored.UsedCount != 0 {
			t.Fatalf("UsedCount = %d after failed delivery, want 0", stored.UsedCount)
		}

		h.sender.err = nil
		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: email, InvitationCode: invitation.Code}); err != nil {
			t.Fatalf("retry after failed delivery: %v", err)
		}
		stored, _ = h.invitations.FindByCode(ctx, invitation.Code)
		if stored.UsedCount != 1 {
			t.Fatalf("UsedCount = %d, want 1", stored.UsedCount)
		}
	})

	t.Run("failed insert keeps invitation code", func(t *testing.T) {
		h := newHarness()
		email := "guest@example.com"
		invitation, _ := h.validation.IssueInvitationCode(ctx, InvitationInput{Email: &email, MaxUses: 1})

		h.pending.createFails = 3
		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: email, InvitationCode: invitation.Code}); err == nil {
			t.Fatal("expected insert failure")
		}
		stored, _ := h.invitations.FindByCode(ctx, invitation.Code)
		if stored.UsedCount != 0 {
			t.Fatalf("UsedCount = %d after failed insert, want 0", stored.UsedCount)
		}
		if len(h.sender.tokens) != 0 {
			t.Fatal("no link may be sent when the handshake was not stored")
		}
	})

	t.Run("delivery failure removes pending session", func(t *testing.T) {
		h := newHarness()
		h.sender.err = errors.New("smtp down")
		if _, err := h.auth.RequestMagicLink(ctx, MagicLinkInput{Email: "abc1234@med.cornell.edu"}); !errors.Is(err, ErrMagicLinkDelivery) {
			t.Fatalf("err = %v, want ErrMagicLinkDelivery", err)
		}
		if len(h.pending.rows) != 0 {
			t.Fatal("pending session should be cleaned up")
		}
	})
}

func TestCompleteLogin(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ip := "8.8.8.8"
	tokens, _ := h.auth.CreatePendingSession(ctx, "abc1234@med.cornell.edu", device.Attributes{})
	token := tokens.PollToken

	if _, err := h.auth.CompleteLogin(ctx, token, ClientInfo{IPAddress: &ip}); !errors.Is(err, ErrSessionNotAuthenticated) {
		t.Fatalf("err = %v, want ErrSessionNotAuthenticated", err)
	}

	if _, err := h.auth.AuthenticateSession(ctx, tokens.VerifyToken, &ip); err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}
	result, err := h.auth.CompleteLogin(ctx, token, ClientInfo{IPAddress: &ip, UserAgent: "Mozilla/5.0 (Windows NT 10.0)"})
	if err != nil {
		t.Fatalf("CompleteLogin: %v", err)
	}
	if result.User.Email != "abc1234@med.cornell.edu" || result.Role != entity.UserRoleUser {
		t.Fatalf("unexpected login result %+v", result)
	}
	if result.ExpiresIn != int64((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("ExpiresIn = %d", result.ExpiresIn)
	}
	if !h.sessionManager.VerifySession(ctx, result.AccessToken) {
		t.Fatal("issued bearer token should verify")
	}
	if h.pending.get(utils.HashToken(token)) != nil {
		t.Fatal("pending session should be removed after login")
	}
	if h.logs.count(entity.LoginSuccess) != 1 {
		t.Fatal("login should be audited")
	}
	if _, err := h.auth.CompleteLogin(ctx, token, ClientInfo{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second CompleteLogin err = %v, want ErrSessionNotFound", err)
	}
}
