package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"radportal/internal/entity"
	"radportal/internal/geo"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var errStoreDown = errors.New("store unavailable")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memPendingRepo struct {
	mu          sync.Mutex
	rows        map[string]*entity.PendingAuthSession
	createFails int
	createCalls int
}

func newMemPendingRepo() *memPendingRepo {
	return &memPendingRepo{rows: map[string]*entity.PendingAuthSession{}}
}

func (r *memPendingRepo) Create(ctx context.Context, s *entity.PendingAuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.createFails > 0 {
		r.createFails--
		return errStoreDown
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	clone := *s
	r.rows[s.TokenHash] = &clone
	return nil
}

func (r *memPendingRepo) FindByTokenHash(ctx context.Context, hash string) (*entity.PendingAuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[hash]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *memPendingRepo) FindByVerifyTokenHash(ctx context.Context, hash string) (*entity.PendingAuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byVerifyHash(hash)
	if row == nil {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *memPendingRepo) MarkAuthenticated(ctx context.Context, verifyHash string, at time.Time, ip *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byVerifyHash(verifyHash)
	if row == nil || row.IsAuthenticated {
		return 0, nil
	}
	row.IsAuthenticated = true
	row.AuthenticatedAt = &at
	row.AuthenticatedIP = ip
	return 1, nil
}

func (r *memPendingRepo) Delete(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, hash)
	return nil
}

func (r *memPendingRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for hash, row := range r.rows {
		if row.ExpiresAt.Before(before) {
			delete(r.rows, hash)
			removed++
		}
	}
	return removed, nil
}

func (r *memPendingRepo) byVerifyHash(hash string) *entity.PendingAuthSession {
	for _, row := range r.rows {
		if row.VerifyTokenHash == hash {
			return row
		}
	}
	return nil
}

func (r *memPendingRepo) get(hash string) *entity.PendingAuthSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[hash]
	if !ok {
		return nil
	}
	clone := *row
	return &clone
}

type memSessionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.UserSession
	err  error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{rows: map[uuid.UUID]*entity.UserSession{}}
}

func (r *memSessionRepo) Create(ctx context.Context, s *entity.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	clone := *s
	r.rows[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) FindActiveByTokenHash(ctx context.Context, hash string) (*entity.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, row := range r.rows {
		if row.TokenHash == hash && row.IsActive {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []entity.UserSession
	for _, row := range r.rows {
		if row.UserID == userID && row.IsActive {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *memSessionRepo) Deactivate(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	row, ok := r.rows[sessionID]
	if !ok || row.UserID != userID || !row.IsActive {
		return 0, nil
	}
	row.IsActive = false
	return 1, nil
}

func (r *memSessionRepo) DeactivateAllByUser(ctx context.Context, userID uuid.UUID, exceptTokenHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for _, row := range r.rows {
		if row.UserID != userID || !row.IsActive {
			continue
		}
		if exceptTokenHash != "" && row.TokenHash == exceptTokenHash {
			continue
		}
		row.IsActive = false
		n++
	}
	return n, nil
}

func (r *memSessionRepo) TouchActivity(ctx context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, row := range r.rows {
		if row.TokenHash == hash && row.IsActive {
			row.LastActivity = at
		}
	}
	return nil
}

func (r *memSessionRepo) get(id uuid.UUID) *entity.UserSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil
	}
	clone := *row
	return &clone
}

type memUserRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.User
	err  error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{rows: map[uuid.UUID]*entity.User{}}
}

func (r *memUserRepo) add(email string, role entity.UserRole) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := &entity.User{ID: uuid.New(), Email: email, Role: role}
	r.rows[user.ID] = user
	clone := *user
	return &clone
}

func (r *memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, row := range r.rows {
		if row.Email == email {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindOrCreate(ctx context.Context, email string) (*entity.User, error) {
	existing, err := r.FindByEmail(ctx, email)
	if err != nil || existing != nil {
		return existing, err
	}
	return r.add(email, entity.UserRoleUser), nil
}

func (r *memUserRepo) UpdateRole(ctx context.Context, id uuid.UUID, role entity.UserRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Role = role
	}
	return nil
}

func (r *memUserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.LastLoginAt = &at
	}
	return nil
}

type memAccessRequestRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.AccessRequest
	err  error
}

func newMemAccessRequestRepo() *memAccessRequestRepo {
	return &memAccessRequestRepo{rows: map[uuid.UUID]*entity.AccessRequest{}}
}

func (r *memAccessRequestRepo) Create(ctx context.Context, request *entity.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	clone := *request
	r.rows[request.ID] = &clone
	return nil
}

func (r *memAccessRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *memAccessRequestRepo) FindByEmailAndStatus(ctx context.Context, email string, status entity.AccessRequestStatus) (*entity.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, row := range r.rows {
		if row.Email == email && row.Status == status {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memAccessRequestRepo) ListByStatus(ctx context.Context, status entity.AccessRequestStatus, limit, offset int) ([]entity.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.AccessRequest
	for _, row := range r.rows {
		if row.Status == status {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *memAccessRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.AccessRequestStatus, reviewer uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != entity.AccessRequestPending {
		return 0, nil
	}
	row.Status = status
	row.ReviewedBy = &reviewer
	row.ReviewedAt = &at
	return 1, nil
}

type memDomainRepo struct {
	approved map[string]bool
	err      error
}

func (r *memDomainRepo) IsApproved(ctx context.Context, domain string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.approved[domain], nil
}

type memInvitationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.InvitationCode
}

func newMemInvitationRepo() *memInvitationRepo {
	return &memInvitationRepo{rows: map[uuid.UUID]*entity.InvitationCode{}}
}

func (r *memInvitationRepo) Create(ctx context.Context, code *entity.InvitationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	clone := *code
	r.rows[code.ID] = &clone
	return nil
}

func (r *memInvitationRepo) FindByCode(ctx context.Context, code string) (*entity.InvitationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Code == code {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memInvitationRepo) HasLiveCode(ctx context.Context, email string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.Live(now) {
			continue
		}
		if row.Email == nil || *row.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memInvitationRepo) IncrementUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UsedCount >= row.MaxUses {
		return 0, nil
	}
	row.UsedCount++
	return 1, nil
}

type memAdminConfigRepo struct {
	config *entity.AdminConfiguration
	err    error
}

func (r *memAdminConfigRepo) FindByKey(ctx context.Context, key string) (*entity.AdminConfiguration, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.config == nil || r.config.ConfigKey != key {
		return nil, nil
	}
	return r.config, nil
}

type memSecurityLogRepo struct {
	mu   sync.Mutex
	logs []entity.SecurityLog
}

func (r *memSecurityLogRepo) Log(ctx context.Context, log *entity.SecurityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memSecurityLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.SecurityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.SecurityLog
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].UserID != nil && *r.logs[i].UserID == userID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

func (r *memSecurityLogRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.logs[:0]
	var removed int64
	for _, log := range r.logs {
		if log.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, log)
	}
	r.logs = kept
	return removed, nil
}

func (r *memSecurityLogRepo) count(action entity.SecurityAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, log := range r.logs {
		if log.Action == action {
			n++
		}
	}
	return n
}

type stubGeolocator struct {
	data  *geo.Data
	calls int
}

func (g *stubGeolocator) Lookup(ctx context.Context, ip string) *geo.Data {
	g.calls++
	return g.data
}

type stubAdminChecker struct {
	isAdmin bool
	err     error
	calls   int
}

func (c *stubAdminChecker) IsAdmin(ctx context.Context, email string, userID uuid.UUID) (bool, error) {
	c.calls++
	return c.isAdmin, c.err
}

type stubSender struct {
	mu     sync.Mutex
	err    error
	tokens []string
}

func (s *stubSender) SendMagicLink(ctx context.Context, email string, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tokens = append(s.tokens, token)
	return nil
}

type stubTokenIssuer struct {
	ttl time.Duration
	n   int
}

func (i *stubTokenIssuer) IssueSessionToken(user entity.User) (string, time.Duration, error) {
	i.n++
	return "bearer-" + user.ID.String() + "-" + string(rune('a'+i.n)), i.ttl, nil
}
