package authsrv

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orgsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp/otpsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/stretchr/testify/require"
)

const testPassword = "Sup3r$ecret"

type sentMail struct {
	to    notifx.Recipient
	key   string
	merge map[string]any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendTemplate(_ context.Context, to notifx.Recipient, key string, merge map[string]any) (notifx.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return notifx.Delivery{}, m.err
	}
	m.sent = append(m.sent, sentMail{to: to, key: key, merge: merge})
	return notifx.Delivery{Success: true, Delivered: true}, nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email was sent")
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeEnqueuer struct {
	jobs []jobx.Job
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	e.jobs = append(e.jobs, job)
	return "job-" + job.Type, nil
}

// windowThrottle is an in-memory otp.Throttle driven by the test clock.
type windowThrottle struct {
	clock *kernel.ManualClock
	until map[string]time.Time
}

func (w *windowThrottle) Allow(_ context.Context, purpose otp.Purpose, email string, window time.Duration) (bool, error) {
	key := string(purpose) + ":" + email
	now := w.clock.Now()
	if until, ok := w.until[key]; ok && now.Before(until) {
		return false, nil
	}
	w.until[key] = now.Add(window)
	return true, nil
}

type recordingAudit struct {
	*authinfra.LogxAuditService
	mu     sync.Mutex
	reuses []int64
}

func (a *recordingAudit) LogTokenReuse(ctx context.Context, userID kernel.UserID, revoked int64, ip string) {
	a.mu.Lock()
	a.reuses = append(a.reuses, revoked)
	a.mu.Unlock()
	a.LogxAuditService.LogTokenReuse(ctx, userID, revoked, ip)
}

type harness struct {
	store    *iamstore.MemoryStore
	clock    *kernel.ManualClock
	mailer   *fakeMailer
	jobs     *fakeEnqueuer
	audit    *recordingAudit
	throttle *windowThrottle
	tokens   *TokenService
	svc      *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := iamstore.NewMemoryStore()
	clock := kernel.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repos := store.Repos()

	users := usersrv.NewService(repos.Users, secret.NewBcryptHasher(4), clock)
	codes := otpsrv.NewCodeService(repos.Users, clock, 30*time.Minute)
	orgs := orgsrv.NewService(store, clock)
	access := auth.NewJWTService(strings.Repeat("k", 32), 15*time.Minute, "gatekeeper-test", clock)
	audit := &recordingAudit{LogxAuditService: authinfra.NewLogxAuditService(clock)}
	tokens := NewTokenService(store, access, audit, clock, DefaultTokenPolicy())

	h := &harness{
		store:    store,
		clock:    clock,
		mailer:   &fakeMailer{},
		jobs:     &fakeEnqueuer{},
		audit:    audit,
		throttle: &windowThrottle{clock: clock, until: map[string]time.Time{}},
		tokens:   tokens,
	}
	h.svc = NewAuthService(store, users, codes, orgs, tokens, h.mailer, h.jobs, h.throttle, audit, clock, time.Minute)
	return h
}

func (h *harness) signup(t *testing.T, email string) *SignupResult {
	t.Helper()
	res, err := h.svc.Signup(context.Background(), SignupInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  testPassword,
	}, RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)
	return res
}

// verifiedUser signs up and verifies email with the mailed code.
func (h *harness) verifiedUser(t *testing.T, email string) *user.User {
	t.Helper()
	h.signup(t, email)
	code := h.mailer.last(t).merge["emailVerificationCode"].(string)
	u, err := h.svc.VerifyEmail(context.Background(), email, code, RequestMeta{})
	require.NoError(t, err)
	return u
}

func (h *harness) login(t *testing.T, email string, rememberMe bool) *auth.TokenPair {
	t.Helper()
	res, err := h.svc.Login(context.Background(), email, testPassword, rememberMe, RequestMeta{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return res.Tokens
}

func (h *harness) token(t *testing.T, raw string) *auth.RefreshToken {
	t.Helper()
	tok, err := h.store.Repos().RefreshTokens.FindByHash(context.Background(), secret.FastHash(raw))
	require.NoError(t, err)
	return tok
}

// failingSaves reads through to the wrapped repository and rejects writes.
type failingSaves struct {
	user.Repository
}

func (failingSaves) Save(context.Context, *user.User) error {
	return errors.New("connection reset")
}

// breakCodeStorage makes every code write fail from here on.
func (h *harness) breakCodeStorage() {
	h.svc.codes = otpsrv.NewCodeService(failingSaves{h.store.Repos().Users}, h.clock, 30*time.Minute)
}
