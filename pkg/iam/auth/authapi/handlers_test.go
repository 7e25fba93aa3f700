package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orgsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp/otpsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "Sup3r$ecret"

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (i *inbox) SendTemplate(_ context.Context, to notifx.Recipient, key string, merge map[string]any) (notifx.Delivery, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	field := "emailVerificationCode"
	if key == notifx.TemplatePasswordReset {
		field = "passwordResetCode"
	}
	i.codes[key+":"+to.Address] = merge[field].(string)
	return notifx.Delivery{Success: true, Delivered: true}, nil
}

func (i *inbox) code(key, email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[key+":"+email]
}

type discardJobs struct{}

func (discardJobs) Enqueue(context.Context, jobx.Job) (string, error) { return "job", nil }

type server struct {
	app   *fiber.App
	inbox *inbox
	clock *kernel.ManualClock
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := iamstore.NewMemoryStore()
	clock := kernel.NewManualClock(time.Now().UTC().Truncate(time.Second))
	repos := store.Repos()

	users := usersrv.NewService(repos.Users, secret.NewBcryptHasher(4), clock)
	codes := otpsrv.NewCodeService(repos.Users, clock, 30*time.Minute)
	orgs := orgsrv.NewService(store, clock)
	access := auth.NewJWTService(strings.Repeat("k", 32), 15*time.Minute, "gatekeeper-test", clock)
	audit := authinfra.NewLogxAuditService(clock)
	tokens := authsrv.NewTokenService(store, access, audit, clock, authsrv.DefaultTokenPolicy())
	box := &inbox{codes: map[string]string{}}
	svc := authsrv.NewAuthService(store, users, codes, orgs, tokens, box, discardJobs{}, otp.NoThrottle{}, audit, clock, time.Minute)

	mw := auth.NewTokenMiddleware(access, users, orgs)
	app := fiber.New(fiber.Config{ErrorHandler: errxfiber.ErrorHandler(false)})
	NewHandlers(svc, mw, CookiePolicy{}, clock).RegisterRoutes(app.Group("/api/v1"))

	return &server{app: app, inbox: box, clock: clock}
}

func (s *server) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*http.Response, errx.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1/auth"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env errx.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func (s *server) signup(t *testing.T, email string) {
	t.Helper()
	resp, _ := s.do(t, "POST", "/signup", fiber.Map{
		"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": password,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func (s *server) verifiedLogin(t *testing.T, email string) map[string]*http.Cookie {
	t.Helper()
	s.signup(t, email)
	resp, _ := s.do(t, "POST", "/verify-email", fiber.Map{
		"email": email, "emailVerificationCode": s.inbox.code(notifx.TemplateEmailVerification, email),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/login", fiber.Map{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return cookieMap(resp)
}

func cookieMap(resp *http.Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestSignupEndpoint(t *testing.T) {
	s := newServer(t)

	resp, env := s.do(t, "POST", "/signup", fiber.Map{
		"firstName":        "Ada",
		"lastName":         "Lovelace",
		"email":            "ada@example.com",
		"password":         password,
		"createOrg":        true,
		"organizationName": "Analytical Engines",
		"organizationSize": 5,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "Signup successful", env.Message)

	data := env.Data.(map[string]any)
	assert.NotEmpty(t, data["userId"])
	assert.NotEmpty(t, data["organizationId"])
	assert.Equal(t, true, data["emailSent"])

	resp, env = s.do(t, "POST", "/signup", fiber.Map{
		"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com", "password": password,
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "USER_EMAIL_TAKEN", env.Code)
}

func TestSignupValidation(t *testing.T) {
	s := newServer(t)

	resp, env := s.do(t, "POST", "/signup", fiber.Map{
		"firstName": "A", "lastName": "Lovelace", "email": "not-an-email", "password": "weak", "createOrg": true,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	for _, field := range []string{"firstName", "email", "password", "organizationName", "organizationSize"} {
		assert.Contains(t, env.Details, field)
	}
}

func TestLoginSetsCookies(t *testing.T) {
	s := newServer(t)
	cookies := s.verifiedLogin(t, "ada@example.com")

	access := cookies[auth.AccessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, "/", access.Path)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	refresh := cookies[auth.RefreshTokenCookie]
	require.NotNil(t, refresh)
	assert.Equal(t, "/api/v1/auth/refresh", refresh.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), refresh.MaxAge)

	resp, env := s.do(t, "GET", "/me", nil, access)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	u := env.Data.(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", u["email"])
	assert.Equal(t, true, u["isEmailVerified"])
	assert.NotContains(t, u, "passwordHash")
}

func TestLoginFailures(t *testing.T) {
	s := newServer(t)
	s.signup(t, "ada@example.com")

	resp, env := s.do(t, "POST", "/login", fiber.Map{"email": "ada@example.com", "password": password})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "AUTH_EMAIL_NOT_VERIFIED", env.Code)
	assert.Empty(t, resp.Cookies())

	resp, env = s.do(t, "POST", "/login", fiber.Map{"email": "ada@example.com", "password": "Wr0ng$password"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", env.Code)
	assert.Empty(t, resp.Cookies())
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	s := newServer(t)
	first := s.verifiedLogin(t, "ada@example.com")[auth.RefreshTokenCookie]

	resp, env := s.do(t, "GET", "/refresh", nil, first)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	second := cookieMap(resp)[auth.RefreshTokenCookie]
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	resp, env = s.do(t, "GET", "/refresh", nil, first)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_INVALID_TOKEN", env.Code)
	cleared := cookieMap(resp)
	require.Contains(t, cleared, auth.RefreshTokenCookie)
	require.Contains(t, cleared, auth.AccessTokenCookie)
	assert.Empty(t, cleared[auth.RefreshTokenCookie].Value)
	assert.True(t, cleared[auth.RefreshTokenCookie].Expires.Before(time.Now()))

	// the reuse revoked the successor too
	resp, _ = s.do(t, "GET", "/refresh", nil, second)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, env = s.do(t, "GET", "/refresh", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_MISSING_TOKEN", env.Code)
}

func TestLogout(t *testing.T) {
	s := newServer(t)
	refresh := s.verifiedLogin(t, "ada@example.com")[auth.RefreshTokenCookie]

	resp, env := s.do(t, "POST", "/logout", nil, refresh)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", env.Data.(map[string]any)["message"])

	resp, _ = s.do(t, "GET", "/refresh", nil, refresh)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/logout", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newServer(t)
	s.verifiedLogin(t, "ada@example.com")

	resp, unknown := s.do(t, "POST", "/forgot-password", fiber.Map{"email": "nobody@example.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, known := s.do(t, "POST", "/forgot-password", fiber.Map{"email": "ada@example.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, unknown, known)

	code := s.inbox.code(notifx.TemplatePasswordReset, "ada@example.com")
	resp, env := s.do(t, "POST", "/reset-password", fiber.Map{
		"email": "ada@example.com", "passwordResetCode": code, "newPassword": "N3w$ecretPass",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Password reset successfully", env.Data.(map[string]any)["message"])

	resp, env = s.do(t, "POST", "/reset-password", fiber.Map{
		"email": "ada@example.com", "passwordResetCode": code, "newPassword": "An0ther$ecret",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OTP_INVALID_OR_EXPIRED", env.Code)
}

func TestChangePasswordRequiresAuth(t *testing.T) {
	s := newServer(t)
	access := s.verifiedLogin(t, "ada@example.com")[auth.AccessTokenCookie]

	resp, _ := s.do(t, "POST", "/change-password", fiber.Map{"currentPassword": password, "newPassword": "N3w$ecretPass"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, env := s.do(t, "POST", "/change-password", fiber.Map{"currentPassword": password, "newPassword": password}, access)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Details, "newPassword")

	resp, _ = s.do(t, "POST", "/change-password", fiber.Map{"currentPassword": password, "newPassword": "N3w$ecretPass"}, access)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
