package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[kernel.UserID]*user.User

func (s stubUsers) GetByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound()
}

type stubOrgs map[kernel.UserID]*organization.UserOrganization

func (s stubOrgs) GetUserOrganization(_ context.Context, id kernel.UserID) (*organization.UserOrganization, error) {
	if uo, ok := s[id]; ok {
		return uo, nil
	}
	return nil, organization.ErrNoOrganization()
}

func membership(role organization.Role) *organization.UserOrganization {
	return &organization.UserOrganization{
		Organization: &organization.Organization{ID: "org-1", Name: "Acme"},
		Membership:   &organization.Membership{Role: role, Status: organization.MemberActive},
	}
}

func newMiddlewareApp(t *testing.T) (*fiber.App, *JWTService) {
	t.Helper()
	jwtSvc, _ := newTestJWT()
	users := stubUsers{
		"owner":  {ID: "owner", Email: "owner@example.com"},
		"viewer": {ID: "viewer", Email: "viewer@example.com"},
		"no-org": {ID: "no-org", Email: "solo@example.com"},
	}
	orgs := stubOrgs{
		"owner":  membership(organization.RoleOwner),
		"viewer": membership(organization.RoleViewer),
	}
	mw := NewTokenMiddleware(jwtSvc, users, orgs)

	app := fiber.New(fiber.Config{ErrorHandler: errxfiber.ErrorHandler(false)})
	app.Get("/me", mw.Authenticate(), func(c *fiber.Ctx) error {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		ac, ok := kernel.AuthFrom(c.UserContext())
		require.True(t, ok)
		assert.Equal(t, u.ID, ac.UserID)
		return c.SendString(u.Email)
	})
	app.Get("/admin", mw.Authenticate(), mw.RequireRole(organization.RoleOwner, organization.RoleAdmin), func(c *fiber.Ctx) error {
		uo, ok := CurrentOrganization(c)
		require.True(t, ok)
		return c.SendString(string(uo.Role()))
	})
	return app, jwtSvc
}

func mint(t *testing.T, svc *JWTService, id kernel.UserID) string {
	t.Helper()
	token, _, err := svc.Mint(AccessPayload{UserID: id, Email: string(id) + "@example.com"})
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	app, svc := newMiddlewareApp(t)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"bearer header", "Bearer " + mint(t, svc, "owner"), "", fiber.StatusOK},
		{"cookie", "", mint(t, svc, "owner"), fiber.StatusOK},
		{"missing", "", "", fiber.StatusUnauthorized},
		{"malformed", "Bearer nope", "", fiber.StatusUnauthorized},
		{"unknown user", "Bearer " + mint(t, svc, "ghost"), "", fiber.StatusUnauthorized},
		{"wrong scheme falls back to cookie", "Basic abc", mint(t, svc, "owner"), fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set("Cookie", AccessTokenCookie+"="+tt.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	jwtSvc, clock := newTestJWT()
	mw := NewTokenMiddleware(jwtSvc, stubUsers{"owner": {ID: "owner"}}, stubOrgs{})
	app := fiber.New(fiber.Config{ErrorHandler: errxfiber.ErrorHandler(false)})
	app.Get("/", mw.Authenticate(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	token := mint(t, jwtSvc, "owner")
	clock.Advance(time.Hour)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	app, svc := newMiddlewareApp(t)

	tests := []struct {
		user   kernel.UserID
		status int
	}{
		{"owner", fiber.StatusOK},
		{"viewer", fiber.StatusForbidden},
		{"no-org", fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(string(tt.user), func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+mint(t, svc, tt.user))
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer"))
	assert.Empty(t, bearerToken(""))
}
