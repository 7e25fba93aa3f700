package auth

import (
	"strings"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Cookie names shared by the middleware and the auth handlers.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

const userLocalsKey = "user"

// TokenMiddleware authenticates requests with access tokens and enforces
// organization roles.
type TokenMiddleware struct {
	tokens AccessTokenService
	users  UserLookup
	orgs   MembershipResolver
}

func NewTokenMiddleware(tokens AccessTokenService, users UserLookup, orgs MembershipResolver) *TokenMiddleware {
	return &TokenMiddleware{tokens: tokens, users: users, orgs: orgs}
}

// Authenticate accepts a Bearer header or the access_token cookie, verifies
// it and loads the user it names.
func (m *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(AccessTokenCookie)
		}
		if token == "" {
			return ErrMissingToken()
		}

		payload, err := m.tokens.Verify(token)
		if err != nil {
			return err
		}

		u, err := m.users.GetByID(c.UserContext(), payload.UserID)
		if errx.IsCode(err, user.CodeUserNotFound) {
			return ErrRegistry.NewWithMessage(CodeInvalidToken, "User not found")
		}
		if err != nil {
			return err
		}

		ac := &kernel.AuthContext{UserID: u.ID, Email: u.Email}
		c.Locals(kernel.AuthContextKey, ac)
		c.Locals(userLocalsKey, u)
		c.SetUserContext(kernel.WithAuth(c.UserContext(), ac))
		return c.Next()
	}
}

// RequireRole must run after Authenticate. It resolves the caller's
// organization and rejects memberships outside roles.
func (m *TokenMiddleware) RequireRole(roles ...organization.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, ok := AuthFrom(c)
		if !ok {
			return ErrMissingToken()
		}

		uo, err := m.orgs.GetUserOrganization(c.UserContext(), ac.UserID)
		if err != nil {
			return err
		}
		if !uo.HasRole(roles...) {
			return organization.ErrAccessDenied(roles...)
		}

		c.Locals(kernel.MembershipContextKey, uo)
		return c.Next()
	}
}

// AuthFrom returns the identity placed by Authenticate.
func AuthFrom(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(kernel.AuthContextKey).(*kernel.AuthContext)
	return ac, ok && ac.IsValid()
}

// CurrentUser returns the user loaded by Authenticate.
func CurrentUser(c *fiber.Ctx) (*user.User, bool) {
	u, ok := c.Locals(userLocalsKey).(*user.User)
	return u, ok && u != nil
}

// CurrentOrganization returns the organization resolved by RequireRole.
func CurrentOrganization(c *fiber.Ctx) (*organization.UserOrganization, bool) {
	uo, ok := c.Locals(kernel.MembershipContextKey).(*organization.UserOrganization)
	return uo, ok && uo != nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
