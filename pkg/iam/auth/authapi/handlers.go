// Package authapi exposes the account and session flows over HTTP.
package authapi

import (
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// CookiePolicy controls the session cookies.
type CookiePolicy struct {
	Domain      string
	Secure      bool
	RefreshPath string
}

type Handlers struct {
	svc     *authsrv.AuthService
	mw      *auth.TokenMiddleware
	cookies CookiePolicy
	clock   kernel.Clock
}

func NewHandlers(svc *authsrv.AuthService, mw *auth.TokenMiddleware, cookies CookiePolicy, clock kernel.Clock) *Handlers {
	if cookies.RefreshPath == "" {
		cookies.RefreshPath = "/api/v1/auth/refresh"
	}
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &Handlers{svc: svc, mw: mw, cookies: cookies, clock: clock}
}

// RegisterRoutes mounts the handlers under /auth on router.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	g := router.Group("/auth")

	g.Post("/signup", h.Signup)
	g.Post("/verify-email", h.VerifyEmail)
	g.Post("/resend-verification-email", h.ResendVerification)
	g.Post("/login", h.Login)
	g.Get("/refresh", h.Refresh)
	g.Get("/me", h.mw.Authenticate(), h.Me)
	g.Post("/logout", h.Logout)
	g.Post("/change-password", h.mw.Authenticate(), h.ChangePassword)
	g.Post("/forgot-password", h.ForgotPassword)
	g.Post("/reset-password", h.ResetPassword)
}

// ============================================================================
// Signup & verification
// ============================================================================

func (h *Handlers) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	in := authsrv.SignupInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Password:         req.Password,
		CreateOrg:        req.CreateOrg,
		OrganizationName: req.OrganizationName,
	}
	if req.OrganizationSize != nil {
		in.OrganizationSize = *req.OrganizationSize
	}

	res, err := h.svc.Signup(c.UserContext(), in, meta(c))
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusCreated, res, "Signup successful")
}

func (h *Handlers) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	u, err := h.svc.VerifyEmail(c.UserContext(), req.Email, req.Code, meta(c))
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{
		"email":           u.Email,
		"isEmailVerified": u.IsEmailVerified,
	}, "")
}

func (h *Handlers) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	res, err := h.svc.ResendVerification(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, res, "")
}

// ============================================================================
// Sessions
// ============================================================================

func (h *Handlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	res, err := h.svc.Login(c.UserContext(), req.Email, req.Password, bool(req.RememberMe), meta(c))
	if err != nil {
		return err
	}

	h.setSessionCookies(c, res.Tokens)
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{"user": res.User.ToResponse()}, "")
}

// Refresh rotates the refresh token cookie. Any failure clears both cookies.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	raw := c.Cookies(auth.RefreshTokenCookie)
	if raw == "" {
		return auth.ErrMissingToken()
	}

	pair, err := h.svc.Refresh(c.UserContext(), raw, meta(c))
	if err != nil {
		h.clearSessionCookies(c)
		return err
	}

	h.setSessionCookies(c, pair)
	return errxfiber.OK(c, fiber.StatusOK, nil, "")
}

func (h *Handlers) Me(c *fiber.Ctx) error {
	u, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrMissingToken()
	}
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{"user": u.ToResponse()}, "")
}

// Logout always succeeds.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	raw := c.Cookies(auth.RefreshTokenCookie)
	h.clearSessionCookies(c)
	h.svc.Logout(c.UserContext(), raw, meta(c))
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{"message": "Logged out successfully"}, "")
}

// ============================================================================
// Passwords
// ============================================================================

func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	u, ok := auth.CurrentUser(c)
	if !ok {
		return auth.ErrMissingToken()
	}

	var req changePasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	if err := h.svc.ChangePassword(c.UserContext(), u.ID, req.CurrentPassword, req.NewPassword, meta(c)); err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{"message": "Password changed successfully"}, "")
}

func (h *Handlers) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	res, err := h.svc.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, res, "")
}

func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	if err := h.svc.ResetPassword(c.UserContext(), req.Email, req.Code, req.NewPassword, meta(c)); err != nil {
		return err
	}
	return errxfiber.OK(c, fiber.StatusOK, fiber.Map{"message": "Password reset successfully"}, "")
}

// ============================================================================
// Helpers
// ============================================================================

type validatable interface {
	validate() error
}

func parse(c *fiber.Ctx, req validatable) error {
	if err := c.BodyParser(req); err != nil {
		return errx.Validation("Invalid request body")
	}
	return req.validate()
}

func meta(c *fiber.Ctx) authsrv.RequestMeta {
	return authsrv.RequestMeta{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}

func (h *Handlers) setSessionCookies(c *fiber.Ctx, pair *auth.TokenPair) {
	now := h.clock.Now()
	c.Cookie(h.cookie(auth.AccessTokenCookie, pair.AccessToken, "/", pair.AccessTokenExpiresAt.Sub(now)))
	c.Cookie(h.cookie(auth.RefreshTokenCookie, pair.RefreshToken, h.cookies.RefreshPath, pair.RefreshTokenExpiresAt.Sub(now)))
}

func (h *Handlers) clearSessionCookies(c *fiber.Ctx) {
	for _, ck := range []*fiber.Cookie{
		h.cookie(auth.AccessTokenCookie, "", "/", 0),
		h.cookie(auth.RefreshTokenCookie, "", h.cookies.RefreshPath, 0),
	} {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.Cookie(ck)
	}
}

func (h *Handlers) cookie(name, value, path string, ttl time.Duration) *fiber.Cookie {
	ttl = max(ttl, 0)
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookies.Domain,
		MaxAge:   int(ttl / time.Second),
		Expires:  h.clock.Now().Add(ttl),
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
