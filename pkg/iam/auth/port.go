package auth

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// RefreshTokenRepository persists the refresh token ledger.
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error

	// FindByHash returns the row whatever its state; the caller needs to see
	// revoked rows to detect reuse. A miss is AUTH_INVALID_TOKEN.
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)

	// FindByHashForUpdate is FindByHash plus a row lock held until the
	// surrounding transaction ends.
	FindByHashForUpdate(ctx context.Context, hash string) (*RefreshToken, error)

	// MarkRevoked revokes a still-active row. It reports false when the row
	// was already revoked, leaving it untouched.
	MarkRevoked(ctx context.Context, id kernel.RefreshTokenID, rev Revocation) (bool, error)

	// RevokeAllActiveForUser revokes every unrevoked row of the user.
	RevokeAllActiveForUser(ctx context.Context, userID kernel.UserID, rev Revocation) (int64, error)
}

// AccessTokenService mints and verifies stateless access tokens.
type AccessTokenService interface {
	Mint(payload AccessPayload) (token string, expiresAt time.Time, err error)
	Verify(token string) (*AccessPayload, error)
}

// AuditService records security-relevant events.
type AuditService interface {
	LogLoginAttempt(ctx context.Context, email string, userID kernel.UserID, success bool, reason string, ip string, userAgent string)
	LogLogout(ctx context.Context, userID kernel.UserID, ip string)
	LogTokenRefresh(ctx context.Context, userID kernel.UserID, ip string)
	LogTokenReuse(ctx context.Context, userID kernel.UserID, revoked int64, ip string)
	LogAccountCreated(ctx context.Context, userID kernel.UserID, withOrganization bool, ip string)
	LogEmailVerification(ctx context.Context, userID kernel.UserID, success bool, ip string)
	LogPasswordReset(ctx context.Context, userID kernel.UserID, success bool, ip string)
	LogPasswordChanged(ctx context.Context, userID kernel.UserID, ip string)
}

// UserLookup loads the user named by a verified access token.
type UserLookup interface {
	GetByID(ctx context.Context, id kernel.UserID) (*user.User, error)
}

// MembershipResolver finds the caller's organization for role checks.
type MembershipResolver interface {
	GetUserOrganization(ctx context.Context, userID kernel.UserID) (*organization.UserOrganization, error)
}
