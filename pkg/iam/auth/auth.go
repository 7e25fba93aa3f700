package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// ============================================================================
// Refresh token ledger
// ============================================================================

// RevokeReason records why a refresh token stopped being usable.
type RevokeReason string

const (
	ReasonLogout  RevokeReason = "logout"
	ReasonReused  RevokeReason = "reused"
	ReasonExpired RevokeReason = "expired"
	ReasonRotated RevokeReason = "rotated"
)

// TokenStatus is derived from the ledger row and the current time.
type TokenStatus string

const (
	StatusActive  TokenStatus = "ACTIVE"
	StatusRotated TokenStatus = "ROTATED"
	StatusRevoked TokenStatus = "REVOKED"
	StatusExpired TokenStatus = "EXPIRED"
)

// RefreshToken is one row of the append-only ledger. Only the SHA-256 of the
// raw token is stored; rows are revoked, never deleted.
type RefreshToken struct {
	ID              kernel.RefreshTokenID  `db:"id"`
	UserID          kernel.UserID          `db:"user_id"`
	TokenHash       string                 `db:"token_hash"`
	ExpiresAt       time.Time              `db:"expires_at"`
	CreatedAt       time.Time              `db:"created_at"`
	CreatedByIP     string                 `db:"created_by_ip"`
	UserAgent       string                 `db:"user_agent"`
	RevokedAt       *time.Time             `db:"revoked_at"`
	RevokedByIP     *string                `db:"revoked_by_ip"`
	ReplacedByToken *kernel.RefreshTokenID `db:"replaced_by_token"`
	Reason          *RevokeReason          `db:"reason"`
}

// IsRevoked reports whether the row has been revoked for any reason.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired uses the half-open window [CreatedAt, ExpiresAt).
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) Status(now time.Time) TokenStatus {
	if t.RevokedAt != nil {
		switch {
		case t.Reason != nil && *t.Reason == ReasonRotated:
			return StatusRotated
		case t.Reason != nil && *t.Reason == ReasonExpired:
			return StatusExpired
		default:
			return StatusRevoked
		}
	}
	if t.IsExpired(now) {
		return StatusExpired
	}
	return StatusActive
}

// Lifetime is the validity window the token was issued with; successors inherit it.
func (t *RefreshToken) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.CreatedAt)
}

// Revocation describes a single revoke write.
type Revocation struct {
	At         time.Time
	ByIP       string
	Reason     RevokeReason
	ReplacedBy *kernel.RefreshTokenID
}

// ============================================================================
// Access token
// ============================================================================

// AccessPayload is the identity carried by an access token. Nothing else is in it.
type AccessPayload struct {
	UserID kernel.UserID `json:"id"`
	Email  string        `json:"email"`
}

// TokenPair is what a successful login or refresh hands back to the caller.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	UserID                kernel.UserID
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidToken          = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthentication, http.StatusUnauthorized, "Invalid token")
	CodeTokenExpired          = ErrRegistry.Register("TOKEN_EXPIRED", errx.TypeAuthentication, http.StatusUnauthorized, "Token expired")
	CodeTokenMalformed        = ErrRegistry.Register("TOKEN_MALFORMED", errx.TypeAuthentication, http.StatusUnauthorized, "Malformed token")
	CodeInvalidSignature      = ErrRegistry.Register("INVALID_SIGNATURE", errx.TypeAuthentication, http.StatusUnauthorized, "Invalid token signature")
	CodeMissingToken          = ErrRegistry.Register("MISSING_TOKEN", errx.TypeAuthentication, http.StatusUnauthorized, "Authentication required")
	CodeInvalidCredentials    = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthentication, http.StatusBadRequest, "Invalid credentials")
	CodeEmailNotVerified      = ErrRegistry.Register("EMAIL_NOT_VERIFIED", errx.TypeAuthorization, http.StatusForbidden, "Email not verified")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
)

func ErrInvalidToken() *errx.Error       { return ErrRegistry.New(CodeInvalidToken) }
func ErrTokenExpired() *errx.Error       { return ErrRegistry.New(CodeTokenExpired) }
func ErrTokenMalformed() *errx.Error     { return ErrRegistry.New(CodeTokenMalformed) }
func ErrInvalidSignature() *errx.Error   { return ErrRegistry.New(CodeInvalidSignature) }
func ErrMissingToken() *errx.Error       { return ErrRegistry.New(CodeMissingToken) }
func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrEmailNotVerified() *errx.Error   { return ErrRegistry.New(CodeEmailNotVerified) }

func ErrTokenGenerationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeTokenGenerationFailed, cause)
}
