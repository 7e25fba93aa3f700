package auth

import (
	"errors"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the lifetime of an access token.
const DefaultAccessTokenTTL = 15 * time.Minute

// JWTService mints HS256 access tokens carrying only {id, email}.
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
	clock     kernel.Clock
}

func NewJWTService(secretKey string, ttl time.Duration, issuer string, clock kernel.Clock) *JWTService {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		issuer:    issuer,
		clock:     clock,
	}
}

// JWTClaims is the wire shape of the access token.
type JWTClaims struct {
	UserID kernel.UserID `json:"id"`
	Email  string        `json:"email"`
	jwt.RegisteredClaims
}

func (j *JWTService) TTL() time.Duration {
	return j.ttl
}

func (j *JWTService) Mint(payload AccessPayload) (string, time.Time, error) {
	now := j.clock.Now()
	expiresAt := now.Add(j.ttl)

	claims := JWTClaims{
		UserID: payload.UserID,
		Email:  payload.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   payload.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, ErrTokenGenerationFailed(err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm and expiry. Expired, malformed and
// badly signed tokens fail with distinct codes.
func (j *JWTService) Verify(tokenString string) (*AccessPayload, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	var claims JWTClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return j.secretKey, nil
	}, opts...)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired()
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed()
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrInvalidSignature()
	default:
		return nil, ErrRegistry.NewWithCause(CodeInvalidToken, err)
	}

	if claims.UserID.IsEmpty() {
		return nil, ErrInvalidToken().WithDetail("reason", "missing subject")
	}
	return &AccessPayload{UserID: claims.UserID, Email: claims.Email}, nil
}
