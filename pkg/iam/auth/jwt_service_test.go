package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = strings.Repeat("s", 32)

func newTestJWT() (*JWTService, *kernel.ManualClock) {
	clock := kernel.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewJWTService(testKey, 15*time.Minute, "gatekeeper", clock), clock
}

func TestJWTRoundTrip(t *testing.T) {
	svc, clock := newTestJWT()

	token, exp, err := svc.Mint(AccessPayload{UserID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(15*time.Minute), exp)

	payload, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, kernel.UserID("user-1"), payload.UserID)
	assert.Equal(t, "ada@example.com", payload.Email)
}

func TestJWTExpired(t *testing.T) {
	svc, clock := newTestJWT()

	token, _, err := svc.Mint(AccessPayload{UserID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	_, err = svc.Verify(token)
	assert.True(t, errx.IsCode(err, CodeTokenExpired))
}

func TestJWTRejectsTampering(t *testing.T) {
	svc, clock := newTestJWT()

	_, err := svc.Verify("not-a-jwt")
	assert.True(t, errx.IsCode(err, CodeTokenMalformed))

	other := NewJWTService(strings.Repeat("x", 32), time.Minute, "gatekeeper", clock)
	forged, _, err := other.Mint(AccessPayload{UserID: "user-1"})
	require.NoError(t, err)
	_, err = svc.Verify(forged)
	assert.True(t, errx.IsCode(err, CodeInvalidSignature))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "gatekeeper",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(unsigned)
	assert.Error(t, err)
}

func TestRefreshTokenStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := &RefreshToken{CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	assert.Equal(t, StatusActive, tok.Status(now))
	assert.Equal(t, StatusActive, tok.Status(now.Add(time.Hour-time.Millisecond)))
	assert.Equal(t, StatusExpired, tok.Status(now.Add(time.Hour)))

	reason := ReasonRotated
	revokedAt := now.Add(time.Minute)
	tok.RevokedAt, tok.Reason = &revokedAt, &reason
	assert.Equal(t, StatusRotated, tok.Status(now))

	reason = ReasonLogout
	assert.Equal(t, StatusRevoked, tok.Status(now))
}
