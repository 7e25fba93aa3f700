// Package secret hashes passwords and one-time secrets and produces the
// random material refresh tokens are made of.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"golang.org/x/crypto/bcrypt"
)

var ErrRegistry = errx.NewRegistry("SECRET")

var (
	CodeHashFailed    = ErrRegistry.Register("HASH_FAILED", errx.TypeInternal, 0, "Failed to hash secret")
	CodeRandomFailed  = ErrRegistry.Register("RANDOM_FAILED", errx.TypeInternal, 0, "Failed to read random bytes")
	CodeInvalidLength = ErrRegistry.Register("INVALID_LENGTH", errx.TypeValidation, 0, "Invalid secret length")
)

// DefaultTokenBytes is the entropy of a refresh token before hex encoding.
const DefaultTokenBytes = 64

// PasswordHasher is the slow, salted hash used for passwords.
type PasswordHasher interface {
	HashPassword(plain string) (string, error)
	VerifyPassword(plain, hash string) bool
}

// BcryptHasher implements PasswordHasher with a fixed work factor.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) HashPassword(plain string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrRegistry.NewWithMessage(CodeInvalidLength, "Password must be at most 72 bytes")
		}
		return "", ErrRegistry.NewWithCause(CodeHashFailed, err)
	}
	return string(out), nil
}

func (h *BcryptHasher) VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// FastHash is the deterministic SHA-256 hex digest stored in place of
// refresh tokens and one-time codes.
func FastHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two digests in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomToken returns n random bytes, hex-encoded.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", ErrRegistry.New(CodeInvalidLength).WithDetail("bytes", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrRegistry.NewWithCause(CodeRandomFailed, err)
	}
	return hex.EncodeToString(buf), nil
}
