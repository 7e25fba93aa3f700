package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Purpose separates the two independent code slots on a user.
type Purpose string

const (
	PurposeEmailVerification Purpose = "EMAIL_VERIFICATION"
	PurposePasswordReset     Purpose = "PASSWORD_RESET"
)

const (
	// DefaultDigits is the length of emailed codes
	DefaultDigits = 6
	minDigits     = 3
	maxDigits     = 15
)

// SixDigitCode returns a uniformly random, zero-padded six digit code.
func SixDigitCode() (string, error) {
	return NumericCode(DefaultDigits)
}

// NumericCode generates a cryptographically secure code of the given number
// of digits. Counts outside [3,15] are rejected.
func NumericCode(digits int) (string, error) {
	if digits < minDigits || digits > maxDigits {
		return "", ErrInvalidLength().
			WithDetail("digits", digits).
			WithDetail("min", minDigits).
			WithDetail("max", maxDigits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeGenerationFailed, err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
