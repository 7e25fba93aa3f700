package otp

import (
	"regexp"
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSixDigitCode(t *testing.T) {
	format := regexp.MustCompile(`^\d{6}$`)
	seen := map[string]struct{}{}
	for range 200 {
		code, err := SixDigitCode()
		require.NoError(t, err)
		assert.Regexp(t, format, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 150)
}

func TestNumericCodeBounds(t *testing.T) {
	for _, digits := range []int{3, 9, 15} {
		code, err := NumericCode(digits)
		require.NoError(t, err)
		assert.Len(t, code, digits)
	}

	for _, digits := range []int{0, 2, 16} {
		_, err := NumericCode(digits)
		assert.True(t, errx.IsCode(err, CodeInvalidLength), "digits=%d", digits)
	}
}
