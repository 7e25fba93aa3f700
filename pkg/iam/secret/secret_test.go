package secret

import (
	"strings"
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.HashPassword("Str0ng!pass")
	require.NoError(t, err)
	second, err := h.HashPassword("Str0ng!pass")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "each hash carries its own salt")
	assert.True(t, h.VerifyPassword("Str0ng!pass", first))
	assert.True(t, h.VerifyPassword("Str0ng!pass", second))
	assert.False(t, h.VerifyPassword("str0ng!pass", first))
	assert.False(t, h.VerifyPassword("Str0ng!pass", "not-a-hash"))
}

func TestBcryptHasherRejectsLongPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).HashPassword(strings.Repeat("a", 73))
	assert.True(t, errx.IsCode(err, CodeInvalidLength))
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}

func TestFastHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", FastHash("abc"))
	assert.Equal(t, FastHash("same"), FastHash("same"))
	assert.True(t, EqualHash(FastHash("x"), FastHash("x")))
	assert.False(t, EqualHash(FastHash("x"), FastHash("y")))
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(DefaultTokenBytes)
	require.NoError(t, err)
	b, err := RandomToken(DefaultTokenBytes)
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.NotEqual(t, a, b)

	_, err = RandomToken(0)
	assert.True(t, errx.IsCode(err, CodeInvalidLength))
}
