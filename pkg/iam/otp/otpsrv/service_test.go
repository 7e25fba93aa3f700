package otpsrv

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clock *kernel.ManualClock
	users user.Repository
	codes *CodeService
	user  *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := kernel.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	users := iamstore.NewMemoryStore().Repos().Users

	u, err := user.New("Ada", "Lovelace", "ada@example.com", "hash", clock.Now())
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), u))

	return &fixture{clock: clock, users: users, codes: NewCodeService(users, clock, 0), user: u}
}

func TestEmailVerificationCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.codes.GenerateEmailVerificationCode(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	require.NotNil(t, f.user.EmailVerificationCodeHash)
	assert.Equal(t, secret.FastHash(code), *f.user.EmailVerificationCodeHash)
	assert.Equal(t, f.clock.Now().Add(DefaultCodeTTL), *f.user.EmailVerificationCodeExpiry)

	ok, err := f.codes.VerifyEmailVerificationCode(ctx, f.user, "12345x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotNil(t, f.user.EmailVerificationCodeHash, "a wrong code leaves the user untouched")

	ok, err = f.codes.VerifyEmailVerificationCode(ctx, f.user, code)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := f.users.FindByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailVerified)
	assert.Nil(t, stored.EmailVerificationCodeHash)

	ok, err = f.codes.VerifyEmailVerificationCode(ctx, stored, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.codes.GeneratePasswordResetCode(ctx, f.user)
	require.NoError(t, err)

	f.clock.Advance(DefaultCodeTTL - time.Millisecond)
	assert.True(t, f.codes.VerifyPasswordResetCode(ctx, f.user, code))

	f.clock.Advance(2 * time.Millisecond)
	assert.False(t, f.codes.VerifyPasswordResetCode(ctx, f.user, code))
}

func TestRegeneratingReplacesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.codes.GeneratePasswordResetCode(ctx, f.user)
	require.NoError(t, err)
	second, err := f.codes.GeneratePasswordResetCode(ctx, f.user)
	require.NoError(t, err)

	assert.True(t, f.codes.VerifyPasswordResetCode(ctx, f.user, second))
	if first != second {
		assert.False(t, f.codes.VerifyPasswordResetCode(ctx, f.user, first))
	}

	require.NoError(t, f.codes.ClearPasswordResetData(ctx, f.user))
	assert.False(t, f.codes.VerifyPasswordResetCode(ctx, f.user, second))
	assert.Nil(t, f.user.PasswordResetCodeExpiry)
}

func TestClearEmailVerificationData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.codes.GenerateEmailVerificationCode(ctx, f.user)
	require.NoError(t, err)
	require.NoError(t, f.codes.ClearEmailVerificationData(ctx, f.user))

	stored, err := f.users.FindByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EmailVerificationCodeHash)
	assert.False(t, stored.IsEmailVerified)
}
