package otpsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// DefaultCodeTTL is how long an emailed code stays valid.
const DefaultCodeTTL = 30 * time.Minute

// CodeService issues and checks the one-time codes stored on a user. Only
// the fast hash of a code is persisted; the plaintext leaves through the
// return value and nowhere else.
type CodeService struct {
	users user.Repository
	clock kernel.Clock
	ttl   time.Duration
}

func NewCodeService(users user.Repository, clock kernel.Clock, ttl time.Duration) *CodeService {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &CodeService{users: users, clock: clock, ttl: ttl}
}

// Bind returns a copy that persists through users, typically a
// transaction-scoped repository.
func (s *CodeService) Bind(users user.Repository) *CodeService {
	c := *s
	c.users = users
	return &c
}

// TTL is the validity window of freshly generated codes.
func (s *CodeService) TTL() time.Duration {
	return s.ttl
}

// ============================================================================
// Email verification
// ============================================================================

// GenerateEmailVerificationCode replaces any previous verification code.
func (s *CodeService) GenerateEmailVerificationCode(ctx context.Context, u *user.User) (string, error) {
	code, err := otp.SixDigitCode()
	if err != nil {
		return "", err
	}
	next := user.WithEmailVerificationCode(*u, secret.FastHash(code), s.clock.Now().Add(s.ttl))
	if err := s.save(ctx, u, next); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyEmailVerificationCode marks the user verified when code matches an
// unexpired stored hash. A false result leaves the user untouched.
func (s *CodeService) VerifyEmailVerificationCode(ctx context.Context, u *user.User, code string) (bool, error) {
	if u.IsEmailVerified || !s.matches(u.EmailVerificationCodeHash, u.EmailVerificationCodeExpiry, code) {
		return false, nil
	}
	if err := s.save(ctx, u, user.MarkEmailVerified(*u)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CodeService) ClearEmailVerificationData(ctx context.Context, u *user.User) error {
	return s.save(ctx, u, user.WithoutEmailVerificationCode(*u))
}

// ============================================================================
// Password reset
// ============================================================================

// GeneratePasswordResetCode replaces any previous reset code.
func (s *CodeService) GeneratePasswordResetCode(ctx context.Context, u *user.User) (string, error) {
	code, err := otp.SixDigitCode()
	if err != nil {
		return "", err
	}
	next := user.WithPasswordResetCode(*u, secret.FastHash(code), s.clock.Now().Add(s.ttl))
	if err := s.save(ctx, u, next); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyPasswordResetCode has no side effect; callers clear the code once
// the new password is stored.
func (s *CodeService) VerifyPasswordResetCode(_ context.Context, u *user.User, code string) bool {
	return s.matches(u.PasswordResetCodeHash, u.PasswordResetCodeExpiry, code)
}

func (s *CodeService) ClearPasswordResetData(ctx context.Context, u *user.User) error {
	return s.save(ctx, u, user.WithoutPasswordResetCode(*u))
}

func (s *CodeService) matches(hash *string, expiry *time.Time, code string) bool {
	if hash == nil || expiry == nil || code == "" {
		return false
	}
	if !expiry.After(s.clock.Now()) {
		return false
	}
	return secret.EqualHash(*hash, secret.FastHash(code))
}

func (s *CodeService) save(ctx context.Context, u *user.User, next user.User) error {
	next.UpdatedAt = s.clock.Now()
	if err := s.users.Save(ctx, &next); err != nil {
		return errx.Wrap(err, "failed to save user code state", errx.TypeInternal)
	}
	*u = next
	return nil
}
