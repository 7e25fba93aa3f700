package usersrv

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// RegisterInput carries a signup request after shape validation.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Service owns password handling for users. Passwords only change through
// SetPassword, which validates and re-hashes.
type Service struct {
	users  user.Repository
	hasher secret.PasswordHasher
	clock  kernel.Clock
	// dummyHash is compared against when the email is unknown so both
	// branches of Authenticate cost one bcrypt comparison.
	dummyHash string
}

func NewService(users user.Repository, hasher secret.PasswordHasher, clock kernel.Clock) *Service {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	dummy, _ := hasher.HashPassword("dummy-password-for-timing")
	return &Service{users: users, hasher: hasher, clock: clock, dummyHash: dummy}
}

// Bind returns a copy persisting through users.
func (s *Service) Bind(users user.Repository) *Service {
	c := *s
	c.users = users
	return &c
}

// Register creates an unverified user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	if err := user.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	email := user.NormalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, user.ErrEmailTaken()
	} else if !errx.IsCode(err, user.CodeUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := user.New(in.FirstName, in.LastName, email, hash, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials. A false result covers both an unknown
// email and a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*user.User, bool, error) {
	u, err := s.users.FindByEmail(ctx, user.NormalizeEmail(email))
	if errx.IsCode(err, user.CodeUserNotFound) {
		s.hasher.VerifyPassword(password, s.dummyHash)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !s.hasher.VerifyPassword(password, u.PasswordHash) {
		return nil, false, nil
	}
	return u, true, nil
}

// SetPassword validates plain against the password policy, hashes and saves it.
func (s *Service) SetPassword(ctx context.Context, u *user.User, plain string) error {
	if err := user.ValidatePassword(plain); err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(plain)
	if err != nil {
		return err
	}

	// never persist a value the stored hash cannot be checked against
	if hash == "" || hash == plain || !s.hasher.VerifyPassword(plain, hash) {
		return errx.Internal("password hasher returned an unusable hash")
	}

	next := user.WithPasswordHash(*u, hash)
	next.UpdatedAt = s.clock.Now()
	if err := s.users.Save(ctx, &next); err != nil {
		return errx.Wrap(err, "failed to save password", errx.TypeInternal)
	}
	*u = next
	return nil
}

// ChangePassword requires the current password and a different new one.
func (s *Service) ChangePassword(ctx context.Context, u *user.User, current, next string) error {
	if !s.hasher.VerifyPassword(current, u.PasswordHash) {
		return user.ErrRegistry.New(user.CodeWrongPassword)
	}
	if current == next {
		return user.ErrRegistry.New(user.CodeSamePassword)
	}
	return s.SetPassword(ctx, u, next)
}

func (s *Service) GetByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return s.users.FindByID(ctx, id)
}

// FindByEmail normalizes email before looking it up.
func (s *Service) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.users.FindByEmail(ctx, user.NormalizeEmail(email))
}
