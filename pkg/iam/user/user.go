package user

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeUserNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeEmailTaken    = ErrRegistry.Register("EMAIL_TAKEN", errx.TypeConflict, http.StatusConflict, "An account with this email already exists")
	CodeInvalidEmail  = ErrRegistry.Register("INVALID_EMAIL", errx.TypeValidation, http.StatusBadRequest, "Invalid email address")
	CodeInvalidName   = ErrRegistry.Register("INVALID_NAME", errx.TypeValidation, http.StatusBadRequest, "First and last name are required")
	CodeWeakPassword  = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password does not meet requirements")
	CodeSamePassword  = ErrRegistry.Register("SAME_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "New password must be different from current password")
	CodeWrongPassword = ErrRegistry.Register("WRONG_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Current password is incorrect")
)

func ErrUserNotFound() *errx.Error { return ErrRegistry.New(CodeUserNotFound) }
func ErrEmailTaken() *errx.Error   { return ErrRegistry.New(CodeEmailTaken) }

// ============================================================================
// Entity
// ============================================================================

// User is the credential record. Code hashes and their expiries only change
// through the transition functions below, which always write them in pairs.
type User struct {
	ID              kernel.UserID `db:"id"`
	FirstName       string        `db:"first_name"`
	LastName        string        `db:"last_name"`
	Email           string        `db:"email"`
	PasswordHash    string        `db:"password_hash"`
	IsEmailVerified bool          `db:"is_email_verified"`

	EmailVerificationCodeHash   *string    `db:"email_verification_code_hash"`
	EmailVerificationCodeExpiry *time.Time `db:"email_verification_code_expiry"`
	PasswordResetCodeHash       *string    `db:"password_reset_code_hash"`
	PasswordResetCodeExpiry     *time.Time `db:"password_reset_code_expiry"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NormalizeEmail trims and lowercases an address; stored emails are always normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address parses as a bare mailbox.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrRegistry.New(CodeInvalidEmail).WithDetail("email", email)
	}
	return nil
}

// New builds an unverified user around an already computed password hash.
func New(firstName, lastName, email, passwordHash string, now time.Time) (*User, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, ErrRegistry.New(CodeInvalidName)
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	return &User{
		ID:           kernel.NewID[kernel.UserID](),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ============================================================================
// Transitions
// ============================================================================

func WithEmailVerificationCode(u User, hash string, expiry time.Time) User {
	u.EmailVerificationCodeHash = &hash
	u.EmailVerificationCodeExpiry = &expiry
	return u
}

func WithoutEmailVerificationCode(u User) User {
	u.EmailVerificationCodeHash = nil
	u.EmailVerificationCodeExpiry = nil
	return u
}

// MarkEmailVerified flips the flag and consumes the verification code.
func MarkEmailVerified(u User) User {
	u = WithoutEmailVerificationCode(u)
	u.IsEmailVerified = true
	return u
}

func WithPasswordResetCode(u User, hash string, expiry time.Time) User {
	u.PasswordResetCodeHash = &hash
	u.PasswordResetCodeExpiry = &expiry
	return u
}

func WithoutPasswordResetCode(u User) User {
	u.PasswordResetCodeHash = nil
	u.PasswordResetCodeExpiry = nil
	return u
}

func WithPasswordHash(u User, hash string) User {
	u.PasswordHash = hash
	return u
}

// ============================================================================
// DTOs
// ============================================================================

// Response is the public projection of a user.
type Response struct {
	ID              kernel.UserID `json:"id"`
	FirstName       string        `json:"firstName"`
	LastName        string        `json:"lastName"`
	Email           string        `json:"email"`
	IsEmailVerified bool          `json:"isEmailVerified"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func (u *User) ToResponse() Response {
	return Response{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
