package authapi

import (
	"strings"
	"unicode/utf8"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
)

// fieldErrors collects the first violation per field.
type fieldErrors map[string]any

func (f fieldErrors) check(ok bool, field, message string) {
	if ok {
		return
	}
	if _, seen := f[field]; !seen {
		f[field] = message
	}
}

func (f fieldErrors) email(field, value string) {
	f.check(user.ValidateEmail(user.NormalizeEmail(value)) == nil, field, "Invalid email format")
}

func (f fieldErrors) password(field, value string) {
	if err := user.ValidatePassword(value); err != nil {
		if _, seen := f[field]; !seen {
			f[field] = errx.From(err).Details["password"]
		}
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return errx.Validation("Validation failed").WithDetails(f)
}

func minRunes(s string, n int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= n
}

// flexBool accepts true and "true".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	*b = strings.Trim(string(data), `"`) == "true"
	return nil
}

type signupRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	CreateOrg        bool   `json:"createOrg"`
	OrganizationName string `json:"organizationName"`
	OrganizationSize *int   `json:"organizationSize"`
}

func (r *signupRequest) validate() error {
	f := fieldErrors{}
	f.check(minRunes(r.FirstName, 2), "firstName", "Name must be at least 2 characters long")
	f.check(minRunes(r.LastName, 2), "lastName", "Name must be at least 2 characters long")
	f.email("email", r.Email)
	f.password("password", r.Password)
	if r.CreateOrg {
		f.check(strings.TrimSpace(r.OrganizationName) != "", "organizationName", "Organization name is required when createOrg is true")
		f.check(r.OrganizationSize != nil, "organizationSize", "Organization size is required when createOrg is true")
	}
	return f.err()
}

type loginRequest struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	RememberMe flexBool `json:"rememberMe"`
}

func (r *loginRequest) validate() error {
	f := fieldErrors{}
	f.email("email", r.Email)
	f.check(r.Password != "", "password", "Password is required")
	return f.err()
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"emailVerificationCode"`
}

func (r *verifyEmailRequest) validate() error {
	f := fieldErrors{}
	f.email("email", r.Email)
	f.check(len(r.Code) == 6, "emailVerificationCode", "Email verification code must be a 6 digit number")
	return f.err()
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r *emailRequest) validate() error {
	f := fieldErrors{}
	f.email("email", r.Email)
	return f.err()
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *changePasswordRequest) validate() error {
	f := fieldErrors{}
	f.check(r.CurrentPassword != "", "currentPassword", "Current password is required")
	f.password("newPassword", r.NewPassword)
	f.check(r.CurrentPassword != r.NewPassword, "newPassword", "New password must be different from current password")
	return f.err()
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"passwordResetCode"`
	NewPassword string `json:"newPassword"`
}

func (r *resetPasswordRequest) validate() error {
	f := fieldErrors{}
	f.email("email", r.Email)
	f.check(len(r.Code) == 6, "passwordResetCode", "Password reset code must be a 6 digit number")
	f.password("newPassword", r.NewPassword)
	return f.err()
}
