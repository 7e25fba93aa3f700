package authsrv

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orgsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp/otpsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
)

// RequestMeta is the client information recorded with sessions and audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type SignupInput struct {
	FirstName        string
	LastName         string
	Email            string
	Password         string
	CreateOrg        bool
	OrganizationName string
	OrganizationSize int
}

type SignupResult struct {
	UserID         kernel.UserID          `json:"userId"`
	OrganizationID *kernel.OrganizationID `json:"organizationId,omitempty"`
	EmailSent      bool                   `json:"emailSent"`
}

type LoginResult struct {
	User   *user.User
	Tokens *auth.TokenPair
}

// EmailDispatch reports whether a code email went out.
type EmailDispatch struct {
	EmailSent bool   `json:"emailSent"`
	Message   string `json:"message,omitempty"`
}

// AuthService runs the account flows: signup, login, sessions, email
// verification and password reset.
type AuthService struct {
	uow      iamstore.UnitOfWork
	users    *usersrv.Service
	codes    *otpsrv.CodeService
	orgs     *orgsrv.Service
	tokens   *TokenService
	mailer   notifx.TemplateSender
	jobs     jobx.Enqueuer
	throttle otp.Throttle
	audit    auth.AuditService
	clock    kernel.Clock
	window   time.Duration
}

func NewAuthService(
	uow iamstore.UnitOfWork,
	users *usersrv.Service,
	codes *otpsrv.CodeService,
	orgs *orgsrv.Service,
	tokens *TokenService,
	mailer notifx.TemplateSender,
	jobs jobx.Enqueuer,
	throttle otp.Throttle,
	audit auth.AuditService,
	clock kernel.Clock,
	throttleWindow time.Duration,
) *AuthService {
	if throttle == nil {
		throttle = otp.NoThrottle{}
	}
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &AuthService{
		uow:      uow,
		users:    users,
		codes:    codes,
		orgs:     orgs,
		tokens:   tokens,
		mailer:   mailer,
		jobs:     jobs,
		throttle: throttle,
		audit:    audit,
		clock:    clock,
		window:   throttleWindow,
	}
}

// ============================================================================
// Signup & login
// ============================================================================

// Signup creates the user, and optionally an organization owned by it, in
// one unit of work, then sends the verification email and reports whether
// it went out.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, meta RequestMeta) (*SignupResult, error) {
	orgInput := orgsrv.CreateInput{Name: in.OrganizationName, Size: in.OrganizationSize}
	if in.CreateOrg {
		if err := orgInput.Validate(); err != nil {
			return nil, err
		}
	}

	type signup struct {
		user *user.User
		org  *organization.Organization
	}

	out := dbx.Atomically(ctx, s.uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[signup] {
		u, err := s.users.Bind(repos.Users).Register(ctx, usersrv.RegisterInput{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     in.Email,
			Password:  in.Password,
		})
		if err != nil {
			return dbx.Aborted[signup](err)
		}
		if !in.CreateOrg {
			return dbx.Committed(signup{user: u})
		}

		created, err := s.orgs.CreateWithin(ctx, repos, u.ID, orgInput)
		if err != nil {
			return dbx.Aborted[signup](err)
		}
		return dbx.Committed(signup{user: u, org: created.Organization})
	})

	created, err := out.Result()
	if err != nil {
		return nil, err
	}

	result := &SignupResult{UserID: created.user.ID}
	if created.org != nil {
		result.OrganizationID = &created.org.ID
	}
	s.audit.LogAccountCreated(ctx, created.user.ID, created.org != nil, meta.IP)

	sent, err := s.SendVerificationEmail(ctx, created.user)
	if err != nil {
		logx.WithError(err).WithField("user_id", created.user.ID).Warn("signup verification email failed")
	}
	result.EmailSent = sent
	return result, nil
}

// Login checks credentials and issues a session. Unverified accounts get no
// tokens; a verification email is queued for them instead.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool, meta RequestMeta) (*LoginResult, error) {
	email = user.NormalizeEmail(email)

	u, ok, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.audit.LogLoginAttempt(ctx, email, "", false, "invalid_credentials", meta.IP, meta.UserAgent)
		return nil, auth.ErrInvalidCredentials()
	}

	if !u.IsEmailVerified {
		s.audit.LogLoginAttempt(ctx, email, u.ID, false, "email_not_verified", meta.IP, meta.UserAgent)
		s.queueVerificationEmail(ctx, u)
		return nil, auth.ErrEmailNotVerified()
	}

	tokens, err := s.tokens.Issue(ctx, u, IssueOptions{RememberMe: rememberMe, IP: meta.IP, UserAgent: meta.UserAgent})
	if err != nil {
		return nil, err
	}

	s.audit.LogLoginAttempt(ctx, email, u.ID, true, "", meta.IP, meta.UserAgent)
	return &LoginResult{User: u, Tokens: tokens}, nil
}

func (s *AuthService) queueVerificationEmail(ctx context.Context, u *user.User) {
	log := logx.WithField("user_id", u.ID)

	allowed, err := s.throttle.Allow(ctx, otp.PurposeEmailVerification, u.Email, s.window)
	if err != nil {
		log.WithError(err).Warn("verification email throttle unavailable")
		return
	}
	if !allowed {
		log.Debug("verification email recently sent, not queueing another")
		return
	}

	job, err := jobx.NewJob(JobVerificationEmail, "", VerificationEmailPayload{UserID: u.ID})
	if err != nil {
		log.WithError(err).Error("failed to build verification email job")
		return
	}
	if _, err := s.jobs.Enqueue(ctx, job); err != nil {
		log.WithError(err).Error("failed to queue verification email")
	}
}

// ============================================================================
// Sessions
// ============================================================================

// Refresh rotates the presented refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*auth.TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken, meta.IP)
}

// Logout revokes the refresh token. It never fails from the caller's side.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta RequestMeta) {
	if err := s.tokens.Revoke(ctx, refreshToken, meta.IP); err != nil {
		logx.WithError(err).Warn("logout: failed to revoke refresh token")
	}
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, userID kernel.UserID) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword requires the current password.
func (s *AuthService) ChangePassword(ctx context.Context, userID kernel.UserID, current, next string, meta RequestMeta) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.ChangePassword(ctx, u, current, next); err != nil {
		return err
	}
	s.audit.LogPasswordChanged(ctx, userID, meta.IP)
	return nil
}

// ============================================================================
// Email verification
// ============================================================================

// VerifyEmail consumes an email verification code. Unknown addresses,
// verified accounts, wrong codes and expired codes all fail the same way.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string, meta RequestMeta) (*user.User, error) {
	out := dbx.Atomically(ctx, s.uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[*user.User] {
		u, err := repos.Users.FindByEmail(ctx, user.NormalizeEmail(email))
		if errx.IsCode(err, user.CodeUserNotFound) {
			return dbx.Aborted[*user.User](otp.ErrInvalidOrExpired())
		}
		if err != nil {
			return dbx.Aborted[*user.User](err)
		}

		ok, err := s.codes.Bind(repos.Users).VerifyEmailVerificationCode(ctx, u, code)
		if err != nil {
			return dbx.Aborted[*user.User](err)
		}
		if !ok {
			s.audit.LogEmailVerification(ctx, u.ID, false, meta.IP)
			return dbx.Aborted[*user.User](otp.ErrInvalidOrExpired())
		}
		return dbx.Committed(u)
	})

	u, err := out.Result()
	if err != nil {
		return nil, err
	}
	s.audit.LogEmailVerification(ctx, u.ID, true, meta.IP)
	return u, nil
}

// ResendVerification sends a fresh code. The response does not reveal
// whether the address exists or is already verified.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (*EmailDispatch, error) {
	email = user.NormalizeEmail(email)
	if err := s.allow(ctx, otp.PurposeEmailVerification, email); err != nil {
		return nil, err
	}

	done := &EmailDispatch{EmailSent: true, Message: "If this email exists in our system, a verification email has been sent"}

	u, err := s.users.FindByEmail(ctx, email)
	if errx.IsCode(err, user.CodeUserNotFound) {
		return done, nil
	}
	if err != nil {
		return nil, err
	}
	if u.IsEmailVerified {
		return done, nil
	}

	sent, err := s.SendVerificationEmail(ctx, u)
	if err != nil {
		logx.WithError(err).WithField("user_id", u.ID).Warn("verification email failed")
	}
	done.EmailSent = sent
	return done, nil
}

// SendVerificationEmail generates a new verification code for u and mails
// it. The plaintext code only ever reaches the mailer.
func (s *AuthService) SendVerificationEmail(ctx context.Context, u *user.User) (bool, error) {
	code, err := s.codes.GenerateEmailVerificationCode(ctx, u)
	if err != nil {
		return false, err
	}

	delivery, err := s.mailer.SendTemplate(ctx,
		notifx.Recipient{Address: u.Email, Name: u.FullName()},
		notifx.TemplateEmailVerification,
		map[string]any{
			"name":                    u.FirstName,
			"emailVerificationCode":   code,
			"emailVerificationExpiry": humanizeDuration(s.codes.TTL()),
		},
	)
	if err != nil {
		return false, err
	}
	return delivery.Success && delivery.Delivered, nil
}

// ============================================================================
// Password reset
// ============================================================================

// ForgotPassword mails a reset code. Unknown addresses get the same answer.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*EmailDispatch, error) {
	email = user.NormalizeEmail(email)
	if err := s.allow(ctx, otp.PurposePasswordReset, email); err != nil {
		return nil, err
	}

	const message = "Password reset email sent successfully"

	u, err := s.users.FindByEmail(ctx, email)
	if errx.IsCode(err, user.CodeUserNotFound) {
		return &EmailDispatch{EmailSent: true, Message: message}, nil
	}
	if err != nil {
		return nil, err
	}

	// an error here must look like any other undelivered email
	code, err := s.codes.GeneratePasswordResetCode(ctx, u)
	if err != nil {
		logx.WithError(err).WithField("user_id", u.ID).Error("password reset code not stored")
		return &EmailDispatch{EmailSent: false, Message: message}, nil
	}

	delivery, err := s.mailer.SendTemplate(ctx,
		notifx.Recipient{Address: u.Email, Name: u.FullName()},
		notifx.TemplatePasswordReset,
		map[string]any{
			"name":                u.FirstName,
			"passwordResetCode":   code,
			"passwordResetExpiry": humanizeDuration(s.codes.TTL()),
		},
	)
	if err != nil {
		logx.WithError(err).WithField("user_id", u.ID).Warn("password reset email failed")
		return &EmailDispatch{EmailSent: false, Message: message}, nil
	}
	return &EmailDispatch{EmailSent: delivery.Success && delivery.Delivered, Message: message}, nil
}

// ResetPassword sets a new password when code matches the stored reset
// code, then clears the code. Both writes commit together.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string, meta RequestMeta) error {
	if err := user.ValidatePassword(newPassword); err != nil {
		return err
	}

	out := dbx.Atomically(ctx, s.uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[kernel.UserID] {
		u, err := repos.Users.FindByEmail(ctx, user.NormalizeEmail(email))
		if errx.IsCode(err, user.CodeUserNotFound) {
			return dbx.Aborted[kernel.UserID](otp.ErrInvalidOrExpired())
		}
		if err != nil {
			return dbx.Aborted[kernel.UserID](err)
		}

		codes := s.codes.Bind(repos.Users)
		if !codes.VerifyPasswordResetCode(ctx, u, code) {
			s.audit.LogPasswordReset(ctx, u.ID, false, meta.IP)
			return dbx.Aborted[kernel.UserID](otp.ErrInvalidOrExpired())
		}
		if err := s.users.Bind(repos.Users).SetPassword(ctx, u, newPassword); err != nil {
			return dbx.Aborted[kernel.UserID](err)
		}
		if err := codes.ClearPasswordResetData(ctx, u); err != nil {
			return dbx.Aborted[kernel.UserID](err)
		}
		return dbx.Committed(u.ID)
	})

	userID, err := out.Result()
	if err != nil {
		return err
	}
	s.audit.LogPasswordReset(ctx, userID, true, meta.IP)
	return nil
}

func (s *AuthService) allow(ctx context.Context, purpose otp.Purpose, email string) error {
	ok, err := s.throttle.Allow(ctx, purpose, email, s.window)
	if err != nil {
		// fail open
		logx.WithError(err).Warn("code email throttle unavailable")
		return nil
	}
	if !ok {
		return otp.ErrTooManyRequests().WithDetail("retry_after_seconds", int(s.window.Seconds()))
	}
	return nil
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
