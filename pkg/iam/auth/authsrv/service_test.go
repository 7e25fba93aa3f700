package authsrv

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	h := newHarness(t)

	res := h.signup(t, "  Ada@Example.com ")
	assert.True(t, res.EmailSent)
	assert.Nil(t, res.OrganizationID)

	u, err := h.store.Repos().Users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, u.ID)
	assert.False(t, u.IsEmailVerified)
	require.NotNil(t, u.EmailVerificationCodeHash)

	mail := h.mailer.last(t)
	assert.Equal(t, notifx.TemplateEmailVerification, mail.key)
	assert.Equal(t, "ada@example.com", mail.to.Address)
	assert.Equal(t, "Ada", mail.merge["name"])
	assert.Equal(t, "30 minutes", mail.merge["emailVerificationExpiry"])
	code := mail.merge["emailVerificationCode"].(string)
	assert.Len(t, code, 6)
	assert.NotEqual(t, code, *u.EmailVerificationCodeHash)
}

func TestSignupWithOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Signup(ctx, SignupInput{
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Email:            "ada@example.com",
		Password:         testPassword,
		CreateOrg:        true,
		OrganizationName: "Analytical Engines",
		OrganizationSize: 12,
	}, RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, res.OrganizationID)

	uo, err := h.svc.orgs.GetUserOrganization(ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, *res.OrganizationID, uo.Organization.ID)
	assert.Equal(t, "analytical-engines", uo.Organization.Slug)
	assert.Equal(t, organization.RoleOwner, uo.Membership.Role)
}

func TestSignupRejectsInvalidOrganizationBeforeWriting(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Signup(context.Background(), SignupInput{
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Email:            "ada@example.com",
		Password:         testPassword,
		CreateOrg:        true,
		OrganizationName: "A",
		OrganizationSize: 3,
	}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, organization.CodeInvalidInput))

	_, err = h.store.Repos().Users.FindByEmail(context.Background(), "ada@example.com")
	assert.True(t, errx.IsCode(err, user.CodeUserNotFound))
	assert.Zero(t, h.mailer.count())
}

func TestSignupDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ada@example.com")

	_, err := h.svc.Signup(context.Background(), SignupInput{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "ADA@example.com",
		Password:  testPassword,
	}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, user.CodeEmailTaken))
	assert.Equal(t, 409, errx.From(err).HTTPStatus)
}

func TestSignupReportsUnsentEmail(t *testing.T) {
	h := newHarness(t)
	h.mailer.err = errors.New("smtp down")

	res := h.signup(t, "ada@example.com")
	assert.False(t, res.EmailSent)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.verifiedUser(t, "ada@example.com")
	ctx := context.Background()

	res, err := h.svc.Login(ctx, "ADA@example.com", testPassword, false, RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, res.User.ID, res.Tokens.UserID)

	_, err = h.svc.Login(ctx, "ada@example.com", "Wr0ng$password", false, RequestMeta{})
	assert.True(t, errx.IsCode(err, auth.CodeInvalidCredentials))

	_, err = h.svc.Login(ctx, "nobody@example.com", testPassword, false, RequestMeta{})
	assert.True(t, errx.IsCode(err, auth.CodeInvalidCredentials))
}

func TestLoginUnverifiedQueuesVerificationEmail(t *testing.T) {
	h := newHarness(t)
	res := h.signup(t, "ada@example.com")
	ctx := context.Background()

	_, err := h.svc.Login(ctx, "ada@example.com", testPassword, false, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, auth.CodeEmailNotVerified))
	assert.Equal(t, 403, errx.From(err).HTTPStatus)

	require.Len(t, h.jobs.jobs, 1)
	job := h.jobs.jobs[0]
	assert.Equal(t, JobVerificationEmail, job.Type)

	var payload VerificationEmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, res.UserID, payload.UserID)

	// a second attempt inside the window does not queue again
	_, _ = h.svc.Login(ctx, "ada@example.com", testPassword, false, RequestMeta{})
	assert.Len(t, h.jobs.jobs, 1)

	h.clock.Advance(2 * time.Minute)
	_, _ = h.svc.Login(ctx, "ada@example.com", testPassword, false, RequestMeta{})
	assert.Len(t, h.jobs.jobs, 2)
}

func TestVerificationEmailJob(t *testing.T) {
	h := newHarness(t)
	res := h.signup(t, "ada@example.com")
	ctx := context.Background()
	before := h.mailer.count()

	job, err := jobx.NewJob(JobVerificationEmail, "", VerificationEmailPayload{UserID: res.UserID})
	require.NoError(t, err)
	info := &jobx.JobInfo{ID: "1", Type: job.Type, Payload: job.Payload}

	require.NoError(t, h.svc.handleVerificationEmail(ctx, info))
	assert.Equal(t, before+1, h.mailer.count())

	code := h.mailer.last(t).merge["emailVerificationCode"].(string)
	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", code, RequestMeta{})
	require.NoError(t, err)

	// verified users are skipped
	require.NoError(t, h.svc.handleVerificationEmail(ctx, info))
	assert.Equal(t, before+1, h.mailer.count())

	unknown, err := jobx.NewJob(JobVerificationEmail, "", VerificationEmailPayload{UserID: "missing"})
	require.NoError(t, err)
	assert.NoError(t, h.svc.handleVerificationEmail(ctx, &jobx.JobInfo{ID: "2", Type: unknown.Type, Payload: unknown.Payload}))
}

func TestVerificationEmailJobRetriesOnSendFailure(t *testing.T) {
	h := newHarness(t)
	res := h.signup(t, "ada@example.com")
	h.mailer.err = errors.New("smtp down")

	job, err := jobx.NewJob(JobVerificationEmail, "", VerificationEmailPayload{UserID: res.UserID})
	require.NoError(t, err)

	err = h.svc.handleVerificationEmail(context.Background(), &jobx.JobInfo{ID: "1", Type: job.Type, Payload: job.Payload})
	assert.Error(t, err)
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ada@example.com")
	ctx := context.Background()
	code := h.mailer.last(t).merge["emailVerificationCode"].(string)

	_, err := h.svc.VerifyEmail(ctx, "ada@example.com", "000000x", RequestMeta{})
	assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired))

	u, err := h.svc.VerifyEmail(ctx, "ada@example.com", code, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, u.IsEmailVerified)
	assert.Nil(t, u.EmailVerificationCodeHash)
	assert.Nil(t, u.EmailVerificationCodeExpiry)

	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", code, RequestMeta{})
	assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired), "codes are single use")

	_, err = h.svc.VerifyEmail(ctx, "nobody@example.com", code, RequestMeta{})
	assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired))
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ada@example.com")
	code := h.mailer.last(t).merge["emailVerificationCode"].(string)

	h.clock.Advance(30*time.Minute + time.Millisecond)
	_, err := h.svc.VerifyEmail(context.Background(), "ada@example.com", code, RequestMeta{})
	assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired))
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ada@example.com")
	ctx := context.Background()
	first := h.mailer.last(t).merge["emailVerificationCode"].(string)

	res, err := h.svc.ResendVerification(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	second := h.mailer.last(t).merge["emailVerificationCode"].(string)

	_, err = h.svc.ResendVerification(ctx, "ada@example.com")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, otp.CodeTooManyRequests))
	assert.Equal(t, 429, errx.From(err).HTTPStatus)

	if first != second {
		_, err = h.svc.VerifyEmail(ctx, "ada@example.com", first, RequestMeta{})
		assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired), "a new code replaces the old one")
	}
	_, err = h.svc.VerifyEmail(ctx, "ada@example.com", second, RequestMeta{})
	assert.NoError(t, err)
}

func TestResendVerificationDoesNotRevealAccounts(t *testing.T) {
	h := newHarness(t)
	before := h.mailer.count()

	res, err := h.svc.ResendVerification(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.Equal(t, before, h.mailer.count())
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	h.verifiedUser(t, "ada@example.com")
	ctx := context.Background()
	session := h.login(t, "ada@example.com", false)

	res, err := h.svc.ForgotPassword(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.EmailSent)

	mail := h.mailer.last(t)
	assert.Equal(t, notifx.TemplatePasswordReset, mail.key)
	code := mail.merge["passwordResetCode"].(string)

	const next = "N3w$ecretPass"
	err = h.svc.ResetPassword(ctx, "ada@example.com", "999999x", next, RequestMeta{})
	assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired))

	err = h.svc.ResetPassword(ctx, "ada@example.com", code, "weak", RequestMeta{})
	assert.True(t, errx.IsCode(err, user.CodeWeakPassword))

	require.NoError(t, h.svc.ResetPassword(ctx, "ada@example.com", code, next, RequestMeta{}))

	err = h.svc.ResetPassword(ctx, "ada@example.com", code, "An0ther$ecret", RequestMeta{})
	assert.True(t, errx.IsCode(err, otp.CodeInvalidOrExpired), "codes are single use")

	_, err = h.svc.Login(ctx, "ada@example.com", testPassword, false, RequestMeta{})
	assert.True(t, errx.IsCode(err, auth.CodeInvalidCredentials))
	_, err = h.svc.Login(ctx, "ada@example.com", next, false, RequestMeta{})
	assert.NoError(t, err)

	// sessions issued before the reset stay valid
	_, err = h.tokens.Rotate(ctx, session.RefreshToken, "10.0.0.1")
	assert.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.ForgotPassword(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.Equal(t, "Password reset email sent successfully", res.Message)
	assert.Zero(t, h.mailer.count())
}

func TestForgotPasswordHidesCodeStorageFailure(t *testing.T) {
	h := newHarness(t)
	h.verifiedUser(t, "ada@example.com")
	sent := h.mailer.count()
	h.breakCodeStorage()

	res, err := h.svc.ForgotPassword(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.Equal(t, "Password reset email sent successfully", res.Message)
	assert.Equal(t, sent, h.mailer.count())

	u, err := h.store.Repos().Users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Nil(t, u.PasswordResetCodeHash)
}

func TestForgotPasswordThrottle(t *testing.T) {
	h := newHarness(t)
	h.verifiedUser(t, "ada@example.com")
	ctx := context.Background()

	_, err := h.svc.ForgotPassword(ctx, "ada@example.com")
	require.NoError(t, err)

	_, err = h.svc.ForgotPassword(ctx, "ada@example.com")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, otp.CodeTooManyRequests))

	assert.Equal(t, 60, errx.From(err).Details["retry_after_seconds"])

	h.clock.Advance(time.Minute)
	_, err = h.svc.ForgotPassword(ctx, "ada@example.com")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	u := h.verifiedUser(t, "ada@example.com")
	ctx := context.Background()

	err := h.svc.ChangePassword(ctx, u.ID, "Wr0ng$password", "N3w$ecretPass", RequestMeta{})
	assert.True(t, errx.IsCode(err, user.CodeWrongPassword))

	err = h.svc.ChangePassword(ctx, u.ID, testPassword, testPassword, RequestMeta{})
	assert.True(t, errx.IsCode(err, user.CodeSamePassword))

	require.NoError(t, h.svc.ChangePassword(ctx, u.ID, testPassword, "N3w$ecretPass", RequestMeta{}))
	_, err = h.svc.Login(ctx, "ada@example.com", "N3w$ecretPass", false, RequestMeta{})
	assert.NoError(t, err)
}

func TestLogoutNeverFails(t *testing.T) {
	h := newHarness(t)
	h.verifiedUser(t, "ada@example.com")
	pair := h.login(t, "ada@example.com", false)

	h.svc.Logout(context.Background(), pair.RefreshToken, RequestMeta{IP: "10.0.0.1"})
	h.svc.Logout(context.Background(), "garbage", RequestMeta{})

	_, err := h.svc.Refresh(context.Background(), pair.RefreshToken, RequestMeta{})
	assert.True(t, errx.IsCode(err, auth.CodeInvalidToken))
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanizeDuration(time.Hour))
	assert.Equal(t, "2 hours", humanizeDuration(2*time.Hour))
	assert.Equal(t, "90 minutes", humanizeDuration(90*time.Minute))
	assert.Equal(t, "1 minute", humanizeDuration(time.Minute))
	assert.Equal(t, "45 seconds", humanizeDuration(45*time.Second))
}
