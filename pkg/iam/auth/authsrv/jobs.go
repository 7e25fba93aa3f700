package authsrv

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

// JobVerificationEmail sends a fresh verification code to a user.
const JobVerificationEmail = "email.verification"

// VerificationEmailPayload names the user only; the code is generated by
// the worker so it never sits in the queue.
type VerificationEmailPayload struct {
	UserID kernel.UserID `json:"user_id"`
}

// RegisterJobs attaches the auth job handlers to a jobx client.
func (s *AuthService) RegisterJobs(c *jobx.Client) {
	c.Register(JobVerificationEmail, s.handleVerificationEmail)
}

func (s *AuthService) handleVerificationEmail(ctx context.Context, job *jobx.JobInfo) error {
	payload, err := jobx.Decode[VerificationEmailPayload](job)
	if err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, payload.UserID)
	if errx.IsCode(err, user.CodeUserNotFound) {
		logx.WithField("user_id", payload.UserID).Warn("verification email job for unknown user dropped")
		return nil
	}
	if err != nil {
		return err
	}
	if u.IsEmailVerified {
		return nil
	}

	sent, err := s.SendVerificationEmail(ctx, u)
	if err != nil {
		return err
	}
	if !sent {
		return errx.External("verification email was not delivered").WithDetail("user_id", u.ID.String())
	}
	return nil
}
