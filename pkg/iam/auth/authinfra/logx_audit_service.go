package authinfra

import (
	"context"

	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

// LogxAuditService implements auth.AuditService using structured logx logging.
type LogxAuditService struct {
	clock kernel.Clock
}

func NewLogxAuditService(clock kernel.Clock) *LogxAuditService {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &LogxAuditService{clock: clock}
}

func (s *LogxAuditService) event(name string, fields logx.Fields) *logx.Entry {
	fields["audit_event"] = name
	fields["timestamp"] = s.clock.Now()
	return logx.WithFields(fields)
}

func (s *LogxAuditService) LogLoginAttempt(_ context.Context, email string, userID kernel.UserID, success bool, reason string, ip string, userAgent string) {
	entry := s.event("login_attempt", logx.Fields{
		"email":      email,
		"user_id":    userID,
		"success":    success,
		"reason":     reason,
		"ip":         ip,
		"user_agent": userAgent,
	})
	if success {
		entry.Info("Audit: login attempt")
		return
	}
	entry.Warn("Audit: login attempt")
}

func (s *LogxAuditService) LogLogout(_ context.Context, userID kernel.UserID, ip string) {
	s.event("logout", logx.Fields{
		"user_id": userID,
		"ip":      ip,
	}).Info("Audit: logout")
}

func (s *LogxAuditService) LogTokenRefresh(_ context.Context, userID kernel.UserID, ip string) {
	s.event("token_refresh", logx.Fields{
		"user_id": userID,
		"ip":      ip,
	}).Info("Audit: token refresh")
}

func (s *LogxAuditService) LogTokenReuse(_ context.Context, userID kernel.UserID, revoked int64, ip string) {
	s.event("token_reuse", logx.Fields{
		"user_id":        userID,
		"revoked_tokens": revoked,
		"ip":             ip,
	}).Warn("Audit: revoked refresh token presented, all sessions revoked")
}

func (s *LogxAuditService) LogAccountCreated(_ context.Context, userID kernel.UserID, withOrganization bool, ip string) {
	s.event("account_created", logx.Fields{
		"user_id":           userID,
		"with_organization": withOrganization,
		"ip":                ip,
	}).Info("Audit: account created")
}

func (s *LogxAuditService) LogEmailVerification(_ context.Context, userID kernel.UserID, success bool, ip string) {
	s.event("email_verification", logx.Fields{
		"user_id": userID,
		"success": success,
		"ip":      ip,
	}).Info("Audit: email verification")
}

func (s *LogxAuditService) LogPasswordReset(_ context.Context, userID kernel.UserID, success bool, ip string) {
	s.event("password_reset", logx.Fields{
		"user_id": userID,
		"success": success,
		"ip":      ip,
	}).Info("Audit: password reset")
}

func (s *LogxAuditService) LogPasswordChanged(_ context.Context, userID kernel.UserID, ip string) {
	s.event("password_changed", logx.Fields{
		"user_id": userID,
		"ip":      ip,
	}).Info("Audit: password changed")
}
