package authinfra

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsAuditService counts audit events in Prometheus and forwards every
// call to the wrapped service.
type MetricsAuditService struct {
	next    auth.AuditService
	events  *prometheus.CounterVec
	revoked prometheus.Counter
}

// NewMetricsAuditService registers the auth collectors on reg, reusing
// collectors that are already registered.
func NewMetricsAuditService(next auth.AuditService, reg prometheus.Registerer) (*MetricsAuditService, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Authentication events partitioned by event and outcome.",
	}, []string{"event", "outcome"})
	if err := reg.Register(events); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register auth events collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing auth events collector has unexpected type %T", already.ExistingCollector)
		}
		events = existing
	}

	revoked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "auth",
		Name:      "reuse_revoked_tokens_total",
		Help:      "Refresh tokens revoked in response to a reused token.",
	})
	if err := reg.Register(revoked); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register reuse collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("existing reuse collector has unexpected type %T", already.ExistingCollector)
		}
		revoked = existing
	}

	return &MetricsAuditService{next: next, events: events, revoked: revoked}, nil
}

// Events exposes the event counter for inspection.
func (s *MetricsAuditService) Events() *prometheus.CounterVec { return s.events }

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (s *MetricsAuditService) LogLoginAttempt(ctx context.Context, email string, userID kernel.UserID, success bool, reason string, ip string, userAgent string) {
	s.events.WithLabelValues("login", outcome(success)).Inc()
	s.next.LogLoginAttempt(ctx, email, userID, success, reason, ip, userAgent)
}

func (s *MetricsAuditService) LogLogout(ctx context.Context, userID kernel.UserID, ip string) {
	s.events.WithLabelValues("logout", "success").Inc()
	s.next.LogLogout(ctx, userID, ip)
}

func (s *MetricsAuditService) LogTokenRefresh(ctx context.Context, userID kernel.UserID, ip string) {
	s.events.WithLabelValues("refresh", "success").Inc()
	s.next.LogTokenRefresh(ctx, userID, ip)
}

func (s *MetricsAuditService) LogTokenReuse(ctx context.Context, userID kernel.UserID, revoked int64, ip string) {
	s.events.WithLabelValues("refresh", "reuse").Inc()
	s.revoked.Add(float64(revoked))
	s.next.LogTokenReuse(ctx, userID, revoked, ip)
}

func (s *MetricsAuditService) LogAccountCreated(ctx context.Context, userID kernel.UserID, withOrganization bool, ip string) {
	s.events.WithLabelValues("signup", "success").Inc()
	s.next.LogAccountCreated(ctx, userID, withOrganization, ip)
}

func (s *MetricsAuditService) LogEmailVerification(ctx context.Context, userID kernel.UserID, success bool, ip string) {
	s.events.WithLabelValues("email_verification", outcome(success)).Inc()
	s.next.LogEmailVerification(ctx, userID, success, ip)
}

func (s *MetricsAuditService) LogPasswordReset(ctx context.Context, userID kernel.UserID, success bool, ip string) {
	s.events.WithLabelValues("password_reset", outcome(success)).Inc()
	s.next.LogPasswordReset(ctx, userID, success, ip)
}

func (s *MetricsAuditService) LogPasswordChanged(ctx context.Context, userID kernel.UserID, ip string) {
	s.events.WithLabelValues("password_change", "success").Inc()
	s.next.LogPasswordChanged(ctx, userID, ip)
}
