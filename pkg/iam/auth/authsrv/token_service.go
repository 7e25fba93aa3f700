package authsrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/dbx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

// TokenPolicy controls refresh token issuance.
type TokenPolicy struct {
	RefreshTTL    time.Duration
	RememberMeTTL time.Duration
	TokenBytes    int
}

func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{
		RefreshTTL:    7 * 24 * time.Hour,
		RememberMeTTL: 30 * 24 * time.Hour,
		TokenBytes:    secret.DefaultTokenBytes,
	}
}

// IssueOptions carries the request metadata stored with a new refresh token.
type IssueOptions struct {
	RememberMe bool
	IP         string
	UserAgent  string
}

// TokenService mints access tokens and runs the refresh token ledger.
type TokenService struct {
	uow    iamstore.UnitOfWork
	access auth.AccessTokenService
	audit  auth.AuditService
	clock  kernel.Clock
	policy TokenPolicy
}

func NewTokenService(uow iamstore.UnitOfWork, access auth.AccessTokenService, audit auth.AuditService, clock kernel.Clock, policy TokenPolicy) *TokenService {
	defaults := DefaultTokenPolicy()
	if policy.RefreshTTL <= 0 {
		policy.RefreshTTL = defaults.RefreshTTL
	}
	if policy.RememberMeTTL <= 0 {
		policy.RememberMeTTL = defaults.RememberMeTTL
	}
	if policy.TokenBytes <= 0 {
		policy.TokenBytes = defaults.TokenBytes
	}
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return &TokenService{uow: uow, access: access, audit: audit, clock: clock, policy: policy}
}

// Issue creates a refresh token for u and mints the matching access token.
func (s *TokenService) Issue(ctx context.Context, u *user.User, opts IssueOptions) (*auth.TokenPair, error) {
	lifetime := s.policy.RefreshTTL
	if opts.RememberMe {
		lifetime = s.policy.RememberMeTTL
	}

	raw, record, err := s.newRefreshToken(u.ID, lifetime, opts.IP, opts.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := s.uow.Repos().RefreshTokens.Create(ctx, record); err != nil {
		return nil, err
	}

	return s.pair(u, raw, record)
}

type rotation struct {
	pair    *auth.TokenPair
	userID  kernel.UserID
	reuse   bool
	revoked int64 // active tokens swept on reuse
	reject  error // returned once the unit of work has committed
}

// Rotate exchanges a refresh token for a new pair. The predecessor is
// revoked in the same unit of work that creates its successor. Presenting a
// revoked token revokes every active token of its owner.
func (s *TokenService) Rotate(ctx context.Context, raw, ip string) (*auth.TokenPair, error) {
	if raw == "" {
		return nil, auth.ErrInvalidToken()
	}

	out := dbx.Atomically(ctx, s.uow, func(ctx context.Context, repos iamstore.Repositories) dbx.Outcome[rotation] {
		current, err := repos.RefreshTokens.FindByHashForUpdate(ctx, secret.FastHash(raw))
		if err != nil {
			return dbx.Aborted[rotation](err)
		}

		now := s.clock.Now()
		if current.IsRevoked() {
			n, err := repos.RefreshTokens.RevokeAllActiveForUser(ctx, current.UserID, auth.Revocation{
				At: now, ByIP: ip, Reason: auth.ReasonReused,
			})
			if err != nil {
				return dbx.Aborted[rotation](err)
			}
			return dbx.Committed(rotation{userID: current.UserID, reuse: true, revoked: n, reject: auth.ErrInvalidToken()})
		}

		if current.IsExpired(now) {
			if _, err := repos.RefreshTokens.MarkRevoked(ctx, current.ID, auth.Revocation{
				At: now, ByIP: ip, Reason: auth.ReasonExpired,
			}); err != nil {
				return dbx.Aborted[rotation](err)
			}
			return dbx.Committed(rotation{userID: current.UserID, reject: auth.ErrTokenExpired()})
		}

		u, err := repos.Users.FindByID(ctx, current.UserID)
		if errx.IsCode(err, user.CodeUserNotFound) {
			return dbx.Aborted[rotation](auth.ErrInvalidToken())
		}
		if err != nil {
			return dbx.Aborted[rotation](err)
		}

		nextRaw, successor, err := s.newRefreshToken(current.UserID, current.Lifetime(), ip, current.UserAgent)
		if err != nil {
			return dbx.Aborted[rotation](err)
		}
		if err := repos.RefreshTokens.Create(ctx, successor); err != nil {
			return dbx.Aborted[rotation](err)
		}

		revoked, err := repos.RefreshTokens.MarkRevoked(ctx, current.ID, auth.Revocation{
			At: now, ByIP: ip, Reason: auth.ReasonRotated, ReplacedBy: &successor.ID,
		})
		if err != nil {
			return dbx.Aborted[rotation](err)
		}
		if !revoked {
			// another rotation won the row between lookup and update
			return dbx.Aborted[rotation](auth.ErrInvalidToken())
		}

		pair, err := s.pair(u, nextRaw, successor)
		if err != nil {
			return dbx.Aborted[rotation](err)
		}
		return dbx.Committed(rotation{pair: pair, userID: u.ID})
	})

	result, err := out.Result()
	if err != nil {
		return nil, err
	}

	if result.reject != nil {
		if result.reuse {
			s.audit.LogTokenReuse(ctx, result.userID, result.revoked, ip)
		}
		return nil, result.reject
	}

	s.audit.LogTokenRefresh(ctx, result.userID, ip)
	return result.pair, nil
}

// Revoke logs a refresh token out. Unknown and already revoked tokens are
// not an error.
func (s *TokenService) Revoke(ctx context.Context, raw, ip string) error {
	if raw == "" {
		return nil
	}

	repos := s.uow.Repos()
	current, err := repos.RefreshTokens.FindByHash(ctx, secret.FastHash(raw))
	if errx.IsCode(err, auth.CodeInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.IsRevoked() {
		return nil
	}

	if _, err := repos.RefreshTokens.MarkRevoked(ctx, current.ID, auth.Revocation{
		At: s.clock.Now(), ByIP: ip, Reason: auth.ReasonLogout,
	}); err != nil {
		return err
	}

	s.audit.LogLogout(ctx, current.UserID, ip)
	return nil
}

// VerifyAccess checks an access token.
func (s *TokenService) VerifyAccess(token string) (*auth.AccessPayload, error) {
	return s.access.Verify(token)
}

func (s *TokenService) newRefreshToken(userID kernel.UserID, lifetime time.Duration, ip, userAgent string) (string, *auth.RefreshToken, error) {
	raw, err := secret.RandomToken(s.policy.TokenBytes)
	if err != nil {
		return "", nil, auth.ErrTokenGenerationFailed(err)
	}

	now := s.clock.Now()
	return raw, &auth.RefreshToken{
		ID:          kernel.NewID[kernel.RefreshTokenID](),
		UserID:      userID,
		TokenHash:   secret.FastHash(raw),
		ExpiresAt:   now.Add(lifetime),
		CreatedAt:   now,
		CreatedByIP: ip,
		UserAgent:   userAgent,
	}, nil
}

func (s *TokenService) pair(u *user.User, raw string, record *auth.RefreshToken) (*auth.TokenPair, error) {
	access, accessExp, err := s.access.Mint(auth.AccessPayload{UserID: u.ID, Email: u.Email})
	if err != nil {
		logx.WithError(err).WithField("user_id", u.ID).Error("failed to mint access token")
		return nil, auth.ErrTokenGenerationFailed(err)
	}
	return &auth.TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          raw,
		RefreshTokenExpiresAt: record.ExpiresAt,
		UserID:                u.ID,
	}, nil
}
