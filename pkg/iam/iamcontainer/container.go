package iamcontainer

import (
	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orgapi"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/organization/orgsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp/otpinfra"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/otp/otpsrv"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/secret"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user/usersrv"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// ---------------------------------------------------------------------------

type Deps struct {
	// DB backs the repositories. Without it the records live in memory.
	DB    *sqlx.DB
	Redis redis.UniversalClient
	Cfg   *config.Config

	// Mailer and Jobs are required.
	Mailer notifx.TemplateSender
	Jobs   *jobx.Client

	// Metrics receives the auth collectors. Nil disables them.
	Metrics prometheus.Registerer
	Clock   kernel.Clock
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// ---------------------------------------------------------------------------

type Container struct {
	Store iamstore.UnitOfWork

	UserService  *usersrv.Service
	OrgService   *orgsrv.Service
	TokenService *authsrv.TokenService
	AuthService  *authsrv.AuthService

	AuthMiddleware *auth.TokenMiddleware

	AuthHandlers *authapi.Handlers
	OrgHandlers  *orgapi.Handlers
}

// New builds the IAM dependency graph: store, services, handlers, middleware.
func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing IAM container...")

	if deps.Cfg == nil || deps.Mailer == nil || deps.Jobs == nil {
		return nil, errx.Internal("iam container requires config, mailer and job client")
	}

	cfg := deps.Cfg
	clock := deps.Clock
	if clock == nil {
		clock = kernel.SystemClock{}
	}

	c := &Container{}

	// ── Store ────────────────────────────────────────────────────────────

	if deps.DB != nil {
		c.Store = iamstore.NewPostgresUnitOfWork(deps.DB)
		logx.Info("  ✅ Using Postgres IAM store")
	} else {
		c.Store = iamstore.NewMemoryStore()
		logx.Warn("  ⚠️  Using in-memory IAM store (not recommended for production)")
	}
	repos := c.Store.Repos()

	// ── Infrastructure services ──────────────────────────────────────────

	var audit auth.AuditService = authinfra.NewLogxAuditService(clock)
	if deps.Metrics != nil {
		metered, err := authinfra.NewMetricsAuditService(audit, deps.Metrics)
		if err != nil {
			return nil, err
		}
		audit = metered
	}

	var throttle otp.Throttle = otp.NoThrottle{}
	if deps.Redis != nil {
		throttle = otpinfra.NewRedisThrottle(deps.Redis, "gatekeeper:otp:throttle")
	} else {
		logx.Warn("  ⚠️  Code email throttle disabled (no Redis)")
	}

	access := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.Issuer, clock)

	// ── Domain services ──────────────────────────────────────────────────

	c.UserService = usersrv.NewService(repos.Users, secret.NewBcryptHasher(cfg.Auth.BcryptCost), clock)
	c.OrgService = orgsrv.NewService(c.Store, clock)
	codes := otpsrv.NewCodeService(repos.Users, clock, cfg.Auth.CodeTTL)

	c.TokenService = authsrv.NewTokenService(c.Store, access, audit, clock, authsrv.TokenPolicy{
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		RememberMeTTL: cfg.Auth.RememberMeTTL,
		TokenBytes:    cfg.Auth.RefreshTokenBytes,
	})

	c.AuthService = authsrv.NewAuthService(
		c.Store,
		c.UserService,
		codes,
		c.OrgService,
		c.TokenService,
		deps.Mailer,
		deps.Jobs,
		throttle,
		audit,
		clock,
		cfg.Auth.EmailThrottle,
	)

	c.AuthService.RegisterJobs(deps.Jobs)

	// ── Middleware & handlers ────────────────────────────────────────────

	c.AuthMiddleware = auth.NewTokenMiddleware(access, c.UserService, c.OrgService)

	c.AuthHandlers = authapi.NewHandlers(c.AuthService, c.AuthMiddleware, authapi.CookiePolicy{
		Domain:      cfg.Cookie.Domain,
		Secure:      cfg.Cookie.Secure,
		RefreshPath: cfg.Cookie.RefreshPath,
	}, clock)
	c.OrgHandlers = orgapi.NewHandlers(c.OrgService, c.AuthMiddleware)

	logx.Info("✅ IAM container initialized")
	return c, nil
}

// RegisterRoutes mounts the auth and organization routes on router.
func (c *Container) RegisterRoutes(router fiber.Router) {
	c.AuthHandlers.RegisterRoutes(router)
	c.OrgHandlers.RegisterRoutes(router)
}
