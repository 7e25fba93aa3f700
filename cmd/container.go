// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, mail, jobs, metrics)
// and composes the IAM container.
package main

import (
	"context"
	"os"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamcontainer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/iamstore"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx/notifxses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB       *sqlx.DB
	Redis    *redis.Client
	Notifier *notifx.Client
	Jobs     *jobx.Client
	Metrics  *prometheus.Registry

	// Bounded-context containers
	IAM *iamcontainer.Container
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")
	ctx := context.Background()

	// 1. Database
	db, err := sqlx.Connect("postgres", c.Config.Database.URL)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	if c.Config.Database.AutoMigrate {
		if err := iamstore.Migrate(ctx, db); err != nil {
			logx.Fatalf("Failed to apply migrations: %v", err)
		}
		logx.Info("  ✅ Migrations applied")
	}

	// 2. Redis
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(ctx).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("  ✅ Redis connected")

	// 3. Notifications
	c.initNotifier(ctx)

	// 4. Jobs
	queue := jobxredis.NewRedisQueue(c.Redis,
		jobxredis.WithPrefix("gatekeeper:jobx"),
		jobxredis.WithRetention(c.Config.Jobx.JobRetention),
	)
	c.Jobs = jobx.NewClient(queue,
		jobx.WithQueues(c.Config.Jobx.Queues...),
		jobx.WithConcurrency(c.Config.Jobx.Concurrency),
		jobx.WithPollInterval(c.Config.Jobx.PollInterval),
		jobx.WithShutdownTimeout(c.Config.Jobx.ShutdownTimeout),
		jobx.WithDequeueTimeout(c.Config.Jobx.DequeueTimeout),
		jobx.WithDefaultRetryDelay(c.Config.Jobx.DefaultRetryDelay),
	)
	logx.Infof("  ✅ Job queue configured (queues: %v)", c.Config.Jobx.Queues)

	// 5. Metrics
	c.Metrics = prometheus.NewRegistry()
	c.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initNotifier(ctx context.Context) {
	cfg := c.Config.Notifx

	templates, err := notifx.NewDefaultTemplateRegistry()
	if err != nil {
		logx.Fatalf("Failed to load email templates: %v", err)
	}
	if cfg.TemplateDir != "" {
		if err := templates.LoadFS(os.DirFS(cfg.TemplateDir), "."); err != nil {
			logx.Fatalf("Failed to load email templates from %s: %v", cfg.TemplateDir, err)
		}
		logx.Infof("  ✅ Email templates loaded from %s", cfg.TemplateDir)
	}

	from := cfg.Sender()

	var provider notifx.EmailSender
	switch cfg.Provider {
	case "ses":
		ses, err := notifxses.NewFromRegion(ctx, cfg.AWSRegion, from)
		if err != nil {
			logx.Fatalf("Unable to configure SES: %v", err)
		}
		provider = ses
		logx.Infof("  ✅ SES email provider configured (region: %s)", cfg.AWSRegion)
	default:
		provider = notifxconsole.NewConsoleProvider()
		logx.Warn("  ⚠️  Console email provider in use, emails are only logged")
	}

	c.Notifier = notifx.NewClient(provider, templates, from)
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	iam, err := iamcontainer.New(iamcontainer.Deps{
		DB:      c.DB,
		Redis:   c.Redis,
		Cfg:     c.Config,
		Mailer:  c.Notifier,
		Jobs:    c.Jobs,
		Metrics: c.Metrics,
	})
	if err != nil {
		logx.Fatalf("Failed to initialize IAM module: %v", err)
	}
	c.IAM = iam
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	if !c.Config.Jobx.Enabled {
		logx.Warn("⚠️  Job workers disabled, queued emails will wait")
		return
	}

	logx.Info("🔄 Starting background services...")
	go func() {
		if err := c.Jobs.Start(ctx); err != nil {
			logx.Errorf("Job workers stopped: %v", err)
		}
	}()
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	_ = logx.Sync()
	logx.Info("✅ Cleanup complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
