package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/errx/errxfiber"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration (.env included), then rebuild the logger from it
	cfg, err := config.Load()
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))
	defer func() { _ = logx.Sync() }()
	if err != nil {
		logx.Fatalf("Invalid configuration: %v", err)
	}
	logx.Info("🚀 Starting Gatekeeper API Server...")

	// 2. Initialize Dependency Container
	container := NewContainer(cfg)
	defer container.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.StartBackgroundServices(ctx)

	// 3. Create Fiber App with Config
	app := fiber.New(fiber.Config{
		AppName:               "Gatekeeper API",
		DisableStartupMessage: true,
		ErrorHandler:          errxfiber.ErrorHandler(cfg.Server.Debug),
		BodyLimit:             1024 * 1024,
	})

	// 4. Global Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Server.Debug,
	}))

	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		AllowCredentials: cfg.Server.AllowedOrigins != "*",
		ExposeHeaders:    "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: cookieKey(cfg),
	}))

	// 5. Health Check & Metrics
	app.Get("/health", healthCheckHandler(container))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(container.Metrics, promhttp.HandlerOpts{})))

	// 6. Register Routes
	container.IAM.RegisterRoutes(app.Group("/api/v1"))
	logx.Info("✓ Auth routes registered: /api/v1/auth/*")
	logx.Info("✓ Organization routes registered: /api/v1/organizations/*")

	// 7. 404 Handler
	app.Use(notFoundHandler)

	// 8. Start Server with Graceful Shutdown
	startServer(app, cfg)
}

// ============================================================================
// Handler Functions
// ============================================================================

// healthCheckHandler reports database and Redis reachability.
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "gatekeeper",
			"version": getEnv("APP_VERSION", "1.0.0"),
		}

		if err := container.DB.PingContext(c.UserContext()); err != nil {
			health["db"] = "unhealthy"
			health["db_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if err := container.Redis.Ping(c.UserContext()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return errx.NotFound("Route not found").
		WithDetail("path", c.Path()).
		WithDetail("method", c.Method())
}

// ============================================================================
// Utility Functions
// ============================================================================

// cookieKey returns the configured cookie encryption key. Without one a
// random key is generated, which logs everyone out on restart.
func cookieKey(cfg *config.Config) string {
	if cfg.Cookie.EncryptionKey != "" {
		return cfg.Cookie.EncryptionKey
	}
	if cfg.IsProduction() {
		logx.Fatal("COOKIE_ENCRYPTION_KEY is required in production")
	}
	logx.Warn("⚠️  COOKIE_ENCRYPTION_KEY not set, using a random key")
	return encryptcookie.GenerateKey()
}

// startServer starts the server with graceful shutdown
func startServer(app *fiber.App, cfg *config.Config) {
	port := cfg.Server.Port

	go func() {
		logx.Infof("🚀 Server listening on port %s", port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", port)

		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app, cfg)
}

// gracefulShutdown handles graceful server shutdown
func gracefulShutdown(app *fiber.App, cfg *config.Config) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited successfully")
}
