package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bloodbank-backend/internal/alerts"
	"bloodbank-backend/internal/audit"
	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/cache"
	"bloodbank-backend/internal/config"
	"bloodbank-backend/internal/database"
	"bloodbank-backend/internal/inventory"
	"bloodbank-backend/internal/middleware"
	"bloodbank-backend/internal/models"
	"bloodbank-backend/internal/scheduler"
	"bloodbank-backend/internal/segregation"
	"bloodbank-backend/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const serviceName = "bloodbank-backend"

func main() {
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	log := logger.Must(logger.New(logger.Options{Service: serviceName}))
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	log = logger.Must(logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
	}))
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	if err := database.Init(cfg, logger.Named(log, "database")); err != nil {
		log.Fatal("failed to initialise database", zap.Error(err))
	}

	var summaryCache cache.Cache = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable, summaries will not be cached", zap.Error(err))
		} else {
			summaryCache = rc
			defer rc.Close()
		}
		cancel()
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid timezone", zap.Error(err))
	}

	auditService := audit.NewService(database.DB)
	engine := segregation.NewEngine(
		segregation.NewGormStore(database.DB, cfg.LockTimeout),
		segregation.Options{
			Auditor:  auditService,
			Cache:    summaryCache,
			Logger:   logger.Named(log, "segregation"),
			Timeout:  cfg.SegregationTimeout,
			Location: loc,
		},
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(logger.Named(log, "http")))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOriginList(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := database.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "database_unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler())
	api.Post("/auth/login", auth.LoginHandler(cfg.JWTSecret))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	protected.Use(auth.RequireRole(models.RoleSuperAdmin, models.RoleAdmin, models.RoleOrganizer, models.RoleLabStaff))

	protected.Get("/auth/me", auth.MeHandler())

	// Segregation
	protected.Post("/segregation/:collection_id", segregation.SegregateHandler(engine, cfg.ExposeErrorDetail))
	protected.Get("/segregation", segregation.ListSegregationsHandler())
	protected.Get("/segregation/:segregation_id", segregation.GetSegregationHandler(loc))

	// Inventory; fixed paths before :inventory_id
	inv := protected.Group("/inventory")
	inv.Get("/", inventory.ListInventoryHandler())
	inv.Get("/summary", inventory.SummaryHandler(summaryCache, logger.Named(log, "inventory")))
	inv.Get("/global-summary",
		auth.RequireRole(models.RoleSuperAdmin, models.RoleAdmin),
		inventory.GlobalSummaryHandler(summaryCache, logger.Named(log, "inventory")))
	inv.Get("/low-stock", inventory.LowStockHandler())
	inv.Get("/export.csv", inventory.ExportCSVHandler())
	inv.Get("/export.xlsx", inventory.ExportXLSXHandler())
	inv.Get("/:inventory_id", inventory.GetInventoryHandler())

	// Audit
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	// Expiry jobs
	alertStore := alerts.NewGormStore(database.DB)
	var notifier alerts.Notifier = alerts.NewLogNotifier(logger.Named(log, "alerts"))
	if cfg.Alerts.WebhookURL != "" {
		notifier = alerts.NewWebhookNotifier(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookToken, 15*time.Second)
	}
	sched, err := scheduler.NewScheduler(
		cfg.Alerts,
		alerts.NewSweeper(alertStore, auditService, summaryCache, loc, logger.Named(log, "expiry")),
		alerts.NewChecker(alertStore, notifier, loc, logger.Named(log, "alerts")),
		logger.Named(log, "scheduler"),
	)
	if err != nil {
		log.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := sched.Register(); err != nil {
		log.Fatal("failed to register jobs", zap.Error(err))
	}
	sched.Start()

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	sched.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
