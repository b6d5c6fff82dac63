package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boltz-license-backend/config"
	"boltz-license-backend/database"
	"boltz-license-backend/logger"
	"boltz-license-backend/metrics"
	"boltz-license-backend/middlewares"
	"boltz-license-backend/routes"
	"boltz-license-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is configured from cfg, so fall back to a plain one
		zap.NewExample().Fatal("configuration error", zap.Error(err))
	}

	log := logger.New(cfg.LogLevel, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	// ---- Store
	var (
		store database.Store
		db    *gorm.DB
		keys  services.KeyGenerator = services.NewRandomKeyGenerator()
	)
	if database.IsMemoryURL(cfg.StoreURL) {
		log.Warn("using in-memory store; data is lost on restart")
		store = database.NewMemoryStore()
	} else {
		db, err = database.Open(cfg.StoreURL, cfg.StoreServiceKey, logger.WithComponent(log, "database"))
		if err != nil {
			log.Fatal("could not open store", zap.Error(err))
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(db); err != nil {
				log.Fatal("migration failed", zap.Error(err))
			}
		}
		store = database.NewGormStore(db)
		if db.Dialector.Name() == "postgres" {
			keys = &services.FallbackKeyGenerator{
				Primary:  &services.DatabaseKeyGenerator{DB: db},
				Fallback: keys,
				Log:      logger.WithComponent(log, "keygen"),
			}
		}
	}

	// ---- Services
	m := metrics.New()
	verifier := services.NewVerifier(store, logger.WithComponent(log, "verifier"),
		services.WithHWIDEnforcement(cfg.EnforceHWID))
	licenses := services.NewLicenseService(store, keys, logger.WithComponent(log, "licenses"))
	auth := services.NewAuthService(store, logger.WithComponent(log, "auth"))

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(log),
		BodyLimit:    cfg.BodyLimit(),
	})
	app.Use(recover.New())
	app.Use(middlewares.RequestLogger(logger.WithComponent(log, "http")))
	app.Use(m.Middleware())

	// ---- Global rate limiter, shared through Redis when configured
	limiterCfg := limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow(),
	}
	if cfg.RedisURL != "" {
		storage, err := database.NewRedisStorage(cfg.RedisURL, "boltz:limiter:")
		if err != nil {
			log.Fatal("could not connect to redis", zap.Error(err))
		}
		defer storage.Close()
		limiterCfg.Storage = storage
	}
	app.Use(limiter.New(limiterCfg))

	// ---- Routes
	routes.Register(app, routes.Dependencies{
		Store:          store,
		DB:             db,
		Verifier:       verifier,
		Licenses:       licenses,
		Auth:           auth,
		Metrics:        m,
		Secret:         []byte(cfg.Secret()),
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})

	// ---- Start
	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("API server stopped")
}
