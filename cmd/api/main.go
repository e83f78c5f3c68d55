package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voucherly/voucher-engine/internal/config"
	"github.com/voucherly/voucher-engine/internal/handler"
	"github.com/voucherly/voucher-engine/internal/identity"
	"github.com/voucherly/voucher-engine/internal/notify"
	"github.com/voucherly/voucher-engine/internal/repository"
	"github.com/voucherly/voucher-engine/internal/service"
	"github.com/voucherly/voucher-engine/internal/throttle"
	appvalidator "github.com/voucherly/voucher-engine/internal/validator"
	"github.com/voucherly/voucher-engine/pkg/clock"
	"github.com/voucherly/voucher-engine/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Voucher Engine",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := appvalidator.New()

	clk := clock.NewRealClock()

	// Plan throttle: Redis-backed when configured, in-process otherwise.
	limits := throttle.Limits{
		FreePoints: cfg.Plans.FreePoints,
		ProPoints:  cfg.Plans.ProPoints,
		Window:     cfg.Plans.Window(),
	}
	var limiter throttle.Limiter
	var redisClient *redis.Client
	var redisStore *throttle.RedisStore
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisStore = throttle.NewRedisStore(redisClient, limits)
		limiter = redisStore
		log.Info().Str("addr", cfg.Redis.Addr).Msg("plan throttle using redis")
	} else {
		store := throttle.NewMemoryStore(limits, clk)
		store.StartJanitor(ctx)
		limiter = store
		log.Info().Msg("plan throttle using in-process store")
	}

	// Redemption notifications: SMTP relay when configured, log-only otherwise.
	var dispatcher notify.Dispatcher
	if cfg.SMTP.Host != "" {
		dispatcher = notify.NewSMTPDispatcher(cfg.SMTP)
		log.Info().Str("host", cfg.SMTP.Host).Msg("notifications via smtp")
	} else {
		dispatcher = notify.NewLogDispatcher()
		log.Info().Msg("notifications via log only")
	}

	// Initialize voucher components (layered architecture)
	voucherRepo := repository.NewVoucherRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)
	voucherService := service.NewVoucherService(pool, voucherRepo, redemptionRepo, dispatcher, clk)
	voucherHandler := handler.NewVoucherHandler(voucherService, validate)
	redeemHandler := handler.NewRedeemHandler(voucherService, validate)

	// Health handler
	var cachePinger handler.Pinger
	if redisStore != nil {
		cachePinger = redisStore
	}
	healthHandler := handler.NewHealthHandler(pool, cachePinger)
	app.Get("/health", healthHandler.Check)

	// Every /api route carries the gateway identity and spends one throttle point.
	api := app.Group("/api",
		identity.Middleware(),
		throttle.Middleware(limiter, func(c *fiber.Ctx) (string, throttle.Plan, bool) {
			p, ok := identity.FromContext(c)
			if !ok {
				return "", "", false
			}
			return p.OrganizationID.String(), p.Plan, true
		}),
	)

	// Voucher routes
	api.Post("/vouchers", voucherHandler.CreateVoucher)
	api.Get("/vouchers", voucherHandler.ListVouchers)
	api.Post("/vouchers/bulk", voucherHandler.CreateBulk)
	api.Post("/vouchers/validate", redeemHandler.ValidateVoucher)
	api.Get("/vouchers/stats", voucherHandler.GetStats)
	api.Get("/vouchers/:code", voucherHandler.GetVoucher)
	api.Patch("/vouchers/:code", voucherHandler.UpdateVoucher)
	api.Delete("/vouchers/:code", voucherHandler.DeleteVoucher)
	api.Post("/vouchers/:code/redeem", redeemHandler.RedeemVoucher)
	api.Get("/vouchers/:code/redemptions", redeemHandler.ListRedemptions)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close backends AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
