// Command server runs the Maplénou order API and its daily jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maplenou/maplenou-api/internal/api"
	"github.com/maplenou/maplenou-api/internal/auth"
	"github.com/maplenou/maplenou-api/internal/cache"
	"github.com/maplenou/maplenou-api/internal/config"
	"github.com/maplenou/maplenou-api/internal/mattermost"
	"github.com/maplenou/maplenou-api/internal/ratelimit"
	"github.com/maplenou/maplenou-api/internal/repository"
	"github.com/maplenou/maplenou-api/internal/seed"
	"github.com/maplenou/maplenou-api/internal/service/aggregator"
	"github.com/maplenou/maplenou-api/internal/service/allocation"
	"github.com/maplenou/maplenou-api/internal/service/badges"
	"github.com/maplenou/maplenou-api/internal/service/leaderboard"
	"github.com/maplenou/maplenou-api/internal/service/orders"
	"github.com/maplenou/maplenou-api/internal/service/reset"
	"github.com/maplenou/maplenou-api/internal/service/scheduler"
	"github.com/maplenou/maplenou-api/internal/service/vendors"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

var (
	configPath      = flag.String("config", "", "Path to the YAML configuration file")
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Apply the schema and seed, then exit")
)

func main() {
	flag.Parse()

	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("driver", cfg.Database.Driver).
		Msg("Starting Maplénou API")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server terminated")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	db, err := repository.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if err := prepareSchema(cfg, db, log); err != nil {
		return err
	}

	if cfg.Seed.Enabled {
		data, err := seed.Load(cfg.Seed.File)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, db, data, log.Component("seed")); err != nil {
			return err
		}
	}

	if *migrateOnlyFlag {
		log.Info().Msg("Schema and seed applied, exiting")
		return nil
	}

	health := api.NewHealth()
	health.Register("database", db)

	var (
		redisCache   *cache.Cache
		orderLimiter ratelimit.Limiter
		locker       scheduler.Locker
	)
	window := cfg.Orders.RateLimit.Window()
	if cfg.Database.Redis.Enabled {
		redisCache, err = cache.NewCache(&cfg.Database.Redis, log.Component("cache"))
		if err != nil {
			return err
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis")
			}
		}()
		health.Register("redis", redisCache)
		orderLimiter = ratelimit.NewFixedWindow(redisCache, "orders", cfg.Orders.RateLimit.Requests, window)
		locker = redisCache
	} else {
		log.Warn().Msg("Redis disabled: order rate limit is per instance and daily jobs run without a lock")
		orderLimiter = ratelimit.NewLocal(cfg.Orders.RateLimit.Requests, window)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	salesRepo := repository.NewSalesRepository(db)

	// Services
	resolver := vendors.NewResolver(userRepo, log.Component("vendors"))
	badgeService := badges.NewService(badgeRepo, cfg.Gamification.LotteryTier, log.Component("badges"))
	if _, err := badgeService.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load badge definitions: %w", err)
	}
	orderService := orders.NewService(db, resolver, badgeService, log.Component("orders"))
	stockService := allocation.NewService(allocationRepo, productRepo, userRepo, resolver, log.Component("allocation"))
	reportService := leaderboard.NewService(userRepo, orderRepo, allocationRepo, badgeService, log.Component("leaderboard"))
	resetService := reset.NewService(productRepo, allocationRepo, orderRepo, userRepo, resolver, log.Component("reset"))
	aggregatorService := aggregator.NewService(orderRepo, allocationRepo, salesRepo, log.Component("aggregator"))
	notifier := mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))

	sched := scheduler.NewService(&cfg.Scheduler, resetService, aggregatorService, notifier, userRepo, locker, log.Component("scheduler"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	jwt := auth.NewJWT(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHrs)*time.Hour)
	handler := api.NewHandler(orderService, stockService, reportService, badgeService, userRepo, sched, cfg.Server.IsDevelopment(), log.Component("api"))
	router := api.NewRouter(cfg, handler, health, jwt, orderLimiter, log.Component("http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}

// prepareSchema applies the versioned migrations on PostgreSQL, or lets gorm
// create the tables (SQLite, or migrations set to "auto").
func prepareSchema(cfg *config.Config, db *repository.DB, log *logger.Logger) error {
	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.Migrations == config.MigrationsMigrate {
		return repository.RunMigrations(cfg.Database.Postgres.URL(), log.Component("migrate"))
	}
	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	log.Info().Msg("Schema auto-migrated")
	return nil
}
