package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental-ledger/config"
	"rental-ledger/internal/api"
	"rental-ledger/internal/auth"
	"rental-ledger/internal/cache"
	"rental-ledger/internal/database"
	"rental-ledger/internal/export"
	"rental-ledger/internal/ledger"
	"rental-ledger/internal/logging"
	"rental-ledger/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(log)

	log.Info().
		Str("host", cfg.ServerConfig.Host).
		Int("port", cfg.ServerConfig.Port).
		Msg("starting rental-ledger")

	dbCfg := database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}

	// Vault, when enabled, supersedes the configured database credentials.
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create vault client")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		creds, err := vaultClient.DatabaseCredentials(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read database credentials from vault")
		}
		if creds.User != "" {
			dbCfg.User = creds.User
		}
		dbCfg.Password = creds.Password
		log.Info().Msg("database credentials loaded from vault")
	}

	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := database.NewRepository(db)

	ledgerSvc := ledger.NewService(repo, repo, ledger.ServiceConfig{
		DefaultCurrency: cfg.LedgerConfig.DefaultCurrency,
		SummaryTimeout:  time.Duration(cfg.LedgerConfig.SummaryTimeoutSecs) * time.Second,
	}, log)

	// Export labels come from the repository, optionally fronted by redis.
	var labelSource export.LabelSource = repo
	var labelCache *cache.LabelCache
	if cfg.RedisConfig.Enabled {
		labelCache = cache.NewLabelCache(cfg.RedisConfig, repo, log)
		labelSource = labelCache
	}
	exporter := export.NewExporter(ledgerSvc, labelSource)

	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			log.Fatal().Msg("auth is enabled but AUTH_JWT_SECRET is not set")
		}
		authService = auth.NewService(repo, cfg.AuthConfig, log)
		if err := authService.SeedAdmin(context.Background(), cfg.AuthConfig); err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin account")
		}
	} else {
		log.Warn().Msg("auth is disabled, all endpoints are unauthenticated")
	}

	server := api.NewServer(api.ServerConfig{
		Host:            cfg.ServerConfig.Host,
		Port:            cfg.ServerConfig.Port,
		AllowedOrigins:  cfg.ServerConfig.AllowedOrigins,
		RateLimitPerMin: cfg.ServerConfig.RateLimitPerMin,
		ProductionMode:  cfg.LoggingConfig.JSONFormat,
	}, repo, ledgerSvc, exporter, authService, labelCache, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
