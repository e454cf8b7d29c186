package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/config"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/logging"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/repositories"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/retry"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/services"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB

	audit    services.AuditService
	resolver services.DimensionResolver
	jobs     services.JobService
}

// loadConfig reads configuration and builds the logger.
func loadConfig(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath, Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newApp connects to the warehouse and wires the services. cfg may carry
// command-line overrides applied after loadConfig.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	connStr := cfg.Database.ConnectionString()
	logger.Info("Connecting to warehouse",
		zap.String("dsn", logging.SanitizeConnectionString(connStr)),
		zap.String("version", cfg.Version))

	// The warehouse may still be starting when the loader runs under compose.
	db, err := retry.DoWithResult(ctx, retryConfig(cfg), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:             connStr,
			MaxConnections:  cfg.Database.MaxConnections,
			MinConnections:  cfg.Database.MinConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %s", logging.SanitizeError(err))
	}

	audit := services.NewAuditService(repositories.NewAuditRepository(), cfg.Actor, logger)
	resolver := services.NewDimensionResolver(db, repositories.NewDimensionRepository(), audit, logger)
	jobs := services.NewJobService(db, resolver, services.JobStores{
		Jobs:       repositories.NewJobRepository(),
		Skills:     repositories.NewSkillLinkRepository(),
		KeyPhrases: repositories.NewKeyPhraseRepository(),
		Entities:   repositories.NewEntityRepository(),
	}, audit, cfg.Loader.LockTimeout, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		audit:    audit,
		resolver: resolver,
		jobs:     jobs,
	}, nil
}

// retryConfig builds the backoff policy from the loader settings.
func retryConfig(cfg *config.Config) *retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.Loader.MaxRetries
	rc.InitialDelay = cfg.Loader.RetryInitialDelay
	rc.MaxDelay = cfg.Loader.RetryMaxDelay
	return rc
}

func (a *app) Close() {
	a.db.Close()
	_ = a.logger.Sync()
}
