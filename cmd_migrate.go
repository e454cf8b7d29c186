package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/logging"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending warehouse schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			connStr := cfg.Database.ConnectionString()
			logger.Info("Running migrations",
				zap.String("dsn", logging.SanitizeConnectionString(connStr)),
				zap.String("path", cfg.MigrationsPath))

			return database.MigrateURL(connStr, cfg.MigrationsPath, logger)
		},
	}
}
