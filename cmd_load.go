package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source/jsonl"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source/mssql"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/config"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/logging"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/services"
)

type loadOptions struct {
	File        string
	Source      string
	Workers     int
	MetricsAddr string
}

func newLoadCmd(root *rootOptions) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load [--file <path>] [--source file|mssql] [--workers n] [--metrics-addr :9102]",
		Short: "Load enriched job records into the warehouse and print the batch result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := applyLoadOverrides(cfg, opts); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Metrics.Addr != "" {
				stop := serveMetrics(cfg.Metrics.Addr, logger)
				defer stop()
			}

			reader, err := openSource(ctx, &cfg.Source)
			if err != nil {
				return err
			}
			defer func() {
				if err := reader.Close(); err != nil {
					logger.Warn("Failed to close source", zap.Error(err))
				}
			}()

			lc := loaderConfig(cfg)
			lc.OnProgress = progressLogger(logger, cfg.Loader.BatchSize)
			loader := services.NewBatchLoader(a.jobs, a.resolver, lc, logger)
			result, runErr := loader.RunSource(ctx, reader)

			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if result.ErrorCount > 0 {
				return errRecordsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "JSON Lines file of enriched records (implies --source file)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "record source: file or mssql (default from config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent records (default from config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while loading")
	return cmd
}

// applyLoadOverrides folds command-line flags into cfg and re-validates it.
func applyLoadOverrides(cfg *config.Config, opts loadOptions) error {
	if opts.File != "" {
		if opts.Source != "" && opts.Source != config.SourceFile {
			return fmt.Errorf("--file cannot be combined with --source %s", opts.Source)
		}
		cfg.Source.Type = config.SourceFile
		cfg.Source.FilePath = opts.File
	} else if opts.Source != "" {
		cfg.Source.Type = opts.Source
	}
	if opts.Workers != 0 {
		cfg.Loader.Workers = opts.Workers
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	if cfg.Source.Type == config.SourceFile && cfg.Source.FilePath == "" {
		return errors.New("a file source needs --file or source.file_path")
	}
	return cfg.Validate()
}

// loaderConfig maps loader settings onto the batch loader's options.
func loaderConfig(cfg *config.Config) services.LoaderConfig {
	retryCfg := retryConfig(cfg)

	return services.LoaderConfig{
		Workers:   cfg.Loader.Workers,
		BatchSize: cfg.Loader.BatchSize,
		Retry:     retryCfg,
		Actor:     cfg.Actor,
	}
}

// progressLogger logs once every `every` processed records.
func progressLogger(logger *zap.Logger, every int) func(int) {
	return func(processed int) {
		if every > 0 && processed%every == 0 {
			logger.Info("Load progress", zap.Int("processed", processed))
		}
	}
}

// mssqlConfig maps the staging source settings onto the reader's config.
func mssqlConfig(src *config.MSSQLSourceConfig) *mssql.Config {
	return &mssql.Config{
		Host:                   src.Host,
		Port:                   src.Port,
		Database:               src.Database,
		Username:               src.User,
		Password:               src.Password,
		Table:                  src.Table,
		Encrypt:                src.Encrypt,
		TrustServerCertificate: src.TrustServerCertificate,
		ConnectionTimeout:      src.ConnectionTimeout,
	}
}

func openSource(ctx context.Context, src *config.SourceConfig) (source.Reader, error) {
	switch src.Type {
	case config.SourceFile:
		r, err := jsonl.Open(src.FilePath)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.SourceMSSQL:
		r, err := mssql.Open(ctx, mssqlConfig(&src.MSSQL))
		if err != nil {
			return nil, fmt.Errorf("open staging table: %s", logging.SanitizeError(err))
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}

// serveMetrics exposes the default Prometheus registry until stop is called.
func serveMetrics(addr string, logger *zap.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
