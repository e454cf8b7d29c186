package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when Load is given no path. A missing default file is
// not an error: the configuration then comes from the environment alone.
const DefaultPath = "config.yaml"

// Source types accepted by source.type.
const (
	SourceFile  = "file"
	SourceMSSQL = "mssql"
)

// Config holds all configuration for ekaya-jobmart.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Actor is recorded on audit entries written without explicit provenance.
	Actor string `yaml:"actor" env:"JOBMART_ACTOR" env-default:"jobmart-loader"`

	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Database configuration (PostgreSQL warehouse)
	Database DatabaseConfig `yaml:"database"`

	Loader  LoaderConfig  `yaml:"loader"`
	Source  SourceConfig  `yaml:"source"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"jobmart"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"jobmart"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// MinConnections keeps idle sessions open between batches.
	MinConnections  int32         `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LoaderConfig tunes the batch loader.
type LoaderConfig struct {
	Workers           int           `yaml:"workers" env:"LOADER_WORKERS" env-default:"4"`
	BatchSize         int           `yaml:"batch_size" env:"LOADER_BATCH_SIZE" env-default:"500"`
	MaxRetries        int           `yaml:"max_retries" env:"LOADER_MAX_RETRIES" env-default:"3"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" env:"LOADER_RETRY_INITIAL_DELAY" env-default:"100ms"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" env:"LOADER_RETRY_MAX_DELAY" env-default:"2s"`

	// LockTimeout bounds the wait on another writer of the same job.
	LockTimeout time.Duration `yaml:"lock_timeout" env:"LOADER_LOCK_TIMEOUT" env-default:"5s"`
}

// SourceConfig selects where the load command reads records from.
type SourceConfig struct {
	Type     string            `yaml:"type" env:"SOURCE_TYPE" env-default:"file"`
	FilePath string            `yaml:"file_path" env:"SOURCE_FILE_PATH" env-default:""`
	MSSQL    MSSQLSourceConfig `yaml:"mssql"`
}

// MSSQLSourceConfig holds the SQL Server staging table connection.
type MSSQLSourceConfig struct {
	Host                   string `yaml:"host" env:"MSSQL_HOST" env-default:""`
	Port                   int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	Database               string `yaml:"database" env:"MSSQL_DATABASE" env-default:""`
	User                   string `yaml:"user" env:"MSSQL_USER" env-default:""`
	Password               string `yaml:"-" env:"MSSQL_PASSWORD"` // Secret - not in YAML
	Table                  string `yaml:"table" env:"MSSQL_TABLE" env-default:"dbo.job_records"`
	Encrypt                bool   `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"false"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate" env:"MSSQL_TRUST_SERVER_CERTIFICATE" env-default:"false"`
	ConnectionTimeout      int    `yaml:"connection_timeout" env:"MSSQL_CONNECTION_TIMEOUT" env-default:"30"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// An empty path means DefaultPath, which may be absent. An explicit path must
// exist. The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case optional && errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Source.MSSQL.Host = ResolveHostForDocker(cfg.Source.MSSQL.Host)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the loader cannot run with.
func (c *Config) Validate() error {
	if c.Loader.Workers < 1 {
		return fmt.Errorf("loader.workers must be at least 1, got %d", c.Loader.Workers)
	}
	if c.Loader.BatchSize < 1 {
		return fmt.Errorf("loader.batch_size must be at least 1, got %d", c.Loader.BatchSize)
	}
	if c.Loader.MaxRetries < 0 {
		return fmt.Errorf("loader.max_retries must not be negative, got %d", c.Loader.MaxRetries)
	}
	if c.Loader.LockTimeout < 0 {
		return fmt.Errorf("loader.lock_timeout must not be negative")
	}
	if c.Database.MinConnections < 0 || c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database.min_connections must be between 0 and max_connections (%d), got %d",
			c.Database.MaxConnections, c.Database.MinConnections)
	}
	if int(c.Database.MaxConnections) < c.Loader.Workers {
		return fmt.Errorf("database.max_connections (%d) must be at least loader.workers (%d)",
			c.Database.MaxConnections, c.Loader.Workers)
	}
	return c.Source.Validate()
}

// Validate checks that the selected source is fully configured.
// A file source may leave FilePath empty; the load command then requires --file.
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case SourceFile:
		return nil
	case SourceMSSQL:
		m := s.MSSQL
		if m.Host == "" || m.Database == "" || m.Table == "" {
			return fmt.Errorf("source.mssql requires host, database and table")
		}
		return nil
	default:
		return fmt.Errorf("unknown source.type %q (want %q or %q)", s.Type, SourceFile, SourceMSSQL)
	}
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}
