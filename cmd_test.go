package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source/jsonl"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/config"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/services"
)

func baseConfig() *config.Config {
	return &config.Config{
		Actor:    "jobmart-loader",
		Database: config.DatabaseConfig{MaxConnections: 25},
		Loader: config.LoaderConfig{
			Workers:           4,
			BatchSize:         500,
			MaxRetries:        3,
			RetryInitialDelay: 100 * time.Millisecond,
			RetryMaxDelay:     2 * time.Second,
			LockTimeout:       5 * time.Second,
		},
		Source: config.SourceConfig{Type: config.SourceFile},
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "load", "delete", "show", "audit"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRootCmd_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"delete without id", []string{"delete"}},
		{"audit missing record id", []string{"audit", "job_fact"}},
		{"load with positional arg", []string{"load", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			assert.Error(t, root.ExecuteContext(context.Background()))
		})
	}
}

func TestApplyLoadOverrides(t *testing.T) {
	t.Run("file flag selects file source", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Source.Type = config.SourceMSSQL

		require.NoError(t, applyLoadOverrides(cfg, loadOptions{File: "records.jsonl", Workers: 8, MetricsAddr: ":9102"}))
		assert.Equal(t, config.SourceFile, cfg.Source.Type)
		assert.Equal(t, "records.jsonl", cfg.Source.FilePath)
		assert.Equal(t, 8, cfg.Loader.Workers)
		assert.Equal(t, ":9102", cfg.Metrics.Addr)
	})

	t.Run("file flag conflicts with mssql source", func(t *testing.T) {
		err := applyLoadOverrides(baseConfig(), loadOptions{File: "records.jsonl", Source: config.SourceMSSQL})
		assert.Error(t, err)
	})

	t.Run("file source requires a path", func(t *testing.T) {
		err := applyLoadOverrides(baseConfig(), loadOptions{})
		assert.ErrorContains(t, err, "--file")
	})

	t.Run("mssql source is validated", func(t *testing.T) {
		err := applyLoadOverrides(baseConfig(), loadOptions{Source: config.SourceMSSQL})
		assert.ErrorContains(t, err, "source.mssql")
	})

	t.Run("workers beyond pool size rejected", func(t *testing.T) {
		err := applyLoadOverrides(baseConfig(), loadOptions{File: "x.jsonl", Workers: 64})
		assert.ErrorContains(t, err, "max_connections")
	})
}

func TestLoaderConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Actor = "nightly"
	cfg.Loader.MaxRetries = 5
	cfg.Loader.RetryInitialDelay = 50 * time.Millisecond

	got := loaderConfig(cfg)

	assert.Equal(t, 4, got.Workers)
	assert.Equal(t, 500, got.BatchSize)
	assert.Equal(t, "nightly", got.Actor)
	require.NotNil(t, got.Retry)
	assert.Equal(t, 5, got.Retry.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, got.Retry.InitialDelay)
	assert.Equal(t, 2*time.Second, got.Retry.MaxDelay)
	assert.Greater(t, got.Retry.Multiplier, 1.0)
}

func TestMSSQLConfig(t *testing.T) {
	got := mssqlConfig(&config.MSSQLSourceConfig{
		Host:                   "staging",
		Port:                   1433,
		Database:               "jobs",
		User:                   "loader",
		Password:               "secret",
		Table:                  "staging.job_records",
		TrustServerCertificate: true,
		ConnectionTimeout:      15,
	})

	require.NoError(t, got.Validate())
	assert.Equal(t, "loader", got.Username)
	assert.Equal(t, "staging.job_records", got.Table)
	assert.True(t, got.TrustServerCertificate)
	assert.Equal(t, 15, got.ConnectionTimeout)
}

func TestOpenSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"job_id":"J1","company":"Acme"}`+"\n"), 0o644))

	reader, err := openSource(context.Background(), &config.SourceConfig{Type: config.SourceFile, FilePath: path})
	require.NoError(t, err)
	defer reader.Close()

	assert.IsType(t, &jsonl.Reader{}, reader)
	rec, err := reader.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "J1", rec.JobID)
}

func TestOpenSource_MissingFile(t *testing.T) {
	_, err := openSource(context.Background(), &config.SourceConfig{
		Type:     config.SourceFile,
		FilePath: filepath.Join(t.TempDir(), "missing.jsonl"),
	})
	assert.Error(t, err)
}

func TestWriteJSON_BatchResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, &services.BatchResult{SuccessCount: 2, ErrorCount: 1,
		Failures: []services.RecordFailure{{Index: 1, JobID: "J2", Error: "validation failed"}}}))

	out := buf.String()
	assert.Contains(t, out, `"success_count": 2`)
	assert.Contains(t, out, `"error_count": 1`)
	assert.Contains(t, out, `"job_id": "J2"`)
}

func TestProgressLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	progress := progressLogger(zap.New(core), 2)

	for i := 1; i <= 5; i++ {
		progress(i)
	}

	entries := logs.FilterMessage("Load progress").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ContextMap()["processed"])
	assert.Equal(t, int64(4), entries[1].ContextMap()["processed"])
}
