package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/retry"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/workerpool"
)

// LoaderConfig configures batch loads.
type LoaderConfig struct {
	// Workers bounds how many records load concurrently.
	Workers int
	// BatchSize is how many source records RunSource hands to Run at a time.
	BatchSize int
	// Retry governs retries of transient per-record failures.
	Retry *retry.Config
	// Actor is recorded on audit entries when the context carries no provenance.
	Actor string
	// OnProgress, when set, is called after each record finishes with the
	// number of records processed so far in the run. Workers call it
	// concurrently, so values may arrive out of order.
	OnProgress func(processed int)
}

// DefaultLoaderConfig returns the loader defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Workers:   4,
		BatchSize: 500,
		Retry:     retry.DefaultConfig(),
		Actor:     "jobmart-loader",
	}
}

// RecordFailure describes one record that did not load.
type RecordFailure struct {
	// Index is the record's 0-based position in the batch or source.
	Index int    `json:"index"`
	JobID string `json:"job_id,omitempty"`
	Err   error  `json:"-"`
	Error string `json:"error"`
}

// BatchResult summarizes a batch load. SuccessCount + ErrorCount always
// equals the number of records submitted.
type BatchResult struct {
	RunID        uuid.UUID       `json:"run_id"`
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	Failures     []RecordFailure `json:"failures,omitempty"`
	Duration     time.Duration   `json:"duration"`
}

func (r *BatchResult) addFailure(index int, jobID string, err error) {
	r.ErrorCount++
	r.Failures = append(r.Failures, RecordFailure{
		Index: index,
		JobID: jobID,
		Err:   err,
		Error: err.Error(),
	})
}

// BatchLoader loads many records with per-record failure isolation.
type BatchLoader interface {
	// Run loads records concurrently. Each record commits or fails on its
	// own; one record's failure never affects another. After ctx is cancelled
	// no further records start, and every record not started is reported as
	// failed with the context error.
	Run(ctx context.Context, records []*models.JobRecord) *BatchResult

	// RunSource drains reader in chunks of the configured batch size.
	// Undecodable rows are reported as failures. The returned error is set
	// only when the source itself fails or ctx is cancelled.
	RunSource(ctx context.Context, reader source.Reader) (*BatchResult, error)
}

type batchLoader struct {
	jobs     JobService
	resolver DimensionResolver
	pool     *workerpool.Pool
	cfg      LoaderConfig
	logger   *zap.Logger
}

// NewBatchLoader creates a new BatchLoader.
func NewBatchLoader(jobs JobService, resolver DimensionResolver, cfg LoaderConfig, logger *zap.Logger) BatchLoader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultLoaderConfig().BatchSize
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}
	logger = logger.Named("batch-loader")
	return &batchLoader{
		jobs:     jobs,
		resolver: resolver,
		pool:     workerpool.New(workerpool.Config{MaxConcurrent: cfg.Workers}, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

var _ BatchLoader = (*batchLoader)(nil)

func (l *batchLoader) Run(ctx context.Context, records []*models.JobRecord) *BatchResult {
	result := &BatchResult{RunID: uuid.New()}
	l.run(l.withProvenance(ctx), result, records, 0)
	return result
}

func (l *batchLoader) RunSource(ctx context.Context, reader source.Reader) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.New()}
	ctx = l.withProvenance(ctx)
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	chunk := make([]*models.JobRecord, 0, l.cfg.BatchSize)
	offset := 0
	position := 0
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		l.run(ctx, result, chunk, offset)
		offset = position
		chunk = chunk[:0]
	}

	for {
		if err := ctx.Err(); err != nil {
			flush()
			return result, err
		}

		rec, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var decodeErr *source.DecodeError
		if errors.As(err, &decodeErr) {
			// Decode failures get their own index slot so later records keep
			// their source position.
			flush()
			result.addFailure(position, decodeErr.JobID, err)
			getMetrics().recordsTotal.WithLabelValues(resultError).Inc()
			position++
			offset = position
			l.progress(position)
			continue
		}
		if err != nil {
			flush()
			return result, fmt.Errorf("read source: %w", err)
		}

		chunk = append(chunk, rec)
		position++
		if len(chunk) == l.cfg.BatchSize {
			flush()
		}
	}
	flush()

	l.logger.Info("Source load finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("success", result.SuccessCount),
		zap.Int("errors", result.ErrorCount))
	return result, nil
}

// run loads one chunk and folds its outcome into result. offset is the index
// of records[0] in the overall run.
func (l *batchLoader) run(ctx context.Context, result *BatchResult, records []*models.JobRecord, offset int) {
	start := time.Now()
	items := make([]workerpool.Item[string], len(records))
	for i, rec := range records {
		rec := rec
		items[i] = workerpool.Item[string]{
			ID: jobIDOf(rec),
			Execute: func(ctx context.Context) (string, error) {
				// A started record finishes even if the run is cancelled, so
				// no transaction is abandoned half-way.
				return jobIDOf(rec), l.loadRecord(context.WithoutCancel(ctx), rec)
			},
		}
	}

	results := workerpool.Process(ctx, l.pool, items, func(completed, _ int) {
		l.progress(offset + completed)
	})

	for _, r := range results {
		if r.Err == nil {
			result.SuccessCount++
			getMetrics().recordsTotal.WithLabelValues(resultSuccess).Inc()
			continue
		}
		result.addFailure(offset+r.Index, r.ID, r.Err)
		getMetrics().recordsTotal.WithLabelValues(resultError).Inc()
		if r.Started {
			l.logger.Warn("Record failed",
				zap.String("run_id", result.RunID.String()),
				zap.Int("index", offset+r.Index),
				zap.String("job_id", r.ID),
				zap.Error(r.Err))
		}
	}
	result.Duration += time.Since(start)

	l.logger.Info("Batch finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("records", len(records)),
		zap.Int("success", result.SuccessCount),
		zap.Int("errors", result.ErrorCount),
		zap.Duration("elapsed", time.Since(start)))
}

// loadRecord resolves the record's skills and upserts it, retrying transient
// failures. Invalid records fail without retry and without any write.
func (l *batchLoader) loadRecord(ctx context.Context, rec *models.JobRecord) error {
	if err := rec.Validate(); err != nil {
		return &apperrors.RecordError{JobID: jobIDOf(rec), Err: err}
	}

	cfg := *l.cfg.Retry
	cfg.OnRetry = func(attempt int, err error) {
		getMetrics().retriesTotal.Inc()
		l.logger.Debug("Retrying record",
			zap.String("job_id", rec.JobID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	start := time.Now()
	err := retry.DoIfRetryable(ctx, &cfg, func() error {
		if err := l.resolver.ResolveSkills(ctx, rec.Skills); err != nil {
			return &apperrors.RecordError{JobID: rec.JobID, Err: err}
		}
		_, err := l.jobs.UpsertJob(ctx, rec)
		return err
	})
	getMetrics().upsertDuration.WithLabelValues(resultLabel(err)).Observe(time.Since(start).Seconds())
	return err
}

func (l *batchLoader) progress(processed int) {
	if l.cfg.OnProgress != nil {
		l.cfg.OnProgress(processed)
	}
}

func (l *batchLoader) withProvenance(ctx context.Context) context.Context {
	if _, ok := models.GetProvenance(ctx); ok {
		return ctx
	}
	return models.WithBatchProvenance(ctx, l.cfg.Actor)
}

func jobIDOf(rec *models.JobRecord) string {
	if rec == nil {
		return ""
	}
	return rec.JobID
}
