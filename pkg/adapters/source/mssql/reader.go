// Package mssql reads job records from a SQL Server staging table.
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/ekaya-inc/ekaya-jobmart/pkg/adapters/source"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/retry"
)

// Reader streams (job_id, record_json) rows ordered by job id.
type Reader struct {
	db      *sql.DB
	ownedDB bool
	table   string
	rows    *sql.Rows
	row     int64
}

var _ source.Reader = (*Reader)(nil)

// Open connects to SQL Server and returns a Reader over cfg.Table.
func Open(ctx context.Context, cfg *Config) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	r := NewReader(db, cfg.Table)
	r.ownedDB = true
	return r, nil
}

// NewReader reads from an existing handle. The caller keeps ownership of db.
func NewReader(db *sql.DB, table string) *Reader {
	return &Reader{db: db, table: table}
}

func (r *Reader) query(ctx context.Context) error {
	if !tableNamePattern.MatchString(r.table) {
		return fmt.Errorf("invalid staging table name: %q", r.table)
	}
	q := fmt.Sprintf("SELECT job_id, record_json FROM %s ORDER BY job_id", quoteTable(r.table))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query staging table %s: %w", r.table, err)
	}
	r.rows = rows
	return nil
}

func (r *Reader) Next(ctx context.Context) (*models.JobRecord, error) {
	if r.rows == nil {
		if err := r.query(ctx); err != nil {
			return nil, err
		}
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, fmt.Errorf("read staging row %d: %w", r.row+1, err)
		}
		return nil, io.EOF
	}
	r.row++

	var (
		jobID   string
		payload sql.NullString
	)
	if err := r.rows.Scan(&jobID, &payload); err != nil {
		return nil, &source.DecodeError{Position: r.row, Err: err}
	}
	if !payload.Valid {
		return nil, &source.DecodeError{Position: r.row, JobID: jobID, Err: fmt.Errorf("record_json is null")}
	}

	var rec models.JobRecord
	if err := json.Unmarshal([]byte(payload.String), &rec); err != nil {
		return nil, &source.DecodeError{Position: r.row, JobID: jobID, Err: err}
	}

	switch {
	case rec.JobID == "":
		rec.JobID = jobID
	case rec.JobID != jobID:
		return nil, &source.DecodeError{
			Position: r.row,
			JobID:    jobID,
			Err:      fmt.Errorf("record_json job_id %q does not match row job_id", rec.JobID),
		}
	}

	return &rec, nil
}

func (r *Reader) Close() error {
	var err error
	if r.rows != nil {
		err = r.rows.Close()
	}
	if r.ownedDB {
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
