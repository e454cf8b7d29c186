package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry through the querier in ctx, so the
	// entry commits or rolls back with the caller's transaction.
	Create(ctx context.Context, entry *models.AuditEntry) error

	// ListByRecord returns the entries for one row, newest first.
	// A non-positive limit returns all entries.
	ListByRecord(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditEntry, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO audit_log (
			id, table_name, operation, record_id, actor, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.Exec(ctx, query,
		entry.ID,
		entry.TableName,
		entry.Operation,
		entry.RecordID,
		entry.Actor,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", database.ClassifyError(err))
	}

	return nil
}

func (r *auditRepository) ListByRecord(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditEntry, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, table_name, operation, record_id, actor, detail, created_at
		FROM audit_log
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at DESC, id
		LIMIT NULLIF($3, 0)`

	if limit < 0 {
		limit = 0
	}

	rows, err := q.Query(ctx, query, tableName, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

func scanAuditEntry(row pgx.Row) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	err := row.Scan(
		&entry.ID,
		&entry.TableName,
		&entry.Operation,
		&entry.RecordID,
		&entry.Actor,
		&entry.Detail,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}
	return &entry, nil
}
