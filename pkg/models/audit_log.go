package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditOperation is the kind of row change recorded.
const (
	AuditOperationInsert = "INSERT"
	AuditOperationUpdate = "UPDATE"
	AuditOperationDelete = "DELETE"
)

// Audited table names.
const (
	TableJobFact = "job_fact"
)

// AuditEntry is one append-only row of the audit_log table.
// Entries are written in the same transaction as the change they describe
// and are never updated or deleted.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	TableName string    `json:"table_name"` // e.g. 'job_fact', 'dim_company'
	Operation string    `json:"operation"`  // 'INSERT', 'UPDATE', 'DELETE'
	RecordID  string    `json:"record_id"`  // surrogate id or external job id
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
