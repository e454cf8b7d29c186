package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/repositories"
)

// AuditService records every fact and dimension write in the audit log.
// It takes the actor from the provenance in context.
type AuditService interface {
	// Record appends one entry inside the caller's transaction. A failure
	// wraps apperrors.ErrAuditWrite and must abort that transaction.
	Record(ctx context.Context, tableName, operation, recordID, detail string) error

	// ListByRecord returns the entries for one row, newest first.
	ListByRecord(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditEntry, error)
}

type auditService struct {
	repo         repositories.AuditRepository
	defaultActor string
	logger       *zap.Logger
}

// NewAuditService creates a new AuditService. defaultActor is recorded when
// the context carries no provenance.
func NewAuditService(repo repositories.AuditRepository, defaultActor string, logger *zap.Logger) AuditService {
	return &auditService{
		repo:         repo,
		defaultActor: defaultActor,
		logger:       logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) actor(ctx context.Context) string {
	if prov, ok := models.GetProvenance(ctx); ok && prov.Actor != "" {
		return prov.String()
	}
	return s.defaultActor
}

func (s *auditService) Record(ctx context.Context, tableName, operation, recordID, detail string) error {
	entry := &models.AuditEntry{
		TableName: tableName,
		Operation: operation,
		RecordID:  recordID,
		Actor:     s.actor(ctx),
		Detail:    detail,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to create audit log entry",
			zap.String("table", tableName),
			zap.String("record_id", recordID),
			zap.String("operation", operation),
			zap.Error(err))
		return fmt.Errorf("%w: %s %s %s: %w", apperrors.ErrAuditWrite, operation, tableName, recordID, err)
	}

	return nil
}

func (s *auditService) ListByRecord(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditEntry, error) {
	return s.repo.ListByRecord(ctx, tableName, recordID, limit)
}
