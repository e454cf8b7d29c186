package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

func TestAuditService_Record(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, "default-actor", zap.NewNop())

	ctx := models.WithBatchProvenance(context.Background(), "nightly")

	err := svc.Record(ctx, models.TableJobFact, models.AuditOperationInsert, "J1", "skills +2 ~0 -0")
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, models.TableJobFact, entry.TableName)
	assert.Equal(t, models.AuditOperationInsert, entry.Operation)
	assert.Equal(t, "J1", entry.RecordID)
	assert.Equal(t, "batch:nightly", entry.Actor)
	assert.Equal(t, "skills +2 ~0 -0", entry.Detail)
}

func TestAuditService_Record_DefaultActorWithoutProvenance(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, "default-actor", zap.NewNop())

	err := svc.Record(context.Background(), "dim_company", models.AuditOperationUpdate, "7", "Acme")
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "default-actor", repo.entries[0].Actor)
}

func TestAuditService_Record_FailsClosed(t *testing.T) {
	repo := &mockAuditRepository{createErr: errors.New("disk full")}
	svc := NewAuditService(repo, "default-actor", zap.NewNop())

	err := svc.Record(context.Background(), models.TableJobFact, models.AuditOperationDelete, "J1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuditWrite)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, repo.entries)
}

func TestAuditService_ListByRecord(t *testing.T) {
	repo := &mockAuditRepository{}
	svc := NewAuditService(repo, "default-actor", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, models.TableJobFact, models.AuditOperationInsert, "J1", ""))
	require.NoError(t, svc.Record(ctx, models.TableJobFact, models.AuditOperationInsert, "J2", ""))
	require.NoError(t, svc.Record(ctx, models.TableJobFact, models.AuditOperationUpdate, "J1", ""))

	entries, err := svc.ListByRecord(ctx, models.TableJobFact, "J1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditOperationUpdate, entries[0].Operation, "newest first")
	assert.Equal(t, models.AuditOperationInsert, entries[1].Operation)

	entries, err = svc.ListByRecord(ctx, models.TableJobFact, "J1", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
