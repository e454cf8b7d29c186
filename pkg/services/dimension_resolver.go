package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/repositories"
)

// DimensionResolver maps natural-key dimension values to surrogate ids,
// creating or updating the dimension row as needed.
type DimensionResolver interface {
	// Resolve returns the surrogate id for dim and records it on dim. The dimension write and its
	// audit entry commit in their own transaction, independent of any fact
	// transaction, so concurrent loaders always observe a committed row.
	Resolve(ctx context.Context, dim models.Dimension) (int64, error)

	// ResolveSkills resolves every named skill, leaving categories untouched.
	ResolveSkills(ctx context.Context, names []string) error

	// SkillIDs looks up existing skills by exact name. It reads through the
	// querier in ctx and therefore joins the caller's transaction.
	SkillIDs(ctx context.Context, names []string) (map[string]int64, error)
}

type dimensionResolver struct {
	tx     database.Transactor
	repo   repositories.DimensionRepository
	audit  AuditService
	logger *zap.Logger
}

// NewDimensionResolver creates a new DimensionResolver.
func NewDimensionResolver(
	tx database.Transactor,
	repo repositories.DimensionRepository,
	audit AuditService,
	logger *zap.Logger,
) DimensionResolver {
	return &dimensionResolver{
		tx:     tx,
		repo:   repo,
		audit:  audit,
		logger: logger.Named("dimension-resolver"),
	}
}

var _ DimensionResolver = (*dimensionResolver)(nil)

func (r *dimensionResolver) Resolve(ctx context.Context, dim models.Dimension) (int64, error) {
	if err := dim.Validate(); err != nil {
		return 0, apperrors.Validationf("%s: %v", dim.Kind(), err)
	}

	kind := dim.Kind().String()
	var (
		id       int64
		inserted bool
	)
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		id, inserted, err = r.repo.Upsert(ctx, dim)
		if err != nil {
			return err
		}

		op := models.AuditOperationUpdate
		if inserted {
			op = models.AuditOperationInsert
		}
		return r.audit.Record(ctx, kind, op, strconv.FormatInt(id, 10), dim.NaturalKey())
	})
	if err == nil {
		getMetrics().dimensionResolution.WithLabelValues(kind, outcomeLabel(inserted)).Inc()
		dim.SetID(id)
		return id, nil
	}

	if !errors.Is(err, apperrors.ErrConflict) {
		getMetrics().dimensionResolution.WithLabelValues(kind, outcomeFailed).Inc()
		return 0, err
	}

	// Another writer committed the same natural key first. Its row and audit
	// entry stand; only the id is needed here.
	r.logger.Debug("Dimension insert raced, reading committed row",
		zap.String("dimension", kind),
		zap.String("natural_key", dim.NaturalKey()))

	err = r.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		id, err = r.repo.FindID(ctx, dim)
		return err
	})
	if err != nil {
		getMetrics().dimensionResolution.WithLabelValues(kind, outcomeFailed).Inc()
		return 0, fmt.Errorf("resolve %s after conflict: %w", kind, err)
	}
	getMetrics().dimensionResolution.WithLabelValues(kind, outcomeRaced).Inc()
	dim.SetID(id)
	return id, nil
}

func (r *dimensionResolver) ResolveSkills(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := r.Resolve(ctx, &models.Skill{Name: name}); err != nil {
			return err
		}
	}
	return nil
}

func (r *dimensionResolver) SkillIDs(ctx context.Context, names []string) (map[string]int64, error) {
	return r.repo.SkillIDs(ctx, names)
}

func outcomeLabel(inserted bool) string {
	if inserted {
		return outcomeInserted
	}
	return outcomeUpdated
}
