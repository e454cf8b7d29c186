package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/repositories"
)

// JobService coordinates writes of one job posting across its dimensions,
// the fact row, and the three relationship sets.
type JobService interface {
	// UpsertJob validates the record, resolves its dimensions, and writes the
	// fact row and relationship sets in one transaction. Every skill named by
	// the record must already exist in dim_skill.
	UpsertJob(ctx context.Context, rec *models.JobRecord) (string, error)

	// DeleteJob removes the fact row and its relationship sets. Dimension rows
	// are left in place. Returns apperrors.ErrNotFound for an unknown job.
	DeleteJob(ctx context.Context, jobID string) error

	// GetJob returns the stored fact row.
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// JobStores groups the per-table repositories the job service writes through.
type JobStores struct {
	Jobs       repositories.JobRepository
	Skills     repositories.SkillLinkStore
	KeyPhrases repositories.KeyPhraseStore
	Entities   repositories.EntityStore
}

// bridgePurger is the part of RelationshipStore that does not depend on the
// row type.
type bridgePurger interface {
	Name() string
	DeleteAll(ctx context.Context, jobID string) (int64, error)
}

type jobService struct {
	tx          database.Transactor
	resolver    DimensionResolver
	stores      JobStores
	audit       AuditService
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewJobService creates a new JobService. lockTimeout bounds how long a
// transaction waits on another writer of the same job; zero waits indefinitely.
func NewJobService(
	tx database.Transactor,
	resolver DimensionResolver,
	stores JobStores,
	audit AuditService,
	lockTimeout time.Duration,
	logger *zap.Logger,
) JobService {
	return &jobService{
		tx:          tx,
		resolver:    resolver,
		stores:      stores,
		audit:       audit,
		lockTimeout: lockTimeout,
		logger:      logger.Named("job-service"),
	}
}

var _ JobService = (*jobService)(nil)

// dimensionIDs are the resolved foreign keys of one fact row.
type dimensionIDs struct {
	company, location, role, portal, postingDate int64
}

func (s *jobService) UpsertJob(ctx context.Context, rec *models.JobRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		var jobID string
		if rec != nil {
			jobID = rec.JobID
		}
		return jobID, &apperrors.RecordError{JobID: jobID, Err: err}
	}

	ids, err := s.resolveDimensions(ctx, rec)
	if err != nil {
		return rec.JobID, s.classify(rec.JobID, err)
	}

	job := buildJob(rec, ids)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, rec.JobID); err != nil {
			return err
		}

		skillIDs, err := s.lookupSkills(ctx, rec.Skills)
		if err != nil {
			return err
		}

		inserted, err := s.stores.Jobs.Upsert(ctx, job)
		if err != nil {
			return err
		}

		skills, err := SyncRelationship(ctx, s.stores.Skills, rec.JobID, models.SkillLinks(skillIDs))
		if err != nil {
			return err
		}
		phrases, err := SyncRelationship(ctx, s.stores.KeyPhrases, rec.JobID, models.KeyPhraseRows(rec.KeyPhrases))
		if err != nil {
			return err
		}
		entities, err := SyncRelationship(ctx, s.stores.Entities, rec.JobID, models.EntityRows(rec.Entities))
		if err != nil {
			return err
		}

		op := models.AuditOperationUpdate
		if inserted {
			op = models.AuditOperationInsert
		}
		detail := fmt.Sprintf("skills %s, key_phrases %s, entities %s", skills, phrases, entities)
		return s.audit.Record(ctx, models.TableJobFact, op, rec.JobID, detail)
	})
	if err != nil {
		return rec.JobID, s.classify(rec.JobID, err)
	}

	s.logger.Debug("Upserted job", zap.String("job_id", rec.JobID))
	return rec.JobID, nil
}

func (s *jobService) resolveDimensions(ctx context.Context, rec *models.JobRecord) (dimensionIDs, error) {
	var ids dimensionIDs

	date, err := models.ParseCalendarDate(rec.PostingDate)
	if err != nil {
		return ids, apperrors.Validationf("%v", err)
	}

	steps := []struct {
		dim models.Dimension
		id  *int64
	}{
		{&models.Company{Name: rec.Company, Size: rec.CompanySize, Profile: rec.CompanyProfile}, &ids.company},
		{&models.Location{City: rec.City, Country: rec.Country, Latitude: rec.Latitude, Longitude: rec.Longitude}, &ids.location},
		{&models.Role{Name: rec.Role}, &ids.role},
		{&models.Portal{Name: rec.Portal}, &ids.portal},
		{date, &ids.postingDate},
	}
	for _, step := range steps {
		id, err := s.resolver.Resolve(ctx, step.dim)
		if err != nil {
			return ids, fmt.Errorf("resolve %s: %w", step.dim.Kind(), err)
		}
		*step.id = id
	}

	return ids, nil
}

// lookupSkills maps skill names to ids inside the fact transaction. An unknown
// name is a validation failure: skills are resolved before the upsert.
func (s *jobService) lookupSkills(ctx context.Context, names []string) ([]int64, error) {
	found, err := s.resolver.SkillIDs(ctx, names)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(names))
	var missing []string
	for _, name := range names {
		id, ok := found[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.Validationf("unknown skills: %s", strings.Join(missing, ", "))
	}
	return ids, nil
}

func (s *jobService) lock(ctx context.Context, jobID string) error {
	if err := database.SetLockTimeout(ctx, s.lockTimeout); err != nil {
		return err
	}
	return s.stores.Jobs.Lock(ctx, jobID)
}

func buildJob(rec *models.JobRecord, ids dimensionIDs) *models.Job {
	salaryMin, salaryMax := ParseSalaryRange(rec.SalaryRange)
	return &models.Job{
		JobID:         rec.JobID,
		CompanyID:     ids.company,
		LocationID:    ids.location,
		RoleID:        ids.role,
		PortalID:      ids.portal,
		PostingDateID: ids.postingDate,

		Title:            rec.Title,
		Description:      rec.Description,
		Experience:       rec.Experience,
		Qualifications:   rec.Qualifications,
		SalaryRange:      rec.SalaryRange,
		WorkType:         rec.WorkType,
		Preference:       rec.Preference,
		ContactPerson:    rec.ContactPerson,
		Contact:          rec.Contact,
		Responsibilities: rec.Responsibilities,
		Benefits:         CleanBenefits(rec.Benefits),

		SalaryMin:      salaryMin,
		SalaryMax:      salaryMax,
		SentimentScore: rec.SentimentScore,
		SentimentLabel: ClassifySentiment(rec.SentimentScore),
	}
}

func (s *jobService) DeleteJob(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return &apperrors.RecordError{Err: apperrors.Validationf("job id is required")}
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, jobID); err != nil {
			return err
		}

		var removed []string
		for _, store := range []bridgePurger{s.stores.Skills, s.stores.KeyPhrases, s.stores.Entities} {
			n, err := store.DeleteAll(ctx, jobID)
			if err != nil {
				return err
			}
			removed = append(removed, fmt.Sprintf("%s -%d", store.Name(), n))
		}

		existed, err := s.stores.Jobs.Delete(ctx, jobID)
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
		}

		return s.audit.Record(ctx, models.TableJobFact, models.AuditOperationDelete, jobID, strings.Join(removed, ", "))
	})
	if err != nil {
		return s.classify(jobID, err)
	}

	s.logger.Info("Deleted job", zap.String("job_id", jobID))
	return nil
}

func (s *jobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job *models.Job
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		job, err = s.stores.Jobs.Get(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// classify maps a failed unit of work onto the load error categories and
// attributes it to jobID. Anything that is not a validation failure,
// concurrency conflict, missing row or cancellation is a transaction failure.
func (s *jobService) classify(jobID string, err error) error {
	known := apperrors.IsValidation(err) ||
		apperrors.IsConcurrencyConflict(err) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
	if !known {
		err = fmt.Errorf("%w: %w", apperrors.ErrTransactionFailure, err)
	}
	return &apperrors.RecordError{JobID: jobID, Err: err}
}
