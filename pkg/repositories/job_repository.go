package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

// JobRepository provides data access for the job_fact table.
type JobRepository interface {
	// Lock takes a transaction-scoped advisory lock on the job id. Concurrent
	// writers of the same job serialize here; the lock is released at commit
	// or rollback.
	Lock(ctx context.Context, jobID string) error

	// Upsert inserts the fact row or merges it into the stored one. Nil
	// attributes keep stored values; the five dimension references are always
	// overwritten. Returns whether a new row was created.
	Upsert(ctx context.Context, job *models.Job) (inserted bool, err error)

	// Get retrieves a fact row by job id.
	// Returns apperrors.ErrNotFound if no row exists.
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// Delete removes the fact row. Returns false if no row existed.
	Delete(ctx context.Context, jobID string) (bool, error)
}

type jobRepository struct{}

// NewJobRepository creates a new JobRepository.
func NewJobRepository() JobRepository {
	return &jobRepository{}
}

var _ JobRepository = (*jobRepository)(nil)

const jobColumns = `
	job_id, company_id, location_id, role_id, portal_id, posting_date_id,
	job_title, job_description, experience, qualifications, salary_range,
	work_type, preference, contact_person, contact, responsibilities, benefits,
	salary_min, salary_max, sentiment_score, sentiment_label,
	created_at, updated_at`

func (r *jobRepository) Lock(ctx context.Context, jobID string) error {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, jobID); err != nil {
		return fmt.Errorf("failed to lock job %s: %w", jobID, database.ClassifyError(err))
	}
	return nil
}

func (r *jobRepository) Upsert(ctx context.Context, job *models.Job) (bool, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO job_fact (
			job_id, company_id, location_id, role_id, portal_id, posting_date_id,
			job_title, job_description, experience, qualifications, salary_range,
			work_type, preference, contact_person, contact, responsibilities, benefits,
			salary_min, salary_max, sentiment_score, sentiment_label
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (job_id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			location_id = EXCLUDED.location_id,
			role_id = EXCLUDED.role_id,
			portal_id = EXCLUDED.portal_id,
			posting_date_id = EXCLUDED.posting_date_id,
			job_title = COALESCE(EXCLUDED.job_title, job_fact.job_title),
			job_description = COALESCE(EXCLUDED.job_description, job_fact.job_description),
			experience = COALESCE(EXCLUDED.experience, job_fact.experience),
			qualifications = COALESCE(EXCLUDED.qualifications, job_fact.qualifications),
			salary_range = COALESCE(EXCLUDED.salary_range, job_fact.salary_range),
			work_type = COALESCE(EXCLUDED.work_type, job_fact.work_type),
			preference = COALESCE(EXCLUDED.preference, job_fact.preference),
			contact_person = COALESCE(EXCLUDED.contact_person, job_fact.contact_person),
			contact = COALESCE(EXCLUDED.contact, job_fact.contact),
			responsibilities = COALESCE(EXCLUDED.responsibilities, job_fact.responsibilities),
			benefits = COALESCE(EXCLUDED.benefits, job_fact.benefits),
			salary_min = COALESCE(EXCLUDED.salary_min, job_fact.salary_min),
			salary_max = COALESCE(EXCLUDED.salary_max, job_fact.salary_max),
			sentiment_score = COALESCE(EXCLUDED.sentiment_score, job_fact.sentiment_score),
			sentiment_label = COALESCE(EXCLUDED.sentiment_label, job_fact.sentiment_label),
			updated_at = now()
		RETURNING created_at, updated_at, (xmax = 0)`

	var inserted bool
	err := q.QueryRow(ctx, query,
		job.JobID,
		job.CompanyID,
		job.LocationID,
		job.RoleID,
		job.PortalID,
		job.PostingDateID,
		job.Title,
		job.Description,
		job.Experience,
		job.Qualifications,
		job.SalaryRange,
		job.WorkType,
		job.Preference,
		job.ContactPerson,
		job.Contact,
		job.Responsibilities,
		job.Benefits,
		job.SalaryMin,
		job.SalaryMax,
		job.SentimentScore,
		job.SentimentLabel,
	).Scan(&job.CreatedAt, &job.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert job %s: %w", job.JobID, database.ClassifyError(err))
	}

	return inserted, nil
}

func (r *jobRepository) Get(ctx context.Context, jobID string) (*models.Job, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	row := q.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_fact WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) Delete(ctx context.Context, jobID string) (bool, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	tag, err := q.Exec(ctx, `DELETE FROM job_fact WHERE job_id = $1`, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to delete job %s: %w", jobID, database.ClassifyError(err))
	}

	return tag.RowsAffected() > 0, nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(
		&j.JobID, &j.CompanyID, &j.LocationID, &j.RoleID, &j.PortalID, &j.PostingDateID,
		&j.Title, &j.Description, &j.Experience, &j.Qualifications, &j.SalaryRange,
		&j.WorkType, &j.Preference, &j.ContactPerson, &j.Contact, &j.Responsibilities, &j.Benefits,
		&j.SalaryMin, &j.SalaryMax, &j.SentimentScore, &j.SentimentLabel,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &j, nil
}
