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

// DimensionRepository provides data access for the six dimension tables.
type DimensionRepository interface {
	// Upsert inserts the dimension row or merges non-nil attributes into the
	// existing row with the same natural key. It runs inside a savepoint so a
	// failed statement leaves the caller's transaction usable.
	// Returns the surrogate id and whether a new row was created.
	Upsert(ctx context.Context, dim models.Dimension) (id int64, inserted bool, err error)

	// FindID returns the surrogate id for the dimension's natural key.
	// Returns apperrors.ErrNotFound if no row exists.
	FindID(ctx context.Context, dim models.Dimension) (int64, error)

	// SkillIDs returns the ids of the existing skills among names, keyed by name.
	SkillIDs(ctx context.Context, names []string) (map[string]int64, error)
}

type dimensionRepository struct{}

// NewDimensionRepository creates a new DimensionRepository.
func NewDimensionRepository() DimensionRepository {
	return &dimensionRepository{}
}

var _ DimensionRepository = (*dimensionRepository)(nil)

// dimensionStatements holds the per-table SQL for one dimension value.
type dimensionStatements struct {
	upsert     string
	upsertArgs []any
	find       string
	findArgs   []any
}

func statementsFor(dim models.Dimension) (*dimensionStatements, error) {
	switch d := dim.(type) {
	case *models.Company:
		return &dimensionStatements{
			upsert: `
				INSERT INTO dim_company (company_name, company_size, company_profile)
				VALUES ($1, $2, $3)
				ON CONFLICT (company_name) DO UPDATE SET
					company_size = COALESCE(EXCLUDED.company_size, dim_company.company_size),
					company_profile = COALESCE(EXCLUDED.company_profile, dim_company.company_profile),
					updated_at = now()
				RETURNING company_id, (xmax = 0)`,
			upsertArgs: []any{d.Name, d.Size, d.Profile},
			find:       `SELECT company_id FROM dim_company WHERE company_name = $1`,
			findArgs:   []any{d.Name},
		}, nil
	case *models.Location:
		return &dimensionStatements{
			upsert: `
				INSERT INTO dim_location (city, country, latitude, longitude)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (city, country) DO UPDATE SET
					latitude = COALESCE(EXCLUDED.latitude, dim_location.latitude),
					longitude = COALESCE(EXCLUDED.longitude, dim_location.longitude),
					updated_at = now()
				RETURNING location_id, (xmax = 0)`,
			upsertArgs: []any{d.City, d.Country, d.Latitude, d.Longitude},
			find:       `SELECT location_id FROM dim_location WHERE city = $1 AND country = $2`,
			findArgs:   []any{d.City, d.Country},
		}, nil
	case *models.Role:
		return &dimensionStatements{
			upsert: `
				INSERT INTO dim_role (role_name)
				VALUES ($1)
				ON CONFLICT (role_name) DO UPDATE SET updated_at = now()
				RETURNING role_id, (xmax = 0)`,
			upsertArgs: []any{d.Name},
			find:       `SELECT role_id FROM dim_role WHERE role_name = $1`,
			findArgs:   []any{d.Name},
		}, nil
	case *models.Portal:
		return &dimensionStatements{
			upsert: `
				INSERT INTO dim_portal (portal_name)
				VALUES ($1)
				ON CONFLICT (portal_name) DO UPDATE SET updated_at = now()
				RETURNING portal_id, (xmax = 0)`,
			upsertArgs: []any{d.Name},
			find:       `SELECT portal_id FROM dim_portal WHERE portal_name = $1`,
			findArgs:   []any{d.Name},
		}, nil
	case *models.CalendarDate:
		// Derived fields are a pure function of the date and always rewritten.
		return &dimensionStatements{
			upsert: `
				INSERT INTO dim_date (full_date, day_of_week, month_name, year)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (full_date) DO UPDATE SET
					day_of_week = EXCLUDED.day_of_week,
					month_name = EXCLUDED.month_name,
					year = EXCLUDED.year,
					updated_at = now()
				RETURNING date_id, (xmax = 0)`,
			upsertArgs: []any{d.Date, d.DayOfWeek, d.MonthName, d.Year},
			find:       `SELECT date_id FROM dim_date WHERE full_date = $1`,
			findArgs:   []any{d.Date},
		}, nil
	case *models.Skill:
		return &dimensionStatements{
			upsert: `
				INSERT INTO dim_skill (skill_name, skill_category)
				VALUES ($1, $2)
				ON CONFLICT (skill_name) DO UPDATE SET
					skill_category = COALESCE(EXCLUDED.skill_category, dim_skill.skill_category),
					updated_at = now()
				RETURNING skill_id, (xmax = 0)`,
			upsertArgs: []any{d.Name, d.Category},
			find:       `SELECT skill_id FROM dim_skill WHERE skill_name = $1`,
			findArgs:   []any{d.Name},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported dimension type %T", dim)
	}
}

func (r *dimensionRepository) Upsert(ctx context.Context, dim models.Dimension) (int64, bool, error) {
	stmts, err := statementsFor(dim)
	if err != nil {
		return 0, false, err
	}

	var (
		id       int64
		inserted bool
	)
	err = database.RunInSavepoint(ctx, func(ctx context.Context) error {
		q, _ := database.GetQuerier(ctx)
		if err := q.QueryRow(ctx, stmts.upsert, stmts.upsertArgs...).Scan(&id, &inserted); err != nil {
			return database.ClassifyError(err)
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to upsert %s %q: %w", dim.Kind(), dim.NaturalKey(), err)
	}

	return id, inserted, nil
}

func (r *dimensionRepository) FindID(ctx context.Context, dim models.Dimension) (int64, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	stmts, err := statementsFor(dim)
	if err != nil {
		return 0, err
	}

	var id int64
	err = q.QueryRow(ctx, stmts.find, stmts.findArgs...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s %q: %w", dim.Kind(), dim.NaturalKey(), apperrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find %s %q: %w", dim.Kind(), dim.NaturalKey(), database.ClassifyError(err))
	}

	return id, nil
}

func (r *dimensionRepository) SkillIDs(ctx context.Context, names []string) (map[string]int64, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	ids := make(map[string]int64, len(names))
	if len(names) == 0 {
		return ids, nil
	}

	rows, err := q.Query(ctx, `SELECT skill_name, skill_id FROM dim_skill WHERE skill_name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query skill ids: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			id   int64
		)
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("failed to scan skill id: %w", err)
		}
		ids[name] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skill ids: %w", database.ClassifyError(err))
	}

	return ids, nil
}
