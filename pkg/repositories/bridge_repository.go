package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

// RelationshipStore provides data access for one per-job relationship set.
// Each write method applies its whole slice in a single statement.
type RelationshipStore[K comparable, V comparable] interface {
	// Name is the bridge table name, used in logs and errors.
	Name() string

	// Load returns the stored rows of the job, ordered by key.
	Load(ctx context.Context, jobID string) ([]models.BridgeRow[K, V], error)

	Insert(ctx context.Context, jobID string, rows []models.BridgeRow[K, V]) error
	Update(ctx context.Context, jobID string, rows []models.BridgeRow[K, V]) error
	Delete(ctx context.Context, jobID string, keys []K) error

	// DeleteAll removes every row of the job and returns how many were removed.
	DeleteAll(ctx context.Context, jobID string) (int64, error)
}

// SkillLinkStore manages job_skill. Links carry no value.
type SkillLinkStore = RelationshipStore[int64, struct{}]

// KeyPhraseStore manages job_key_phrase, valued by source field.
type KeyPhraseStore = RelationshipStore[string, string]

// EntityStore manages job_entity, valued by confidence.
type EntityStore = RelationshipStore[models.EntityKey, float64]

func querier(ctx context.Context) (database.Querier, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}
	return q, nil
}

// exec runs a bridge statement and wraps failures with the table name.
func exec(ctx context.Context, table, op, query string, args ...any) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s %s rows: %w", op, table, database.ClassifyError(err))
	}
	return nil
}

func deleteAll(ctx context.Context, table, jobID string) (int64, error) {
	q, err := querier(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s rows: %w", table, database.ClassifyError(err))
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// job_skill

type skillLinkRepository struct{}

// NewSkillLinkRepository creates the job_skill store.
func NewSkillLinkRepository() SkillLinkStore {
	return &skillLinkRepository{}
}

var _ SkillLinkStore = (*skillLinkRepository)(nil)

func (r *skillLinkRepository) Name() string { return "job_skill" }

func (r *skillLinkRepository) Load(ctx context.Context, jobID string) ([]models.BridgeRow[int64, struct{}], error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT skill_id FROM job_skill WHERE job_id = $1 ORDER BY skill_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job_skill rows: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var result []models.BridgeRow[int64, struct{}]
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job_skill row: %w", err)
		}
		result = append(result, models.BridgeRow[int64, struct{}]{Key: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job_skill rows: %w", database.ClassifyError(err))
	}
	return result, nil
}

func (r *skillLinkRepository) Insert(ctx context.Context, jobID string, rows []models.BridgeRow[int64, struct{}]) error {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.Key
	}
	return exec(ctx, r.Name(), "insert", `
		INSERT INTO job_skill (job_id, skill_id)
		SELECT $1, t.skill_id FROM unnest($2::bigint[]) AS t(skill_id)`,
		jobID, ids)
}

// Update is a no-op: a skill link has no attributes besides its key.
func (r *skillLinkRepository) Update(ctx context.Context, jobID string, rows []models.BridgeRow[int64, struct{}]) error {
	return nil
}

func (r *skillLinkRepository) Delete(ctx context.Context, jobID string, keys []int64) error {
	return exec(ctx, r.Name(), "delete",
		`DELETE FROM job_skill WHERE job_id = $1 AND skill_id = ANY($2::bigint[])`,
		jobID, keys)
}

func (r *skillLinkRepository) DeleteAll(ctx context.Context, jobID string) (int64, error) {
	return deleteAll(ctx, r.Name(), jobID)
}

// ---------------------------------------------------------------------------
// job_key_phrase

type keyPhraseRepository struct{}

// NewKeyPhraseRepository creates the job_key_phrase store.
func NewKeyPhraseRepository() KeyPhraseStore {
	return &keyPhraseRepository{}
}

var _ KeyPhraseStore = (*keyPhraseRepository)(nil)

func (r *keyPhraseRepository) Name() string { return "job_key_phrase" }

func (r *keyPhraseRepository) Load(ctx context.Context, jobID string) ([]models.BridgeRow[string, string], error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT phrase, source_field FROM job_key_phrase WHERE job_id = $1 ORDER BY phrase`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job_key_phrase rows: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var result []models.BridgeRow[string, string]
	for rows.Next() {
		var row models.BridgeRow[string, string]
		if err := rows.Scan(&row.Key, &row.Value); err != nil {
			return nil, fmt.Errorf("failed to scan job_key_phrase row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job_key_phrase rows: %w", database.ClassifyError(err))
	}
	return result, nil
}

func splitPhrases(rows []models.BridgeRow[string, string]) (phrases, fields []string) {
	phrases = make([]string, len(rows))
	fields = make([]string, len(rows))
	for i, row := range rows {
		phrases[i] = row.Key
		fields[i] = row.Value
	}
	return phrases, fields
}

func (r *keyPhraseRepository) Insert(ctx context.Context, jobID string, rows []models.BridgeRow[string, string]) error {
	phrases, fields := splitPhrases(rows)
	return exec(ctx, r.Name(), "insert", `
		INSERT INTO job_key_phrase (job_id, phrase, source_field)
		SELECT $1, t.phrase, t.source_field
		FROM unnest($2::text[], $3::text[]) AS t(phrase, source_field)`,
		jobID, phrases, fields)
}

func (r *keyPhraseRepository) Update(ctx context.Context, jobID string, rows []models.BridgeRow[string, string]) error {
	phrases, fields := splitPhrases(rows)
	return exec(ctx, r.Name(), "update", `
		UPDATE job_key_phrase AS k
		SET source_field = t.source_field
		FROM unnest($2::text[], $3::text[]) AS t(phrase, source_field)
		WHERE k.job_id = $1 AND k.phrase = t.phrase`,
		jobID, phrases, fields)
}

func (r *keyPhraseRepository) Delete(ctx context.Context, jobID string, keys []string) error {
	return exec(ctx, r.Name(), "delete",
		`DELETE FROM job_key_phrase WHERE job_id = $1 AND phrase = ANY($2::text[])`,
		jobID, keys)
}

func (r *keyPhraseRepository) DeleteAll(ctx context.Context, jobID string) (int64, error) {
	return deleteAll(ctx, r.Name(), jobID)
}

// ---------------------------------------------------------------------------
// job_entity

type entityRepository struct{}

// NewEntityRepository creates the job_entity store.
func NewEntityRepository() EntityStore {
	return &entityRepository{}
}

var _ EntityStore = (*entityRepository)(nil)

func (r *entityRepository) Name() string { return "job_entity" }

func (r *entityRepository) Load(ctx context.Context, jobID string) ([]models.BridgeRow[models.EntityKey, float64], error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT entity_name, entity_type, confidence
		FROM job_entity
		WHERE job_id = $1
		ORDER BY entity_name, entity_type`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job_entity rows: %w", database.ClassifyError(err))
	}
	defer rows.Close()

	var result []models.BridgeRow[models.EntityKey, float64]
	for rows.Next() {
		var row models.BridgeRow[models.EntityKey, float64]
		if err := rows.Scan(&row.Key.Name, &row.Key.Type, &row.Value); err != nil {
			return nil, fmt.Errorf("failed to scan job_entity row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job_entity rows: %w", database.ClassifyError(err))
	}
	return result, nil
}

func splitEntities(rows []models.BridgeRow[models.EntityKey, float64]) (names, types []string, confidences []float64) {
	names = make([]string, len(rows))
	types = make([]string, len(rows))
	confidences = make([]float64, len(rows))
	for i, row := range rows {
		names[i] = row.Key.Name
		types[i] = row.Key.Type
		confidences[i] = row.Value
	}
	return names, types, confidences
}

func (r *entityRepository) Insert(ctx context.Context, jobID string, rows []models.BridgeRow[models.EntityKey, float64]) error {
	names, types, confidences := splitEntities(rows)
	return exec(ctx, r.Name(), "insert", `
		INSERT INTO job_entity (job_id, entity_name, entity_type, confidence)
		SELECT $1, t.entity_name, t.entity_type, t.confidence
		FROM unnest($2::text[], $3::text[], $4::double precision[]) AS t(entity_name, entity_type, confidence)`,
		jobID, names, types, confidences)
}

func (r *entityRepository) Update(ctx context.Context, jobID string, rows []models.BridgeRow[models.EntityKey, float64]) error {
	names, types, confidences := splitEntities(rows)
	return exec(ctx, r.Name(), "update", `
		UPDATE job_entity AS e
		SET confidence = t.confidence
		FROM unnest($2::text[], $3::text[], $4::double precision[]) AS t(entity_name, entity_type, confidence)
		WHERE e.job_id = $1 AND e.entity_name = t.entity_name AND e.entity_type = t.entity_type`,
		jobID, names, types, confidences)
}

func (r *entityRepository) Delete(ctx context.Context, jobID string, keys []models.EntityKey) error {
	names := make([]string, len(keys))
	types := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
		types[i] = k.Type
	}
	return exec(ctx, r.Name(), "delete", `
		DELETE FROM job_entity AS e
		USING unnest($2::text[], $3::text[]) AS t(entity_name, entity_type)
		WHERE e.job_id = $1 AND e.entity_name = t.entity_name AND e.entity_type = t.entity_type`,
		jobID, names, types)
}

func (r *entityRepository) DeleteAll(ctx context.Context, jobID string) (int64, error) {
	return deleteAll(ctx, r.Name(), jobID)
}
