package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/repositories"
)

// snapshotter is implemented by in-memory repositories that take part in
// fake transactions. snapshot returns a function restoring the current state.
type snapshotter interface {
	snapshot() (restore func())
}

// fakeTransactor runs fn directly and undoes the participating repositories'
// writes when fn fails.
type fakeTransactor struct {
	mu        sync.Mutex
	parts     []snapshotter
	commits   int
	rollbacks int
}

var _ database.Transactor = (*fakeTransactor)(nil)

func newFakeTransactor(parts ...snapshotter) *fakeTransactor {
	return &fakeTransactor{parts: parts}
}

func (f *fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), len(f.parts))
	for i, p := range f.parts {
		restores[i] = p.snapshot()
	}

	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		f.mu.Lock()
		f.rollbacks++
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.commits++
	f.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------

// mockDimensionRepository keys rows by kind and natural key.
type mockDimensionRepository struct {
	mu        sync.Mutex
	rows      map[string]int64
	nextID    int64
	upsertErr error
	findErr   error
	upserts   int
}

var _ repositories.DimensionRepository = (*mockDimensionRepository)(nil)

func newMockDimensionRepository() *mockDimensionRepository {
	return &mockDimensionRepository{rows: make(map[string]int64)}
}

func dimKey(dim models.Dimension) string {
	return dim.Kind().String() + "|" + dim.NaturalKey()
}

// seed stores a row as if another writer had committed it.
func (m *mockDimensionRepository) seed(dim models.Dimension) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[dimKey(dim)] = m.nextID
	return m.nextID
}

func (m *mockDimensionRepository) Upsert(ctx context.Context, dim models.Dimension) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return 0, false, m.upsertErr
	}
	if id, ok := m.rows[dimKey(dim)]; ok {
		return id, false, nil
	}
	m.nextID++
	m.rows[dimKey(dim)] = m.nextID
	return m.nextID, true, nil
}

func (m *mockDimensionRepository) FindID(ctx context.Context, dim models.Dimension) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return 0, m.findErr
	}
	id, ok := m.rows[dimKey(dim)]
	if !ok {
		return 0, fmt.Errorf("%s: %w", dimKey(dim), apperrors.ErrNotFound)
	}
	return id, nil
}

func (m *mockDimensionRepository) SkillIDs(ctx context.Context, names []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]int64)
	for _, name := range names {
		if id, ok := m.rows[dimKey(&models.Skill{Name: name})]; ok {
			ids[name] = id
		}
	}
	return ids, nil
}

// snapshot restores rows but never rewinds nextID: surrogate ids are not reused.
func (m *mockDimensionRepository) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]int64, len(m.rows))
	for k, v := range m.rows {
		saved[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.rows = saved
		m.mu.Unlock()
	}
}

// ---------------------------------------------------------------------------

// mockAuditRepository is a mock implementation of AuditRepository for testing.
type mockAuditRepository struct {
	mu        sync.Mutex
	entries   []*models.AuditEntry
	createErr error
}

var _ repositories.AuditRepository = (*mockAuditRepository)(nil)

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) ListByRecord(ctx context.Context, tableName, recordID string, limit int) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.TableName == tableName && e.RecordID == recordID {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockAuditRepository) byTable(tableName string) []*models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.AuditEntry
	for _, e := range m.entries {
		if e.TableName == tableName {
			result = append(result, e)
		}
	}
	return result
}

func (m *mockAuditRepository) snapshot() func() {
	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.entries = m.entries[:n]
		m.mu.Unlock()
	}
}

// ---------------------------------------------------------------------------

type mockJobRepository struct {
	mu        sync.Mutex
	jobs      map[string]models.Job
	locks     []string
	lockErr   error
	upsertErr error
}

var _ repositories.JobRepository = (*mockJobRepository)(nil)

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[string]models.Job)}
}

func (m *mockJobRepository) Lock(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return m.lockErr
	}
	m.locks = append(m.locks, jobID)
	return nil
}

func (m *mockJobRepository) Upsert(ctx context.Context, job *models.Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	_, exists := m.jobs[job.JobID]
	m.jobs[job.JobID] = *job
	return !exists, nil
}

func (m *mockJobRepository) Get(ctx context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, apperrors.ErrNotFound)
	}
	return &job, nil
}

func (m *mockJobRepository) Delete(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[jobID]
	delete(m.jobs, jobID)
	return ok, nil
}

func (m *mockJobRepository) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]models.Job, len(m.jobs))
	for k, v := range m.jobs {
		saved[k] = v
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.jobs = saved
		m.mu.Unlock()
	}
}

// ---------------------------------------------------------------------------

// mockBridge is an in-memory RelationshipStore that counts statements per
// bucket so tests can check each bucket is applied in a single call.
type mockBridge[K comparable, V comparable] struct {
	mu   sync.Mutex
	name string
	less func(a, b K) bool
	data map[string]map[K]V

	loads, inserts, updates, deletes int
	failOn                           string
}

func newMockBridge[K comparable, V comparable](name string, less func(a, b K) bool) *mockBridge[K, V] {
	return &mockBridge[K, V]{name: name, less: less, data: make(map[string]map[K]V)}
}

var (
	_ repositories.SkillLinkStore = (*mockBridge[int64, struct{}])(nil)
	_ repositories.KeyPhraseStore = (*mockBridge[string, string])(nil)
	_ repositories.EntityStore    = (*mockBridge[models.EntityKey, float64])(nil)
)

func (m *mockBridge[K, V]) Name() string { return m.name }

func (m *mockBridge[K, V]) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s %s: connection reset by peer", op, m.name)
	}
	return nil
}

func (m *mockBridge[K, V]) Load(ctx context.Context, jobID string) ([]models.BridgeRow[K, V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if err := m.fail("load"); err != nil {
		return nil, err
	}
	var rows []models.BridgeRow[K, V]
	for k, v := range m.data[jobID] {
		rows = append(rows, models.BridgeRow[K, V]{Key: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return m.less(rows[i].Key, rows[j].Key) })
	return rows, nil
}

func (m *mockBridge[K, V]) Insert(ctx context.Context, jobID string, rows []models.BridgeRow[K, V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if err := m.fail("insert"); err != nil {
		return err
	}
	set := m.data[jobID]
	if set == nil {
		set = make(map[K]V)
		m.data[jobID] = set
	}
	for _, row := range rows {
		if _, dup := set[row.Key]; dup {
			return fmt.Errorf("duplicate key in %s", m.name)
		}
		set[row.Key] = row.Value
	}
	return nil
}

func (m *mockBridge[K, V]) Update(ctx context.Context, jobID string, rows []models.BridgeRow[K, V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if err := m.fail("update"); err != nil {
		return err
	}
	for _, row := range rows {
		m.data[jobID][row.Key] = row.Value
	}
	return nil
}

func (m *mockBridge[K, V]) Delete(ctx context.Context, jobID string, keys []K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if err := m.fail("delete"); err != nil {
		return err
	}
	for _, k := range keys {
		delete(m.data[jobID], k)
	}
	return nil
}

func (m *mockBridge[K, V]) DeleteAll(ctx context.Context, jobID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete"); err != nil {
		return 0, err
	}
	n := int64(len(m.data[jobID]))
	delete(m.data, jobID)
	return n, nil
}

func (m *mockBridge[K, V]) rows(jobID string) map[K]V {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[K]V, len(m.data[jobID]))
	for k, v := range m.data[jobID] {
		out[k] = v
	}
	return out
}

func (m *mockBridge[K, V]) snapshot() func() {
	m.mu.Lock()
	saved := make(map[string]map[K]V, len(m.data))
	for job, set := range m.data {
		cp := make(map[K]V, len(set))
		for k, v := range set {
			cp[k] = v
		}
		saved[job] = cp
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.data = saved
		m.mu.Unlock()
	}
}

func lessInt64(a, b int64) bool   { return a < b }
func lessString(a, b string) bool { return a < b }
func lessEntity(a, b models.EntityKey) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Type < b.Type
}

// ---------------------------------------------------------------------------

// testWarehouse wires the job service and resolver over in-memory repositories.
type testWarehouse struct {
	tx       *fakeTransactor
	dims     *mockDimensionRepository
	audit    *mockAuditRepository
	jobs     *mockJobRepository
	skills   *mockBridge[int64, struct{}]
	phrases  *mockBridge[string, string]
	entities *mockBridge[models.EntityKey, float64]

	auditSvc AuditService
	resolver DimensionResolver
	jobSvc   JobService
}

func newTestWarehouse() *testWarehouse {
	w := &testWarehouse{
		dims:     newMockDimensionRepository(),
		audit:    &mockAuditRepository{},
		jobs:     newMockJobRepository(),
		skills:   newMockBridge[int64, struct{}]("job_skill", lessInt64),
		phrases:  newMockBridge[string, string]("job_key_phrase", lessString),
		entities: newMockBridge[models.EntityKey, float64]("job_entity", lessEntity),
	}
	w.tx = newFakeTransactor(w.dims, w.audit, w.jobs, w.skills, w.phrases, w.entities)
	w.auditSvc = NewAuditService(w.audit, "test-actor", zap.NewNop())
	w.resolver = NewDimensionResolver(w.tx, w.dims, w.auditSvc, zap.NewNop())
	w.jobSvc = NewJobService(w.tx, w.resolver, JobStores{
		Jobs:       w.jobs,
		Skills:     w.skills,
		KeyPhrases: w.phrases,
		Entities:   w.entities,
	}, w.auditSvc, 0, zap.NewNop())
	return w
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// sampleRecord returns a valid record whose skills must be resolved first.
func sampleRecord(jobID string) *models.JobRecord {
	return &models.JobRecord{
		JobID: jobID,
		JobAttributes: models.JobAttributes{
			Company:     "Acme",
			City:        "Austin",
			Country:     "US",
			Role:        "Engineer",
			Portal:      "Indeed",
			PostingDate: "2023-04-01",
			Title:       strPtr("Backend Engineer"),
			SalaryRange: strPtr("$59K-$99K"),
			Benefits:    strPtr("{'Health Insurance', 'PTO'}"),
		},
		Skills: []string{"Go", "SQL"},
		KeyPhrases: []models.KeyPhrase{
			{Phrase: "distributed systems", SourceField: "job_description"},
		},
		Entities: []models.NamedEntity{
			{Name: "Acme", Type: "ORG", Confidence: 0.9},
		},
		SentimentScore: floatPtr(0.7),
	}
}
