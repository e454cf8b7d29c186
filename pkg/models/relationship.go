package models

// KeyPhrase is a key phrase extracted from one of the job's text fields.
// Keyed per job by Phrase; SourceField is mutable.
type KeyPhrase struct {
	Phrase      string `json:"phrase" validate:"required"`
	SourceField string `json:"source_field"`
}

// NamedEntity is a named entity recognised in the job's text.
// Keyed per job by (Name, Type); Confidence is mutable.
type NamedEntity struct {
	Name       string  `json:"entity_name" validate:"required"`
	Type       string  `json:"entity_type" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// EntityKey is the composite key of a job_entity row.
type EntityKey struct {
	Name string
	Type string
}

// Key returns the composite key of the entity.
func (e NamedEntity) Key() EntityKey {
	return EntityKey{Name: e.Name, Type: e.Type}
}

// BridgeRow is one row of a per-job relationship set: a key unique within the
// job and the mutable value stored alongside it.
type BridgeRow[K comparable, V comparable] struct {
	Key   K
	Value V
}

// SkillLinks converts resolved skill ids into job_skill rows.
func SkillLinks(ids []int64) []BridgeRow[int64, struct{}] {
	rows := make([]BridgeRow[int64, struct{}], 0, len(ids))
	for _, id := range ids {
		rows = append(rows, BridgeRow[int64, struct{}]{Key: id})
	}
	return rows
}

// KeyPhraseRows converts key phrases into job_key_phrase rows.
func KeyPhraseRows(phrases []KeyPhrase) []BridgeRow[string, string] {
	rows := make([]BridgeRow[string, string], 0, len(phrases))
	for _, p := range phrases {
		rows = append(rows, BridgeRow[string, string]{Key: p.Phrase, Value: p.SourceField})
	}
	return rows
}

// EntityRows converts named entities into job_entity rows.
func EntityRows(entities []NamedEntity) []BridgeRow[EntityKey, float64] {
	rows := make([]BridgeRow[EntityKey, float64], 0, len(entities))
	for _, e := range entities {
		rows = append(rows, BridgeRow[EntityKey, float64]{Key: e.Key(), Value: e.Confidence})
	}
	return rows
}
