package services

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/repositories"
)

// RelationshipDiff partitions the change from a stored relationship set to a
// target set. Rows present in both with equal values appear in no bucket.
type RelationshipDiff[K comparable, V comparable] struct {
	Insert []models.BridgeRow[K, V]
	Update []models.BridgeRow[K, V]
	Delete []K
}

// Empty reports whether applying the diff would change nothing.
func (d RelationshipDiff[K, V]) Empty() bool {
	return len(d.Insert) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// SyncResult counts the rows touched by a sync.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}

// Add accumulates another result into r.
func (r *SyncResult) Add(other SyncResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Deleted += other.Deleted
}

// ComputeDiff compares the stored rows of one job with the desired target.
// Duplicate target keys collapse to the last occurrence. Inserts and updates
// follow the order keys first appear in target; deletes follow stored order.
func ComputeDiff[K comparable, V comparable](current, target []models.BridgeRow[K, V]) RelationshipDiff[K, V] {
	want := make(map[K]V, len(target))
	order := make([]K, 0, len(target))
	for _, row := range target {
		if _, seen := want[row.Key]; !seen {
			order = append(order, row.Key)
		}
		want[row.Key] = row.Value
	}

	have := make(map[K]V, len(current))
	for _, row := range current {
		have[row.Key] = row.Value
	}

	var diff RelationshipDiff[K, V]
	for _, key := range order {
		value := want[key]
		stored, exists := have[key]
		switch {
		case !exists:
			diff.Insert = append(diff.Insert, models.BridgeRow[K, V]{Key: key, Value: value})
		case stored != value:
			diff.Update = append(diff.Update, models.BridgeRow[K, V]{Key: key, Value: value})
		}
	}
	for _, row := range current {
		if _, keep := want[row.Key]; !keep {
			diff.Delete = append(diff.Delete, row.Key)
		}
	}

	return diff
}

// SyncRelationship makes the stored set of jobID equal to target. It must run
// inside the caller's transaction; any store error is returned unchanged in
// meaning so the caller rolls back.
func SyncRelationship[K comparable, V comparable](
	ctx context.Context,
	store repositories.RelationshipStore[K, V],
	jobID string,
	target []models.BridgeRow[K, V],
) (SyncResult, error) {
	current, err := store.Load(ctx, jobID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load %s: %w", store.Name(), err)
	}

	diff := ComputeDiff(current, target)
	if diff.Empty() {
		return SyncResult{}, nil
	}

	if len(diff.Delete) > 0 {
		if err := store.Delete(ctx, jobID, diff.Delete); err != nil {
			return SyncResult{}, err
		}
	}
	if len(diff.Update) > 0 {
		if err := store.Update(ctx, jobID, diff.Update); err != nil {
			return SyncResult{}, err
		}
	}
	if len(diff.Insert) > 0 {
		if err := store.Insert(ctx, jobID, diff.Insert); err != nil {
			return SyncResult{}, err
		}
	}

	return SyncResult{
		Inserted: len(diff.Insert),
		Updated:  len(diff.Update),
		Deleted:  len(diff.Delete),
	}, nil
}

func (r SyncResult) String() string {
	return fmt.Sprintf("+%d ~%d -%d", r.Inserted, r.Updated, r.Deleted)
}
