package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/example/vocabbot/pkg/models"
)

// Recorder applies a user's completed review. This is the only path
// that increments the review counter; calling it twice for one user
// action double-counts, so callers must invoke it at most once per
// response (telegram callback de-duplication handles that here).
type Recorder struct {
	store  database.ReviewStore
	policy *spaced_repetition.Policy
}

// NewRecorder creates a recorder over the given store
func NewRecorder(store database.ReviewStore, policy *spaced_repetition.Policy) *Recorder {
	return &Recorder{store: store, policy: policy}
}

// RecordReview fetches or lazily creates the item, computes the next
// schedule from the reported difficulty and transitions the item back
// to due. Returns the schedule so callers can tell the user when the
// word comes back.
func (r *Recorder) RecordReview(ctx context.Context, userID, wordID int64, difficulty models.Difficulty, now time.Time) (spaced_repetition.Schedule, error) {
	if !difficulty.Valid() {
		return spaced_repetition.Schedule{}, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	item, err := r.store.CreateOrGet(ctx, userID, wordID, now)
	if err != nil {
		return spaced_repetition.Schedule{}, fmt.Errorf("failed to get review item: %w", err)
	}

	count := item.ReviewCount
	if count < 0 {
		count = 0
	}
	schedule := r.policy.ComputeNextSchedule(now, item.IntervalMinutes, count, difficulty)

	if err := r.store.UpdateAfterReview(ctx, userID, wordID, schedule, difficulty, now); err != nil {
		return spaced_repetition.Schedule{}, fmt.Errorf("failed to record review: %w", err)
	}
	return schedule, nil
}
