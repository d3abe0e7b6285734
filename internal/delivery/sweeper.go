package delivery

import (
	"context"
	"log"
	"time"

	"github.com/example/vocabbot/internal/database"
)

// DefaultTimeoutMinutes is how long a dispatched reminder may wait for
// a review before the sweep requeues it (one day).
const DefaultTimeoutMinutes = 1440

// Sweeper requeues items stuck in the sent-but-unacknowledged state.
// It is the pipeline's sole retry mechanism and is safe to run
// concurrently with claims: the sweep predicate and the claim
// predicate are disjoint over claimed_at/sent_at.
type Sweeper struct {
	store          database.ReviewStore
	timeoutMinutes int
}

// NewSweeper creates a sweeper. timeoutMinutes <= 0 selects the
// default.
func NewSweeper(store database.ReviewStore, timeoutMinutes int) *Sweeper {
	if timeoutMinutes <= 0 {
		timeoutMinutes = DefaultTimeoutMinutes
	}
	return &Sweeper{store: store, timeoutMinutes: timeoutMinutes}
}

// Sweep resets every timed-out item to due and returns how many were
// reset. The schedule is left untouched, so reset items are
// immediately eligible for redelivery.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	count, err := s.store.ProcessTimeouts(ctx, now, s.timeoutMinutes)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("Requeued %d unacknowledged reminders after %d minute timeout", count, s.timeoutMinutes)
	}
	return count, nil
}
