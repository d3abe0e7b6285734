package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/example/vocabbot/pkg/models"
)

// seedDue creates an item and rewinds its schedule so it is immediately
// claim-eligible at now.
func seedDue(t *testing.T, s *MemoryStore, userID, wordID int64, now time.Time) {
	t.Helper()
	_, err := s.CreateOrGet(context.Background(), userID, wordID, now.Add(-time.Hour))
	require.NoError(t, err)
}

func TestMemoryStore_CreateOrGetIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := s.CreateOrGet(ctx, 1, 10, now)
	require.NoError(t, err)
	assert.Equal(t, spaced_repetition.BaseIntervalHard, first.IntervalMinutes)
	assert.True(t, first.Active)

	// advance the schedule, then call again: the existing item wins
	schedule := spaced_repetition.Schedule{
		IntervalMinutes: 1440,
		NextReviewAt:    now.Add(24 * time.Hour),
	}
	require.NoError(t, s.UpdateAfterReview(ctx, 1, 10, schedule, models.DifficultyNormal, now))

	second, err := s.CreateOrGet(ctx, 1, 10, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1440, second.IntervalMinutes)
	assert.Equal(t, 1, second.ReviewCount)
}

func TestMemoryStore_GetByUserAndWordNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetByUserAndWord(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetDueItemsOrderedOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// staggered creation times give staggered next_review_at values
	for i, offset := range []time.Duration{-1 * time.Hour, -3 * time.Hour, -2 * time.Hour} {
		_, err := s.CreateOrGet(ctx, 1, int64(10+i), now.Add(offset))
		require.NoError(t, err)
	}

	due, err := s.GetDueItems(ctx, 1, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, int64(11), due[0].WordID)
	assert.Equal(t, int64(12), due[1].WordID)
	assert.Equal(t, int64(10), due[2].WordID)

	limited, err := s.GetDueItems(ctx, 1, now, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStore_GetDueItemsExcludesFutureAndClaimed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedDue(t, s, 1, 10, now)
	_, err := s.CreateOrGet(ctx, 1, 11, now) // due at now+10m, not eligible yet
	require.NoError(t, err)

	seedDue(t, s, 1, 12, now)
	claimed, err := s.ClaimReviews(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	due, err := s.GetDueItems(ctx, 1, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStore_ClaimReviewsRespectsLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for w := int64(1); w <= 5; w++ {
		seedDue(t, s, 1, w, now)
	}

	claimed, err := s.ClaimReviews(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, claimed, 3)

	rest, err := s.ClaimReviews(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestMemoryStore_ConcurrentClaimsNeverOverlap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	const total = 200
	for w := int64(1); w <= total; w++ {
		seedDue(t, s, w%7, w, now)
	}

	const workers = 8
	results := make([][]models.ReviewItem, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				batch, err := s.ClaimReviews(ctx, now, 9)
				if err != nil {
					errs[i] = err
					return
				}
				if len(batch) == 0 {
					return
				}
				results[i] = append(results[i], batch...)
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	claimed := 0
	for _, batch := range results {
		for _, item := range batch {
			key := fmt.Sprintf("%d/%d", item.UserID, item.WordID)
			assert.False(t, seen[key], "item %s claimed twice", key)
			seen[key] = true
			claimed++
		}
	}
	assert.Equal(t, total, claimed)
}

func TestMemoryStore_MarkSentRequiresClaim(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedDue(t, s, 1, 10, now)
	err := s.MarkSent(ctx, 1, 10, "msg-1", now)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ClaimReviews(ctx, now, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkSent(ctx, 1, 10, "msg-1", now))

	item, err := s.GetByUserAndWord(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StateSent, item.State())
	require.NotNil(t, item.MessageID)
	assert.Equal(t, "msg-1", *item.MessageID)
}

func TestMemoryStore_ProcessTimeoutsRequeuesStaleSends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedDue(t, s, 1, 10, now)
	seedDue(t, s, 1, 11, now)
	_, err := s.ClaimReviews(ctx, now, 2)
	require.NoError(t, err)
	require.NoError(t, s.MarkSent(ctx, 1, 10, "msg-1", now))
	// word 11 stays claimed-but-unsent; the sweep must not touch it

	const timeout = 1440

	// one minute before expiry: nothing happens
	count, err := s.ProcessTimeouts(ctx, now.Add(time.Duration(timeout-1)*time.Minute), timeout)
	require.NoError(t, err)
	assert.Zero(t, count)

	// one minute past expiry: the sent item comes back
	sweepAt := now.Add(time.Duration(timeout+1) * time.Minute)
	count, err = s.ProcessTimeouts(ctx, sweepAt, timeout)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	due, err := s.GetGlobalDueReviews(ctx, sweepAt, 10, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(10), due[0].WordID)
	assert.Nil(t, due[0].SentAt)
	assert.Nil(t, due[0].MessageID)
}

func TestMemoryStore_UpdateAfterReview(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedDue(t, s, 1, 10, now)
	_, err := s.ClaimReviews(ctx, now, 1)
	require.NoError(t, err)
	require.NoError(t, s.MarkSent(ctx, 1, 10, "msg-1", now))

	schedule := spaced_repetition.Schedule{
		IntervalMinutes: 1440,
		NextReviewAt:    now.Add(24 * time.Hour),
	}
	require.NoError(t, s.UpdateAfterReview(ctx, 1, 10, schedule, models.DifficultyNormal, now))

	item, err := s.GetByUserAndWord(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StateDue, item.State())
	assert.Equal(t, 1, item.ReviewCount)
	assert.Equal(t, 1440, item.IntervalMinutes)
	assert.False(t, item.EligibleForClaim(now), "rescheduled into the future")

	err = s.UpdateAfterReview(ctx, 1, 999, schedule, models.DifficultyNormal, now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeactivateRemovesFromDuePool(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedDue(t, s, 1, 10, now)
	require.NoError(t, s.Deactivate(ctx, 1, 10, now))

	due, err := s.GetDueItems(ctx, 1, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// history survives the soft delete
	stats, err := s.GetUserStats(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalWords)
	assert.Zero(t, stats.ActiveWords)
	assert.Zero(t, stats.DueWords)
}

func TestMemoryStore_GetGlobalDueReviewsPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for w := int64(1); w <= 5; w++ {
		seedDue(t, s, w, w, now)
	}

	page1, err := s.GetGlobalDueReviews(ctx, now, 2, 0)
	require.NoError(t, err)
	page2, err := s.GetGlobalDueReviews(ctx, now, 2, 2)
	require.NoError(t, err)
	page3, err := s.GetGlobalDueReviews(ctx, now, 2, 4)
	require.NoError(t, err)
	empty, err := s.GetGlobalDueReviews(ctx, now, 2, 6)
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 2)
	assert.Len(t, page3, 1)
	assert.Empty(t, empty)

	seen := make(map[int64]bool)
	for _, page := range [][]models.ReviewItem{page1, page2, page3} {
		for _, item := range page {
			assert.False(t, seen[item.WordID])
			seen[item.WordID] = true
		}
	}
}

func TestMemoryStore_GetProcessingStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for w := int64(1); w <= 4; w++ {
		seedDue(t, s, 1, w, now)
	}
	claimed, err := s.ClaimReviews(ctx, now, 3)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	require.NoError(t, s.MarkSent(ctx, 1, claimed[0].WordID, "msg-1", now))
	require.NoError(t, s.MarkSent(ctx, 1, claimed[1].WordID, "msg-2", now))

	stats, err := s.GetProcessingStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Due)
	assert.Equal(t, 1, stats.InFlight)
	assert.Equal(t, 2, stats.AwaitingResponse)
}

// ResetToDue is deliberately unguarded: operators may use it to yank an
// item back from any state, including mid-claim. A worker holding the
// old claim will then fail its MarkSent and the item stays due.
func TestResetToDueDuringClaim(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedDue(t, s, 1, 10, now)
	claimed, err := s.ClaimReviews(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, s.ResetToDue(ctx, 1, 10, now))

	// the old worker's dispatch confirmation is now rejected
	err = s.MarkSent(ctx, 1, 10, "msg-stale", now)
	assert.ErrorIs(t, err, ErrNotFound)

	// and the item is immediately claimable again
	reclaimed, err := s.ClaimReviews(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, reclaimed, 1)
}
