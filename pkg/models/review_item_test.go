package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDueItem(now time.Time) *ReviewItem {
	return &ReviewItem{
		UserID:          1,
		WordID:          42,
		NextReviewAt:    now.Add(-time.Minute),
		IntervalMinutes: 10,
		Active:          true,
		CreatedAt:       now.Add(-time.Hour),
		UpdatedAt:       now.Add(-time.Hour),
	}
}

func TestStateDerivation(t *testing.T) {
	now := time.Now()
	item := newDueItem(now)
	assert.Equal(t, StateDue, item.State())

	require.NoError(t, item.BeginClaim(now))
	assert.Equal(t, StateClaimed, item.State())

	require.NoError(t, item.MarkSent("msg-1", now))
	assert.Equal(t, StateSent, item.State())

	item.Deactivate(now)
	assert.Equal(t, StateInactive, item.State())
}

func TestBeginClaim_RejectsIneligibleItems(t *testing.T) {
	now := time.Now()

	t.Run("not yet due", func(t *testing.T) {
		item := newDueItem(now)
		item.NextReviewAt = now.Add(time.Hour)
		assert.Error(t, item.BeginClaim(now))
	})

	t.Run("already claimed", func(t *testing.T) {
		item := newDueItem(now)
		require.NoError(t, item.BeginClaim(now))
		assert.Error(t, item.BeginClaim(now))
	})

	t.Run("inactive", func(t *testing.T) {
		item := newDueItem(now)
		item.Deactivate(now)
		assert.Error(t, item.BeginClaim(now))
	})
}

func TestMarkSent_RequiresClaim(t *testing.T) {
	now := time.Now()
	item := newDueItem(now)

	assert.Error(t, item.MarkSent("msg-1", now))

	require.NoError(t, item.BeginClaim(now))
	require.NoError(t, item.MarkSent("msg-1", now))
	require.NotNil(t, item.MessageID)
	assert.Equal(t, "msg-1", *item.MessageID)
	// sent implies still claimed
	assert.NotNil(t, item.ClaimedAt)
}

func TestCompleteReview_AdvancesScheduleAndClearsMarkers(t *testing.T) {
	now := time.Now()
	item := newDueItem(now)
	require.NoError(t, item.BeginClaim(now))
	require.NoError(t, item.MarkSent("msg-1", now))

	next := now.Add(24 * time.Hour)
	require.NoError(t, item.CompleteReview(1440, next, DifficultyNormal, now))

	assert.Equal(t, StateDue, item.State())
	assert.Equal(t, 1, item.ReviewCount)
	assert.Equal(t, 1440, item.IntervalMinutes)
	assert.Equal(t, next, item.NextReviewAt)
	assert.Nil(t, item.ClaimedAt)
	assert.Nil(t, item.SentAt)
	assert.Nil(t, item.MessageID)
	require.NotNil(t, item.DifficultyLast)
	assert.Equal(t, DifficultyNormal, *item.DifficultyLast)
	require.NotNil(t, item.LastReviewAt)
	assert.Equal(t, now, *item.LastReviewAt)
}

func TestCompleteReview_RejectsInactiveItem(t *testing.T) {
	now := time.Now()
	item := newDueItem(now)
	item.Deactivate(now)

	assert.Error(t, item.CompleteReview(10, now.Add(10*time.Minute), DifficultyHard, now))
}

func TestResetToDue_KeepsSchedule(t *testing.T) {
	now := time.Now()
	item := newDueItem(now)
	due := item.NextReviewAt
	require.NoError(t, item.BeginClaim(now))
	require.NoError(t, item.MarkSent("msg-1", now))

	item.ResetToDue(now)

	assert.Equal(t, StateDue, item.State())
	assert.Equal(t, due, item.NextReviewAt, "a timeout is a delivery failure, not a review")
	assert.True(t, item.EligibleForClaim(now))
}

func TestDifficultyValid(t *testing.T) {
	assert.True(t, DifficultyHard.Valid())
	assert.True(t, DifficultyVeryEasy.Valid())
	assert.False(t, Difficulty("impossible").Valid())
	assert.False(t, Difficulty("").Valid())
}
