package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/example/vocabbot/pkg/models"
)

func TestRecorder_RecordReviewAdvancesSchedule(t *testing.T) {
	store := database.NewMemoryStore()
	recorder := NewRecorder(store, spaced_repetition.NewPolicy())
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.CreateOrGet(ctx, 1, 10, now.Add(-time.Hour))
	require.NoError(t, err)

	// first review: growth factor is 1, full base interval
	schedule, err := recorder.RecordReview(ctx, 1, 10, models.DifficultyNormal, now)
	require.NoError(t, err)
	assert.Equal(t, spaced_repetition.BaseIntervalNormal, schedule.IntervalMinutes)
	assert.Equal(t, now.Add(24*time.Hour), schedule.NextReviewAt)

	item, err := store.GetByUserAndWord(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, item.ReviewCount)
	assert.Equal(t, models.StateDue, item.State())

	// later reviews: interval scales with the prior review count
	later := schedule.NextReviewAt.Add(time.Minute)
	schedule, err = recorder.RecordReview(ctx, 1, 10, models.DifficultyNormal, later)
	require.NoError(t, err)
	assert.Equal(t, spaced_repetition.BaseIntervalNormal, schedule.IntervalMinutes)

	later = schedule.NextReviewAt.Add(time.Minute)
	schedule, err = recorder.RecordReview(ctx, 1, 10, models.DifficultyNormal, later)
	require.NoError(t, err)
	assert.Equal(t, spaced_repetition.BaseIntervalNormal*2, schedule.IntervalMinutes)
}

func TestRecorder_RecordReviewCreatesMissingItem(t *testing.T) {
	store := database.NewMemoryStore()
	recorder := NewRecorder(store, spaced_repetition.NewPolicy())
	ctx := context.Background()
	now := time.Now().UTC()

	// no prior CreateOrGet: recording still works
	schedule, err := recorder.RecordReview(ctx, 1, 10, models.DifficultyHard, now)
	require.NoError(t, err)
	assert.Equal(t, spaced_repetition.BaseIntervalHard, schedule.IntervalMinutes)

	item, err := store.GetByUserAndWord(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, item.ReviewCount)
}

func TestRecorder_RecordReviewClearsDeliveryMarkers(t *testing.T) {
	store := database.NewMemoryStore()
	recorder := NewRecorder(store, spaced_repetition.NewPolicy())
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.CreateOrGet(ctx, 1, 10, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = store.ClaimReviews(ctx, now, 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkSent(ctx, 1, 10, "msg-1", now))

	_, err = recorder.RecordReview(ctx, 1, 10, models.DifficultyEasy, now)
	require.NoError(t, err)

	item, err := store.GetByUserAndWord(ctx, 1, 10)
	require.NoError(t, err)
	assert.Nil(t, item.ClaimedAt)
	assert.Nil(t, item.SentAt)
	assert.Nil(t, item.MessageID)
}

func TestRecorder_RejectsUnknownDifficulty(t *testing.T) {
	store := database.NewMemoryStore()
	recorder := NewRecorder(store, spaced_repetition.NewPolicy())

	_, err := recorder.RecordReview(context.Background(), 1, 10, models.Difficulty("impossible"), time.Now().UTC())
	assert.Error(t, err)
}
