package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/pkg/models"
)

// fakeCatalog serves a fixed word set, optionally failing every lookup.
type fakeCatalog struct {
	words map[int64]models.Word
	err   error
}

func (c *fakeCatalog) GetByIDs(ctx context.Context, ids []int64) ([]models.Word, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []models.Word
	for _, id := range ids {
		if w, ok := c.words[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

// fakeNotifier records sends and fails for user ids in failFor.
type fakeNotifier struct {
	sent    []int64 // word ids in dispatch order
	failFor map[int64]bool
	nextID  int
}

func (n *fakeNotifier) Send(ctx context.Context, userID int64, word models.Word) (string, error) {
	if n.failFor[userID] {
		return "", errors.New("transport rejected message")
	}
	n.nextID++
	n.sent = append(n.sent, word.ID)
	return fmt.Sprintf("msg-%d", n.nextID), nil
}

func seedCatalogAndItems(t *testing.T, store *database.MemoryStore, catalog *fakeCatalog, now time.Time, pairs ...[2]int64) {
	t.Helper()
	for _, p := range pairs {
		userID, wordID := p[0], p[1]
		catalog.words[wordID] = models.Word{ID: wordID, Word: fmt.Sprintf("word-%d", wordID), Translation: "t"}
		_, err := store.CreateOrGet(context.Background(), userID, wordID, now.Add(-time.Hour))
		require.NoError(t, err)
	}
}

func TestCoordinator_DeliverDueMarksSent(t *testing.T) {
	store := database.NewMemoryStore()
	catalog := &fakeCatalog{words: make(map[int64]models.Word)}
	notifier := &fakeNotifier{failFor: make(map[int64]bool)}
	now := time.Now().UTC()
	ctx := context.Background()

	seedCatalogAndItems(t, store, catalog, now, [2]int64{1, 10}, [2]int64{2, 11})

	coord := NewCoordinator(store, catalog, notifier, 20)
	sent, err := coord.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, notifier.sent, 2)

	for _, p := range [][2]int64{{1, 10}, {2, 11}} {
		item, err := store.GetByUserAndWord(ctx, p[0], p[1])
		require.NoError(t, err)
		assert.Equal(t, models.StateSent, item.State())
		require.NotNil(t, item.MessageID)
	}

	// already-sent items are not claimed again
	sent, err = coord.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestCoordinator_DispatchFailureResetsToDue(t *testing.T) {
	store := database.NewMemoryStore()
	catalog := &fakeCatalog{words: make(map[int64]models.Word)}
	notifier := &fakeNotifier{failFor: map[int64]bool{2: true}}
	now := time.Now().UTC()
	ctx := context.Background()

	seedCatalogAndItems(t, store, catalog, now, [2]int64{1, 10}, [2]int64{2, 11})

	coord := NewCoordinator(store, catalog, notifier, 20)
	sent, err := coord.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "one item's failure must not abort the batch")

	delivered, err := store.GetByUserAndWord(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StateSent, delivered.State())

	failed, err := store.GetByUserAndWord(ctx, 2, 11)
	require.NoError(t, err)
	assert.Equal(t, models.StateDue, failed.State())
	assert.True(t, failed.EligibleForClaim(now), "failed dispatch retries on the next tick")
}

func TestCoordinator_MissingWordResetsToDue(t *testing.T) {
	store := database.NewMemoryStore()
	catalog := &fakeCatalog{words: make(map[int64]models.Word)}
	notifier := &fakeNotifier{failFor: make(map[int64]bool)}
	now := time.Now().UTC()
	ctx := context.Background()

	seedCatalogAndItems(t, store, catalog, now, [2]int64{1, 10})
	// an item whose word is gone from the catalog
	_, err := store.CreateOrGet(ctx, 1, 99, now.Add(-time.Hour))
	require.NoError(t, err)

	coord := NewCoordinator(store, catalog, notifier, 20)
	sent, err := coord.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	orphan, err := store.GetByUserAndWord(ctx, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, models.StateDue, orphan.State())
}

func TestCoordinator_CatalogFailureReleasesWholeBatch(t *testing.T) {
	store := database.NewMemoryStore()
	catalog := &fakeCatalog{words: make(map[int64]models.Word), err: errors.New("catalog down")}
	notifier := &fakeNotifier{failFor: make(map[int64]bool)}
	now := time.Now().UTC()
	ctx := context.Background()

	seedCatalogAndItems(t, store, &fakeCatalog{words: catalog.words}, now, [2]int64{1, 10}, [2]int64{2, 11})

	coord := NewCoordinator(store, catalog, notifier, 20)
	_, err := coord.DeliverDue(ctx, now)
	require.Error(t, err)
	assert.Empty(t, notifier.sent)

	// everything claimed was released for the next tick
	due, err := store.GetGlobalDueReviews(ctx, now, 10, 0)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestCoordinator_RespectsBatchLimit(t *testing.T) {
	store := database.NewMemoryStore()
	catalog := &fakeCatalog{words: make(map[int64]models.Word)}
	notifier := &fakeNotifier{failFor: make(map[int64]bool)}
	now := time.Now().UTC()
	ctx := context.Background()

	for w := int64(1); w <= 5; w++ {
		seedCatalogAndItems(t, store, catalog, now, [2]int64{1, w})
	}

	coord := NewCoordinator(store, catalog, notifier, 2)
	sent, err := coord.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}
