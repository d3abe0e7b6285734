package delivery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/vocabbot/internal/database"
	"github.com/example/vocabbot/pkg/models"
)

// Notifier sends a reminder for a word through some transport and
// returns the transport-assigned message id.
type Notifier interface {
	Send(ctx context.Context, userID int64, word models.Word) (string, error)
}

// WordCatalog is the lookup the coordinator uses to enrich claimed
// items with display text.
type WordCatalog interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Word, error)
}

// Coordinator orchestrates the claim → dispatch → acknowledge cycle.
// Several coordinator instances may run against the same store; the
// store's atomic claim keeps them from double-sending.
type Coordinator struct {
	store      database.ReviewStore
	words      WordCatalog
	notifier   Notifier
	batchLimit int
}

// NewCoordinator creates a coordinator that claims at most batchLimit
// items per tick
func NewCoordinator(store database.ReviewStore, words WordCatalog, notifier Notifier, batchLimit int) *Coordinator {
	return &Coordinator{
		store:      store,
		words:      words,
		notifier:   notifier,
		batchLimit: batchLimit,
	}
}

// DeliverDue claims due items and dispatches a reminder for each,
// oldest first. Items whose dispatch fails, and items whose word has
// vanished from the catalog, are reset to due so the next tick can
// retry them; a single item's failure never aborts the batch. Returns
// the number of reminders sent.
func (c *Coordinator) DeliverDue(ctx context.Context, now time.Time) (int, error) {
	items, err := c.store.ClaimReviews(ctx, now, c.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to claim reviews: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.WordID] {
			seen[item.WordID] = true
			ids = append(ids, item.WordID)
		}
	}

	words, err := c.words.GetByIDs(ctx, ids)
	if err != nil {
		// Release the whole claim; the next tick retries
		c.releaseAll(ctx, items, now)
		return 0, fmt.Errorf("failed to look up words for delivery: %w", err)
	}
	byID := make(map[int64]models.Word, len(words))
	for _, w := range words {
		byID[w.ID] = w
	}

	sent := 0
	for _, item := range items {
		word, ok := byID[item.WordID]
		if !ok {
			log.Printf("Word %d referenced by review %d/%d is missing from the catalog", item.WordID, item.UserID, item.WordID)
			c.release(ctx, item, now)
			continue
		}

		messageID, err := c.notifier.Send(ctx, item.UserID, word)
		if err != nil {
			log.Printf("Failed to send reminder to user %d for word %d: %v", item.UserID, item.WordID, err)
			c.release(ctx, item, now)
			continue
		}

		if err := c.store.MarkSent(ctx, item.UserID, item.WordID, messageID, now); err != nil {
			// The reminder went out; the timeout sweep will requeue
			// the item if no review follows
			log.Printf("Failed to mark review %d/%d as sent: %v", item.UserID, item.WordID, err)
		}
		sent++
	}

	return sent, nil
}

func (c *Coordinator) release(ctx context.Context, item models.ReviewItem, now time.Time) {
	if err := c.store.ResetToDue(ctx, item.UserID, item.WordID, now); err != nil {
		log.Printf("Failed to reset review %d/%d to due: %v", item.UserID, item.WordID, err)
	}
}

func (c *Coordinator) releaseAll(ctx context.Context, items []models.ReviewItem, now time.Time) {
	for _, item := range items {
		c.release(ctx, item, now)
	}
}
