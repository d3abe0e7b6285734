package database

import (
	"context"
	"errors"
	"time"

	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/example/vocabbot/pkg/models"
)

// Common store errors, checked with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrUnavailable marks a transient storage failure. Callers do not
	// retry; the periodic tick re-invokes the operation on its next
	// cycle.
	ErrUnavailable = errors.New("storage unavailable")
)

// ReviewStore is the persistence contract for review items. Two
// implementations satisfy it: the SQL-backed ReviewItemRepository and
// the in-memory MemoryStore used in tests.
//
// All cross-worker coordination runs through conditional state
// transitions on single items; implementations must make ClaimReviews
// a single atomic read-and-mark step.
type ReviewStore interface {
	// CreateOrGet returns the existing item for (userID, wordID) or
	// atomically creates one seeded with the policy's initial
	// schedule. Creation is idempotent: a second call returns the
	// same item and never resets an already-scheduled one.
	CreateOrGet(ctx context.Context, userID, wordID int64, now time.Time) (*models.ReviewItem, error)

	// GetByUserAndWord returns the item or ErrNotFound.
	GetByUserAndWord(ctx context.Context, userID, wordID int64) (*models.ReviewItem, error)

	// GetDueItems returns the user's claim-eligible items ordered by
	// next_review_at ascending, truncated at limit.
	GetDueItems(ctx context.Context, userID int64, now time.Time, limit int) ([]models.ReviewItem, error)

	// UpdateAfterReview applies a completed review: stores the new
	// schedule and difficulty, stamps last_review_at, increments the
	// review counter and clears the claim/sent markers.
	UpdateAfterReview(ctx context.Context, userID, wordID int64, schedule spaced_repetition.Schedule, difficulty models.Difficulty, now time.Time) error

	// Deactivate permanently excludes the item from scheduling. The
	// row is retained for history.
	Deactivate(ctx context.Context, userID, wordID int64, now time.Time) error

	// GetUserStats returns per-user counts.
	GetUserStats(ctx context.Context, userID int64, now time.Time) (*models.ReviewStats, error)

	// GetGlobalDueReviews returns claim-eligible items across all
	// users, ordered by next_review_at, paginated.
	GetGlobalDueReviews(ctx context.Context, now time.Time, limit, offset int) ([]models.ReviewItem, error)

	// ClaimReviews atomically selects up to limit eligible items,
	// oldest due first with a (user_id, word_id) tie-break, and marks
	// them claimed in the same step. Two concurrent calls never hand
	// out the same item.
	ClaimReviews(ctx context.Context, now time.Time, limit int) ([]models.ReviewItem, error)

	// MarkSent records the transport-assigned message id once dispatch
	// is confirmed. The item must be claimed.
	MarkSent(ctx context.Context, userID, wordID int64, messageID string, sentAt time.Time) error

	// ResetToDue clears the claim and dispatch markers, leaving the
	// schedule untouched so the item is immediately eligible again.
	ResetToDue(ctx context.Context, userID, wordID int64, now time.Time) error

	// ProcessTimeouts requeues items that were dispatched more than
	// timeoutMinutes ago without a recorded review, and returns how
	// many were reset.
	ProcessTimeouts(ctx context.Context, now time.Time, timeoutMinutes int) (int, error)

	// GetProcessingStats returns global pipeline counts.
	GetProcessingStats(ctx context.Context, now time.Time) (*models.ProcessingStats, error)
}

var (
	_ ReviewStore = (*ReviewItemRepository)(nil)
	_ ReviewStore = (*MemoryStore)(nil)
)
