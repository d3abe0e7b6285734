package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/example/vocabbot/pkg/models"
)

// ReviewItemRepository is the SQL-backed ReviewStore. It works against
// both postgres and sqlite through the shared sqlx connection; all
// timestamps are passed as UTC query arguments so both backends share
// one query text.
type ReviewItemRepository struct {
	policy *spaced_repetition.Policy
}

// NewReviewItemRepository creates a new repository instance
func NewReviewItemRepository() *ReviewItemRepository {
	return &ReviewItemRepository{policy: spaced_repetition.NewPolicy()}
}

// storageError marks a driver failure as the storage-unavailable
// condition while keeping the cause in the chain.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}

// CreateOrGet returns the existing item or creates one seeded with the
// initial schedule. The insert is conditional on the primary key, so
// concurrent calls for the same pair converge on a single row.
func (r *ReviewItemRepository) CreateOrGet(ctx context.Context, userID, wordID int64, now time.Time) (*models.ReviewItem, error) {
	now = now.UTC()
	initial := r.policy.InitialSchedule(now)

	query := rebind(`
		INSERT INTO review_items (
			user_id, word_id, next_review_at, interval_minutes,
			review_count, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, 0, TRUE, ?, ?)
		ON CONFLICT (user_id, word_id) DO NOTHING
	`)
	_, err := DB.ExecContext(ctx, query,
		userID, wordID, initial.NextReviewAt, initial.IntervalMinutes, now, now)
	if err != nil {
		return nil, storageError("failed to create review item", err)
	}

	return r.GetByUserAndWord(ctx, userID, wordID)
}

// GetByUserAndWord returns the item for a (user, word) pair
func (r *ReviewItemRepository) GetByUserAndWord(ctx context.Context, userID, wordID int64) (*models.ReviewItem, error) {
	var item models.ReviewItem
	query := rebind("SELECT * FROM review_items WHERE user_id = ? AND word_id = ?")
	err := DB.GetContext(ctx, &item, query, userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	if err != nil {
		return nil, storageError("failed to get review item", err)
	}
	return &item, nil
}

// GetDueItems returns claim-eligible items for one user, oldest first
func (r *ReviewItemRepository) GetDueItems(ctx context.Context, userID int64, now time.Time, limit int) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := rebind(`
		SELECT * FROM review_items
		WHERE user_id = ? AND active = TRUE AND claimed_at IS NULL AND next_review_at <= ?
		ORDER BY next_review_at ASC, word_id ASC
		LIMIT ?
	`)
	if err := DB.SelectContext(ctx, &items, query, userID, now.UTC(), limit); err != nil {
		return nil, storageError("failed to get due items", err)
	}
	return items, nil
}

// UpdateAfterReview applies a completed review to the row
func (r *ReviewItemRepository) UpdateAfterReview(ctx context.Context, userID, wordID int64, schedule spaced_repetition.Schedule, difficulty models.Difficulty, now time.Time) error {
	now = now.UTC()
	query := rebind(`
		UPDATE review_items SET
			interval_minutes = ?,
			next_review_at = ?,
			difficulty_last = ?,
			last_review_at = ?,
			review_count = review_count + 1,
			claimed_at = NULL,
			sent_at = NULL,
			message_id = NULL,
			updated_at = ?
		WHERE user_id = ? AND word_id = ? AND active = TRUE
	`)
	result, err := DB.ExecContext(ctx, query,
		schedule.IntervalMinutes, schedule.NextReviewAt.UTC(), string(difficulty), now, now,
		userID, wordID)
	if err != nil {
		return storageError("failed to update review item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to get rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("active review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return nil
}

// Deactivate soft-deletes the item, keeping the row for history
func (r *ReviewItemRepository) Deactivate(ctx context.Context, userID, wordID int64, now time.Time) error {
	query := rebind(`
		UPDATE review_items SET
			active = FALSE, claimed_at = NULL, sent_at = NULL, message_id = NULL, updated_at = ?
		WHERE user_id = ? AND word_id = ?
	`)
	result, err := DB.ExecContext(ctx, query, now.UTC(), userID, wordID)
	if err != nil {
		return storageError("failed to deactivate review item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to get rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return nil
}

// GetUserStats returns per-user counts over the user's items
func (r *ReviewItemRepository) GetUserStats(ctx context.Context, userID int64, now time.Time) (*models.ReviewStats, error) {
	var stats models.ReviewStats
	query := rebind(`
		SELECT
			COUNT(*) AS total_words,
			COUNT(*) FILTER (WHERE active) AS active_words,
			COUNT(*) FILTER (WHERE active AND claimed_at IS NULL AND next_review_at <= ?) AS due_words,
			COALESCE(SUM(review_count), 0) AS total_reviews
		FROM review_items
		WHERE user_id = ?
	`)
	if err := DB.GetContext(ctx, &stats, query, now.UTC(), userID); err != nil {
		return nil, storageError("failed to get user stats", err)
	}
	return &stats, nil
}

// GetGlobalDueReviews returns claim-eligible items across all users
func (r *ReviewItemRepository) GetGlobalDueReviews(ctx context.Context, now time.Time, limit, offset int) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := rebind(`
		SELECT * FROM review_items
		WHERE active = TRUE AND claimed_at IS NULL AND next_review_at <= ?
		ORDER BY next_review_at ASC, user_id ASC, word_id ASC
		LIMIT ? OFFSET ?
	`)
	if err := DB.SelectContext(ctx, &items, query, now.UTC(), limit, offset); err != nil {
		return nil, storageError("failed to get global due reviews", err)
	}
	return items, nil
}

// ClaimReviews reserves up to limit eligible items in a single
// conditional update keyed on the eligibility predicate. A row leaves
// the eligible set the instant claimed_at is stamped, so a concurrent
// worker cannot select it again.
func (r *ReviewItemRepository) ClaimReviews(ctx context.Context, now time.Time, limit int) ([]models.ReviewItem, error) {
	now = now.UTC()

	var query string
	if DB.DriverName() == "postgres" {
		query = `
			UPDATE review_items SET claimed_at = ?, updated_at = ?
			WHERE (user_id, word_id) IN (
				SELECT user_id, word_id FROM review_items
				WHERE active = TRUE AND claimed_at IS NULL AND next_review_at <= ?
				ORDER BY next_review_at ASC, user_id ASC, word_id ASC
				LIMIT ?
				FOR UPDATE SKIP LOCKED
			)
			RETURNING *
		`
	} else {
		// sqlite serializes writers on a single connection; rowid
		// stands in for the composite key, which tuple-IN can't use
		query = `
			UPDATE review_items SET claimed_at = ?, updated_at = ?
			WHERE rowid IN (
				SELECT rowid FROM review_items
				WHERE active = TRUE AND claimed_at IS NULL AND next_review_at <= ?
				ORDER BY next_review_at ASC, user_id ASC, word_id ASC
				LIMIT ?
			)
			RETURNING *
		`
	}

	rows, err := DB.QueryxContext(ctx, rebind(query), now, now, now, limit)
	if err != nil {
		return nil, storageError("failed to claim reviews", err)
	}
	defer rows.Close()

	var items []models.ReviewItem
	for rows.Next() {
		var item models.ReviewItem
		if err := rows.StructScan(&item); err != nil {
			return nil, storageError("failed to scan claimed review", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("failed to claim reviews", err)
	}

	// RETURNING row order is unspecified; hand items out oldest first
	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextReviewAt.Equal(items[j].NextReviewAt) {
			return items[i].NextReviewAt.Before(items[j].NextReviewAt)
		}
		if items[i].UserID != items[j].UserID {
			return items[i].UserID < items[j].UserID
		}
		return items[i].WordID < items[j].WordID
	})

	return items, nil
}

// MarkSent records the transport message id; the update is conditioned
// on the row still being claimed
func (r *ReviewItemRepository) MarkSent(ctx context.Context, userID, wordID int64, messageID string, sentAt time.Time) error {
	query := rebind(`
		UPDATE review_items SET sent_at = ?, message_id = ?, updated_at = ?
		WHERE user_id = ? AND word_id = ? AND claimed_at IS NOT NULL
	`)
	result, err := DB.ExecContext(ctx, query, sentAt.UTC(), messageID, sentAt.UTC(), userID, wordID)
	if err != nil {
		return storageError("failed to mark review sent", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to get rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("claimed review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return nil
}

// ResetToDue makes the item immediately eligible again without
// touching its schedule
func (r *ReviewItemRepository) ResetToDue(ctx context.Context, userID, wordID int64, now time.Time) error {
	query := rebind(`
		UPDATE review_items SET claimed_at = NULL, sent_at = NULL, message_id = NULL, updated_at = ?
		WHERE user_id = ? AND word_id = ?
	`)
	result, err := DB.ExecContext(ctx, query, now.UTC(), userID, wordID)
	if err != nil {
		return storageError("failed to reset review item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to get rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return nil
}

// ProcessTimeouts requeues items dispatched more than timeoutMinutes
// ago without a recorded review. The schedule is left unchanged: a
// timeout is a delivery failure, not a completed review.
func (r *ReviewItemRepository) ProcessTimeouts(ctx context.Context, now time.Time, timeoutMinutes int) (int, error) {
	now = now.UTC()
	cutoff := now.Add(-time.Duration(timeoutMinutes) * time.Minute)
	query := rebind(`
		UPDATE review_items SET claimed_at = NULL, sent_at = NULL, message_id = NULL, updated_at = ?
		WHERE sent_at IS NOT NULL AND claimed_at IS NOT NULL AND sent_at < ?
	`)
	result, err := DB.ExecContext(ctx, query, now, cutoff)
	if err != nil {
		return 0, storageError("failed to process timeouts", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("failed to get rows affected", err)
	}
	return int(rows), nil
}

// GetProcessingStats returns global pipeline counts
func (r *ReviewItemRepository) GetProcessingStats(ctx context.Context, now time.Time) (*models.ProcessingStats, error) {
	var stats models.ProcessingStats
	query := rebind(`
		SELECT
			COUNT(*) FILTER (WHERE active AND claimed_at IS NULL AND next_review_at <= ?) AS due,
			COUNT(*) FILTER (WHERE claimed_at IS NOT NULL AND sent_at IS NULL) AS in_flight,
			COUNT(*) FILTER (WHERE sent_at IS NOT NULL) AS awaiting_response
		FROM review_items
	`)
	if err := DB.GetContext(ctx, &stats, query, now.UTC()); err != nil {
		return nil, storageError("failed to get processing stats", err)
	}
	return &stats, nil
}
