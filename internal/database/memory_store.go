package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/vocabbot/internal/spaced_repetition"
	"github.com/example/vocabbot/pkg/models"
)

type itemKey struct {
	userID int64
	wordID int64
}

// MemoryStore is the in-memory ReviewStore. A single mutex around
// every scan-and-mark step gives it the same atomicity guarantees as
// the SQL claim predicate; it exists for test determinism, not
// production concurrency.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[itemKey]*models.ReviewItem
	policy *spaced_repetition.Policy
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[itemKey]*models.ReviewItem),
		policy: spaced_repetition.NewPolicy(),
	}
}

func copyItem(item *models.ReviewItem) *models.ReviewItem {
	c := *item
	if item.LastReviewAt != nil {
		t := *item.LastReviewAt
		c.LastReviewAt = &t
	}
	if item.DifficultyLast != nil {
		d := *item.DifficultyLast
		c.DifficultyLast = &d
	}
	if item.ClaimedAt != nil {
		t := *item.ClaimedAt
		c.ClaimedAt = &t
	}
	if item.SentAt != nil {
		t := *item.SentAt
		c.SentAt = &t
	}
	if item.MessageID != nil {
		s := *item.MessageID
		c.MessageID = &s
	}
	return &c
}

func sortByDue(items []models.ReviewItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextReviewAt.Equal(items[j].NextReviewAt) {
			return items[i].NextReviewAt.Before(items[j].NextReviewAt)
		}
		if items[i].UserID != items[j].UserID {
			return items[i].UserID < items[j].UserID
		}
		return items[i].WordID < items[j].WordID
	})
}

// CreateOrGet returns the existing item or creates a new one seeded
// with the initial schedule
func (s *MemoryStore) CreateOrGet(ctx context.Context, userID, wordID int64, now time.Time) (*models.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey{userID, wordID}
	if item, ok := s.items[key]; ok {
		return copyItem(item), nil
	}

	initial := s.policy.InitialSchedule(now)
	item := &models.ReviewItem{
		UserID:          userID,
		WordID:          wordID,
		NextReviewAt:    initial.NextReviewAt,
		IntervalMinutes: initial.IntervalMinutes,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.items[key] = item
	return copyItem(item), nil
}

// GetByUserAndWord returns the item or ErrNotFound
func (s *MemoryStore) GetByUserAndWord(ctx context.Context, userID, wordID int64) (*models.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemKey{userID, wordID}]
	if !ok {
		return nil, fmt.Errorf("review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return copyItem(item), nil
}

// GetDueItems returns the user's claim-eligible items, oldest first
func (s *MemoryStore) GetDueItems(ctx context.Context, userID int64, now time.Time, limit int) ([]models.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.ReviewItem
	for _, item := range s.items {
		if item.UserID == userID && item.EligibleForClaim(now) {
			due = append(due, *copyItem(item))
		}
	}
	sortByDue(due)
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// UpdateAfterReview applies a completed review
func (s *MemoryStore) UpdateAfterReview(ctx context.Context, userID, wordID int64, schedule spaced_repetition.Schedule, difficulty models.Difficulty, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemKey{userID, wordID}]
	if !ok || !item.Active {
		return fmt.Errorf("active review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return item.CompleteReview(schedule.IntervalMinutes, schedule.NextReviewAt, difficulty, now)
}

// Deactivate soft-deletes the item
func (s *MemoryStore) Deactivate(ctx context.Context, userID, wordID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemKey{userID, wordID}]
	if !ok {
		return fmt.Errorf("review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	item.Deactivate(now)
	return nil
}

// GetUserStats returns per-user counts
func (s *MemoryStore) GetUserStats(ctx context.Context, userID int64, now time.Time) (*models.ReviewStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats models.ReviewStats
	for _, item := range s.items {
		if item.UserID != userID {
			continue
		}
		stats.TotalWords++
		stats.TotalReviews += item.ReviewCount
		if item.Active {
			stats.ActiveWords++
		}
		if item.EligibleForClaim(now) {
			stats.DueWords++
		}
	}
	return &stats, nil
}

// GetGlobalDueReviews returns claim-eligible items across all users
func (s *MemoryStore) GetGlobalDueReviews(ctx context.Context, now time.Time, limit, offset int) ([]models.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.ReviewItem
	for _, item := range s.items {
		if item.EligibleForClaim(now) {
			due = append(due, *copyItem(item))
		}
	}
	sortByDue(due)
	if offset >= len(due) {
		return nil, nil
	}
	due = due[offset:]
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ClaimReviews selects and marks eligible items under one lock so a
// concurrent call cannot hand out the same item
func (s *MemoryStore) ClaimReviews(ctx context.Context, now time.Time, limit int) ([]models.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*models.ReviewItem
	for _, item := range s.items {
		if item.EligibleForClaim(now) {
			eligible = append(eligible, item)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].NextReviewAt.Equal(eligible[j].NextReviewAt) {
			return eligible[i].NextReviewAt.Before(eligible[j].NextReviewAt)
		}
		if eligible[i].UserID != eligible[j].UserID {
			return eligible[i].UserID < eligible[j].UserID
		}
		return eligible[i].WordID < eligible[j].WordID
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]models.ReviewItem, 0, len(eligible))
	for _, item := range eligible {
		if err := item.BeginClaim(now); err != nil {
			return nil, err
		}
		claimed = append(claimed, *copyItem(item))
	}
	return claimed, nil
}

// MarkSent records the transport message id on a claimed item
func (s *MemoryStore) MarkSent(ctx context.Context, userID, wordID int64, messageID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemKey{userID, wordID}]
	if !ok || item.ClaimedAt == nil {
		return fmt.Errorf("claimed review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	return item.MarkSent(messageID, sentAt)
}

// ResetToDue clears the claim and dispatch markers
func (s *MemoryStore) ResetToDue(ctx context.Context, userID, wordID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemKey{userID, wordID}]
	if !ok {
		return fmt.Errorf("review item %d/%d: %w", userID, wordID, ErrNotFound)
	}
	item.ResetToDue(now)
	return nil
}

// ProcessTimeouts requeues sent-but-unacknowledged items older than
// the timeout
func (s *MemoryStore) ProcessTimeouts(ctx context.Context, now time.Time, timeoutMinutes int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-time.Duration(timeoutMinutes) * time.Minute)
	count := 0
	for _, item := range s.items {
		if item.SentAt != nil && item.ClaimedAt != nil && item.SentAt.Before(cutoff) {
			item.ResetToDue(now)
			count++
		}
	}
	return count, nil
}

// GetProcessingStats returns global pipeline counts
func (s *MemoryStore) GetProcessingStats(ctx context.Context, now time.Time) (*models.ProcessingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats models.ProcessingStats
	for _, item := range s.items {
		switch {
		case item.EligibleForClaim(now):
			stats.Due++
		case item.SentAt != nil:
			stats.AwaitingResponse++
		case item.ClaimedAt != nil:
			stats.InFlight++
		}
	}
	return &stats, nil
}
