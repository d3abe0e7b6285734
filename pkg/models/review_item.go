package models

import (
	"fmt"
	"time"
)

// Difficulty is a user's self-reported recall difficulty for a word.
type Difficulty string

const (
	// DifficultyHard means the word was barely recalled or not at all
	DifficultyHard Difficulty = "hard"
	// DifficultyNormal means the word was recalled with some effort
	DifficultyNormal Difficulty = "normal"
	// DifficultyEasy means the word was recalled without much effort
	DifficultyEasy Difficulty = "easy"
	// DifficultyVeryEasy means the word was recalled instantly
	DifficultyVeryEasy Difficulty = "very_easy"
)

// Valid reports whether d is one of the known difficulty levels
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyHard, DifficultyNormal, DifficultyEasy, DifficultyVeryEasy:
		return true
	}
	return false
}

// ReviewState is the delivery-lifecycle state of a review item,
// derived from the nullable claimed_at/sent_at columns and the
// active flag.
type ReviewState string

const (
	// StateDue means the item is active and not reserved by any worker
	StateDue ReviewState = "due"
	// StateClaimed means a delivery worker has reserved the item
	StateClaimed ReviewState = "claimed"
	// StateSent means the reminder was dispatched and no review has
	// been recorded for it yet
	StateSent ReviewState = "sent"
	// StateInactive means the item is excluded from scheduling
	StateInactive ReviewState = "inactive"
)

// ReviewItem tracks a user's review schedule for a single word.
// Exactly one item exists per (user, word) pair.
type ReviewItem struct {
	UserID          int64       `json:"user_id" db:"user_id"`
	WordID          int64       `json:"word_id" db:"word_id"`
	NextReviewAt    time.Time   `json:"next_review_at" db:"next_review_at"`
	LastReviewAt    *time.Time  `json:"last_review_at" db:"last_review_at"`
	IntervalMinutes int         `json:"interval_minutes" db:"interval_minutes"`
	ReviewCount     int         `json:"review_count" db:"review_count"`
	DifficultyLast  *Difficulty `json:"difficulty_last" db:"difficulty_last"`
	Active          bool        `json:"active" db:"active"`
	ClaimedAt       *time.Time  `json:"claimed_at" db:"claimed_at"`
	SentAt          *time.Time  `json:"sent_at" db:"sent_at"`
	MessageID       *string     `json:"message_id" db:"message_id"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// State derives the lifecycle state from the nullable fields
func (i *ReviewItem) State() ReviewState {
	switch {
	case !i.Active:
		return StateInactive
	case i.SentAt != nil:
		return StateSent
	case i.ClaimedAt != nil:
		return StateClaimed
	default:
		return StateDue
	}
}

// EligibleForClaim reports whether a delivery worker may reserve the
// item at the given instant
func (i *ReviewItem) EligibleForClaim(now time.Time) bool {
	return i.Active && i.ClaimedAt == nil && !i.NextReviewAt.After(now)
}

// BeginClaim reserves the item for delivery. The item must be due.
func (i *ReviewItem) BeginClaim(now time.Time) error {
	if !i.EligibleForClaim(now) {
		return fmt.Errorf("item %d/%d is not eligible for claim (state %s)", i.UserID, i.WordID, i.State())
	}
	t := now
	i.ClaimedAt = &t
	i.UpdatedAt = now
	return nil
}

// MarkSent records that the transport confirmed dispatch of a
// reminder for this item. The item must be claimed.
func (i *ReviewItem) MarkSent(messageID string, now time.Time) error {
	if i.ClaimedAt == nil {
		return fmt.Errorf("item %d/%d is not claimed (state %s)", i.UserID, i.WordID, i.State())
	}
	t := now
	i.SentAt = &t
	i.MessageID = &messageID
	i.UpdatedAt = now
	return nil
}

// CompleteReview applies a finished review: stores the new schedule,
// increments the review counter and returns the item to the due pool.
func (i *ReviewItem) CompleteReview(intervalMinutes int, nextReviewAt time.Time, difficulty Difficulty, now time.Time) error {
	if !i.Active {
		return fmt.Errorf("item %d/%d is inactive", i.UserID, i.WordID)
	}
	t := now
	d := difficulty
	i.IntervalMinutes = intervalMinutes
	i.NextReviewAt = nextReviewAt
	i.LastReviewAt = &t
	i.DifficultyLast = &d
	i.ReviewCount++
	i.ClaimedAt = nil
	i.SentAt = nil
	i.MessageID = nil
	i.UpdatedAt = now
	return nil
}

// ResetToDue clears the claim and dispatch markers so the item becomes
// eligible again without touching its schedule. Used after dispatch
// failures and by the timeout sweep.
func (i *ReviewItem) ResetToDue(now time.Time) {
	i.ClaimedAt = nil
	i.SentAt = nil
	i.MessageID = nil
	i.UpdatedAt = now
}

// Deactivate permanently excludes the item from scheduling. The record
// is retained for history.
func (i *ReviewItem) Deactivate(now time.Time) {
	i.Active = false
	i.ClaimedAt = nil
	i.SentAt = nil
	i.MessageID = nil
	i.UpdatedAt = now
}
