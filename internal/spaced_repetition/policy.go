package spaced_repetition

import (
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// Base review intervals in minutes per difficulty level. The hardest
// rating comes back within minutes, easier ratings on a day scale.
const (
	BaseIntervalHard     = 10            // 10 minutes
	BaseIntervalNormal   = 24 * 60       // 1 day
	BaseIntervalEasy     = 3 * 24 * 60   // 3 days
	BaseIntervalVeryEasy = 7 * 24 * 60   // 1 week
)

// Schedule is the result of a policy computation
type Schedule struct {
	IntervalMinutes int
	NextReviewAt    time.Time
}

// Policy computes when a word should next be reviewed based on the
// user's self-reported difficulty and how many reviews the word has
// already been through. The policy is pure: no state, no I/O.
type Policy struct {
	// Base intervals in minutes per difficulty level
	BaseIntervals map[models.Difficulty]int
}

// NewPolicy creates a policy with the default base intervals
func NewPolicy() *Policy {
	return &Policy{
		BaseIntervals: map[models.Difficulty]int{
			models.DifficultyHard:     BaseIntervalHard,
			models.DifficultyNormal:   BaseIntervalNormal,
			models.DifficultyEasy:     BaseIntervalEasy,
			models.DifficultyVeryEasy: BaseIntervalVeryEasy,
		},
	}
}

// BaseInterval returns the base interval in minutes for a difficulty
// level. Unknown levels fall back to the hardest base so a malformed
// rating can only shorten an interval, never stretch it.
func (p *Policy) BaseInterval(difficulty models.Difficulty) int {
	if base, ok := p.BaseIntervals[difficulty]; ok {
		return base
	}
	return BaseIntervalHard
}

// ComputeNextSchedule returns the next interval and due timestamp for
// a review completed at now. The growth factor is the review count
// prior to this review, floored at 1 so a first-ever review still
// gets the full base interval. previousIntervalMinutes is part of the
// contract but unused by the fixed-base formula.
func (p *Policy) ComputeNextSchedule(now time.Time, previousIntervalMinutes, previousReviewCount int, difficulty models.Difficulty) Schedule {
	_ = previousIntervalMinutes

	growth := previousReviewCount
	if growth < 1 {
		growth = 1
	}

	interval := p.BaseInterval(difficulty) * growth
	return Schedule{
		IntervalMinutes: interval,
		NextReviewAt:    now.Add(time.Duration(interval) * time.Minute),
	}
}

// InitialSchedule seeds a brand-new item using the hardest base
// interval, used when a word first needs reinforcement.
func (p *Policy) InitialSchedule(now time.Time) Schedule {
	interval := p.BaseInterval(models.DifficultyHard)
	return Schedule{
		IntervalMinutes: interval,
		NextReviewAt:    now.Add(time.Duration(interval) * time.Minute),
	}
}
