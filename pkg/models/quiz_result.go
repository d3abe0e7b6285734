package models

import "time"

// QuizResult tracks the outcome of a single quiz session
type QuizResult struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	QuizType     string    `json:"quiz_type" db:"quiz_type"` // e.g., "multiple_choice"
	TotalWords   int       `json:"total_words" db:"total_words"`
	CorrectWords int       `json:"correct_words" db:"correct_words"`
	Duration     int       `json:"duration" db:"duration"` // Duration in seconds
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
