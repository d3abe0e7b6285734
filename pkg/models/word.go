package models

import "time"

// Word represents a vocabulary entry in the catalog
type Word struct {
	ID          int64     `json:"id" db:"id"`
	Word        string    `json:"word" db:"word"`
	Translation string    `json:"translation" db:"translation"`
	Description string    `json:"description" db:"description"`
	Examples    string    `json:"examples" db:"examples"`
	Difficulty  int       `json:"difficulty" db:"difficulty"` // 1-5 scale of difficulty
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
