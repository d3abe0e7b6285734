package models

// ReviewStats summarizes a single user's review items
type ReviewStats struct {
	TotalWords   int `json:"total_words" db:"total_words"`
	ActiveWords  int `json:"active_words" db:"active_words"`
	DueWords     int `json:"due_words" db:"due_words"`
	TotalReviews int `json:"total_reviews" db:"total_reviews"`
}

// ProcessingStats summarizes the global delivery pipeline
type ProcessingStats struct {
	Due              int `json:"due" db:"due"`
	InFlight         int `json:"in_flight" db:"in_flight"`
	AwaitingResponse int `json:"awaiting_response" db:"awaiting_response"`
}
