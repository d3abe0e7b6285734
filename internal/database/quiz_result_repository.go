package database

import (
	"context"
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// QuizResultRepository handles database operations for quiz results
type QuizResultRepository struct{}

// NewQuizResultRepository creates a new repository instance
func NewQuizResultRepository() *QuizResultRepository {
	return &QuizResultRepository{}
}

// Create inserts a new quiz result
func (r *QuizResultRepository) Create(ctx context.Context, result *models.QuizResult) error {
	now := time.Now().UTC()
	query := rebind(`
		INSERT INTO quiz_results (user_id, quiz_type, total_words, correct_words, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	res, err := DB.ExecContext(ctx, query,
		result.UserID, result.QuizType, result.TotalWords, result.CorrectWords, result.Duration, now)
	if err != nil {
		return storageError("failed to create quiz result", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		result.ID = id
	}
	result.CreatedAt = now
	return nil
}

// GetRecentByUser returns a user's most recent quiz results
func (r *QuizResultRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]models.QuizResult, error) {
	var results []models.QuizResult
	query := rebind(`
		SELECT * FROM quiz_results
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`)
	if err := DB.SelectContext(ctx, &results, query, userID, limit); err != nil {
		return nil, storageError("failed to get quiz results", err)
	}
	return results, nil
}
