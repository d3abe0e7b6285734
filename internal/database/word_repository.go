package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/vocabbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// WordRepository handles database operations for the word catalog
type WordRepository struct{}

// NewWordRepository creates a new repository instance
func NewWordRepository() *WordRepository {
	return &WordRepository{}
}

// GetAll returns all words ordered alphabetically
func (r *WordRepository) GetAll(ctx context.Context) ([]models.Word, error) {
	var words []models.Word
	err := DB.SelectContext(ctx, &words, "SELECT * FROM words ORDER BY word")
	if err != nil {
		return nil, storageError("failed to get words", err)
	}
	return words, nil
}

// GetByID returns a word by ID
func (r *WordRepository) GetByID(ctx context.Context, id int64) (*models.Word, error) {
	var word models.Word
	err := DB.GetContext(ctx, &word, rebind("SELECT * FROM words WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("word %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageError("failed to get word by ID", err)
	}
	return &word, nil
}

// GetByIDs returns the words with the given ids, used to enrich
// claimed review items with display text for delivery
func (r *WordRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Word, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM words WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build words query: %v", err)
	}
	var words []models.Word
	if err := DB.SelectContext(ctx, &words, rebind(query), args...); err != nil {
		return nil, storageError("failed to get words by ids", err)
	}
	return words, nil
}

// GetRandom returns up to limit random words, used by the quiz
func (r *WordRepository) GetRandom(ctx context.Context, limit int) ([]models.Word, error) {
	var words []models.Word
	// RANDOM() works on both postgres and sqlite
	query := rebind("SELECT * FROM words ORDER BY RANDOM() LIMIT ?")
	if err := DB.SelectContext(ctx, &words, query, limit); err != nil {
		return nil, storageError("failed to get random words", err)
	}
	return words, nil
}

// Create inserts a new word
func (r *WordRepository) Create(ctx context.Context, word *models.Word) error {
	now := time.Now().UTC()
	query := rebind(`
		INSERT INTO words (word, translation, description, examples, difficulty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	result, err := DB.ExecContext(ctx, query,
		word.Word, word.Translation, word.Description, word.Examples, word.Difficulty, now, now)
	if err != nil {
		return storageError("failed to create word", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		word.ID = id
	}
	word.CreatedAt = now
	word.UpdatedAt = now
	return nil
}

// CreateOrUpdate upserts a word by its unique text, used by the
// catalog importer
func (r *WordRepository) CreateOrUpdate(ctx context.Context, word *models.Word) error {
	now := time.Now().UTC()
	query := rebind(`
		INSERT INTO words (word, translation, description, examples, difficulty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (word) DO UPDATE SET
			translation = EXCLUDED.translation,
			description = EXCLUDED.description,
			examples = EXCLUDED.examples,
			difficulty = EXCLUDED.difficulty,
			updated_at = EXCLUDED.updated_at
	`)
	if _, err := DB.ExecContext(ctx, query,
		word.Word, word.Translation, word.Description, word.Examples, word.Difficulty, now, now); err != nil {
		return storageError("failed to upsert word", err)
	}
	return DB.GetContext(ctx, &word.ID, rebind("SELECT id FROM words WHERE word = ?"), word.Word)
}

// Count returns the catalog size
func (r *WordRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := DB.GetContext(ctx, &count, "SELECT COUNT(*) FROM words"); err != nil {
		return 0, storageError("failed to count words", err)
	}
	return count, nil
}
