package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetByID returns a user by Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := DB.GetContext(ctx, &user, rebind("SELECT * FROM users WHERE telegram_id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageError("failed to get user", err)
	}
	return &user, nil
}

// Upsert creates the user on first contact and refreshes profile
// fields on subsequent ones
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	query := rebind(`
		INSERT INTO users (telegram_id, username, first_name, last_name, is_admin, notification_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = EXCLUDED.updated_at
	`)
	if _, err := DB.ExecContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.LastName,
		user.IsAdmin, user.NotificationEnabled, now, now); err != nil {
		return storageError("failed to upsert user", err)
	}
	return nil
}

// SetNotificationEnabled toggles reminder delivery for a user
func (r *UserRepository) SetNotificationEnabled(ctx context.Context, id int64, enabled bool) error {
	query := rebind("UPDATE users SET notification_enabled = ?, updated_at = ? WHERE telegram_id = ?")
	result, err := DB.ExecContext(ctx, query, enabled, time.Now().UTC(), id)
	if err != nil {
		return storageError("failed to update user", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to get rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// Count returns the number of registered users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := DB.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, storageError("failed to count users", err)
	}
	return count, nil
}
