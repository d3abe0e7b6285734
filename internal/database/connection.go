package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect establishes a connection to the database. dbType is
// "postgres" or "sqlite"; dsn is the postgres URL or the sqlite file
// path (empty means data/vocabbot.db).
func Connect(dbType, dsn string) error {
	driver := "postgres"
	if dbType == "sqlite" {
		driver = "sqlite3"
		if dsn == "" {
			dataDir := "data"
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %v", err)
			}
			dsn = filepath.Join(dataDir, "vocabbot.db")
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %v", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	DB = db

	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// rebind translates ? placeholders into the connected driver's style
func rebind(query string) string {
	return DB.Rebind(query)
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	serial := "BIGSERIAL PRIMARY KEY"
	if DB.DriverName() == "sqlite3" {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT %s,
			notification_enabled BOOLEAN NOT NULL DEFAULT %s,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, "FALSE", "TRUE"),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS words (
			id %s,
			word TEXT NOT NULL UNIQUE,
			translation TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			examples TEXT NOT NULL DEFAULT '',
			difficulty INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, serial),
		`
		CREATE TABLE IF NOT EXISTS review_items (
			user_id BIGINT NOT NULL,
			word_id BIGINT NOT NULL,
			next_review_at TIMESTAMP NOT NULL,
			last_review_at TIMESTAMP,
			interval_minutes INTEGER NOT NULL DEFAULT 0,
			review_count INTEGER NOT NULL DEFAULT 0,
			difficulty_last TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			claimed_at TIMESTAMP,
			sent_at TIMESTAMP,
			message_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, word_id),
			FOREIGN KEY (word_id) REFERENCES words(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_due
			ON review_items (next_review_at)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS quiz_results (
			id %s,
			user_id BIGINT NOT NULL,
			quiz_type TEXT NOT NULL,
			total_words INTEGER NOT NULL,
			correct_words INTEGER NOT NULL,
			duration INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`, serial),
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %v", err)
		}
	}

	return nil
}
