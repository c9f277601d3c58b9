package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the sqlx.DB connection.
type Database struct {
	*sqlx.DB
}

// schema defines the database tables.
//
// message_actions carries no foreign key on purpose: action rows are an
// append-only audit log that must outlive the message they describe (a
// "deleted" action is recorded against a message that is about to be
// removed). Each action row snapshots the author's user_id for the same
// reason, so user-scoped history never depends on the message row still
// existing. media_files does cascade, since a media row without its
// message is meaningless.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    first_seen DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    chat_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    user_id INTEGER,
    text TEXT NOT NULL,
    date DATETIME NOT NULL,
    is_forwarded INTEGER NOT NULL DEFAULT 0,
    forward_from TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (chat_id, message_id),
    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE TABLE IF NOT EXISTS media_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    file_id TEXT NOT NULL,
    media_type TEXT NOT NULL,
    local_path TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (chat_id, message_id) REFERENCES messages(chat_id, message_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS message_actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL DEFAULT 0,
    action TEXT NOT NULL,
    old_text TEXT NOT NULL DEFAULT '',
    new_text TEXT,
    action_date DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id INTEGER PRIMARY KEY,
    muted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_media_files_message ON media_files(chat_id, message_id);
CREATE INDEX IF NOT EXISTS idx_message_actions_message ON message_actions(chat_id, message_id);
CREATE INDEX IF NOT EXISTS idx_message_actions_user ON message_actions(user_id);
`

// defaultSettings seeds the global toggles on first start. INSERT OR IGNORE
// keeps user-modified values across restarts.
const defaultSettings = `
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('notify_edited', 1),
    ('notify_deleted', 1),
    ('notify_scheduled', 1),
    ('edit_threshold', 0);
`

// NewDatabase creates a new database connection and initializes the schema.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := db.Exec(defaultSettings); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.DB.Close()
}
