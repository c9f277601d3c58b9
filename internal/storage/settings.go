package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// Setting keys for the global notification toggles and the edit-size
// threshold.
const (
	SettingNotifyEdited    = "notify_edited"
	SettingNotifyDeleted   = "notify_deleted"
	SettingNotifyScheduled = "notify_scheduled"
	SettingEditThreshold   = "edit_threshold"
)

// Settings is the process-wide notification configuration.
type Settings struct {
	NotifyEdited    bool
	NotifyDeleted   bool
	NotifyScheduled bool
	// EditThreshold is the minimum number of changed characters an edit
	// must have before it is reported. Zero reports everything.
	EditThreshold int
}

// SettingsStore handles settings-related database operations.
type SettingsStore struct {
	db *Database
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(db *Database) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the current settings. Missing toggle rows read as enabled,
// a missing threshold row reads as zero.
func (s *SettingsStore) Get() (*Settings, error) {
	rows := []struct {
		Key   string `db:"key"`
		Value int    `db:"value"`
	}{}
	if err := s.db.Select(&rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := &Settings{NotifyEdited: true, NotifyDeleted: true, NotifyScheduled: true}
	for _, row := range rows {
		switch row.Key {
		case SettingNotifyEdited:
			settings.NotifyEdited = row.Value != 0
		case SettingNotifyDeleted:
			settings.NotifyDeleted = row.Value != 0
		case SettingNotifyScheduled:
			settings.NotifyScheduled = row.Value != 0
		case SettingEditThreshold:
			settings.EditThreshold = row.Value
		}
	}
	return settings, nil
}

// Toggle flips a boolean setting. A key with no row yet counts as enabled,
// so the first toggle turns it off.
func (s *SettingsStore) Toggle(key string) error {
	value := 1
	err := s.db.Get(&value, `SELECT value FROM settings WHERE key = ?`, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	query := `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.Exec(query, key, 1-value); err != nil {
		return fmt.Errorf("failed to toggle setting %s: %w", key, err)
	}
	return nil
}

// SetEditThreshold stores the minimum changed-characters count below which
// edits are ignored.
func (s *SettingsStore) SetEditThreshold(n int) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.Exec(query, SettingEditThreshold, n); err != nil {
		return fmt.Errorf("failed to set edit threshold: %w", err)
	}
	return nil
}

// UserMuted reports whether notifications about the given user are muted.
// Users without an override row are not muted.
func (s *SettingsStore) UserMuted(userID int64) (bool, error) {
	var muted bool
	err := s.db.Get(&muted, `SELECT muted FROM user_settings WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read user mute: %w", err)
	}
	return muted, nil
}

// ToggleUserMuted flips the mute override for a user and returns the new
// state.
func (s *SettingsStore) ToggleUserMuted(userID int64) (bool, error) {
	muted, err := s.UserMuted(userID)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO user_settings (user_id, muted)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET muted = excluded.muted
	`
	if _, err := s.db.Exec(query, userID, !muted); err != nil {
		return false, fmt.Errorf("failed to toggle user mute: %w", err)
	}
	return !muted, nil
}
