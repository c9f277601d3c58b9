package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrvasil/telegram-spybot/internal/media"
	"github.com/mrvasil/telegram-spybot/pkg/logger"
)

// MessageStore handles message-related database operations and owns the
// attachment storage directory.
type MessageStore struct {
	db       *Database
	mediaDir string
}

// NewMessageStore creates a new message store. The media directory is
// created up front so download paths handed to the caller are writable.
func NewMessageStore(db *Database, mediaDir string) (*MessageStore, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &MessageStore{db: db, mediaDir: mediaDir}, nil
}

// Save records one observed message: upserts the sender, writes the message
// row (replacing any previous revision) and one media row per attachment.
// It returns the local path / file id pairs the caller should download;
// stickers get a media row but no download entry.
//
// The stored text is the caption, else the text, else a single space, so
// later diffing never sees an empty value.
func (s *MessageStore) Save(m *InboundMessage) ([]Download, error) {
	text := m.Caption
	if text == "" {
		text = m.Text
	}
	if text == "" {
		text = " "
	}

	isForwarded, forwardFrom := forwardLabel(m.Forward)

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin save: %w", err)
	}
	defer tx.Rollback()

	userQuery := `
		INSERT INTO users (user_id, username)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username
	`
	if _, err := tx.Exec(userQuery, m.UserID, m.Username); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// Upsert instead of INSERT OR REPLACE: a REPLACE would delete and
	// re-insert the row, cascading away the media rows of the previous
	// revision before we mean to.
	msgQuery := `
		INSERT INTO messages (chat_id, message_id, user_id, text, date, is_forwarded, forward_from)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, message_id) DO UPDATE SET
			user_id = excluded.user_id,
			text = excluded.text,
			date = excluded.date,
			is_forwarded = excluded.is_forwarded,
			forward_from = excluded.forward_from
	`
	if _, err := tx.Exec(msgQuery, m.ChatID, m.MessageID, m.UserID, text, m.Date, isForwarded, forwardFrom); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	// Replaying a message replaces its media descriptors wholesale, keeping
	// the operation idempotent.
	if _, err := tx.Exec(`DELETE FROM media_files WHERE chat_id = ? AND message_id = ?`, m.ChatID, m.MessageID); err != nil {
		return nil, fmt.Errorf("failed to clear media rows: %w", err)
	}

	var downloads []Download
	for _, att := range m.Attachments {
		localPath := ""
		if att.Kind != media.KindSticker {
			localPath = s.mediaPath(att)
		}

		mediaQuery := `
			INSERT INTO media_files (chat_id, message_id, file_id, media_type, local_path)
			VALUES (?, ?, ?, ?, ?)
		`
		if _, err := tx.Exec(mediaQuery, m.ChatID, m.MessageID, att.FileID, att.Kind, localPath); err != nil {
			return nil, fmt.Errorf("failed to save media row: %w", err)
		}

		if localPath != "" {
			downloads = append(downloads, Download{LocalPath: localPath, FileID: att.FileID})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit save: %w", err)
	}
	return downloads, nil
}

// Get returns the current state of a message with the author's handle and
// all media rows attached, or nil if the message is unknown.
func (s *MessageStore) Get(chatID int64, messageID int) (*StoredMessage, error) {
	var msg StoredMessage
	query := `
		SELECT m.chat_id, m.message_id, COALESCE(m.user_id, 0) AS user_id,
		       COALESCE(u.username, '') AS username,
		       m.text, m.date, m.is_forwarded, m.forward_from, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.user_id = m.user_id
		WHERE m.chat_id = ? AND m.message_id = ?
	`
	err := s.db.Get(&msg, query, chatID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mediaQuery := `SELECT * FROM media_files WHERE chat_id = ? AND message_id = ? ORDER BY id`
	if err := s.db.Select(&msg.Media, mediaQuery, chatID, messageID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecordAction appends an edit or delete event to the message's history.
// For an edit the message's current text is overwritten first, so the
// message row never holds a value staler than the newest action. The
// author's user id is snapshotted onto the action row while the message
// still exists; a delete action stays attributable after the message row
// is gone. newText must be nil for deletes.
func (s *MessageStore) RecordAction(chatID int64, messageID int, action ActionKind, oldText string, newText *string) error {
	if action == ActionEdit && newText != nil {
		if _, err := s.db.Exec(`UPDATE messages SET text = ? WHERE chat_id = ? AND message_id = ?`, *newText, chatID, messageID); err != nil {
			return fmt.Errorf("failed to update message text: %w", err)
		}
	}

	query := `
		INSERT INTO message_actions (chat_id, message_id, user_id, action, old_text, new_text)
		VALUES (?, ?,
			COALESCE((SELECT user_id FROM messages WHERE chat_id = ? AND message_id = ?), 0),
			?, ?, ?)
	`
	if _, err := s.db.Exec(query, chatID, messageID, chatID, messageID, action, oldText, newText); err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// Delete removes a message and its media rows, unlinking the cached files
// best-effort. It returns the local paths that were live before removal.
// Action rows survive, they are the record of what happened.
func (s *MessageStore) Delete(chatID int64, messageID int) ([]string, error) {
	paths, err := s.mediaPaths(`SELECT local_path FROM media_files WHERE chat_id = ? AND message_id = ? AND local_path != ''`, chatID, messageID)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM messages WHERE chat_id = ? AND message_id = ?`, chatID, messageID); err != nil {
		return nil, fmt.Errorf("failed to delete message: %w", err)
	}

	for _, p := range paths {
		s.removeFile(p)
	}
	return paths, nil
}

// CleanupExpired deletes every message older than maxAgeHours together with
// its media rows, action rows and cached files, returning the number of
// messages removed. Action rows of messages already deleted expire by their
// own timestamp, so the log stays bounded. Calling it again immediately
// removes nothing.
func (s *MessageStore) CleanupExpired(maxAgeHours int) (int64, error) {
	cutoff := `datetime('now', '-' || ? || ' hours')`

	paths, err := s.mediaPaths(`
		SELECT f.local_path FROM media_files f
		JOIN messages m ON m.chat_id = f.chat_id AND m.message_id = f.message_id
		WHERE f.local_path != '' AND m.created_at < `+cutoff, maxAgeHours)
	if err != nil {
		return 0, err
	}

	// Actions first: the expiry join needs the message rows.
	if _, err := s.db.Exec(`
		DELETE FROM message_actions WHERE (chat_id, message_id) IN
			(SELECT chat_id, message_id FROM messages WHERE created_at < `+cutoff+`)`, maxAgeHours); err != nil {
		return 0, fmt.Errorf("failed to delete expired actions: %w", err)
	}
	if _, err := s.db.Exec(`
		DELETE FROM message_actions WHERE action_date < `+cutoff+`
			AND NOT EXISTS (SELECT 1 FROM messages m
				WHERE m.chat_id = message_actions.chat_id AND m.message_id = message_actions.message_id)`, maxAgeHours); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned actions: %w", err)
	}

	res, err := s.db.Exec(`DELETE FROM messages WHERE created_at < `+cutoff, maxAgeHours)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}

	for _, p := range paths {
		s.removeFile(p)
	}
	return res.RowsAffected()
}

// PurgeAll wipes every recorded message, media file, action and user. The
// media directory itself is removed only if empty afterwards.
func (s *MessageStore) PurgeAll() (int64, int64, error) {
	var messageCount int64
	if err := s.db.Get(&messageCount, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, 0, err
	}
	var fileCount int64
	if err := s.db.Get(&fileCount, `SELECT COUNT(*) FROM media_files`); err != nil {
		return 0, 0, err
	}

	paths, err := s.mediaPaths(`SELECT local_path FROM media_files WHERE local_path != ''`)
	if err != nil {
		return 0, 0, err
	}

	for _, stmt := range []string{
		`DELETE FROM message_actions`,
		`DELETE FROM media_files`,
		`DELETE FROM messages`,
		`DELETE FROM user_settings`,
		`DELETE FROM users`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return 0, 0, fmt.Errorf("failed to purge: %w", err)
		}
	}

	for _, p := range paths {
		s.removeFile(p)
	}
	if err := os.Remove(s.mediaDir); err != nil && !os.IsNotExist(err) {
		logger.Debug().Err(err).Str("dir", s.mediaDir).Msg("Media directory not removed")
	}
	return messageCount, fileCount, nil
}

// PurgeUser removes every message authored by the given handle, along with
// its media and action rows, the user row and any mute override. Unknown
// handles are a no-op.
func (s *MessageStore) PurgeUser(username string) (int64, int64, error) {
	var userID int64
	err := s.db.Get(&userID, `SELECT user_id FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	var fileCount int64
	byUser := `SELECT chat_id, message_id FROM messages WHERE user_id = ?`
	if err := s.db.Get(&fileCount, `SELECT COUNT(*) FROM media_files WHERE (chat_id, message_id) IN (`+byUser+`)`, userID); err != nil {
		return 0, 0, err
	}

	paths, err := s.mediaPaths(`SELECT local_path FROM media_files WHERE local_path != '' AND (chat_id, message_id) IN (`+byUser+`)`, userID)
	if err != nil {
		return 0, 0, err
	}

	// The snapshotted author id also catches actions whose message row is
	// already gone.
	if _, err := s.db.Exec(`DELETE FROM message_actions WHERE user_id = ?`, userID); err != nil {
		return 0, 0, fmt.Errorf("failed to purge actions: %w", err)
	}

	res, err := s.db.Exec(`DELETE FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to purge messages: %w", err)
	}
	messageCount, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	if _, err := s.db.Exec(`DELETE FROM user_settings WHERE user_id = ?`, userID); err != nil {
		return 0, 0, err
	}
	if _, err := s.db.Exec(`DELETE FROM users WHERE user_id = ?`, userID); err != nil {
		return 0, 0, err
	}

	for _, p := range paths {
		s.removeFile(p)
	}
	return messageCount, fileCount, nil
}

// UserByHandle returns the user with the given display handle, or nil if
// the handle was never seen.
func (s *MessageStore) UserByHandle(username string) (*User, error) {
	var user User
	err := s.db.Get(&user, `SELECT * FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Stats returns the total number of stored messages and media rows.
func (s *MessageStore) Stats() (int64, int64, error) {
	var messages, mediaFiles int64
	if err := s.db.Get(&messages, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, 0, err
	}
	if err := s.db.Get(&mediaFiles, `SELECT COUNT(*) FROM media_files`); err != nil {
		return 0, 0, err
	}
	return messages, mediaFiles, nil
}

// mediaPath builds a locally-unique storage path for an attachment from a
// microsecond timestamp, the album id if any, the media kind and the
// resolved extension.
func (s *MessageStore) mediaPath(att media.Attachment) string {
	name := fmt.Sprintf("%d", time.Now().UnixMicro())
	if att.GroupID != "" {
		name += "_" + att.GroupID
	}
	name += fmt.Sprintf("_%s%s", att.Kind, att.Ext)
	return filepath.Join(s.mediaDir, name)
}

func (s *MessageStore) mediaPaths(query string, args ...any) ([]string, error) {
	var paths []string
	if err := s.db.Select(&paths, query, args...); err != nil {
		return nil, fmt.Errorf("failed to collect media paths: %w", err)
	}
	return paths, nil
}

// removeFile unlinks a cached attachment best-effort. A file that is
// already gone or unremovable must never block a metadata deletion.
func (s *MessageStore) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove media file")
	}
}

// forwardLabel derives the forwarded flag and a display label from forward
// origin metadata: the forwarded user's handle, else their full name, else
// the source chat's handle or title, else the bare sender name.
func forwardLabel(origin *ForwardOrigin) (bool, string) {
	if origin == nil {
		return false, ""
	}
	switch {
	case origin.Username != "":
		return true, "@" + origin.Username
	case origin.FullName != "":
		return true, origin.FullName
	case origin.ChatTitle != "":
		return true, origin.ChatTitle
	case origin.SenderName != "":
		return true, origin.SenderName
	default:
		return true, ""
	}
}
