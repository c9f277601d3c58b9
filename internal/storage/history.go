package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MessageTimeline is the reconstructed history of one message: the text it
// started with, every recorded edit and delete in chronological order, and
// the metadata needed to present it.
type MessageTimeline struct {
	ChatID       int64
	MessageID    int
	Username     string
	OriginalText string
	CurrentText  string
	IsForwarded  bool
	ForwardFrom  string
	Actions      []MessageAction
	Media        []MediaFile
}

// UserAction is one entry of a user-scoped history listing.
type UserAction struct {
	ChatID     int64          `db:"chat_id"`
	MessageID  int            `db:"message_id"`
	Action     ActionKind     `db:"action"`
	OldText    string         `db:"old_text"`
	NewText    sql.NullString `db:"new_text"`
	ActionDate time.Time      `db:"action_date"`
}

// Label returns the display label for the action.
func (a UserAction) Label() string {
	if a.Action == ActionDelete {
		return "deleted"
	}
	return "edited"
}

// Text returns the text worth displaying for the action: the post-edit
// text for edits, the last known text for deletes (a delete has no
// post-state).
func (a UserAction) Text() string {
	if a.Action == ActionEdit && a.NewText.Valid {
		return a.NewText.String
	}
	return a.OldText
}

// HistoryStore reconstructs message histories from the action log.
type HistoryStore struct {
	db       *Database
	messages *MessageStore
}

// NewHistoryStore creates a new history store.
func NewHistoryStore(db *Database, messages *MessageStore) *HistoryStore {
	return &HistoryStore{db: db, messages: messages}
}

// MessageHistory reconstructs the timeline of one message. A chatID of
// zero means "whichever chat this message id was seen in". Returns nil if
// the message is unknown.
func (h *HistoryStore) MessageHistory(chatID int64, messageID int) (*MessageTimeline, error) {
	if chatID == 0 {
		err := h.db.Get(&chatID, `SELECT chat_id FROM messages WHERE message_id = ? LIMIT 1`, messageID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	msg, err := h.messages.Get(chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	var actions []MessageAction
	query := `
		SELECT * FROM message_actions
		WHERE chat_id = ? AND message_id = ?
		ORDER BY action_date ASC, id ASC
	`
	if err := h.db.Select(&actions, query, chatID, messageID); err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	// The original text is the oldest edit's before-image; with no edits on
	// record the message never changed.
	original := msg.Text
	for _, a := range actions {
		if a.Action == ActionEdit {
			original = a.OldText
			break
		}
	}

	return &MessageTimeline{
		ChatID:       chatID,
		MessageID:    messageID,
		Username:     msg.Username,
		OriginalText: original,
		CurrentText:  msg.Text,
		IsForwarded:  msg.IsForwarded,
		ForwardFrom:  msg.ForwardFrom,
		Actions:      actions,
		Media:        msg.Media,
	}, nil
}

// UserHistory lists the most recent edit/delete actions against messages
// authored by the given handle, newest first, capped at limit. The join
// goes through the author id snapshotted on the action row, so actions of
// messages that were deleted since still show up.
func (h *HistoryStore) UserHistory(username string, limit int) ([]UserAction, error) {
	var actions []UserAction
	query := `
		SELECT a.chat_id, a.message_id, a.action, a.old_text, a.new_text, a.action_date
		FROM message_actions a
		JOIN users u ON u.user_id = a.user_id
		WHERE u.username = ?
		ORDER BY a.action_date DESC, a.id DESC
		LIMIT ?
	`
	if err := h.db.Select(&actions, query, username, limit); err != nil {
		return nil, fmt.Errorf("failed to load user history: %w", err)
	}
	return actions, nil
}
