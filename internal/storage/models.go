// Package storage provides database operations and data models.
package storage

import (
	"database/sql"
	"time"

	"github.com/mrvasil/telegram-spybot/internal/media"
)

// User represents a monitored correspondent.
type User struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstSeen time.Time `db:"first_seen"`
}

// StoredMessage is the current known state of one message, joined with the
// author's handle and its media descriptors.
type StoredMessage struct {
	ChatID      int64     `db:"chat_id"`
	MessageID   int       `db:"message_id"`
	UserID      int64     `db:"user_id"`
	Username    string    `db:"username"`
	Text        string    `db:"text"`
	Date        time.Time `db:"date"`
	IsForwarded bool      `db:"is_forwarded"`
	ForwardFrom string    `db:"forward_from"`
	CreatedAt   time.Time `db:"created_at"`

	Media []MediaFile `db:"-"`
}

// MediaFile is one attachment belonging to a message. LocalPath is empty
// for stickers, whose binary is never cached locally.
type MediaFile struct {
	ID        int64      `db:"id"`
	ChatID    int64      `db:"chat_id"`
	MessageID int        `db:"message_id"`
	FileID    string     `db:"file_id"`
	Kind      media.Kind `db:"media_type"`
	LocalPath string     `db:"local_path"`
}

// ActionKind is the type of a historical message event.
type ActionKind string

const (
	ActionEdit   ActionKind = "edit"
	ActionDelete ActionKind = "delete"
)

// MessageAction is one historical event (edit or delete) recorded against a
// message. UserID is the author's id as of recording time; NewText is null
// for deletes.
type MessageAction struct {
	ID         int64          `db:"id"`
	ChatID     int64          `db:"chat_id"`
	MessageID  int            `db:"message_id"`
	UserID     int64          `db:"user_id"`
	Action     ActionKind     `db:"action"`
	OldText    string         `db:"old_text"`
	NewText    sql.NullString `db:"new_text"`
	ActionDate time.Time      `db:"action_date"`
}

// ForwardOrigin carries the forward metadata of an inbound message. The
// human-readable label prefers Username, then FullName, then ChatTitle,
// then SenderName.
type ForwardOrigin struct {
	Username   string
	FullName   string
	ChatTitle  string
	SenderName string
}

// InboundMessage is the store's write-side input: one observed message with
// its already-extracted attachments.
type InboundMessage struct {
	ChatID      int64
	MessageID   int
	UserID      int64
	Username    string
	Text        string
	Caption     string
	Date        time.Time
	Forward     *ForwardOrigin
	Attachments []media.Attachment
}

// Download pairs a freshly generated local path with the transport file
// reference the caller must exchange for the attachment bytes.
type Download struct {
	LocalPath string
	FileID    string
}
