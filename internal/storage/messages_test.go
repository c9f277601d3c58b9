package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrvasil/telegram-spybot/internal/media"
)

func newTestStore(t *testing.T) (*Database, *MessageStore) {
	t.Helper()

	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewMessageStore(db, filepath.Join(dir, "media"))
	if err != nil {
		t.Fatalf("NewMessageStore: %v", err)
	}
	return db, store
}

func testMessage(chatID int64, messageID int, userID int64, username, text string) *InboundMessage {
	return &InboundMessage{
		ChatID:    chatID,
		MessageID: messageID,
		UserID:    userID,
		Username:  username,
		Text:      text,
		Date:      time.Now(),
	}
}

func TestSaveTextFallback(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		caption string
		want    string
	}{
		{name: "caption wins over text", text: "body", caption: "caption", want: "caption"},
		{name: "text when no caption", text: "body", caption: "", want: "body"},
		{name: "placeholder when both empty", text: "", caption: "", want: " "},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := newTestStore(t)

			msg := testMessage(1, 100+i, 7, "alice", tt.text)
			msg.Caption = tt.caption
			if _, err := store.Save(msg); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := store.Get(1, 100+i)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got == nil {
				t.Fatal("Get returned nil for saved message")
			}
			if got.Text != tt.want {
				t.Errorf("text = %q, want %q", got.Text, tt.want)
			}
			if got.Username != "alice" {
				t.Errorf("username = %q, want alice", got.Username)
			}
		})
	}
}

func TestSaveForwardLabel(t *testing.T) {
	tests := []struct {
		name      string
		forward   *ForwardOrigin
		wantFlag  bool
		wantLabel string
	}{
		{name: "not forwarded", forward: nil, wantFlag: false, wantLabel: ""},
		{
			name:      "handle wins",
			forward:   &ForwardOrigin{Username: "bob", FullName: "Bob Smith", ChatTitle: "Chan", SenderName: "Someone"},
			wantFlag:  true,
			wantLabel: "@bob",
		},
		{
			name:      "full name second",
			forward:   &ForwardOrigin{FullName: "Bob Smith", ChatTitle: "Chan", SenderName: "Someone"},
			wantFlag:  true,
			wantLabel: "Bob Smith",
		},
		{
			name:      "chat title third",
			forward:   &ForwardOrigin{ChatTitle: "Chan", SenderName: "Someone"},
			wantFlag:  true,
			wantLabel: "Chan",
		},
		{
			name:      "sender name last",
			forward:   &ForwardOrigin{SenderName: "Someone"},
			wantFlag:  true,
			wantLabel: "Someone",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := newTestStore(t)

			msg := testMessage(1, 200+i, 7, "alice", "hi")
			msg.Forward = tt.forward
			if _, err := store.Save(msg); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := store.Get(1, 200+i)
			if err != nil || got == nil {
				t.Fatalf("Get: %v, %v", got, err)
			}
			if got.IsForwarded != tt.wantFlag {
				t.Errorf("is_forwarded = %v, want %v", got.IsForwarded, tt.wantFlag)
			}
			if got.ForwardFrom != tt.wantLabel {
				t.Errorf("forward_from = %q, want %q", got.ForwardFrom, tt.wantLabel)
			}
		})
	}
}

func TestSaveReturnsDownloads(t *testing.T) {
	_, store := newTestStore(t)

	msg := testMessage(1, 100, 7, "alice", "")
	msg.Caption = "album"
	msg.Attachments = []media.Attachment{
		{Kind: media.KindPhoto, FileID: "file-photo", Ext: ".jpg", GroupID: "g1"},
		{Kind: media.KindSticker, FileID: "file-sticker", Ext: ".webp"},
	}

	downloads, err := store.Save(msg)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Stickers are not downloaded, only the photo comes back.
	if len(downloads) != 1 {
		t.Fatalf("downloads = %d, want 1", len(downloads))
	}
	if downloads[0].FileID != "file-photo" {
		t.Errorf("download file id = %q, want file-photo", downloads[0].FileID)
	}
	if !strings.HasSuffix(downloads[0].LocalPath, ".jpg") {
		t.Errorf("download path %q missing .jpg suffix", downloads[0].LocalPath)
	}
	if !strings.Contains(downloads[0].LocalPath, "photo") {
		t.Errorf("download path %q missing media kind", downloads[0].LocalPath)
	}

	got, err := store.Get(1, 100)
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if len(got.Media) != 2 {
		t.Fatalf("media rows = %d, want 2", len(got.Media))
	}
	if got.Media[1].Kind != media.KindSticker || got.Media[1].LocalPath != "" {
		t.Errorf("sticker row = %+v, want empty local path", got.Media[1])
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	_, store := newTestStore(t)

	msg := testMessage(1, 100, 7, "alice", "hi")
	msg.Attachments = []media.Attachment{{Kind: media.KindPhoto, FileID: "f", Ext: ".jpg"}}

	for i := 0; i < 2; i++ {
		if _, err := store.Save(msg); err != nil {
			t.Fatalf("Save #%d: %v", i+1, err)
		}
	}

	got, err := store.Get(1, 100)
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if len(got.Media) != 1 {
		t.Errorf("media rows after replay = %d, want 1", len(got.Media))
	}

	messages, files, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if messages != 1 || files != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", messages, files)
	}
}

func TestGetUnknownMessage(t *testing.T) {
	_, store := newTestStore(t)

	got, err := store.Get(1, 999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get unknown = %+v, want nil", got)
	}
}

func TestDeleteRemovesMessageAndFiles(t *testing.T) {
	_, store := newTestStore(t)

	msg := testMessage(1, 100, 7, "alice", "hi")
	msg.Attachments = []media.Attachment{{Kind: media.KindPhoto, FileID: "f", Ext: ".jpg"}}
	downloads, err := store.Save(msg)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(downloads[0].LocalPath, []byte("fake"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	removed, err := store.Delete(1, 100)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(removed) != 1 || removed[0] != downloads[0].LocalPath {
		t.Errorf("removed = %v, want [%s]", removed, downloads[0].LocalPath)
	}
	if _, err := os.Stat(downloads[0].LocalPath); !os.IsNotExist(err) {
		t.Errorf("media file still exists after delete")
	}

	got, err := store.Get(1, 100)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get after delete = %+v, want nil", got)
	}
}

func TestDeleteWithMissingFile(t *testing.T) {
	_, store := newTestStore(t)

	msg := testMessage(1, 100, 7, "alice", "hi")
	msg.Attachments = []media.Attachment{{Kind: media.KindPhoto, FileID: "f", Ext: ".jpg"}}
	if _, err := store.Save(msg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The file was never downloaded; deletion must not care.
	if _, err := store.Delete(1, 100); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestEditThenDeleteScenario(t *testing.T) {
	db, store := newTestStore(t)

	if _, err := store.Save(testMessage(1, 100, 7, "alice", "hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	newText := "hello world"
	if err := store.RecordAction(1, 100, ActionEdit, "hello", &newText); err != nil {
		t.Fatalf("RecordAction edit: %v", err)
	}

	got, err := store.Get(1, 100)
	if err != nil || got == nil {
		t.Fatalf("Get after edit: %v, %v", got, err)
	}
	if got.Text != "hello world" {
		t.Errorf("text after edit = %q, want %q", got.Text, "hello world")
	}

	var actions []MessageAction
	if err := db.Select(&actions, `SELECT * FROM message_actions WHERE chat_id = 1 AND message_id = 100 ORDER BY id`); err != nil {
		t.Fatalf("select actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("actions after edit = %d, want 1", len(actions))
	}
	if actions[0].Action != ActionEdit || actions[0].OldText != "hello" || actions[0].NewText.String != "hello world" {
		t.Errorf("edit action = %+v", actions[0])
	}

	if err := store.RecordAction(1, 100, ActionDelete, "hello world", nil); err != nil {
		t.Fatalf("RecordAction delete: %v", err)
	}
	if _, err := store.Delete(1, 100); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err = store.Get(1, 100)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("Get after delete = %+v, want nil", got)
	}

	// The action log survives the message row.
	actions = nil
	if err := db.Select(&actions, `SELECT * FROM message_actions WHERE chat_id = 1 AND message_id = 100 ORDER BY id`); err != nil {
		t.Fatalf("select actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions after delete = %d, want 2", len(actions))
	}
	if actions[1].Action != ActionDelete || actions[1].OldText != "hello world" || actions[1].NewText.Valid {
		t.Errorf("delete action = %+v", actions[1])
	}
}

func TestCleanupExpired(t *testing.T) {
	db, store := newTestStore(t)

	if _, err := store.Save(testMessage(1, 100, 7, "alice", "old")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save(testMessage(1, 101, 7, "alice", "fresh")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	oldEdit := "old edited"
	if err := store.RecordAction(1, 100, ActionEdit, "old", &oldEdit); err != nil {
		t.Fatalf("RecordAction old: %v", err)
	}
	freshEdit := "fresh edited"
	if err := store.RecordAction(1, 101, ActionEdit, "fresh", &freshEdit); err != nil {
		t.Fatalf("RecordAction fresh: %v", err)
	}

	if _, err := db.Exec(`UPDATE messages SET created_at = datetime('now', '-30 hours') WHERE message_id = 100`); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	removed, err := store.CleanupExpired(24)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if got, _ := store.Get(1, 100); got != nil {
		t.Errorf("expired message still present")
	}
	if got, _ := store.Get(1, 101); got == nil {
		t.Errorf("fresh message was removed")
	}

	// Expiry takes the action rows with it, but only for expired messages.
	var actionCount int
	if err := db.Get(&actionCount, `SELECT COUNT(*) FROM message_actions WHERE message_id = 100`); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if actionCount != 0 {
		t.Errorf("expired message kept %d action rows, want 0", actionCount)
	}
	if err := db.Get(&actionCount, `SELECT COUNT(*) FROM message_actions WHERE message_id = 101`); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if actionCount != 1 {
		t.Errorf("fresh message action rows = %d, want 1", actionCount)
	}

	// Second run finds nothing.
	removed, err = store.CleanupExpired(24)
	if err != nil {
		t.Fatalf("CleanupExpired again: %v", err)
	}
	if removed != 0 {
		t.Errorf("second cleanup removed = %d, want 0", removed)
	}
}

func TestCleanupExpiredPrunesOrphanedActions(t *testing.T) {
	db, store := newTestStore(t)

	// A deleted message leaves its action rows behind until they age out
	// by their own timestamp.
	if _, err := store.Save(testMessage(1, 100, 7, "alice", "gone soon")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.RecordAction(1, 100, ActionDelete, "gone soon", nil); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if _, err := store.Delete(1, 100); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.CleanupExpired(24); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	var actionCount int
	if err := db.Get(&actionCount, `SELECT COUNT(*) FROM message_actions`); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if actionCount != 1 {
		t.Fatalf("fresh orphaned action rows = %d, want 1", actionCount)
	}

	if _, err := db.Exec(`UPDATE message_actions SET action_date = datetime('now', '-30 hours')`); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := store.CleanupExpired(24); err != nil {
		t.Fatalf("CleanupExpired again: %v", err)
	}
	if err := db.Get(&actionCount, `SELECT COUNT(*) FROM message_actions`); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if actionCount != 0 {
		t.Errorf("aged orphaned action rows = %d, want 0", actionCount)
	}
}

func TestPurgeAll(t *testing.T) {
	_, store := newTestStore(t)

	msg := testMessage(1, 100, 7, "alice", "hi")
	msg.Attachments = []media.Attachment{{Kind: media.KindPhoto, FileID: "f", Ext: ".jpg"}}
	if _, err := store.Save(msg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save(testMessage(1, 101, 8, "bob", "yo")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	messages, files, err := store.PurgeAll()
	if err != nil {
		t.Fatalf("PurgeAll: %v", err)
	}
	if messages != 2 || files != 1 {
		t.Errorf("purge counts = (%d, %d), want (2, 1)", messages, files)
	}

	if got, _ := store.Get(1, 100); got != nil {
		t.Errorf("message survived purge")
	}
	if user, _ := store.UserByHandle("alice"); user != nil {
		t.Errorf("user survived purge")
	}
}

func TestPurgeUser(t *testing.T) {
	db, store := newTestStore(t)

	// alice: 3 messages carrying 5 media rows total
	attachments := [][]media.Attachment{
		{{Kind: media.KindPhoto, FileID: "f1", Ext: ".jpg"}, {Kind: media.KindPhoto, FileID: "f2", Ext: ".jpg", GroupID: "g"}},
		{{Kind: media.KindVideo, FileID: "f3", Ext: ".mp4"}, {Kind: media.KindPhoto, FileID: "f4", Ext: ".jpg"}},
		{{Kind: media.KindVoice, FileID: "f5", Ext: ".ogg"}},
	}
	for i, atts := range attachments {
		msg := testMessage(1, 100+i, 7, "alice", "hi")
		msg.Attachments = atts
		if _, err := store.Save(msg); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if _, err := store.Save(testMessage(1, 200, 8, "bob", "yo")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	edited := "hi there"
	if err := store.RecordAction(1, 100, ActionEdit, "hi", &edited); err != nil {
		t.Fatalf("RecordAction alice: %v", err)
	}
	bobEdited := "yo yo"
	if err := store.RecordAction(1, 200, ActionEdit, "yo", &bobEdited); err != nil {
		t.Fatalf("RecordAction bob: %v", err)
	}

	messages, files, err := store.PurgeUser("alice")
	if err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}
	if messages != 3 || files != 5 {
		t.Errorf("purge counts = (%d, %d), want (3, 5)", messages, files)
	}

	// Only alice's action rows go.
	var actionCount int
	if err := db.Get(&actionCount, `SELECT COUNT(*) FROM message_actions WHERE user_id = 7`); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if actionCount != 0 {
		t.Errorf("alice action rows after purge = %d, want 0", actionCount)
	}
	if err := db.Get(&actionCount, `SELECT COUNT(*) FROM message_actions WHERE user_id = 8`); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if actionCount != 1 {
		t.Errorf("bob action rows after purge = %d, want 1", actionCount)
	}

	for i := 0; i < 3; i++ {
		if got, _ := store.Get(1, 100+i); got != nil {
			t.Errorf("alice message %d survived purge", 100+i)
		}
	}
	if got, _ := store.Get(1, 200); got == nil {
		t.Errorf("bob's message was purged")
	}

	// Unknown handle is a no-op.
	messages, files, err = store.PurgeUser("nobody")
	if err != nil {
		t.Fatalf("PurgeUser unknown: %v", err)
	}
	if messages != 0 || files != 0 {
		t.Errorf("unknown purge = (%d, %d), want (0, 0)", messages, files)
	}
}

func TestUserByHandle(t *testing.T) {
	_, store := newTestStore(t)

	if _, err := store.Save(testMessage(1, 100, 7, "alice", "hi")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	user, err := store.UserByHandle("alice")
	if err != nil {
		t.Fatalf("UserByHandle: %v", err)
	}
	if user == nil || user.UserID != 7 {
		t.Errorf("user = %+v, want id 7", user)
	}

	user, err = store.UserByHandle("nobody")
	if err != nil {
		t.Fatalf("UserByHandle unknown: %v", err)
	}
	if user != nil {
		t.Errorf("unknown handle = %+v, want nil", user)
	}
}
