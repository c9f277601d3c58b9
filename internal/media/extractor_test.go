package media

import (
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		msg      *models.Message
		wantKind Kind
		wantID   string
		wantExt  string
	}{
		{
			name: "photo uses largest size",
			msg: &models.Message{Photo: []models.PhotoSize{
				{FileID: "small", Width: 90},
				{FileID: "large", Width: 1280},
			}},
			wantKind: KindPhoto,
			wantID:   "large",
			wantExt:  ".jpg",
		},
		{
			name:     "video",
			msg:      &models.Message{Video: &models.Video{FileID: "v", MimeType: "video/mp4"}},
			wantKind: KindVideo,
			wantID:   "v",
			wantExt:  ".mp4",
		},
		{
			name:     "video note",
			msg:      &models.Message{VideoNote: &models.VideoNote{FileID: "vn"}},
			wantKind: KindVideoNote,
			wantID:   "vn",
			wantExt:  ".mp4",
		},
		{
			name:     "voice",
			msg:      &models.Message{Voice: &models.Voice{FileID: "vc", MimeType: "audio/ogg"}},
			wantKind: KindVoice,
			wantID:   "vc",
			wantExt:  ".ogg",
		},
		{
			name:     "audio falls back to filename",
			msg:      &models.Message{Audio: &models.Audio{FileID: "a", MimeType: "audio/x-unknown", FileName: "track.opus"}},
			wantKind: KindAudio,
			wantID:   "a",
			wantExt:  ".opus",
		},
		{
			name:     "gif document reclassified as animation",
			msg:      &models.Message{Document: &models.Document{FileID: "d", MimeType: "image/gif"}},
			wantKind: KindAnimation,
			wantID:   "d",
			wantExt:  ".gif",
		},
		{
			name: "animation wins over its document duplicate",
			msg: &models.Message{
				Animation: &models.Animation{FileID: "anim", MimeType: "video/mp4"},
				Document:  &models.Document{FileID: "doc", MimeType: "video/mp4"},
			},
			wantKind: KindAnimation,
			wantID:   "anim",
			wantExt:  ".mp4",
		},
		{
			name:     "document without hints gets default",
			msg:      &models.Message{Document: &models.Document{FileID: "d", MimeType: "application/x-unknown", FileName: "blob"}},
			wantKind: KindDocument,
			wantID:   "d",
			wantExt:  ".bin",
		},
		{
			name:     "sticker",
			msg:      &models.Message{Sticker: &models.Sticker{FileID: "s"}},
			wantKind: KindSticker,
			wantID:   "s",
			wantExt:  ".webp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atts := Extract(tt.msg)
			if len(atts) != 1 {
				t.Fatalf("attachments = %d, want exactly 1", len(atts))
			}
			att := atts[0]
			if att.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", att.Kind, tt.wantKind)
			}
			if att.FileID != tt.wantID {
				t.Errorf("file id = %s, want %s", att.FileID, tt.wantID)
			}
			if att.Ext != tt.wantExt {
				t.Errorf("ext = %s, want %s", att.Ext, tt.wantExt)
			}
		})
	}
}

func TestExtractPlainText(t *testing.T) {
	if atts := Extract(&models.Message{Text: "no media here"}); atts != nil {
		t.Errorf("attachments = %v, want nil", atts)
	}
}

func TestExtractCapturesGroupID(t *testing.T) {
	msg := &models.Message{
		Photo:        []models.PhotoSize{{FileID: "p"}},
		MediaGroupID: "album-7",
	}
	atts := Extract(msg)
	if len(atts) != 1 || atts[0].GroupID != "album-7" {
		t.Errorf("attachments = %+v, want group album-7", atts)
	}
	if atts[0].Kind != KindPhoto {
		t.Errorf("album membership must not change classification")
	}
}

func TestResolveExtension(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		fileName string
		kind     Kind
		want     string
	}{
		{name: "mime wins over filename", mime: "image/png", fileName: "photo.jpg", kind: KindDocument, want: ".png"},
		{name: "filename when mime unknown", mime: "application/octet-stream", fileName: "archive.zip", kind: KindDocument, want: ".zip"},
		{name: "filename suffix normalized", mime: "", fileName: "CLIP.MP4", kind: KindVideo, want: ".mp4"},
		{name: "unknown suffix ignored", mime: "", fileName: "data.xyz", kind: KindVoice, want: ".ogg"},
		{name: "kind default last", mime: "", fileName: "", kind: KindAudio, want: ".mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveExtension(tt.mime, tt.fileName, tt.kind); got != tt.want {
				t.Errorf("ResolveExtension(%q, %q, %s) = %q, want %q", tt.mime, tt.fileName, tt.kind, got, tt.want)
			}
		})
	}
}
