// Package media classifies message attachments and resolves the file
// extensions they should be stored under. It performs no I/O; fetching the
// attachment binary by file id is the transport layer's job.
package media

import (
	"github.com/go-telegram/bot/models"
)

// Kind is the semantic type of an attachment.
type Kind string

const (
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindVideoNote Kind = "video_note"
	KindVoice     Kind = "voice"
	KindAudio     Kind = "audio"
	KindAnimation Kind = "animation"
	KindDocument  Kind = "document"
	KindSticker   Kind = "sticker"
)

// Attachment describes one attachment of an inbound message: what it is,
// the opaque token needed to fetch its bytes, and the extension its local
// copy should carry. GroupID is the album identifier, if any; it only
// affects storage path uniqueness, never classification.
type Attachment struct {
	Kind    Kind
	FileID  string
	Ext     string
	GroupID string
}

// Extract enumerates the attachments of a message. The branches are
// mutually exclusive: a message yields at most one attachment. A document
// carrying an image/gif MIME type is reclassified as an animation, and a
// real animation attachment wins over the document Telegram duplicates it
// into.
func Extract(msg *models.Message) []Attachment {
	var att Attachment

	switch {
	case len(msg.Photo) > 0:
		// Telegram lists photo sizes smallest first; keep the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		att = Attachment{
			Kind:   KindPhoto,
			FileID: photo.FileID,
			Ext:    ResolveExtension("", "", KindPhoto),
		}
	case msg.Video != nil:
		att = Attachment{
			Kind:   KindVideo,
			FileID: msg.Video.FileID,
			Ext:    ResolveExtension(msg.Video.MimeType, msg.Video.FileName, KindVideo),
		}
	case msg.VideoNote != nil:
		att = Attachment{
			Kind:   KindVideoNote,
			FileID: msg.VideoNote.FileID,
			Ext:    ResolveExtension("", "", KindVideoNote),
		}
	case msg.Voice != nil:
		att = Attachment{
			Kind:   KindVoice,
			FileID: msg.Voice.FileID,
			Ext:    ResolveExtension(msg.Voice.MimeType, "", KindVoice),
		}
	case msg.Audio != nil:
		att = Attachment{
			Kind:   KindAudio,
			FileID: msg.Audio.FileID,
			Ext:    ResolveExtension(msg.Audio.MimeType, msg.Audio.FileName, KindAudio),
		}
	case msg.Animation != nil:
		att = Attachment{
			Kind:   KindAnimation,
			FileID: msg.Animation.FileID,
			Ext:    ResolveExtension(msg.Animation.MimeType, msg.Animation.FileName, KindAnimation),
		}
	case msg.Document != nil:
		kind := KindDocument
		if msg.Document.MimeType == "image/gif" {
			kind = KindAnimation
		}
		att = Attachment{
			Kind:   kind,
			FileID: msg.Document.FileID,
			Ext:    ResolveExtension(msg.Document.MimeType, msg.Document.FileName, kind),
		}
	case msg.Sticker != nil:
		att = Attachment{
			Kind:   KindSticker,
			FileID: msg.Sticker.FileID,
			Ext:    ResolveExtension("", "", KindSticker),
		}
	default:
		return nil
	}

	att.GroupID = msg.MediaGroupID
	return []Attachment{att}
}
