package telegram

import (
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/mrvasil/telegram-spybot/internal/media"
	"github.com/mrvasil/telegram-spybot/internal/storage"
)

// inboundMessage converts a platform message into the store's write input.
// Content that has neither text nor caption gets a readable placeholder so
// notifications and diffs have something to show.
func inboundMessage(msg *models.Message) *storage.InboundMessage {
	m := &storage.InboundMessage{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        msg.Text,
		Caption:     msg.Caption,
		Date:        time.Unix(int64(msg.Date), 0),
		Forward:     forwardOrigin(msg.ForwardOrigin),
		Attachments: media.Extract(msg),
	}

	if msg.From != nil {
		m.UserID = msg.From.ID
		m.Username = msg.From.Username
	}

	if m.Text == "" && m.Caption == "" {
		switch {
		case msg.Sticker != nil:
			m.Text = "sticker"
		case msg.VideoNote != nil:
			m.Text = "video note"
		}
	}

	return m
}

// forwardOrigin flattens the platform's tagged forward-origin union into
// the store's label fields.
func forwardOrigin(origin *models.MessageOrigin) *storage.ForwardOrigin {
	if origin == nil {
		return nil
	}

	fo := &storage.ForwardOrigin{}
	switch origin.Type {
	case models.MessageOriginTypeUser:
		user := origin.MessageOriginUser.SenderUser
		fo.Username = user.Username
		fo.FullName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	case models.MessageOriginTypeHiddenUser:
		fo.SenderName = origin.MessageOriginHiddenUser.SenderUserName
	case models.MessageOriginTypeChat:
		chat := origin.MessageOriginChat.SenderChat
		fo.ChatTitle = chatLabel(chat)
	case models.MessageOriginTypeChannel:
		fo.ChatTitle = chatLabel(origin.MessageOriginChannel.Chat)
	}
	return fo
}

func chatLabel(chat models.Chat) string {
	if chat.Username != "" {
		return "@" + chat.Username
	}
	return chat.Title
}
