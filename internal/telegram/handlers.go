package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mrvasil/telegram-spybot/internal/storage"
	"github.com/mrvasil/telegram-spybot/pkg/logger"
)

// Handlers routes updates from the business connection and the operator's
// own chat.
type Handlers struct {
	ownerID  int64
	messages *storage.MessageStore
	settings *storage.SettingsStore
	history  *storage.HistoryStore
}

// NewHandlers creates a new handlers instance.
func NewHandlers(ownerID int64, messages *storage.MessageStore, settings *storage.SettingsStore, history *storage.HistoryStore) *Handlers {
	return &Handlers{
		ownerID:  ownerID,
		messages: messages,
		settings: settings,
		history:  history,
	}
}

// HandleUpdate dispatches one update to its handler. Updates arrive
// sequentially; there is no per-update concurrency here.
func (h *Handlers) HandleUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	switch {
	case update.BusinessMessage != nil:
		h.handleBusinessMessage(ctx, b, update.BusinessMessage)
	case update.EditedBusinessMessage != nil:
		h.handleEditedMessage(ctx, b, update.EditedBusinessMessage)
	case update.DeletedBusinessMessages != nil:
		h.handleDeletedMessages(ctx, b, update.DeletedBusinessMessages)
	case update.BusinessConnection != nil:
		h.handleBusinessConnection(ctx, b, update.BusinessConnection)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, b, update.CallbackQuery)
	case update.Message != nil:
		h.handleCommand(ctx, b, update.Message)
	}
}

// handleBusinessMessage records a newly observed message and fetches its
// attachments.
func (h *Handlers) handleBusinessMessage(ctx context.Context, b *tgbot.Bot, msg *models.Message) {
	if msg.From == nil || msg.From.ID == h.ownerID {
		return
	}
	h.saveMessage(ctx, b, msg)
}

// saveMessage persists the message and downloads each returned attachment.
// A failed download leaves the media row in place; the path just stays
// unreachable until a later revision refreshes it.
func (h *Handlers) saveMessage(ctx context.Context, b *tgbot.Bot, msg *models.Message) {
	downloads, err := h.messages.Save(inboundMessage(msg))
	if err != nil {
		logger.Fatal().Err(err).
			Int64("chat_id", msg.Chat.ID).
			Int("message_id", msg.ID).
			Msg("Failed to persist message")
	}

	for _, d := range downloads {
		if err := downloadFile(ctx, b, d.FileID, d.LocalPath); err != nil {
			logger.Error().Err(err).Str("path", d.LocalPath).Msg("Failed to download attachment")
		}
	}
}

// handleEditedMessage diffs the new revision against the stored one,
// records the edit and notifies the operator.
func (h *Handlers) handleEditedMessage(ctx context.Context, b *tgbot.Bot, msg *models.Message) {
	if msg.From == nil || msg.From.ID == h.ownerID {
		return
	}

	settings, err := h.settings.Get()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read settings")
		return
	}
	if !settings.NotifyEdited {
		return
	}

	prior, err := h.messages.Get(msg.Chat.ID, msg.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to look up edited message")
		return
	}
	if prior == nil {
		// Never saw the original; nothing to diff against.
		return
	}

	newText := msg.Caption
	if newText == "" {
		newText = msg.Text
	}
	if newText == "" {
		newText = " "
	}

	if changedChars(prior.Text, newText) < settings.EditThreshold {
		logger.Debug().
			Int64("chat_id", msg.Chat.ID).
			Int("message_id", msg.ID).
			Msg("Edit below threshold, ignored")
		return
	}

	if err := h.messages.RecordAction(msg.Chat.ID, msg.ID, storage.ActionEdit, prior.Text, &newText); err != nil {
		logger.Fatal().Err(err).Msg("Failed to record edit action")
	}

	muted, err := h.settings.UserMuted(prior.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read user mute")
	}
	if !muted {
		_, err = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:      h.ownerID,
			Text:        editNotification(prior.Username, prior.Text, newText),
			ParseMode:   models.ParseModeMarkdown,
			ReplyMarkup: editKeyboard(msg.Chat.ID, msg.ID, prior.UserID),
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to send edit notification")
		}
	}

	h.saveMessage(ctx, b, msg)
}

// handleDeletedMessages replays the stored record of each deleted message
// to the operator, logs the delete action and drops the record.
func (h *Handlers) handleDeletedMessages(ctx context.Context, b *tgbot.Bot, del *models.BusinessMessagesDeleted) {
	settings, err := h.settings.Get()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read settings")
		return
	}
	if !settings.NotifyDeleted {
		return
	}

	for _, messageID := range del.MessageIDs {
		prior, err := h.messages.Get(del.Chat.ID, messageID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to look up deleted message")
			continue
		}
		if prior == nil || prior.UserID == h.ownerID {
			continue
		}

		if err := h.messages.RecordAction(del.Chat.ID, messageID, storage.ActionDelete, prior.Text, nil); err != nil {
			logger.Fatal().Err(err).Msg("Failed to record delete action")
		}

		muted, err := h.settings.UserMuted(prior.UserID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read user mute")
		}
		if !muted {
			// Notify before deleting: the cached files are unlinked below.
			h.sendStoredMedia(ctx, b, deleteNotification(prior), prior.Media)
		}

		if _, err := h.messages.Delete(del.Chat.ID, messageID); err != nil {
			logger.Error().Err(err).
				Int64("chat_id", del.Chat.ID).
				Int("message_id", messageID).
				Msg("Failed to delete message record")
		}
	}
}

// handleBusinessConnection informs the operator when the bot is attached to
// or detached from their account.
func (h *Handlers) handleBusinessConnection(ctx context.Context, b *tgbot.Bot, conn *models.BusinessConnection) {
	if conn.User.ID != h.ownerID {
		return
	}

	text := "Bot connected to Telegram Business"
	if !conn.IsEnabled {
		text = "Bot disconnected from Telegram Business"
	}
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: h.ownerID, Text: text}); err != nil {
		logger.Error().Err(err).Msg("Failed to send connection notice")
	}
}

// handleCommand processes operator commands. Anyone else is ignored.
func (h *Handlers) handleCommand(ctx context.Context, b *tgbot.Bot, msg *models.Message) {
	if msg.From == nil || msg.From.ID != h.ownerID {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}

	logger.Debug().Str("command", fields[0]).Msg("Received command")

	switch fields[0] {
	case "/start":
		h.sendReply(ctx, b, "Send any message to see the bot status, or use /history @user, /threshold N, /mute @user, /purge")
	case "/history":
		h.handleHistoryCommand(ctx, b, fields[1:])
	case "/threshold":
		h.handleThresholdCommand(ctx, b, fields[1:])
	case "/mute":
		h.handleMuteCommand(ctx, b, fields[1:])
	case "/purge":
		h.handlePurgeCommand(ctx, b, fields[1:])
	default:
		h.sendStatus(ctx, b, msg.Chat.ID)
	}
}

func (h *Handlers) handleHistoryCommand(ctx context.Context, b *tgbot.Bot, args []string) {
	if len(args) == 0 {
		h.sendReply(ctx, b, "Usage: /history @user [limit]")
		return
	}

	username := strings.TrimPrefix(args[0], "@")
	limit := 10
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			h.sendReply(ctx, b, "Usage: /history @user [limit]")
			return
		}
		limit = n
	}

	actions, err := h.history.UserHistory(username, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load user history")
		return
	}
	if len(actions) == 0 {
		h.sendReply(ctx, b, "No recorded actions for @"+username)
		return
	}

	h.sendMarkdown(ctx, b, userHistoryText(username, actions))
}

func (h *Handlers) handleThresholdCommand(ctx context.Context, b *tgbot.Bot, args []string) {
	if len(args) != 1 {
		h.sendReply(ctx, b, "Usage: /threshold N")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		h.sendReply(ctx, b, "Usage: /threshold N")
		return
	}
	if err := h.settings.SetEditThreshold(n); err != nil {
		logger.Error().Err(err).Msg("Failed to set edit threshold")
		return
	}
	h.sendReply(ctx, b, fmt.Sprintf("Edits changing fewer than %d characters are now ignored", n))
}

func (h *Handlers) handleMuteCommand(ctx context.Context, b *tgbot.Bot, args []string) {
	if len(args) != 1 {
		h.sendReply(ctx, b, "Usage: /mute @user")
		return
	}

	username := strings.TrimPrefix(args[0], "@")
	user, err := h.messages.UserByHandle(username)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to look up user")
		return
	}
	if user == nil {
		h.sendReply(ctx, b, "Unknown user @"+username)
		return
	}

	muted, err := h.settings.ToggleUserMuted(user.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to toggle user mute")
		return
	}
	if muted {
		h.sendReply(ctx, b, "Notifications for @"+username+" muted")
	} else {
		h.sendReply(ctx, b, "Notifications for @"+username+" enabled")
	}
}

func (h *Handlers) handlePurgeCommand(ctx context.Context, b *tgbot.Bot, args []string) {
	if len(args) == 0 {
		messages, files, err := h.messages.PurgeAll()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to purge")
			return
		}
		h.sendReply(ctx, b, fmt.Sprintf("Purged %d messages and %d media files", messages, files))
		return
	}

	username := strings.TrimPrefix(args[0], "@")
	messages, files, err := h.messages.PurgeUser(username)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to purge user")
		return
	}
	h.sendReply(ctx, b, fmt.Sprintf("Purged %d messages and %d media files of @%s", messages, files, username))
}

// handleCallback handles inline keyboard callbacks.
func (h *Handlers) handleCallback(ctx context.Context, b *tgbot.Bot, callback *models.CallbackQuery) {
	// Acknowledge the callback
	if _, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{CallbackQueryID: callback.ID}); err != nil {
		logger.Error().Err(err).Msg("Failed to answer callback")
	}

	if callback.From.ID != h.ownerID {
		return
	}

	msg := callback.Message.Message
	if msg == nil {
		return
	}

	switch callback.Data {
	case "toggle_edited", "toggle_deleted", "toggle_scheduled":
		key := strings.Replace(callback.Data, "toggle_", "notify_", 1)
		if err := h.settings.Toggle(key); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to toggle setting")
			return
		}
		h.refreshStatus(ctx, b, msg.Chat.ID, msg.ID)
	default:
		if strings.HasPrefix(callback.Data, "history_") {
			h.handleHistoryCallback(ctx, b, callback.Data, msg)
		}
		if userID, ok := muteTarget(callback.Data); ok {
			h.handleMuteCallback(ctx, b, userID)
		}
	}
}

// muteTarget parses a mute button's callback data into the target user id.
func muteTarget(data string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, "mute_")
	if !ok {
		return 0, false
	}
	userID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// handleMuteCallback flips the mute state of the user behind a
// notification's mute button.
func (h *Handlers) handleMuteCallback(ctx context.Context, b *tgbot.Bot, userID int64) {
	muted, err := h.settings.ToggleUserMuted(userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to toggle user mute")
		return
	}
	if muted {
		h.sendReply(ctx, b, "Notifications for this user muted")
	} else {
		h.sendReply(ctx, b, "Notifications for this user enabled")
	}
}

// handleHistoryCallback renders a message's edit timeline in place of the
// notification that carried the button.
func (h *Handlers) handleHistoryCallback(ctx context.Context, b *tgbot.Bot, data string, msg *models.Message) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 {
		return
	}
	chatID, err1 := strconv.ParseInt(parts[1], 10, 64)
	messageID, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return
	}

	timeline, err := h.history.MessageHistory(chatID, messageID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reconstruct history")
		return
	}
	if timeline == nil {
		return
	}

	_, err = b.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      timelineText(timeline),
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to render history")
	}
}

// sendStatus sends the status overview with the settings keyboard.
func (h *Handlers) sendStatus(ctx context.Context, b *tgbot.Bot, chatID int64) {
	text, keyboard, err := h.statusMessage()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build status")
		return
	}
	_, err = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send status")
	}
}

// refreshStatus re-renders the status message after a toggle.
func (h *Handlers) refreshStatus(ctx context.Context, b *tgbot.Bot, chatID int64, messageID int) {
	text, keyboard, err := h.statusMessage()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build status")
		return
	}
	_, err = b.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to refresh status")
	}
}

func (h *Handlers) statusMessage() (string, *models.InlineKeyboardMarkup, error) {
	settings, err := h.settings.Get()
	if err != nil {
		return "", nil, err
	}
	messages, files, err := h.messages.Stats()
	if err != nil {
		return "", nil, err
	}
	return statusText(messages, files, settings), statusKeyboard(settings), nil
}

func (h *Handlers) sendReply(ctx context.Context, b *tgbot.Bot, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: h.ownerID, Text: text}); err != nil {
		logger.Error().Err(err).Msg("Failed to send message")
	}
}

func (h *Handlers) sendMarkdown(ctx context.Context, b *tgbot.Bot, text string) {
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    h.ownerID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send message")
	}
}
