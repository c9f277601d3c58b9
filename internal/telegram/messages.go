package telegram

import (
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mrvasil/telegram-spybot/internal/storage"
)

// formatQuote renders text as a MarkdownV2 block quote, one marker per
// line.
func formatQuote(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(tgbot.EscapeMarkdown(text), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}

func onOff(enabled bool) string {
	if enabled {
		return "🟢 ON"
	}
	return "🔴 OFF"
}

// statusText builds the status overview shown to the operator.
func statusText(messages, files int64, settings *storage.Settings) string {
	return fmt.Sprintf(
		"*Bot Status:*\n\nMessages saved: *%d*\nMedia files saved: *%d*\nEdit threshold: *%d*\n\n*Settings:*",
		messages, files, settings.EditThreshold,
	)
}

// statusKeyboard builds the settings toggle keyboard, one button per row.
func statusKeyboard(settings *storage.Settings) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Edited: " + onOff(settings.NotifyEdited), CallbackData: "toggle_edited"}},
			{{Text: "Deleted: " + onOff(settings.NotifyDeleted), CallbackData: "toggle_deleted"}},
			{{Text: "Scheduled: " + onOff(settings.NotifyScheduled), CallbackData: "toggle_scheduled"}},
		},
	}
}

// editKeyboard builds the buttons attached to an edit notification: the
// message's timeline, and a mute toggle for its author.
func editKeyboard(chatID int64, messageID int, userID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Edit History", CallbackData: fmt.Sprintf("history_%d_%d", chatID, messageID)},
			{Text: "Mute user", CallbackData: fmt.Sprintf("mute_%d", userID)},
		}},
	}
}

// editNotification announces an edit with the before and after texts
// quoted.
func editNotification(username, oldText, newText string) string {
	return fmt.Sprintf(
		"✏️ @%s edited a message\n\n%s\n↓\n%s",
		tgbot.EscapeMarkdown(username),
		formatQuote(oldText),
		formatQuote(newText),
	)
}

// deleteNotification announces a deletion with the last known text and
// forwarding provenance.
func deleteNotification(msg *storage.StoredMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🗑️ @%s deleted a message:\n\n", tgbot.EscapeMarkdown(msg.Username))
	if msg.IsForwarded && msg.ForwardFrom != "" {
		fmt.Fprintf(&sb, "_Forwarded from %s_\n", tgbot.EscapeMarkdown(msg.ForwardFrom))
	}
	sb.WriteString(formatQuote(msg.Text))
	return sb.String()
}

// timelineText renders a message's full edit history, oldest first.
func timelineText(timeline *storage.MessageTimeline) string {
	var sb strings.Builder
	sb.WriteString("📝 Edit History:\n\n")

	fmt.Fprintf(&sb, "%s\n", formatQuote(timeline.OriginalText))
	for _, action := range timeline.Actions {
		stamp := tgbot.EscapeMarkdown(action.ActionDate.Format("15:04:05"))
		if action.Action == storage.ActionDelete {
			fmt.Fprintf(&sb, "↓\n_%s deleted_\n", stamp)
			continue
		}
		fmt.Fprintf(&sb, "↓\n_%s_\n%s\n", stamp, formatQuote(action.NewText.String))
	}
	return sb.String()
}

// userHistoryText renders a user-scoped action listing, newest first.
func userHistoryText(username string, actions []storage.UserAction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Recent actions of @%s:\n\n", tgbot.EscapeMarkdown(username))
	for _, action := range actions {
		stamp := tgbot.EscapeMarkdown(action.ActionDate.Format("02.01 15:04:05"))
		fmt.Fprintf(&sb, "_%s %s_\n%s\n", stamp, action.Label(), formatQuote(action.Text()))
	}
	return sb.String()
}
