// Package telegram provides the Telegram transport: update dispatch for the
// monitored business connection, operator commands and notifications.
package telegram

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"

	"github.com/mrvasil/telegram-spybot/internal/storage"
	"github.com/mrvasil/telegram-spybot/pkg/logger"
)

// Bot represents the Telegram bot.
type Bot struct {
	api      *tgbot.Bot
	handlers *Handlers
}

// NewBot creates a new Telegram bot instance listening for business
// connection updates alongside the operator's own chat.
func NewBot(token string, ownerID int64, messages *storage.MessageStore, settings *storage.SettingsStore, history *storage.HistoryStore) (*Bot, error) {
	handlers := NewHandlers(ownerID, messages, settings, history)

	api, err := tgbot.New(token,
		tgbot.WithDefaultHandler(handlers.HandleUpdate),
		tgbot.WithAllowedUpdates(tgbot.AllowedUpdates{
			"message",
			"business_connection",
			"business_message",
			"edited_business_message",
			"deleted_business_messages",
			"callback_query",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{api: api, handlers: handlers}, nil
}

// Start begins long polling for updates and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	logger.Info().Msg("Telegram bot started, listening for updates")
	b.api.Start(ctx)
	logger.Info().Msg("Telegram bot stopped")
}
