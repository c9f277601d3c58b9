package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mrvasil/telegram-spybot/internal/media"
	"github.com/mrvasil/telegram-spybot/internal/storage"
	"github.com/mrvasil/telegram-spybot/pkg/logger"
)

// downloadFile exchanges a transport file reference for its bytes and
// writes them to path.
func downloadFile(ctx context.Context, b *tgbot.Bot, fileID, path string) error {
	file, err := b.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// sendStoredMedia replays a deleted message's cached attachments to the
// operator. The notification text rides as the caption of the first
// attachment that can carry one; stickers and video notes cannot, so the
// text follows as a reply. With no (reachable) attachments at all, the
// text is sent on its own.
func (h *Handlers) sendStoredMedia(ctx context.Context, b *tgbot.Bot, text string, files []storage.MediaFile) {
	sentText := false

	for _, f := range files {
		caption := ""
		if !sentText {
			caption = text
		}

		var replyTo int
		var err error

		switch f.Kind {
		case media.KindSticker:
			// Stickers are never cached; resend by file id.
			var sent *models.Message
			sent, err = b.SendSticker(ctx, &tgbot.SendStickerParams{
				ChatID:  h.ownerID,
				Sticker: &models.InputFileString{Data: f.FileID},
			})
			if err == nil {
				replyTo = sent.ID
			}
		case media.KindVideoNote:
			var sent *models.Message
			sent, err = h.sendVideoNote(ctx, b, f.LocalPath)
			if err == nil {
				replyTo = sent.ID
			}
		default:
			err = h.sendCaptioned(ctx, b, f, caption)
			if err == nil && caption != "" {
				sentText = true
			}
		}

		if err != nil {
			logger.Error().Err(err).Str("path", f.LocalPath).Msg("Failed to resend attachment")
			continue
		}

		// Attachment kinds without captions get the text as a reply.
		if replyTo != 0 && !sentText {
			_, err = b.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID:          h.ownerID,
				Text:            text,
				ParseMode:       models.ParseModeMarkdown,
				ReplyParameters: &models.ReplyParameters{MessageID: replyTo},
			})
			if err != nil {
				logger.Error().Err(err).Msg("Failed to send notification text")
			} else {
				sentText = true
			}
		}
	}

	if !sentText {
		h.sendMarkdown(ctx, b, text)
	}
}

// sendCaptioned resends one cached attachment with an optional caption.
func (h *Handlers) sendCaptioned(ctx context.Context, b *tgbot.Bot, f storage.MediaFile, caption string) error {
	upload, closeFile, err := openUpload(f.LocalPath)
	if err != nil {
		return err
	}
	defer closeFile()

	switch f.Kind {
	case media.KindPhoto:
		_, err = b.SendPhoto(ctx, &tgbot.SendPhotoParams{
			ChatID:                h.ownerID,
			Photo:                 upload,
			Caption:               caption,
			ParseMode:             models.ParseModeMarkdown,
			ShowCaptionAboveMedia: true,
		})
	case media.KindVideo:
		_, err = b.SendVideo(ctx, &tgbot.SendVideoParams{
			ChatID:                h.ownerID,
			Video:                 upload,
			Caption:               caption,
			ParseMode:             models.ParseModeMarkdown,
			ShowCaptionAboveMedia: true,
		})
	case media.KindVoice:
		_, err = b.SendVoice(ctx, &tgbot.SendVoiceParams{
			ChatID:    h.ownerID,
			Voice:     upload,
			Caption:   caption,
			ParseMode: models.ParseModeMarkdown,
		})
	case media.KindAudio:
		_, err = b.SendAudio(ctx, &tgbot.SendAudioParams{
			ChatID:    h.ownerID,
			Audio:     upload,
			Caption:   caption,
			ParseMode: models.ParseModeMarkdown,
		})
	case media.KindAnimation:
		_, err = b.SendAnimation(ctx, &tgbot.SendAnimationParams{
			ChatID:                h.ownerID,
			Animation:             upload,
			Caption:               caption,
			ParseMode:             models.ParseModeMarkdown,
			ShowCaptionAboveMedia: true,
		})
	default:
		_, err = b.SendDocument(ctx, &tgbot.SendDocumentParams{
			ChatID:    h.ownerID,
			Document:  upload,
			Caption:   caption,
			ParseMode: models.ParseModeMarkdown,
		})
	}
	return err
}

func (h *Handlers) sendVideoNote(ctx context.Context, b *tgbot.Bot, path string) (*models.Message, error) {
	upload, closeFile, err := openUpload(path)
	if err != nil {
		return nil, err
	}
	defer closeFile()

	return b.SendVideoNote(ctx, &tgbot.SendVideoNoteParams{
		ChatID:    h.ownerID,
		VideoNote: upload,
	})
}

func openUpload(path string) (*models.InputFileUpload, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	upload := &models.InputFileUpload{
		Filename: filepath.Base(path),
		Data:     file,
	}
	return upload, func() { file.Close() }, nil
}
