package messenger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sethvargo/go-retry"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
)

// Client is the subset of *bot.Bot the adapter needs.
type Client interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

type Telegram struct {
	client     Client
	maxRetries uint64
	baseDelay  time.Duration
}

func NewTelegram(client Client) *Telegram {
	return &Telegram{
		client:     client,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
}

// do retries only rate-limit replies; every other failure is returned as is.
func (t *Telegram) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && bot.IsTooManyRequestsError(err) {
			logger.TG.Warn("rate limited", slog.String("event", "tg.retry"), slog.String("op", op))
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, bot.ErrorForbidden) {
		logger.TG.Info("bot blocked by chat", slog.String("event", "tg.forbidden"), slog.String("op", op))
	}
	return err
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, kb *models.InlineKeyboardMarkup) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	var id int
	err := t.do(ctx, "send_message", func(ctx context.Context) error {
		msg, err := t.client.SendMessage(ctx, params)
		if err != nil {
			return err
		}
		if msg != nil {
			id = msg.ID
		}
		return nil
	})
	return id, err
}

func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *models.InlineKeyboardMarkup) error {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	return t.do(ctx, "edit_message", func(ctx context.Context) error {
		_, err := t.client.EditMessageText(ctx, params)
		return err
	})
}

func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return t.do(ctx, "answer_callback", func(ctx context.Context) error {
		_, err := t.client.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: callbackID,
			Text:            text,
			ShowAlert:       alert,
		})
		return err
	})
}

func (t *Telegram) SendImage(ctx context.Context, chatID int64, ref, caption string, replyTo int) error {
	params := &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileString{Data: ref},
		Caption: caption,
	}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}
	return t.do(ctx, "send_photo", func(ctx context.Context) error {
		_, err := t.client.SendPhoto(ctx, params)
		return err
	})
}
