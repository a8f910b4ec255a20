package messenger

import (
	"context"

	"github.com/go-telegram/bot/models"
)

// Messenger is the outbound side of the bot. Texts are HTML.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *models.InlineKeyboardMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *models.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	// SendImage re-sends a stored photo; replyTo 0 means a standalone message.
	SendImage(ctx context.Context, chatID int64, ref, caption string, replyTo int) error
}
