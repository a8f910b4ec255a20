package messenger

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls   int
	err     error
	sent    *bot.SendMessageParams
	photo   *bot.SendPhotoParams
	answers []*bot.AnswerCallbackQueryParams
}

func (f *fakeClient) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.calls++
	f.sent = p
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: 321}, nil
}

func (f *fakeClient) EditMessageText(_ context.Context, _ *bot.EditMessageTextParams) (*models.Message, error) {
	f.calls++
	return &models.Message{}, f.err
}

func (f *fakeClient) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.calls++
	f.answers = append(f.answers, p)
	return f.err == nil, f.err
}

func (f *fakeClient) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*models.Message, error) {
	f.calls++
	f.photo = p
	return &models.Message{}, f.err
}

func TestTelegramSendMessage(t *testing.T) {
	fc := &fakeClient{}
	tg := NewTelegram(fc)

	id, err := tg.SendMessage(context.Background(), 10, "<b>hi</b>", nil)
	require.NoError(t, err)
	assert.Equal(t, 321, id)
	assert.Nil(t, fc.sent.ReplyMarkup)
	assert.EqualValues(t, "HTML", fc.sent.ParseMode)

	kb := &models.InlineKeyboardMarkup{}
	_, err = tg.SendMessage(context.Background(), 10, "x", kb)
	require.NoError(t, err)
	assert.Equal(t, kb, fc.sent.ReplyMarkup)
}

func TestTelegramDoesNotRetryForbidden(t *testing.T) {
	fc := &fakeClient{err: bot.ErrorForbidden}
	tg := NewTelegram(fc)

	_, err := tg.SendMessage(context.Background(), 10, "x", nil)
	assert.True(t, errors.Is(err, bot.ErrorForbidden))
	assert.Equal(t, 1, fc.calls)
}

func TestTelegramSendImageReply(t *testing.T) {
	fc := &fakeClient{}
	tg := NewTelegram(fc)

	require.NoError(t, tg.SendImage(context.Background(), 10, "file-id", "caption", 55))
	require.NotNil(t, fc.photo.ReplyParameters)
	assert.Equal(t, 55, fc.photo.ReplyParameters.MessageID)
	assert.Equal(t, &models.InputFileString{Data: "file-id"}, fc.photo.Photo)
}

func TestTelegramAnswerCallback(t *testing.T) {
	fc := &fakeClient{}
	tg := NewTelegram(fc)

	require.NoError(t, tg.AnswerCallback(context.Background(), "cb", "done", true))
	require.Len(t, fc.answers, 1)
	assert.Equal(t, "cb", fc.answers[0].CallbackQueryID)
	assert.True(t, fc.answers[0].ShowAlert)
}
