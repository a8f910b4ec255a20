package messenger

import (
	"context"
	"errors"
	"sync"

	"github.com/go-telegram/bot/models"
)

var ErrRecorderFailure = errors.New("recorder: injected failure")

type Sent struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *models.InlineKeyboardMarkup
}

type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *models.InlineKeyboardMarkup
}

type Answer struct {
	CallbackID string
	Text       string
	Alert      bool
}

type Image struct {
	ChatID  int64
	Ref     string
	Caption string
	ReplyTo int
}

// Recorder is an in-memory Messenger for tests.
type Recorder struct {
	mu      sync.Mutex
	nextID  int
	Sent    []Sent
	Edits   []Edit
	Answers []Answer
	Images  []Image

	FailSend  map[int64]bool
	FailEdits bool
}

func NewRecorder() *Recorder {
	return &Recorder{FailSend: make(map[int64]bool)}
}

func (r *Recorder) SendMessage(_ context.Context, chatID int64, text string, kb *models.InlineKeyboardMarkup) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend[chatID] {
		return 0, ErrRecorderFailure
	}
	r.nextID++
	r.Sent = append(r.Sent, Sent{ChatID: chatID, MessageID: r.nextID, Text: text, Keyboard: kb})
	return r.nextID, nil
}

func (r *Recorder) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb *models.InlineKeyboardMarkup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEdits {
		return ErrRecorderFailure
	}
	r.Edits = append(r.Edits, Edit{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answers = append(r.Answers, Answer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

func (r *Recorder) SendImage(_ context.Context, chatID int64, ref, caption string, replyTo int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend[chatID] {
		return ErrRecorderFailure
	}
	r.Images = append(r.Images, Image{ChatID: chatID, Ref: ref, Caption: caption, ReplyTo: replyTo})
	return nil
}

// SentTo returns the messages delivered to chatID in order.
func (r *Recorder) SentTo(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) AnswersFor(callbackID string) []Answer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Answer
	for _, a := range r.Answers {
		if a.CallbackID == callbackID {
			out = append(out, a)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent, r.Edits, r.Answers, r.Images = nil, nil, nil, nil
}
