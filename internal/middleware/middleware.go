package middleware

import (
	"strings"
	"sync/atomic"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/callbacks"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type BodyKind int

const (
	BodyOther BodyKind = iota
	BodyText
	BodyImage
)

// Body is the payload of a content message. Text is set for BodyText and
// ImageRef holds the file id of the largest photo variant for BodyImage.
type Body struct {
	Kind     BodyKind
	Text     string
	ImageRef string
}

type Content struct {
	UpdateID  int64
	ChatID    int64
	MessageID int
	Profile   types.Profile
	Body      Body
}

// Command returns the bot command without the slash and any @botname suffix.
func (c *Content) Command() (string, bool) {
	if c.Body.Kind != BodyText || !strings.HasPrefix(c.Body.Text, "/") {
		return "", false
	}
	cmd := strings.Fields(c.Body.Text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), cmd != ""
}

func (c *Content) MessageType() contextkeys.MessageType {
	switch c.Body.Kind {
	case BodyImage:
		return contextkeys.MessageTypePhoto
	case BodyText:
		if _, ok := c.Command(); ok {
			return contextkeys.MessageTypeCommand
		}
		return contextkeys.MessageTypeText
	default:
		return contextkeys.MessageTypeUnknown
	}
}

type Callback struct {
	ID        string
	UpdateID  int64
	UserID    int64
	ChatID    int64
	MessageID int
	Profile   types.Profile
	Action    callbacks.Action

	answered atomic.Bool
}

// MarkAnswered reports true only for the first caller.
func (c *Callback) MarkAnswered() bool {
	return c.answered.CompareAndSwap(false, true)
}

func (c *Callback) Answered() bool {
	return c.answered.Load()
}

// Inbound holds at most one of Callback or Content; both nil means the update
// carries nothing this bot handles.
type Inbound struct {
	UpdateID int64
	Callback *Callback
	Content  *Content
}

func Classify(update *models.Update) Inbound {
	in := Inbound{UpdateID: update.ID}

	if cq := update.CallbackQuery; cq != nil {
		chatID, messageID := messageRef(cq.Message)
		if chatID == 0 {
			chatID = cq.From.ID
		}
		in.Callback = &Callback{
			ID:        cq.ID,
			UpdateID:  update.ID,
			UserID:    cq.From.ID,
			ChatID:    chatID,
			MessageID: messageID,
			Profile:   profile(chatID, &cq.From),
			Action:    callbacks.Parse(cq.Data),
		}
		return in
	}

	if msg := update.Message; msg != nil {
		in.Content = &Content{
			UpdateID:  update.ID,
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			Profile:   profile(msg.Chat.ID, msg.From),
			Body:      classifyBody(msg),
		}
	}
	return in
}

func classifyBody(msg *models.Message) Body {
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for i := 1; i < len(msg.Photo); i++ {
			if msg.Photo[i].FileSize >= best.FileSize {
				best = msg.Photo[i]
			}
		}
		return Body{Kind: BodyImage, ImageRef: best.FileID}
	}
	if text := strings.TrimSpace(msg.Text); text != "" {
		return Body{Kind: BodyText, Text: text}
	}
	return Body{Kind: BodyOther}
}

func messageRef(m models.MaybeInaccessibleMessage) (int64, int) {
	if m.Message != nil {
		return m.Message.Chat.ID, m.Message.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID, m.InaccessibleMessage.MessageID
	}
	return 0, 0
}

func profile(chatID int64, u *models.User) types.Profile {
	p := types.Profile{ChatID: chatID}
	if u != nil {
		p.Username = u.Username
		p.FirstName = u.FirstName
		p.LastName = u.LastName
	}
	return p
}
