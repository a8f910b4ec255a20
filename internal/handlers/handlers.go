package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/callbacks"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messenger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/review"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/subscriptions"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const DefaultSkipLockTTL = 15 * time.Second

type Options struct {
	SkipLockTTL         time.Duration
	RenewalWindow       time.Duration
	PendingLookback     time.Duration
	PaymentInstructions string
	SupportContact      string
	// OperatorChatID receives failure reports; 0 falls back to the first admin.
	OperatorChatID int64
}

type Deps struct {
	Repo          types.Repository
	Sessions      types.SessionStore
	Locks         types.LockStore
	Catalog       *pricing.Catalog
	Subscriptions *subscriptions.Service
	Review        *review.Service
	Messenger     messenger.Messenger
}

type Handlers struct {
	repo      types.Repository
	sessions  types.SessionStore
	locks     types.LockStore
	catalog   *pricing.Catalog
	subs      *subscriptions.Service
	review    *review.Service
	messenger messenger.Messenger
	opts      Options
}

func NewHandlers(deps Deps, opts Options) *Handlers {
	if opts.SkipLockTTL <= 0 {
		opts.SkipLockTTL = DefaultSkipLockTTL
	}
	if opts.RenewalWindow <= 0 {
		opts.RenewalWindow = 3 * 24 * time.Hour
	}
	if opts.PendingLookback <= 0 {
		opts.PendingLookback = 24 * time.Hour
	}
	return &Handlers{
		repo:      deps.Repo,
		sessions:  deps.Sessions,
		locks:     deps.Locks,
		catalog:   deps.Catalog,
		subs:      deps.Subscriptions,
		review:    deps.Review,
		messenger: deps.Messenger,
		opts:      opts,
	}
}

func (h *Handlers) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, logger.Flow)
}

// HandleCallback routes a button press. Admin actions do not require the
// presser to be a registered user; everything else does.
func (h *Handlers) HandleCallback(ctx context.Context, cb *middleware.Callback) error {
	switch cb.Action.Kind {
	case callbacks.KindApprove:
		return h.handleApprove(ctx, cb)
	case callbacks.KindReject:
		return h.handleReject(ctx, cb)
	case callbacks.KindUserProfile:
		return h.handleUserProfile(ctx, cb)
	case callbacks.KindUnknown:
		h.answerCallback(ctx, cb, messages.UnknownAction())
		return nil
	}

	user, err := h.repo.GetUserByChatID(ctx, cb.ChatID)
	if errors.Is(err, types.ErrNotFound) {
		h.answerCallbackAlert(ctx, cb, messages.NotRegisteredAlert())
		return nil
	}
	if err != nil {
		return err
	}
	h.refreshProfile(ctx, user, cb.Profile)

	switch cb.Action.Kind {
	case callbacks.KindBackToStart:
		return h.showMainMenu(ctx, cb, user)
	case callbacks.KindShowPlans:
		return h.showPlans(ctx, cb)
	case callbacks.KindSelectPlan:
		return h.selectPlan(ctx, cb)
	case callbacks.KindConfirmPayment:
		return h.confirmPayment(ctx, cb, user)
	case callbacks.KindCancelPayment:
		return h.cancelPayment(ctx, cb, user)
	case callbacks.KindSkipTransaction:
		return h.skipTransaction(ctx, cb, user)
	case callbacks.KindTrial:
		return h.grantTrial(ctx, cb, user)
	case callbacks.KindStartUsing:
		h.send(ctx, cb.ChatID, messages.StartUsing(), nil)
		h.answerCallback(ctx, cb, "")
		return nil
	case callbacks.KindHelp:
		h.send(ctx, cb.ChatID, messages.Help(h.opts.SupportContact), messages.BackToMenuKeyboard())
		h.answerCallback(ctx, cb, "")
		return nil
	case callbacks.KindSubscriptionInfo:
		return h.subscriptionInfo(ctx, cb, user)
	}

	h.answerCallback(ctx, cb, messages.UnknownAction())
	return nil
}

// HandleContent handles a text, photo or other message.
func (h *Handlers) HandleContent(ctx context.Context, msg *middleware.Content) error {
	if cmd, ok := msg.Command(); ok && cmd == "start" {
		return h.handleStart(ctx, msg)
	}

	user, err := h.repo.GetUserByChatID(ctx, msg.ChatID)
	if errors.Is(err, types.ErrNotFound) {
		h.send(ctx, msg.ChatID, messages.PleaseRegister(), nil)
		return nil
	}
	if err != nil {
		return err
	}
	h.refreshProfile(ctx, user, msg.Profile)

	session, err := h.sessions.GetSession(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	cmd, isCommand := msg.Command()
	if session.Expired {
		if !isCommand {
			return h.handlePaymentContent(ctx, msg, user, session)
		}
		if err := h.sessions.ClearSession(ctx, msg.ChatID); err != nil {
			return err
		}
		session = &types.Session{ChatID: msg.ChatID, State: types.StateNone}
	}
	if session.State != types.StateNone {
		return h.handlePaymentContent(ctx, msg, user, session)
	}

	if !isCommand {
		return nil
	}
	switch cmd {
	case "verify":
		return h.verify(ctx, msg, user, session)
	case "status":
		return h.showStatus(ctx, msg.ChatID, user)
	case "help":
		h.send(ctx, msg.ChatID, messages.Help(h.opts.SupportContact), messages.BackToMenuKeyboard())
	}
	return nil
}

// EnsureAnswered acknowledges a callback that no handler answered.
func (h *Handlers) EnsureAnswered(ctx context.Context, cb *middleware.Callback) {
	h.answerCallback(ctx, cb, "")
}

// AnswerFailure shows the user a single generic error for the inbound event.
func (h *Handlers) AnswerFailure(ctx context.Context, in middleware.Inbound) {
	switch {
	case in.Callback != nil:
		if in.Callback.MarkAnswered() {
			if err := h.messenger.AnswerCallback(ctx, in.Callback.ID, messages.ErrorShort(), true); err != nil {
				h.log(ctx).Warn("answer callback failed", slog.String("event", "tg.answer_failed"), slog.Any("err", err))
			}
			return
		}
		h.send(ctx, in.Callback.ChatID, messages.ErrorDefault(), nil)
	case in.Content != nil:
		h.send(ctx, in.Content.ChatID, messages.ErrorDefault(), nil)
	}
}

// ReportFailure forwards an unexpected error to the operator chat.
func (h *Handlers) ReportFailure(ctx context.Context, updateID int64, traceID string, err error) {
	chatID := h.opts.OperatorChatID
	if chatID == 0 {
		if admins := h.review.Admins(); len(admins) > 0 {
			chatID = admins[0]
		}
	}
	if chatID == 0 {
		return
	}
	h.send(ctx, chatID, messages.OperatorFailure(updateID, traceID, err), nil)
}

func (h *Handlers) refreshProfile(ctx context.Context, user *types.User, p types.Profile) {
	if user.Username == p.Username && user.FirstName == p.FirstName && user.LastName == p.LastName {
		return
	}
	if err := h.repo.RefreshUser(ctx, user.ID, p); err != nil {
		h.log(ctx).Warn("refresh user failed", slog.String("event", "user.refresh_failed"), slog.Int64("user_id", user.ID), slog.Any("err", err))
		return
	}
	user.Username, user.FirstName, user.LastName = p.Username, p.FirstName, p.LastName
}

func (h *Handlers) answerCallback(ctx context.Context, cb *middleware.Callback, text string) {
	h.answer(ctx, cb, text, false)
}

func (h *Handlers) answerCallbackAlert(ctx context.Context, cb *middleware.Callback, text string) {
	h.answer(ctx, cb, text, true)
}

func (h *Handlers) answer(ctx context.Context, cb *middleware.Callback, text string, alert bool) {
	if !cb.MarkAnswered() {
		return
	}
	if err := h.messenger.AnswerCallback(ctx, cb.ID, text, alert); err != nil {
		h.log(ctx).Warn("answer callback failed", slog.String("event", "tg.answer_failed"), slog.Any("err", err))
	}
}

// send is best-effort: failures are logged and the message id is 0.
func (h *Handlers) send(ctx context.Context, chatID int64, text string, kb *models.InlineKeyboardMarkup) int {
	id, err := h.messenger.SendMessage(ctx, chatID, text, kb)
	if err != nil {
		h.log(ctx).Warn("send message failed", slog.String("event", "tg.send_failed"), slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
	return id
}

// editOrSend replaces the message a button belongs to, falling back to a new
// message when there is nothing to edit or the edit is refused.
func (h *Handlers) editOrSend(ctx context.Context, chatID int64, messageID int, text string, kb *models.InlineKeyboardMarkup) {
	if messageID != 0 {
		err := h.messenger.EditMessage(ctx, chatID, messageID, text, kb)
		if err == nil {
			return
		}
		h.log(ctx).Debug("edit message failed", slog.String("event", "tg.edit_failed"), slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
	h.send(ctx, chatID, text, kb)
}
