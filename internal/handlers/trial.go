package handlers

import (
	"context"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

func (h *Handlers) grantTrial(ctx context.Context, cb *middleware.Callback, user *types.User) error {
	res, err := h.subs.GrantTrial(ctx, user.ID)
	if err != nil {
		return err
	}
	if res.Active != nil {
		h.answerCallbackAlert(ctx, cb, messages.AlreadySubscribed(res.Active, h.subs.Now()))
		return nil
	}
	if !res.Granted {
		h.answerCallbackAlert(ctx, cb, messages.TrialAlreadyUsed())
		return nil
	}
	h.editOrSend(ctx, cb.ChatID, cb.MessageID, messages.TrialActivated(res.Subscription), messages.ActivatedKeyboard())
	h.answerCallback(ctx, cb, "🎉")
	return nil
}
