package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

// handleStart registers the chat, or refreshes it, and shows the main menu.
func (h *Handlers) handleStart(ctx context.Context, msg *middleware.Content) error {
	user, err := h.repo.UpsertUser(ctx, msg.Profile)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	h.log(ctx).Info("user started", slog.String("event", "user.start"), slog.Int64("user_id", user.ID))

	text, kb, err := h.mainMenu(ctx, user)
	if err != nil {
		return err
	}
	h.send(ctx, msg.ChatID, text, kb)
	return nil
}

func (h *Handlers) mainMenu(ctx context.Context, user *types.User) (string, *models.InlineKeyboardMarkup, error) {
	sub, err := h.subs.Active(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	if sub != nil {
		return messages.ActiveMenu(user.DisplayName(), sub, h.subs.Now()), messages.ActiveMenuKeyboard(), nil
	}
	trial, err := h.subs.TrialAvailable(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return messages.Welcome(user.DisplayName(), trial), messages.WelcomeKeyboard(trial), nil
}

func (h *Handlers) showMainMenu(ctx context.Context, cb *middleware.Callback, user *types.User) error {
	text, kb, err := h.mainMenu(ctx, user)
	if err != nil {
		return err
	}
	h.editOrSend(ctx, cb.ChatID, cb.MessageID, text, kb)
	h.answerCallback(ctx, cb, "")
	return nil
}

func (h *Handlers) showPlans(ctx context.Context, cb *middleware.Callback) error {
	plans := h.catalog.Paid()
	h.editOrSend(ctx, cb.ChatID, cb.MessageID, messages.PlansList(plans), messages.PlansKeyboard(plans))
	h.answerCallback(ctx, cb, "")
	return nil
}

// selectPlan shows payment details and starts a fresh session for the plan.
func (h *Handlers) selectPlan(ctx context.Context, cb *middleware.Callback) error {
	plan, ok := h.catalog.LookupPaid(cb.Action.Plan)
	if !ok {
		h.answerCallbackAlert(ctx, cb, messages.InvalidPlan())
		return nil
	}
	session := &types.Session{ChatID: cb.ChatID, State: types.StateNone, SelectedPlan: plan.Type}
	if err := h.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	h.editOrSend(ctx, cb.ChatID, cb.MessageID, messages.PlanDetails(plan, h.opts.PaymentInstructions), messages.PlanDetailsKeyboard(plan.Type))
	h.answerCallback(ctx, cb, "")
	return nil
}

func (h *Handlers) showStatus(ctx context.Context, chatID int64, user *types.User) error {
	sub, err := h.subs.Active(ctx, user.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		h.send(ctx, chatID, messages.NoSubscription(), messages.BackToMenuKeyboard())
		return nil
	}
	h.send(ctx, chatID, messages.Status(sub, h.subs.Now()), messages.StatusKeyboard())
	return nil
}

func (h *Handlers) subscriptionInfo(ctx context.Context, cb *middleware.Callback, user *types.User) error {
	sub, err := h.subs.Active(ctx, user.ID)
	if err != nil {
		return err
	}
	if sub == nil {
		h.editOrSend(ctx, cb.ChatID, cb.MessageID, messages.NoSubscription(), messages.BackToMenuKeyboard())
	} else {
		h.editOrSend(ctx, cb.ChatID, cb.MessageID, messages.SubscriptionDetails(sub, h.subs.Now()), messages.BackToMenuKeyboard())
	}
	h.answerCallback(ctx, cb, "")
	return nil
}
