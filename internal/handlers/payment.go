package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/conversation"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

func skipLockName(userID int64) string {
	return "skip:" + strconv.FormatInt(userID, 10)
}

func contentInput(body middleware.Body) conversation.Input {
	switch body.Kind {
	case middleware.BodyText:
		return conversation.Input{Kind: conversation.InputText, Text: body.Text}
	case middleware.BodyImage:
		return conversation.Input{Kind: conversation.InputImage, ImageRef: body.ImageRef}
	default:
		return conversation.Input{Kind: conversation.InputOther}
	}
}

// commit writes back or removes the session as the step demands.
func (h *Handlers) commit(ctx context.Context, step conversation.Step) error {
	switch {
	case step.Persist():
		if err := h.sessions.SaveSession(ctx, &step.Next); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	case step.Clear():
		if err := h.sessions.ClearSession(ctx, step.Next.ChatID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	}
	return nil
}

// apply commits a step and sends what its outcome calls for. messageID is the
// message a pressed button belongs to, 0 for typed content.
func (h *Handlers) apply(ctx context.Context, chatID int64, messageID int, user *types.User, step conversation.Step) error {
	h.log(ctx).Debug("payment step",
		slog.String("event", "payment.step"),
		slog.Int64("chat_id", chatID),
		slog.String("outcome", step.Outcome.String()),
	)

	if step.Outcome == conversation.OutcomeSubmit {
		return h.submit(ctx, chatID, user, step)
	}
	if err := h.commit(ctx, step); err != nil {
		return err
	}

	switch step.Outcome {
	case conversation.OutcomeAwaitProof:
		plan, _ := h.catalog.LookupPaid(step.Next.SelectedPlan)
		h.log(ctx).Info("awaiting payment proof", slog.String("event", "payment.await_proof"), slog.Int64("chat_id", chatID), slog.String("plan", string(plan.Type)))
		h.send(ctx, chatID, messages.ProofPrompt(plan), messages.CancelKeyboard())
	case conversation.OutcomeRepromptProof:
		h.send(ctx, chatID, messages.ProofReprompt(), messages.CancelKeyboard())
	case conversation.OutcomeAwaitTransactionID:
		h.send(ctx, chatID, messages.TransactionPrompt(), messages.TransactionKeyboard())
	case conversation.OutcomeRepromptTransactionID:
		h.send(ctx, chatID, messages.TransactionReprompt(), messages.TransactionKeyboard())
	case conversation.OutcomeCancelled:
		h.log(ctx).Info("payment cancelled", slog.String("event", "payment.cancelled"), slog.Int64("chat_id", chatID))
		h.editOrSend(ctx, chatID, messageID, messages.PaymentCancelled(), messages.BackToMenuKeyboard())
	case conversation.OutcomeExpired:
		h.log(ctx).Info("payment session expired", slog.String("event", "payment.expired"), slog.Int64("chat_id", chatID))
		h.send(ctx, chatID, messages.SessionExpired(), messages.BackToMenuKeyboard())
	}
	return nil
}

func (h *Handlers) confirmPayment(ctx context.Context, cb *middleware.Callback, user *types.User) error {
	plan, ok := h.catalog.LookupPaid(cb.Action.Plan)
	if !ok {
		h.answerCallbackAlert(ctx, cb, messages.InvalidPlan())
		return nil
	}
	session, err := h.sessions.GetSession(ctx, cb.ChatID)
	if err != nil {
		return err
	}
	step := conversation.Advance(*session, conversation.Input{Kind: conversation.InputConfirmPayment, Plan: plan.Type})
	if err := h.apply(ctx, cb.ChatID, cb.MessageID, user, step); err != nil {
		return err
	}
	h.answerCallback(ctx, cb, messages.ProofPromptAlert())
	return nil
}

// verify starts the receipt flow for the plan picked earlier in the menu.
func (h *Handlers) verify(ctx context.Context, msg *middleware.Content, user *types.User, session *types.Session) error {
	plan, ok := h.catalog.LookupPaid(session.SelectedPlan)
	if !ok {
		plans := h.catalog.Paid()
		h.send(ctx, msg.ChatID, messages.PlansList(plans), messages.PlansKeyboard(plans))
		return nil
	}
	step := conversation.Advance(*session, conversation.Input{Kind: conversation.InputConfirmPayment, Plan: plan.Type})
	return h.apply(ctx, msg.ChatID, 0, user, step)
}

func (h *Handlers) handlePaymentContent(ctx context.Context, msg *middleware.Content, user *types.User, session *types.Session) error {
	step := conversation.Advance(*session, contentInput(msg.Body))
	return h.apply(ctx, msg.ChatID, 0, user, step)
}

// skipTransaction submits without a transaction id. The per-user lock keeps a
// double tap from opening two requests.
func (h *Handlers) skipTransaction(ctx context.Context, cb *middleware.Callback, user *types.User) error {
	name := skipLockName(user.ID)
	token, ok, err := h.locks.AcquireLock(ctx, name, h.opts.SkipLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		h.answerCallback(ctx, cb, messages.Processing())
		return nil
	}
	defer func() {
		if err := h.locks.ReleaseLock(context.WithoutCancel(ctx), name, token); err != nil {
			h.log(ctx).Warn("release skip lock failed", slog.String("event", "lock.release_failed"), slog.Any("err", err))
		}
	}()

	session, err := h.sessions.GetSession(ctx, cb.ChatID)
	if err != nil {
		return err
	}
	step := conversation.Advance(*session, conversation.Input{Kind: conversation.InputSkip})
	if err := h.apply(ctx, cb.ChatID, cb.MessageID, user, step); err != nil {
		return err
	}
	h.answerCallback(ctx, cb, "")
	return nil
}

func (h *Handlers) cancelPayment(ctx context.Context, cb *middleware.Callback, user *types.User) error {
	session, err := h.sessions.GetSession(ctx, cb.ChatID)
	if err != nil {
		return err
	}
	step := conversation.Advance(*session, conversation.Input{Kind: conversation.InputCancel})
	if err := h.apply(ctx, cb.ChatID, cb.MessageID, user, step); err != nil {
		return err
	}
	h.answerCallback(ctx, cb, messages.PaymentCancelledAlert())
	return nil
}

// submit opens a pending verification request, then clears the session and
// tells both sides. Only the insert can fail the call.
func (h *Handlers) submit(ctx context.Context, chatID int64, user *types.User, step conversation.Step) error {
	sub := step.Submission
	plan, ok := h.catalog.LookupPaid(sub.Plan)
	if !ok {
		return h.apply(ctx, chatID, 0, user, conversation.Step{Next: step.Next, Outcome: conversation.OutcomeExpired})
	}
	proof := sub.ProofRef
	req := &types.VerificationRequest{
		UserID:          user.ID,
		PlanType:        plan.Type,
		PaymentProofRef: &proof,
		TransactionID:   sub.TransactionID,
	}
	if err := h.repo.CreateVerificationRequest(ctx, req); err != nil {
		return fmt.Errorf("create verification request: %w", err)
	}
	if err := h.commit(ctx, step); err != nil {
		h.log(ctx).Warn("clear session failed", slog.String("event", "session.clear_failed"), slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
	h.log(ctx).Info("verification request created",
		slog.String("event", "payment.submitted"),
		slog.Int64("request_id", req.ID),
		slog.Int64("user_id", user.ID),
		slog.String("plan", string(plan.Type)),
		slog.Bool("has_transaction_id", req.TransactionID != nil),
	)

	h.notifyAdmins(ctx, req, user, plan)
	h.send(ctx, chatID, messages.RequestSubmitted(req, plan), messages.BackToMenuKeyboard())
	return nil
}
