package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/review"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

func (h *Handlers) handleApprove(ctx context.Context, cb *middleware.Callback) error {
	res, err := h.review.Approve(ctx, cb.Action.ID, cb.UserID)
	if err != nil {
		return err
	}
	if h.refuseReview(ctx, cb, res) {
		return nil
	}

	if res.User != nil {
		h.send(ctx, res.User.ChatID, messages.SubscriptionActivated(res.Subscription, res.Plan, h.subs.Now()), messages.ActivatedKeyboard())
	}
	h.markReviewed(ctx, cb, res)
	h.answerCallback(ctx, cb, messages.ReviewApprovedAlert())
	return nil
}

func (h *Handlers) handleReject(ctx context.Context, cb *middleware.Callback) error {
	res, err := h.review.Reject(ctx, cb.Action.ID, cb.UserID, "")
	if err != nil {
		return err
	}
	if h.refuseReview(ctx, cb, res) {
		return nil
	}

	if res.User != nil {
		h.send(ctx, res.User.ChatID, messages.RequestRejected(res.Request), messages.RejectedKeyboard())
	}
	h.markReviewed(ctx, cb, res)
	h.answerCallback(ctx, cb, messages.ReviewRejectedAlert())
	return nil
}

// refuseReview answers the admin when the decision did not change anything.
func (h *Handlers) refuseReview(ctx context.Context, cb *middleware.Callback, res review.Result) bool {
	switch res.Outcome {
	case review.OutcomeUnauthorized:
		h.log(ctx).Warn("review by non-admin", slog.String("event", "review.unauthorized"), slog.Int64("user_id", cb.UserID))
		h.answerCallbackAlert(ctx, cb, messages.NotAuthorized())
	case review.OutcomeNotFound:
		h.answerCallbackAlert(ctx, cb, messages.RequestNotFound())
	case review.OutcomeAlreadyProcessed:
		status := types.RequestStatus("")
		if res.Request != nil {
			status = res.Request.Status
		}
		h.answerCallbackAlert(ctx, cb, messages.AlreadyProcessed(status))
	default:
		return false
	}
	return true
}

// markReviewed replaces the buttons on the admin's copy with the decision.
func (h *Handlers) markReviewed(ctx context.Context, cb *middleware.Callback, res review.Result) {
	if cb.MessageID == 0 {
		return
	}
	err := h.messenger.EditMessage(ctx, cb.ChatID, cb.MessageID, messages.AdminReviewed(res.Request, res.User, adminName(cb.Profile)), nil)
	if err != nil {
		h.log(ctx).Warn("edit review message failed", slog.String("event", "tg.edit_failed"), slog.Int64("request_id", res.Request.ID), slog.Any("err", err))
	}
}

func (h *Handlers) handleUserProfile(ctx context.Context, cb *middleware.Callback) error {
	if !h.review.IsAdmin(cb.UserID) {
		h.answerCallbackAlert(ctx, cb, messages.NotAuthorized())
		return nil
	}
	user, err := h.repo.GetUser(ctx, cb.Action.ID)
	if errors.Is(err, types.ErrNotFound) {
		h.answerCallbackAlert(ctx, cb, messages.NotRegisteredAlert())
		return nil
	}
	if err != nil {
		return err
	}
	sub, err := h.subs.Active(ctx, user.ID)
	if err != nil {
		return err
	}
	h.send(ctx, cb.ChatID, messages.UserProfile(user, sub, h.subs.Now()), nil)
	h.answerCallback(ctx, cb, "")
	return nil
}

// notifyAdmins sends every admin the review card, followed by the proof
// photo as a reply to it.
func (h *Handlers) notifyAdmins(ctx context.Context, req *types.VerificationRequest, user *types.User, plan types.Plan) {
	text := messages.AdminNewRequest(req, user, plan)
	kb := messages.AdminReviewKeyboard(req.ID, user.ID)
	for _, adminID := range h.review.Admins() {
		msgID := h.send(ctx, adminID, text, kb)
		if req.PaymentProofRef == nil || *req.PaymentProofRef == "" {
			continue
		}
		if err := h.messenger.SendImage(ctx, adminID, *req.PaymentProofRef, messages.AdminProofCaption(req, user), msgID); err != nil {
			h.log(ctx).Warn("send proof to admin failed",
				slog.String("event", "tg.send_image_failed"),
				slog.Int64("admin_id", adminID),
				slog.Int64("request_id", req.ID),
				slog.Any("err", err),
			)
		}
	}
}

func adminName(p types.Profile) string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	return "admin"
}
