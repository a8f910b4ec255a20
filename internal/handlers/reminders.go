package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messages"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

// SendRenewalReminders nudges users whose subscription ends within the
// renewal window. A user with several rows in range hears about the latest.
func (h *Handlers) SendRenewalReminders(ctx context.Context) error {
	subs, err := h.subs.ExpiringWithin(ctx, h.opts.RenewalWindow)
	if err != nil {
		return fmt.Errorf("list expiring subscriptions: %w", err)
	}

	latest := make(map[int64]types.Subscription, len(subs))
	order := make([]int64, 0, len(subs))
	for _, sub := range subs {
		cur, seen := latest[sub.UserID]
		if !seen {
			order = append(order, sub.UserID)
		}
		if !seen || sub.EndsAt.After(cur.EndsAt) {
			latest[sub.UserID] = sub
		}
	}

	now := h.subs.Now()
	sent := 0
	for _, userID := range order {
		sub := latest[userID]
		// Someone who already renewed has a later active row outside the window.
		active, err := h.subs.Active(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil && active.EndsAt.After(sub.EndsAt) {
			continue
		}
		user, err := h.repo.GetUser(ctx, userID)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		h.send(ctx, user.ChatID, messages.RenewalReminder(&sub, now), messages.RenewKeyboard())
		sent++
	}
	h.log(ctx).Info("renewal reminders sent", slog.String("event", "jobs.renewal_reminders"), slog.Int("count", sent))
	return nil
}

// RemindPendingRequests tells admins about requests still waiting for review.
func (h *Handlers) RemindPendingRequests(ctx context.Context) error {
	now := h.subs.Now()
	reqs, err := h.review.Pending(ctx, now.Add(-h.opts.PendingLookback))
	if err != nil {
		return fmt.Errorf("list pending requests: %w", err)
	}
	if len(reqs) == 0 {
		return nil
	}
	text := messages.PendingReminder(reqs, now)
	for _, adminID := range h.review.Admins() {
		h.send(ctx, adminID, text, nil)
	}
	h.log(ctx).Info("pending reminder sent", slog.String("event", "jobs.pending_reminder"), slog.Int("pending", len(reqs)))
	return nil
}
