// Package subscriptions grants trials and moves subscriptions through their
// lifecycle.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type Store interface {
	types.SubscriptionStore
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

type Service struct {
	store   Store
	catalog *pricing.Catalog
	now     func() time.Time
}

func NewService(store Store, catalog *pricing.Catalog, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, catalog: catalog, now: now}
}

type TrialResult struct {
	Granted      bool
	Subscription *types.Subscription
	// Active is the subscription that blocked the grant, if any.
	Active *types.Subscription
}

// GrantTrial gives a user the one trial they are entitled to. A user who ever
// had a trial, active or expired, gets Granted == false.
func (s *Service) GrantTrial(ctx context.Context, userID int64) (TrialResult, error) {
	used, err := s.store.HasUsedTrial(ctx, userID)
	if err != nil {
		return TrialResult{}, fmt.Errorf("check trial: %w", err)
	}
	if used {
		return TrialResult{}, nil
	}
	active, err := s.Active(ctx, userID)
	if err != nil {
		return TrialResult{}, fmt.Errorf("check active subscription: %w", err)
	}
	if active != nil {
		return TrialResult{Active: active}, nil
	}

	now := s.now().UTC()
	trial := s.catalog.Trial()
	sub := &types.Subscription{
		UserID:   userID,
		PlanType: types.PlanTrial,
		Price:    trial.Price,
		StartsAt: now,
		EndsAt:   now.Add(trial.Duration),
		IsTrial:  true,
		IsActive: true,
		Status:   types.SubscriptionActive,
	}
	created, err := s.store.CreateTrial(ctx, sub)
	if err != nil {
		return TrialResult{}, fmt.Errorf("create trial: %w", err)
	}
	if !created {
		return TrialResult{}, nil
	}
	if err := s.store.SetUserActive(ctx, userID, true); err != nil {
		return TrialResult{}, fmt.Errorf("activate user: %w", err)
	}
	logger.Flow.Info("trial granted",
		slog.String("event", "trial.granted"),
		slog.Int64("user_id", userID),
		slog.Time("ends_at", sub.EndsAt),
	)
	return TrialResult{Granted: true, Subscription: sub}, nil
}

// Active returns the user's current subscription, or nil when there is none.
func (s *Service) Active(ctx context.Context, userID int64) (*types.Subscription, error) {
	sub, err := s.store.GetActiveSubscription(ctx, userID, s.now().UTC())
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

func (s *Service) TrialAvailable(ctx context.Context, userID int64) (bool, error) {
	used, err := s.store.HasUsedTrial(ctx, userID)
	return !used, err
}

// ExpireDue deactivates every subscription whose end time has passed.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireSubscriptions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	if n > 0 {
		logger.Jobs.Info("subscriptions expired", slog.String("event", "sweep.expired"), slog.Int64("count", n))
	}
	return n, nil
}

// ExpiringWithin lists active subscriptions ending in the next window.
func (s *Service) ExpiringWithin(ctx context.Context, window time.Duration) ([]types.Subscription, error) {
	now := s.now().UTC()
	return s.store.ListExpiringSubscriptions(ctx, now, now.Add(window))
}

func (s *Service) Now() time.Time {
	return s.now().UTC()
}
