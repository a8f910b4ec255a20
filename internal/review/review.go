// Package review resolves payment verification requests on behalf of admins.
// A request leaves pending exactly once; every other caller observes the
// decision that won.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type Outcome int

const (
	OutcomeApproved Outcome = iota + 1
	OutcomeRejected
	OutcomeUnauthorized
	OutcomeNotFound
	OutcomeAlreadyProcessed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

type Store interface {
	types.VerificationStore
	GetUser(ctx context.Context, id int64) (*types.User, error)
}

// Result carries the request as stored after the call. User is loaded for
// decisions that changed state and may be nil when the lookup failed.
type Result struct {
	Outcome      Outcome
	Request      *types.VerificationRequest
	Subscription *types.Subscription
	Plan         types.Plan
	User         *types.User
}

type Service struct {
	store   Store
	catalog *pricing.Catalog
	admins  map[int64]struct{}
	now     func() time.Time
}

func NewService(store Store, catalog *pricing.Catalog, adminIDs []int64, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Service{store: store, catalog: catalog, admins: admins, now: now}
}

func (s *Service) IsAdmin(userID int64) bool {
	_, ok := s.admins[userID]
	return ok
}

func (s *Service) Admins() []int64 {
	out := make([]int64, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// precheck handles authorization and the cheap status read. A nil result
// means the request is pending and the caller should attempt the transition.
func (s *Service) precheck(ctx context.Context, requestID, adminID int64) (*Result, *types.VerificationRequest, error) {
	if !s.IsAdmin(adminID) {
		return &Result{Outcome: OutcomeUnauthorized}, nil, nil
	}
	req, err := s.store.GetVerificationRequest(ctx, requestID)
	if errors.Is(err, types.ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load request %d: %w", requestID, err)
	}
	if req.Status != types.RequestPending {
		return &Result{Outcome: OutcomeAlreadyProcessed, Request: req}, nil, nil
	}
	return nil, req, nil
}

// lost builds the result for a caller that lost the race to another decision.
func (s *Service) lost(ctx context.Context, requestID int64, err error) (Result, error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return Result{Outcome: OutcomeNotFound}, nil
	case errors.Is(err, types.ErrAlreadyProcessed):
		req, gerr := s.store.GetVerificationRequest(ctx, requestID)
		if gerr != nil {
			return Result{Outcome: OutcomeAlreadyProcessed}, nil
		}
		return Result{Outcome: OutcomeAlreadyProcessed, Request: req}, nil
	default:
		return Result{}, err
	}
}

func (s *Service) Approve(ctx context.Context, requestID, adminID int64) (Result, error) {
	early, req, err := s.precheck(ctx, requestID, adminID)
	if err != nil || early != nil {
		return deref(early), err
	}

	plan, ok := s.catalog.LookupPaid(req.PlanType)
	if !ok {
		return Result{}, fmt.Errorf("request %d: plan %q is not in the catalog", requestID, req.PlanType)
	}

	now := s.now().UTC()
	sub := &types.Subscription{
		UserID:   req.UserID,
		PlanType: plan.Type,
		Price:    plan.Price,
		StartsAt: now,
		EndsAt:   now.Add(plan.Duration),
		IsActive: true,
		Status:   types.SubscriptionActive,
	}
	approved, err := s.store.ApproveVerificationRequest(ctx, requestID, types.Review{AdminID: adminID, At: now}, sub)
	if err != nil {
		return s.lost(ctx, requestID, err)
	}

	logger.Flow.Info("request approved",
		slog.String("event", "review.approved"),
		slog.Int64("request_id", requestID),
		slog.Int64("admin_id", adminID),
		slog.String("plan", string(plan.Type)),
		slog.Time("ends_at", sub.EndsAt),
	)
	return Result{
		Outcome:      OutcomeApproved,
		Request:      approved,
		Subscription: sub,
		Plan:         plan,
		User:         s.user(ctx, approved.UserID),
	}, nil
}

func (s *Service) Reject(ctx context.Context, requestID, adminID int64, notes string) (Result, error) {
	early, _, err := s.precheck(ctx, requestID, adminID)
	if err != nil || early != nil {
		return deref(early), err
	}

	rejected, err := s.store.RejectVerificationRequest(ctx, requestID, types.Review{AdminID: adminID, Notes: notes, At: s.now().UTC()})
	if err != nil {
		return s.lost(ctx, requestID, err)
	}

	logger.Flow.Info("request rejected",
		slog.String("event", "review.rejected"),
		slog.Int64("request_id", requestID),
		slog.Int64("admin_id", adminID),
	)
	plan, _ := s.catalog.Lookup(rejected.PlanType)
	return Result{
		Outcome: OutcomeRejected,
		Request: rejected,
		Plan:    plan,
		User:    s.user(ctx, rejected.UserID),
	}, nil
}

func (s *Service) user(ctx context.Context, id int64) *types.User {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		logger.DB.Warn("load user after review failed", slog.String("event", "review.user_lookup"), slog.Int64("user_id", id), slog.Any("err", err))
		return nil
	}
	return u
}

// Pending lists requests still waiting for review created after since.
func (s *Service) Pending(ctx context.Context, since time.Time) ([]types.VerificationRequest, error) {
	return s.store.ListPendingVerificationRequests(ctx, since)
}

func deref(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}
