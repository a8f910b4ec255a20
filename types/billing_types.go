package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan struct {
	Type     PlanType        `json:"type"`
	Name     string          `json:"name"`
	Duration time.Duration   `json:"duration"`
	Price    decimal.Decimal `json:"price"`
}

func (p Plan) Days() int {
	return int(p.Duration / (24 * time.Hour))
}

type Subscription struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	PlanType  PlanType           `json:"plan_type"`
	Price     decimal.Decimal    `json:"price"`
	StartsAt  time.Time          `json:"starts_at"`
	EndsAt    time.Time          `json:"ends_at"`
	IsTrial   bool               `json:"is_trial"`
	IsActive  bool               `json:"is_active"`
	Status    SubscriptionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// ActiveAt reports whether the subscription grants access at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return s != nil && s.IsActive && s.EndsAt.After(t)
}

// DaysLeft rounds the remaining time up to whole days.
func (s *Subscription) DaysLeft(t time.Time) int {
	if s == nil || !s.EndsAt.After(t) {
		return 0
	}
	left := s.EndsAt.Sub(t)
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) != 0 {
		days++
	}
	return days
}

type VerificationRequest struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"user_id"`
	PlanType        PlanType      `json:"plan_type"`
	PaymentProofRef *string       `json:"payment_proof_ref,omitempty"`
	TransactionID   *string       `json:"transaction_id,omitempty"`
	Status          RequestStatus `json:"status"`
	AdminNotes      string        `json:"admin_notes,omitempty"`
	ReviewedBy      *int64        `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Review carries the acting admin and time of a status change.
type Review struct {
	AdminID int64
	Notes   string
	At      time.Time
}
