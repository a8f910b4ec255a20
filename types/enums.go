package types

import "strings"

type ChatState string

const (
	StateNone                 ChatState = "none"
	StateWaitingPaymentProof  ChatState = "waiting_payment_proof"
	StateWaitingTransactionID ChatState = "waiting_transaction_id"
)

type PlanType string

const (
	PlanTrial      PlanType = "trial"
	PlanMonthly    PlanType = "monthly"
	PlanQuarterly  PlanType = "quarterly"
	PlanSemiAnnual PlanType = "semi_annual"
	PlanYearly     PlanType = "yearly"
)

// PaidPlans lists paid plan ids in display order.
var PaidPlans = []PlanType{PlanMonthly, PlanQuarterly, PlanSemiAnnual, PlanYearly}

func ParsePlanType(s string) (PlanType, bool) {
	p := PlanType(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PlanTrial, PlanMonthly, PlanQuarterly, PlanSemiAnnual, PlanYearly:
		return p, true
	default:
		return "", false
	}
}

func (p PlanType) IsPaid() bool {
	switch p {
	case PlanMonthly, PlanQuarterly, PlanSemiAnnual, PlanYearly:
		return true
	default:
		return false
	}
}

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)
