// Package callbacks turns inline-button payloads into a closed set of actions.
package callbacks

import (
	"strconv"
	"strings"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindBackToStart
	KindTrial
	KindShowPlans
	KindSelectPlan
	KindConfirmPayment
	KindCancelPayment
	KindSkipTransaction
	KindApprove
	KindReject
	KindStartUsing
	KindHelp
	KindSubscriptionInfo
	KindUserProfile
)

const (
	dataBackToStart      = "back_to_start"
	dataTrial            = "trial_24h"
	dataShowPlans        = "show_subscriptions"
	dataCancelPayment    = "cancel_payment"
	dataSkipTransaction  = "skip_transaction"
	dataStartUsing       = "start_using"
	dataHelp             = "help"
	dataSubscriptionInfo = "subscription_info"

	prefixSelectPlan     = "select_plan_"
	prefixConfirmPayment = "confirm_payment_"
	prefixApprove        = "approve_"
	prefixReject         = "reject_"
	prefixUserProfile    = "user_profile_"
)

// Action is a parsed callback payload. Plan is set for plan-bearing kinds and
// ID for request or user references.
type Action struct {
	Kind Kind
	Plan types.PlanType
	ID   int64
	Raw  string
}

func (k Kind) String() string {
	switch k {
	case KindBackToStart:
		return "back_to_start"
	case KindTrial:
		return "trial"
	case KindShowPlans:
		return "show_plans"
	case KindSelectPlan:
		return "select_plan"
	case KindConfirmPayment:
		return "confirm_payment"
	case KindCancelPayment:
		return "cancel_payment"
	case KindSkipTransaction:
		return "skip_transaction"
	case KindApprove:
		return "approve"
	case KindReject:
		return "reject"
	case KindStartUsing:
		return "start_using"
	case KindHelp:
		return "help"
	case KindSubscriptionInfo:
		return "subscription_info"
	case KindUserProfile:
		return "user_profile"
	default:
		return "unknown"
	}
}

// Parse never fails: anything unrecognised becomes KindUnknown. Plan-bearing
// payloads with an unknown plan keep the kind and leave Plan empty.
func Parse(data string) Action {
	data = strings.TrimSpace(data)
	a := Action{Raw: data}

	switch data {
	case dataBackToStart:
		a.Kind = KindBackToStart
		return a
	case dataTrial:
		a.Kind = KindTrial
		return a
	case dataShowPlans:
		a.Kind = KindShowPlans
		return a
	case dataCancelPayment:
		a.Kind = KindCancelPayment
		return a
	case dataSkipTransaction:
		a.Kind = KindSkipTransaction
		return a
	case dataStartUsing:
		a.Kind = KindStartUsing
		return a
	case dataHelp:
		a.Kind = KindHelp
		return a
	case dataSubscriptionInfo:
		a.Kind = KindSubscriptionInfo
		return a
	}

	if rest, ok := strings.CutPrefix(data, prefixSelectPlan); ok {
		a.Kind = KindSelectPlan
		a.Plan = paidPlan(rest)
		return a
	}
	if rest, ok := strings.CutPrefix(data, prefixConfirmPayment); ok {
		a.Kind = KindConfirmPayment
		a.Plan = paidPlan(rest)
		return a
	}
	if id, ok := idAfter(data, prefixApprove); ok {
		a.Kind = KindApprove
		a.ID = id
		return a
	}
	if id, ok := idAfter(data, prefixReject); ok {
		a.Kind = KindReject
		a.ID = id
		return a
	}
	if id, ok := idAfter(data, prefixUserProfile); ok {
		a.Kind = KindUserProfile
		a.ID = id
		return a
	}
	return a
}

func paidPlan(s string) types.PlanType {
	p, ok := types.ParsePlanType(s)
	if !ok || !p.IsPaid() {
		return ""
	}
	return p
}

func idAfter(data, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func BackToStart() string      { return dataBackToStart }
func Trial() string            { return dataTrial }
func ShowPlans() string        { return dataShowPlans }
func CancelPayment() string    { return dataCancelPayment }
func SkipTransaction() string  { return dataSkipTransaction }
func StartUsing() string       { return dataStartUsing }
func Help() string             { return dataHelp }
func SubscriptionInfo() string { return dataSubscriptionInfo }

func SelectPlan(p types.PlanType) string     { return prefixSelectPlan + string(p) }
func ConfirmPayment(p types.PlanType) string { return prefixConfirmPayment + string(p) }
func Approve(requestID int64) string         { return prefixApprove + strconv.FormatInt(requestID, 10) }
func Reject(requestID int64) string          { return prefixReject + strconv.FormatInt(requestID, 10) }
func UserProfile(userID int64) string        { return prefixUserProfile + strconv.FormatInt(userID, 10) }
