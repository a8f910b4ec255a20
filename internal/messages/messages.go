package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/conversation"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const ParseModeHTML = "HTML"

const dateLayout = "2006-01-02 15:04"

const divider = "━━━━━━━━━━━━━━━━━━"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func Title(text string) string {
	return fmt.Sprintf("✨ <b>%s</b>", Escape(text))
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout) + " UTC"
}

func planLine(plan types.Plan) string {
	return fmt.Sprintf("📦 <b>%s</b> · %d days · %s", Escape(plan.Name), plan.Days(), pricing.FormatPrice(plan.Price))
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again in a moment."
}

func ErrorShort() string {
	return "Something went wrong, please try again"
}

func PleaseRegister() string {
	return "👋 <b>Welcome!</b>\nSend /start to register and see the available plans."
}

func NotRegisteredAlert() string {
	return "Please send /start first"
}

func UnknownAction() string {
	return "Unknown action"
}

func InvalidPlan() string {
	return "This plan is not available"
}

func Processing() string {
	return "⏳ Already processing, please wait"
}

func Welcome(name string, trialAvailable bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 <b>Hello, %s!</b>\n\n", Escape(name))
	sb.WriteString("This bot gives you access to premium features with a subscription.\n\n")
	if trialAvailable {
		sb.WriteString("🎁 Try it for free for 24 hours, or pick a paid plan.")
	} else {
		sb.WriteString("💎 Pick a plan to get started.")
	}
	return sb.String()
}

func ActiveMenu(name string, sub *types.Subscription, now time.Time) string {
	kind := "💎 Paid"
	if sub.IsTrial {
		kind = "🎁 Trial"
	}
	return fmt.Sprintf("👋 <b>Welcome back, %s!</b>\n\n%s\n✅ Your subscription is active\n%s · %s\n⏰ Days left: <b>%d</b>\n📅 Ends: %s\n%s",
		Escape(name), divider, kind, Escape(string(sub.PlanType)), sub.DaysLeft(now), formatDate(sub.EndsAt), divider)
}

func PlansList(plans []types.Plan) string {
	var sb strings.Builder
	sb.WriteString("💳 <b>Available plans</b>\n\n")
	for _, p := range plans {
		sb.WriteString(planLine(p))
		sb.WriteString("\n")
	}
	sb.WriteString("\nChoose a plan to see the payment details.")
	return sb.String()
}

func PlanDetails(plan types.Plan, instructions string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n%s\n", Title(plan.Name+" plan"), divider)
	fmt.Fprintf(&sb, "⏳ Duration: <b>%d days</b>\n", plan.Days())
	fmt.Fprintf(&sb, "💰 Price: <b>%s</b>\n%s\n\n", pricing.FormatPrice(plan.Price), divider)
	if strings.TrimSpace(instructions) != "" {
		fmt.Fprintf(&sb, "🏦 <b>How to pay</b>\n%s\n\n", Escape(instructions))
	}
	sb.WriteString("After paying, press <b>I have paid</b> and send a screenshot of the receipt.")
	return sb.String()
}

func ProofPrompt(plan types.Plan) string {
	return fmt.Sprintf("📸 <b>Step 1 of 2</b>\nSend a photo of your payment receipt for the <b>%s</b> plan (%s).",
		Escape(plan.Name), pricing.FormatPrice(plan.Price))
}

func ProofPromptAlert() string {
	return "Send the receipt photo now"
}

func ProofReprompt() string {
	return "🖼 <b>Please send an image</b>\nWe need a photo of the payment receipt to continue."
}

func TransactionPrompt() string {
	return "✅ <b>Receipt received</b>\n\n🔢 <b>Step 2 of 2</b>\nSend the transaction id as text, or press <b>Skip</b> if you do not have one."
}

func TransactionReprompt() string {
	return fmt.Sprintf("✍️ <b>Please send the transaction id as text</b>\nUp to %d characters, or press <b>Skip</b>.", conversation.MaxTransactionIDLen)
}

func RequestSubmitted(req *types.VerificationRequest, plan types.Plan) string {
	var sb strings.Builder
	sb.WriteString("📨 <b>Payment submitted for review</b>\n\n")
	fmt.Fprintf(&sb, "🧾 Request: <code>#%d</code>\n", req.ID)
	fmt.Fprintf(&sb, "%s\n", planLine(plan))
	if req.TransactionID != nil {
		fmt.Fprintf(&sb, "🔢 Transaction: <code>%s</code>\n", Escape(*req.TransactionID))
	}
	sb.WriteString("\nAn admin will check your payment shortly. You will get a message once it is reviewed.")
	return sb.String()
}

func PaymentCancelled() string {
	return "❌ <b>Payment cancelled</b>\nYou can pick a plan again at any time."
}

func PaymentCancelledAlert() string {
	return "Cancelled"
}

func SessionExpired() string {
	return "⌛ <b>This payment session has expired</b>\nPlease choose a plan and start again."
}

func TrialActivated(sub *types.Subscription) string {
	return fmt.Sprintf("🎉 <b>Your free trial is active!</b>\n\n⏰ Valid for 24 hours\n📅 Ends: %s\n\nEnjoy the bot!", formatDate(sub.EndsAt))
}

func TrialAlreadyUsed() string {
	return "You have already used your free trial"
}

func AlreadySubscribed(sub *types.Subscription, now time.Time) string {
	return fmt.Sprintf("You already have an active %s subscription (%d days left)", sub.PlanType, sub.DaysLeft(now))
}

func Status(sub *types.Subscription, now time.Time) string {
	kind := "💎 Paid"
	if sub.IsTrial {
		kind = "🎁 Trial"
	}
	return fmt.Sprintf("📊 <b>Your subscription</b>\n\n%s\n✅ Active\n%s\n📦 Plan: %s\n⏰ Days left: <b>%d</b>\n📅 Ends: %s\n%s",
		divider, kind, Escape(string(sub.PlanType)), sub.DaysLeft(now), formatDate(sub.EndsAt), divider)
}

func NoSubscription() string {
	return "⚠️ <b>You have no active subscription</b>\nUse /start to see the available plans."
}

func SubscriptionDetails(sub *types.Subscription, now time.Time) string {
	return fmt.Sprintf("📋 <b>Subscription details</b>\n\n%s\n📦 Plan: %s\n💰 Price: %s\n🟢 Started: %s\n🔴 Ends: %s\n⏰ Days left: <b>%d</b>\n%s",
		divider, Escape(string(sub.PlanType)), pricing.FormatPrice(sub.Price), formatDate(sub.StartsAt), formatDate(sub.EndsAt), sub.DaysLeft(now), divider)
}

func Help(support string) string {
	var sb strings.Builder
	sb.WriteString("❓ <b>Help</b>\n\n")
	sb.WriteString(divider + "\n")
	sb.WriteString("/start - main menu\n")
	sb.WriteString("/status - subscription status\n")
	sb.WriteString("/verify - send a payment receipt for the selected plan\n")
	sb.WriteString("/help - this message\n")
	sb.WriteString(divider)
	if strings.TrimSpace(support) != "" {
		fmt.Fprintf(&sb, "\n\n📧 Support: %s", Escape(support))
	}
	return sb.String()
}

func StartUsing() string {
	return "🚀 <b>You are all set!</b>\n\n/status - subscription status\n/help - help\n\nEnjoy! 💫"
}

func SubscriptionActivated(sub *types.Subscription, plan types.Plan, now time.Time) string {
	return fmt.Sprintf("🎉 <b>Your payment was approved!</b>\n\n%s\n%s\n🟢 Starts: %s\n🔴 Ends: %s\n⏰ Days left: <b>%d</b>\n%s\n\nThank you for subscribing!",
		divider, planLine(plan), formatDate(sub.StartsAt), formatDate(sub.EndsAt), sub.DaysLeft(now), divider)
}

func RequestRejected(req *types.VerificationRequest) string {
	return fmt.Sprintf("❌ <b>Your payment request #%d was rejected</b>\n\nPossible reasons:\n• the receipt is unreadable or incomplete\n• the amount does not match the plan\n• the payment was not received\n\nYou can pick a plan and submit a new request, or contact support.", req.ID)
}

func NotAuthorized() string {
	return "You are not allowed to do this"
}

func AlreadyProcessed(status types.RequestStatus) string {
	return fmt.Sprintf("This request was already processed (%s)", status)
}

func RequestNotFound() string {
	return "Request not found"
}

func ReviewApprovedAlert() string {
	return "✅ Approved"
}

func ReviewRejectedAlert() string {
	return "❌ Rejected"
}

func AdminNewRequest(req *types.VerificationRequest, user *types.User, plan types.Plan) string {
	var sb strings.Builder
	sb.WriteString("🔔 <b>New subscription request</b>\n\n")
	sb.WriteString(divider + "\n")
	sb.WriteString("👤 <b>User</b>\n")
	fmt.Fprintf(&sb, "• Name: %s\n", Escape(user.DisplayName()))
	if user.Username != "" {
		fmt.Fprintf(&sb, "• Username: @%s\n", Escape(user.Username))
	}
	fmt.Fprintf(&sb, "• Chat: <code>%d</code>\n", user.ChatID)
	fmt.Fprintf(&sb, "• ID: #%d\n\n", user.ID)
	sb.WriteString("📋 <b>Request</b>\n")
	fmt.Fprintf(&sb, "• Plan: %s (%d days)\n", Escape(plan.Name), plan.Days())
	fmt.Fprintf(&sb, "• Price: %s\n", pricing.FormatPrice(plan.Price))
	fmt.Fprintf(&sb, "• Number: <code>#%d</code>\n", req.ID)
	fmt.Fprintf(&sb, "• Date: %s\n", formatDate(req.CreatedAt))
	sb.WriteString(divider + "\n\n")
	if req.TransactionID != nil {
		fmt.Fprintf(&sb, "🔢 <b>Transaction:</b> <code>%s</code>\n", Escape(*req.TransactionID))
	}
	if req.PaymentProofRef != nil {
		sb.WriteString("📸 <b>Receipt:</b> attached below\n")
	}
	sb.WriteString("⏳ <b>Status:</b> pending review")
	return sb.String()
}

func AdminProofCaption(req *types.VerificationRequest, user *types.User) string {
	return fmt.Sprintf("📸 Receipt for request #%d\nUser: %s (#%d)", req.ID, user.DisplayName(), user.ID)
}

func AdminReviewed(req *types.VerificationRequest, user *types.User, adminName string) string {
	verdict := "✅ <b>Approved</b>"
	if req.Status == types.RequestRejected {
		verdict = "❌ <b>Rejected</b>"
	}
	name := "unknown user"
	if user != nil {
		name = user.DisplayName()
	}
	at := time.Now()
	if req.ReviewedAt != nil {
		at = *req.ReviewedAt
	}
	return fmt.Sprintf("%s\n\n🧾 Request <code>#%d</code>\n👤 %s\n📦 Plan: %s\n🛡 By: %s\n📅 %s",
		verdict, req.ID, Escape(name), Escape(string(req.PlanType)), Escape(adminName), formatDate(at))
}

func UserProfile(user *types.User, sub *types.Subscription, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("👤 <b>User profile</b>\n\n")
	fmt.Fprintf(&sb, "• Name: %s\n", Escape(user.DisplayName()))
	if user.Username != "" {
		fmt.Fprintf(&sb, "• Username: @%s\n", Escape(user.Username))
	}
	fmt.Fprintf(&sb, "• Chat: <code>%d</code>\n", user.ChatID)
	fmt.Fprintf(&sb, "• ID: #%d\n", user.ID)
	fmt.Fprintf(&sb, "• Registered: %s\n", formatDate(user.CreatedAt))
	if sub == nil {
		sb.WriteString("• Subscription: none")
		return sb.String()
	}
	fmt.Fprintf(&sb, "• Subscription: %s, %d days left (until %s)", Escape(string(sub.PlanType)), sub.DaysLeft(now), formatDate(sub.EndsAt))
	return sb.String()
}

func PendingReminder(reqs []types.VerificationRequest, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("⚠️ <b>Pending requests need review</b>\n\n")
	for _, r := range reqs {
		waiting := now.Sub(r.CreatedAt).Round(time.Minute)
		fmt.Fprintf(&sb, "• Request #%d · %s · waiting %s\n", r.ID, Escape(string(r.PlanType)), waiting)
	}
	return sb.String()
}

func RenewalReminder(sub *types.Subscription, now time.Time) string {
	return fmt.Sprintf("⚠️ <b>Your subscription ends soon</b>\n\n📦 Plan: %s\n⏰ Days left: <b>%d</b>\n📅 Ends: %s\n\nRenew now to keep using the bot.",
		Escape(string(sub.PlanType)), sub.DaysLeft(now), formatDate(sub.EndsAt))
}

func OperatorFailure(updateID int64, traceID string, err error) string {
	return fmt.Sprintf("🛑 <b>Update failed</b>\n\nUpdate: <code>%d</code>\nTrace: <code>%s</code>\nError: <code>%s</code>", updateID, Escape(traceID), Escape(err.Error()))
}
