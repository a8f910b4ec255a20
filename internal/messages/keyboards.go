package messages

import (
	"fmt"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/callbacks"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/utils"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

var backToMenu = utils.Button{Text: "🏠 Main menu", CallbackData: callbacks.BackToStart()}

func WelcomeKeyboard(trialAvailable bool) *models.InlineKeyboardMarkup {
	var trial []utils.Button
	if trialAvailable {
		trial = []utils.Button{{Text: "🎁 Free trial (24h)", CallbackData: callbacks.Trial()}}
	}
	return utils.Rows(
		trial,
		[]utils.Button{{Text: "💳 Subscription plans", CallbackData: callbacks.ShowPlans()}},
		[]utils.Button{{Text: "❓ Help", CallbackData: callbacks.Help()}},
	)
}

func ActiveMenuKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows(
		[]utils.Button{{Text: "🚀 Start using", CallbackData: callbacks.StartUsing()}},
		[]utils.Button{{Text: "📋 Subscription details", CallbackData: callbacks.SubscriptionInfo()}},
		[]utils.Button{{Text: "💳 Renew or upgrade", CallbackData: callbacks.ShowPlans()}},
		[]utils.Button{{Text: "❓ Help", CallbackData: callbacks.Help()}},
	)
}

func PlansKeyboard(plans []types.Plan) *models.InlineKeyboardMarkup {
	buttons := make([]utils.Button, 0, len(plans))
	for _, p := range plans {
		buttons = append(buttons, utils.Button{
			Text:         fmt.Sprintf("%s · %s", p.Name, pricing.FormatPrice(p.Price)),
			CallbackData: callbacks.SelectPlan(p.Type),
		})
	}
	kb := utils.BuildInlineKeyboard(buttons, 2)
	kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{{Text: backToMenu.Text, CallbackData: backToMenu.CallbackData}})
	return kb
}

func PlanDetailsKeyboard(plan types.PlanType) *models.InlineKeyboardMarkup {
	return utils.Rows(
		[]utils.Button{{Text: "✅ I have paid", CallbackData: callbacks.ConfirmPayment(plan)}},
		[]utils.Button{{Text: "⬅️ Back to plans", CallbackData: callbacks.ShowPlans()}},
	)
}

func CancelKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows([]utils.Button{{Text: "❌ Cancel", CallbackData: callbacks.CancelPayment()}})
}

func TransactionKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows([]utils.Button{
		{Text: "⏭ Skip", CallbackData: callbacks.SkipTransaction()},
		{Text: "❌ Cancel", CallbackData: callbacks.CancelPayment()},
	})
}

func BackToMenuKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows([]utils.Button{backToMenu})
}

func StatusKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows(
		[]utils.Button{{Text: "📋 More details", CallbackData: callbacks.SubscriptionInfo()}},
		[]utils.Button{backToMenu},
	)
}

func ActivatedKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows([]utils.Button{{Text: "🚀 Start using", CallbackData: callbacks.StartUsing()}})
}

func RejectedKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows(
		[]utils.Button{{Text: "💳 Try again", CallbackData: callbacks.ShowPlans()}},
		[]utils.Button{{Text: "❓ Help", CallbackData: callbacks.Help()}},
	)
}

func AdminReviewKeyboard(requestID, userID int64) *models.InlineKeyboardMarkup {
	return utils.Rows(
		[]utils.Button{
			{Text: "✅ Approve", CallbackData: callbacks.Approve(requestID)},
			{Text: "❌ Reject", CallbackData: callbacks.Reject(requestID)},
		},
		[]utils.Button{{Text: "👤 User profile", CallbackData: callbacks.UserProfile(userID)}},
	)
}

func RenewKeyboard() *models.InlineKeyboardMarkup {
	return utils.Rows(
		[]utils.Button{{Text: "💳 Renew", CallbackData: callbacks.ShowPlans()}},
		[]utils.Button{backToMenu},
	)
}
