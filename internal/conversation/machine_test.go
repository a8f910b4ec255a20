package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

func TestMonthlyRoundTripWithTransactionID(t *testing.T) {
	s := types.Session{ChatID: 1, State: types.StateNone}

	step := Advance(s, Input{Kind: InputConfirmPayment, Plan: types.PlanMonthly})
	assert.Equal(t, OutcomeAwaitProof, step.Outcome)
	assert.True(t, step.Persist())
	assert.Equal(t, types.StateWaitingPaymentProof, step.Next.State)

	step = Advance(step.Next, Input{Kind: InputImage, ImageRef: "photo-1"})
	assert.Equal(t, OutcomeAwaitTransactionID, step.Outcome)
	assert.Equal(t, types.StateWaitingTransactionID, step.Next.State)
	assert.Equal(t, "photo-1", step.Next.PaymentProofRef)
	assert.Equal(t, types.PlanMonthly, step.Next.SelectedPlan)

	step = Advance(step.Next, Input{Kind: InputText, Text: " TX123 "})
	assert.Equal(t, OutcomeSubmit, step.Outcome)
	assert.True(t, step.Clear())
	assert.Equal(t, types.StateNone, step.Next.State)
	require.NotNil(t, step.Submission)
	assert.Equal(t, types.PlanMonthly, step.Submission.Plan)
	assert.Equal(t, "photo-1", step.Submission.ProofRef)
	require.NotNil(t, step.Submission.TransactionID)
	assert.Equal(t, "TX123", *step.Submission.TransactionID)
}

func TestYearlySkip(t *testing.T) {
	s := types.Session{ChatID: 1, State: types.StateWaitingTransactionID, SelectedPlan: types.PlanYearly, PaymentProofRef: "p"}
	step := Advance(s, Input{Kind: InputSkip})
	assert.Equal(t, OutcomeSubmit, step.Outcome)
	require.NotNil(t, step.Submission)
	assert.Nil(t, step.Submission.TransactionID)
	assert.Equal(t, types.PlanYearly, step.Submission.Plan)
}

func TestRepromptsKeepState(t *testing.T) {
	waitingProof := types.Session{ChatID: 1, State: types.StateWaitingPaymentProof, SelectedPlan: types.PlanMonthly}
	for _, in := range []Input{{Kind: InputText, Text: "hello"}, {Kind: InputOther}, {Kind: InputSkip}} {
		step := Advance(waitingProof, in)
		assert.Equal(t, OutcomeRepromptProof, step.Outcome)
		assert.Equal(t, waitingProof, step.Next)
		assert.False(t, step.Persist())
		assert.False(t, step.Clear())
	}

	waitingTxn := types.Session{ChatID: 1, State: types.StateWaitingTransactionID, SelectedPlan: types.PlanMonthly, PaymentProofRef: "p"}
	for _, in := range []Input{{Kind: InputImage, ImageRef: "x"}, {Kind: InputOther}, {Kind: InputText, Text: "   "}, {Kind: InputText, Text: strings.Repeat("a", MaxTransactionIDLen+1)}} {
		step := Advance(waitingTxn, in)
		assert.Equal(t, OutcomeRepromptTransactionID, step.Outcome)
		assert.Equal(t, waitingTxn, step.Next)
	}
}

func TestCancelFromAnyState(t *testing.T) {
	for _, state := range []types.ChatState{types.StateNone, types.StateWaitingPaymentProof, types.StateWaitingTransactionID} {
		step := Advance(types.Session{ChatID: 9, State: state, SelectedPlan: types.PlanMonthly}, Input{Kind: InputCancel})
		assert.Equal(t, OutcomeCancelled, step.Outcome, state)
		assert.Equal(t, types.Session{ChatID: 9, State: types.StateNone}, step.Next)
	}
}

func TestExpiredWhenDataMissing(t *testing.T) {
	step := Advance(types.Session{ChatID: 1, State: types.StateWaitingTransactionID, SelectedPlan: types.PlanMonthly}, Input{Kind: InputText, Text: "TX1"})
	assert.Equal(t, OutcomeExpired, step.Outcome)
	assert.Nil(t, step.Submission)

	step = Advance(types.Session{ChatID: 1, State: types.StateWaitingPaymentProof}, Input{Kind: InputImage, ImageRef: "p"})
	assert.Equal(t, OutcomeExpired, step.Outcome)

	step = Advance(types.Session{ChatID: 1, State: types.StateNone}, Input{Kind: InputSkip})
	assert.Equal(t, OutcomeExpired, step.Outcome)

	step = Advance(types.Session{ChatID: 1, State: "bogus"}, Input{Kind: InputText, Text: "x"})
	assert.Equal(t, OutcomeExpired, step.Outcome)
}

func TestConfirmRestartsFlow(t *testing.T) {
	s := types.Session{ChatID: 1, State: types.StateWaitingTransactionID, SelectedPlan: types.PlanMonthly, PaymentProofRef: "p"}
	step := Advance(s, Input{Kind: InputConfirmPayment, Plan: types.PlanYearly})
	assert.Equal(t, OutcomeAwaitProof, step.Outcome)
	assert.Equal(t, types.PlanYearly, step.Next.SelectedPlan)
	assert.Empty(t, step.Next.PaymentProofRef)

	step = Advance(s, Input{Kind: InputConfirmPayment, Plan: types.PlanTrial})
	assert.Equal(t, OutcomeIgnored, step.Outcome)
}

func TestNoneIgnoresContent(t *testing.T) {
	step := Advance(types.Session{ChatID: 1, State: types.StateNone}, Input{Kind: InputText, Text: "/status"})
	assert.Equal(t, OutcomeIgnored, step.Outcome)
}

func TestLapsedSessionReportsExpiry(t *testing.T) {
	lapsed := types.Session{ChatID: 1, State: types.StateNone, Expired: true}
	for _, in := range []Input{
		{Kind: InputText, Text: "TX1"},
		{Kind: InputImage, ImageRef: "p"},
		{Kind: InputOther},
		{Kind: InputSkip},
	} {
		step := Advance(lapsed, in)
		assert.Equal(t, OutcomeExpired, step.Outcome)
		assert.True(t, step.Clear())
		assert.False(t, step.Next.Expired)
	}

	step := Advance(lapsed, Input{Kind: InputConfirmPayment, Plan: types.PlanMonthly})
	assert.Equal(t, OutcomeAwaitProof, step.Outcome)
	assert.False(t, step.Next.Expired)
}
