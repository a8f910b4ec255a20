package handlers

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/callbacks"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/messenger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/review"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/subscriptions"
	"github.com/BatmanBruc/bat-bot-subscriptions/store"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const (
	userChat  = 1001
	adminChat = 900
)

type fixture struct {
	h   *Handlers
	mem *store.MemoryStore
	rec *messenger.Recorder
	now time.Time
	seq int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem: store.NewMemoryStore(time.Hour),
		rec: messenger.NewRecorder(),
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.mem.SetClock(clock)
	catalog := pricing.DefaultCatalog()
	f.h = NewHandlers(Deps{
		Repo:          f.mem,
		Sessions:      f.mem,
		Locks:         f.mem,
		Catalog:       catalog,
		Subscriptions: subscriptions.NewService(f.mem, catalog, clock),
		Review:        review.NewService(f.mem, catalog, []int64{adminChat}, clock),
		Messenger:     f.rec,
	}, Options{PaymentInstructions: "Pay to card 0000"})
	return f
}

func (f *fixture) text(t *testing.T, chatID int64, text string) {
	t.Helper()
	msg := &middleware.Content{
		ChatID:  chatID,
		Profile: types.Profile{ChatID: chatID, FirstName: "Ola"},
		Body:    middleware.Body{Kind: middleware.BodyText, Text: text},
	}
	require.NoError(t, f.h.HandleContent(context.Background(), msg))
}

func (f *fixture) photo(t *testing.T, chatID int64, ref string) {
	t.Helper()
	msg := &middleware.Content{
		ChatID:  chatID,
		Profile: types.Profile{ChatID: chatID, FirstName: "Ola"},
		Body:    middleware.Body{Kind: middleware.BodyImage, ImageRef: ref},
	}
	require.NoError(t, f.h.HandleContent(context.Background(), msg))
}

func (f *fixture) press(t *testing.T, chatID int64, data string) *middleware.Callback {
	t.Helper()
	f.seq++
	cb := &middleware.Callback{
		ID:        "cb-" + strconv.Itoa(f.seq),
		UserID:    chatID,
		ChatID:    chatID,
		MessageID: 10,
		Profile:   types.Profile{ChatID: chatID, FirstName: "Ola"},
		Action:    callbacks.Parse(data),
	}
	require.NoError(t, f.h.HandleCallback(context.Background(), cb))
	return cb
}

func (f *fixture) user(t *testing.T) *types.User {
	t.Helper()
	u, err := f.mem.GetUserByChatID(context.Background(), userChat)
	require.NoError(t, err)
	return u
}

func lastText(sent []messenger.Sent) string {
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1].Text
}

func (f *fixture) startPayment(t *testing.T, plan types.PlanType) {
	t.Helper()
	f.text(t, userChat, "/start")
	f.press(t, userChat, callbacks.SelectPlan(plan))
	f.press(t, userChat, callbacks.ConfirmPayment(plan))
}

func TestUnregisteredUserIsAskedToStart(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "hello")
	assert.Contains(t, lastText(f.rec.SentTo(userChat)), "/start")

	cb := f.press(t, userChat, callbacks.ShowPlans())
	answers := f.rec.AnswersFor(cb.ID)
	require.Len(t, answers, 1)
	assert.True(t, answers[0].Alert)
}

func TestStartShowsWelcomeWithTrial(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "/start")

	sent := f.rec.SentTo(userChat)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Ola")
	assert.Contains(t, keyboardData(sent[0]), callbacks.Trial())
	assert.False(t, f.user(t).IsActive)
}

func TestPaymentWithTransactionID(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)

	s, err := f.mem.GetSession(context.Background(), userChat)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaitingPaymentProof, s.State)

	f.photo(t, userChat, "photo-1")
	s, _ = f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateWaitingTransactionID, s.State)
	assert.Equal(t, "photo-1", s.PaymentProofRef)

	f.text(t, userChat, "  TX123 ")

	reqs := f.mem.VerificationRequests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, types.PlanMonthly, req.PlanType)
	assert.Equal(t, types.RequestPending, req.Status)
	require.NotNil(t, req.TransactionID)
	assert.Equal(t, "TX123", *req.TransactionID)
	require.NotNil(t, req.PaymentProofRef)
	assert.Equal(t, "photo-1", *req.PaymentProofRef)

	s, _ = f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateNone, s.State)

	assert.Contains(t, lastText(f.rec.SentTo(userChat)), "TX123")

	admin := f.rec.SentTo(adminChat)
	require.Len(t, admin, 1)
	assert.Contains(t, keyboardData(admin[0]), callbacks.Approve(req.ID))
	require.Len(t, f.rec.Images, 1)
	assert.Equal(t, "photo-1", f.rec.Images[0].Ref)
	assert.Equal(t, admin[0].MessageID, f.rec.Images[0].ReplyTo)
}

func TestPaymentSkipTransaction(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanYearly)
	f.photo(t, userChat, "photo-2")

	cb := f.press(t, userChat, callbacks.SkipTransaction())
	assert.True(t, cb.Answered())

	reqs := f.mem.VerificationRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, types.PlanYearly, reqs[0].PlanType)
	assert.Nil(t, reqs[0].TransactionID)
}

func TestSkipWhileLockedIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-3")

	_, ok, err := f.mem.AcquireLock(context.Background(), skipLockName(f.user(t).ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	cb := f.press(t, userChat, callbacks.SkipTransaction())
	assert.Empty(t, f.mem.VerificationRequests())
	answers := f.rec.AnswersFor(cb.ID)
	require.Len(t, answers, 1)
	assert.False(t, answers[0].Alert)

	s, _ := f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateWaitingTransactionID, s.State)
}

func TestDoubleSkipCreatesOneRequest(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-4")

	f.press(t, userChat, callbacks.SkipTransaction())
	f.press(t, userChat, callbacks.SkipTransaction())

	assert.Len(t, f.mem.VerificationRequests(), 1)
	assert.Contains(t, lastText(f.rec.SentTo(userChat)), "expired")
}

func TestTextWhileWaitingForProofReprompts(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanQuarterly)
	f.rec.Reset()

	f.text(t, userChat, "here is my receipt")

	s, _ := f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateWaitingPaymentProof, s.State)
	assert.Len(t, f.rec.SentTo(userChat), 1)
	assert.Empty(t, f.mem.VerificationRequests())
}

func TestCancelPayment(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-5")

	f.rec.Reset()
	cb := f.press(t, userChat, callbacks.CancelPayment())
	assert.True(t, cb.Answered())
	require.Len(t, f.rec.Edits, 1)
	assert.Contains(t, f.rec.Edits[0].Text, "cancelled")
	s, _ := f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateNone, s.State)

	f.text(t, userChat, "TX999")
	assert.Empty(t, f.mem.VerificationRequests())
}

func TestExpiredSessionIsReported(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-6")
	f.rec.Reset()

	f.now = f.now.Add(2 * time.Hour)
	f.text(t, userChat, "TX1")

	assert.Empty(t, f.mem.VerificationRequests())
	sent := f.rec.SentTo(userChat)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "expired")
	assert.Contains(t, keyboardData(sent[0]), callbacks.BackToStart())

	f.text(t, userChat, "TX1")
	assert.Len(t, f.rec.SentTo(userChat), 1)
}

func TestCommandAfterExpiryClearsQuietly(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.rec.Reset()

	f.now = f.now.Add(2 * time.Hour)
	f.text(t, userChat, "/status")

	sent := f.rec.SentTo(userChat)
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].Text, "expired")
	s, _ := f.mem.GetSession(context.Background(), userChat)
	assert.False(t, s.Expired)
}

func TestVerifyStartsProofFlow(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "/start")
	f.press(t, userChat, callbacks.SelectPlan(types.PlanYearly))
	f.rec.Reset()

	f.text(t, userChat, "/verify")

	s, _ := f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateWaitingPaymentProof, s.State)
	assert.Equal(t, types.PlanYearly, s.SelectedPlan)
	sent := f.rec.SentTo(userChat)
	require.Len(t, sent, 1)
	assert.Contains(t, keyboardData(sent[0]), callbacks.CancelPayment())

	f.photo(t, userChat, "photo-v")
	f.text(t, userChat, "TXV")
	reqs := f.mem.VerificationRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, types.PlanYearly, reqs[0].PlanType)
}

func TestVerifyWithoutPlanShowsPlans(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "/start")
	f.rec.Reset()

	f.text(t, userChat, "/verify")

	s, _ := f.mem.GetSession(context.Background(), userChat)
	assert.Equal(t, types.StateNone, s.State)
	sent := f.rec.SentTo(userChat)
	require.Len(t, sent, 1)
	assert.Contains(t, keyboardData(sent[0]), callbacks.SelectPlan(types.PlanMonthly))
}

func TestTrialGrantedOnce(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "/start")

	f.press(t, userChat, callbacks.Trial())
	subs := f.mem.Subscriptions(f.user(t).ID)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].IsTrial)
	assert.Equal(t, f.now.Add(24*time.Hour), subs[0].EndsAt)
	assert.True(t, f.user(t).IsActive)

	cb := f.press(t, userChat, callbacks.Trial())
	answers := f.rec.AnswersFor(cb.ID)
	require.Len(t, answers, 1)
	assert.True(t, answers[0].Alert)
	assert.Len(t, f.mem.Subscriptions(f.user(t).ID), 1)
}

func TestApproveNotifiesUserAndAdmin(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanQuarterly)
	f.photo(t, userChat, "photo-7")
	f.text(t, userChat, "TX42")
	req := f.mem.VerificationRequests()[0]
	f.rec.Reset()

	cb := f.press(t, adminChat, callbacks.Approve(req.ID))

	subs := f.mem.Subscriptions(req.UserID)
	require.Len(t, subs, 1)
	assert.Equal(t, types.PlanQuarterly, subs[0].PlanType)
	assert.Equal(t, f.now.Add(90*24*time.Hour), subs[0].EndsAt)

	assert.Contains(t, lastText(f.rec.SentTo(userChat)), "approved")
	require.Len(t, f.rec.Edits, 1)
	assert.Equal(t, adminChat, int(f.rec.Edits[0].ChatID))
	assert.Contains(t, f.rec.Edits[0].Text, "Approved")
	assert.True(t, cb.Answered())

	again := f.press(t, adminChat, callbacks.Reject(req.ID))
	answers := f.rec.AnswersFor(again.ID)
	require.Len(t, answers, 1)
	assert.True(t, answers[0].Alert)
	got, _ := f.mem.GetVerificationRequest(context.Background(), req.ID)
	assert.Equal(t, types.RequestApproved, got.Status)
}

func TestApproveSurvivesNotificationFailures(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-11")
	f.text(t, userChat, "TX11")
	req := f.mem.VerificationRequests()[0]
	f.rec.Reset()
	f.rec.FailSend[userChat] = true
	f.rec.FailEdits = true

	cb := f.press(t, adminChat, callbacks.Approve(req.ID))

	got, err := f.mem.GetVerificationRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestApproved, got.Status)
	assert.Len(t, f.mem.Subscriptions(req.UserID), 1)
	assert.Len(t, f.rec.AnswersFor(cb.ID), 1)
	assert.Empty(t, f.rec.SentTo(userChat))
}

func TestApproveReplacesTrial(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "/start")
	f.press(t, userChat, callbacks.Trial())
	f.press(t, userChat, callbacks.SelectPlan(types.PlanMonthly))
	f.press(t, userChat, callbacks.ConfirmPayment(types.PlanMonthly))
	f.photo(t, userChat, "photo-12")
	f.text(t, userChat, "TX12")
	req := f.mem.VerificationRequests()[0]

	f.press(t, adminChat, callbacks.Approve(req.ID))

	var active []types.Subscription
	for _, sub := range f.mem.Subscriptions(req.UserID) {
		if sub.IsActive {
			active = append(active, sub)
		}
	}
	require.Len(t, active, 1)
	assert.Equal(t, types.PlanMonthly, active[0].PlanType)
	assert.False(t, active[0].IsTrial)
}

func TestRejectByNonAdmin(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-8")
	f.text(t, userChat, "TX8")
	req := f.mem.VerificationRequests()[0]

	cb := f.press(t, userChat, callbacks.Reject(req.ID))
	answers := f.rec.AnswersFor(cb.ID)
	require.Len(t, answers, 1)
	assert.True(t, answers[0].Alert)

	got, _ := f.mem.GetVerificationRequest(context.Background(), req.ID)
	assert.Equal(t, types.RequestPending, got.Status)
}

func TestRejectNotifiesUser(t *testing.T) {
	f := newFixture(t)
	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-9")
	f.text(t, userChat, "TX9")
	req := f.mem.VerificationRequests()[0]
	f.rec.Reset()

	f.press(t, adminChat, callbacks.Reject(req.ID))

	assert.Contains(t, lastText(f.rec.SentTo(userChat)), "rejected")
	assert.Empty(t, f.mem.Subscriptions(req.UserID))
}

func TestUnknownCallbackIsAnswered(t *testing.T) {
	f := newFixture(t)
	cb := f.press(t, userChat, "garbage")
	assert.True(t, cb.Answered())
}

func TestRenewalReminders(t *testing.T) {
	f := newFixture(t)
	f.text(t, userChat, "/start")
	f.press(t, userChat, callbacks.Trial())
	f.rec.Reset()

	require.NoError(t, f.h.SendRenewalReminders(context.Background()))
	sent := f.rec.SentTo(userChat)
	require.Len(t, sent, 1)
	assert.Contains(t, keyboardData(sent[0]), callbacks.ShowPlans())
}

func TestRemindPendingRequests(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.h.RemindPendingRequests(context.Background()))
	assert.Empty(t, f.rec.SentTo(adminChat))

	f.startPayment(t, types.PlanMonthly)
	f.photo(t, userChat, "photo-10")
	f.text(t, userChat, "TX10")
	f.rec.Reset()

	require.NoError(t, f.h.RemindPendingRequests(context.Background()))
	sent := f.rec.SentTo(adminChat)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "#1")
}

func keyboardData(s messenger.Sent) []string {
	var out []string
	if s.Keyboard == nil {
		return out
	}
	for _, row := range s.Keyboard.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}
