package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

func newRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0, "subs_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	sessions := NewRedisSessionStore(client, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions.SetClock(func() time.Time { return now })

	s, err := sessions.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateNone, s.State)

	require.NoError(t, sessions.SaveSession(ctx, &types.Session{
		ChatID:          42,
		State:           types.StateWaitingTransactionID,
		SelectedPlan:    types.PlanQuarterly,
		PaymentProofRef: "file-1",
	}))
	assert.True(t, mr.Exists("subs_test:session:42"))

	s, err = sessions.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaitingTransactionID, s.State)
	assert.Equal(t, types.PlanQuarterly, s.SelectedPlan)
	assert.Equal(t, "file-1", s.PaymentProofRef)

	now = now.Add(time.Hour + time.Second)
	mr.FastForward(time.Hour + time.Second)
	s, err = sessions.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateNone, s.State)
	assert.Empty(t, s.PaymentProofRef)
	assert.True(t, s.Expired)

	mr.FastForward(SessionGrace)
	s, err = sessions.GetSession(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateNone, s.State)
	assert.False(t, s.Expired)

	require.NoError(t, sessions.SaveSession(ctx, &types.Session{ChatID: 42, State: types.StateWaitingPaymentProof}))
	require.NoError(t, sessions.ClearSession(ctx, 42))
	assert.False(t, mr.Exists("subs_test:session:42"))
}

func TestRedisAdvanceUpdateID(t *testing.T) {
	ctx := context.Background()
	client, _ := newRedis(t)
	state := NewRedisStateStore(client)

	ok, err := state.AdvanceUpdateID(ctx, 500)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = state.AdvanceUpdateID(ctx, 500)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = state.AdvanceUpdateID(ctx, 499)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = state.AdvanceUpdateID(ctx, 501)
	require.NoError(t, err)
	assert.True(t, ok)

	last, err := state.LastUpdateID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 501, last)
}

func TestRedisLockOwnership(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	state := NewRedisStateStore(client)

	token, ok, err := state.AcquireLock(ctx, "skip:9", 15*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = state.AcquireLock(ctx, "skip:9", 15*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.ReleaseLock(ctx, "skip:9", "stale-token"))
	assert.True(t, mr.Exists("subs_test:lock:skip:9"))

	require.NoError(t, state.ReleaseLock(ctx, "skip:9", token))
	assert.False(t, mr.Exists("subs_test:lock:skip:9"))

	_, ok, err = state.AcquireLock(ctx, "skip:9", 15*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(16 * time.Second)
	_, ok, err = state.AcquireLock(ctx, "skip:9", 15*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisPing(t *testing.T) {
	client, mr := newRedis(t)
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
