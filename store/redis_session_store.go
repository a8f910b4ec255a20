package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const DefaultSessionTTL = time.Hour

// SessionGrace is how long a lapsed session is kept so the user can be told
// the flow expired instead of being ignored.
const SessionGrace = 24 * time.Hour

type RedisSessionStore struct {
	client *RedisClient
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisSessionStore(redisClient *RedisClient, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &RedisSessionStore{
		client: redisClient,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for session expiry.
func (s *RedisSessionStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RedisSessionStore) sessionKey(chatID int64) string {
	return s.client.generateKey("session", strconv.FormatInt(chatID, 10))
}

func (s *RedisSessionStore) GetSession(ctx context.Context, chatID int64) (*types.Session, error) {
	var session types.Session
	if err := s.client.Get(ctx, s.sessionKey(chatID), &session); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return &types.Session{ChatID: chatID, State: types.StateNone}, nil
		}
		return nil, err
	}
	session.ChatID = chatID
	return lapse(&session, s.now()), nil
}

// SaveSession rewrites the whole session and restarts its TTL. The key
// itself outlives the TTL by SessionGrace.
func (s *RedisSessionStore) SaveSession(ctx context.Context, session *types.Session) error {
	now := s.now().UTC()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.ttl)
	return s.client.Set(ctx, s.sessionKey(session.ChatID), session, s.ttl+SessionGrace)
}

func (s *RedisSessionStore) ClearSession(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.sessionKey(chatID))
}

// lapse turns a stored session whose TTL has passed into an empty one,
// flagging it when a payment flow was in progress.
func lapse(session *types.Session, now time.Time) *types.Session {
	if session.State == "" {
		session.State = types.StateNone
	}
	if session.ExpiresAt.IsZero() || now.Before(session.ExpiresAt) {
		return session
	}
	return &types.Session{
		ChatID:  session.ChatID,
		State:   types.StateNone,
		Expired: session.State != types.StateNone,
	}
}
