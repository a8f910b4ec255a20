package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

// MemoryStore keeps everything in process memory. It backs the "memory"
// store driver and the tests; state is lost on restart.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time
	ttl time.Duration

	users       map[int64]*types.User
	usersByChat map[int64]int64
	subs        []*types.Subscription
	requests    map[int64]*types.VerificationRequest
	sessions    map[int64]memorySession
	locks       map[string]memoryLock
	lastUpdate  int64

	nextUserID    int64
	nextSubID     int64
	nextRequestID int64
}

type memorySession struct {
	session   types.Session
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

func NewMemoryStore(sessionTTL time.Duration) *MemoryStore {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &MemoryStore{
		now:         time.Now,
		ttl:         sessionTTL,
		users:       make(map[int64]*types.User),
		usersByChat: make(map[int64]int64),
		requests:    make(map[int64]*types.VerificationRequest),
		sessions:    make(map[int64]memorySession),
		locks:       make(map[string]memoryLock),
	}
}

// SetClock replaces the time source used for TTLs and timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) GetSession(_ context.Context, chatID int64) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[chatID]
	if !ok || !m.now().Before(entry.expiresAt) {
		delete(m.sessions, chatID)
		return &types.Session{ChatID: chatID, State: types.StateNone}, nil
	}
	session := entry.session
	return lapse(&session, m.now()), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, session *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.ttl)
	m.sessions[session.ChatID] = memorySession{session: *session, expiresAt: session.ExpiresAt.Add(SessionGrace)}
	return nil
}

func (m *MemoryStore) ClearSession(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStore) AcquireLock(_ context.Context, name string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if l, ok := m.locks[name]; ok && now.Before(l.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.locks[name] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (m *MemoryStore) ReleaseLock(_ context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[name]; ok && l.token == token {
		delete(m.locks, name)
	}
	return nil
}

func (m *MemoryStore) AdvanceUpdateID(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= m.lastUpdate {
		return false, nil
	}
	m.lastUpdate = id
	return true, nil
}

func (m *MemoryStore) LastUpdateID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdate, nil
}

func (m *MemoryStore) UpsertUser(_ context.Context, p types.Profile) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if id, ok := m.usersByChat[p.ChatID]; ok {
		u := m.users[id]
		applyProfile(u, p)
		u.UpdatedAt = now
		out := *u
		return &out, nil
	}
	m.nextUserID++
	u := &types.User{ID: m.nextUserID, ChatID: p.ChatID, CreatedAt: now, UpdatedAt: now}
	applyProfile(u, p)
	m.users[u.ID] = u
	m.usersByChat[p.ChatID] = u.ID
	out := *u
	return &out, nil
}

func applyProfile(u *types.User, p types.Profile) {
	u.Username = strings.TrimSpace(p.Username)
	u.FirstName = strings.TrimSpace(p.FirstName)
	u.LastName = strings.TrimSpace(p.LastName)
}

func (m *MemoryStore) GetUser(_ context.Context, id int64) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryStore) GetUserByChatID(_ context.Context, chatID int64) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByChat[chatID]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := *m.users[id]
	return &out, nil
}

func (m *MemoryStore) RefreshUser(_ context.Context, userID int64, p types.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return types.ErrNotFound
	}
	applyProfile(u, p)
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) SetUserActive(_ context.Context, userID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return types.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) insertSubscription(sub *types.Subscription) {
	m.nextSubID++
	sub.ID = m.nextSubID
	sub.CreatedAt = m.now()
	stored := *sub
	m.subs = append(m.subs, &stored)
}

func (m *MemoryStore) CreateTrial(_ context.Context, sub *types.Subscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == sub.UserID && s.PlanType == types.PlanTrial {
			return false, nil
		}
	}
	sub.PlanType = types.PlanTrial
	sub.IsTrial = true
	sub.IsActive = true
	sub.Status = types.SubscriptionActive
	m.insertSubscription(sub)
	return true, nil
}

func (m *MemoryStore) HasUsedTrial(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.PlanType == types.PlanTrial {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetActiveSubscription(_ context.Context, userID int64, now time.Time) (*types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *types.Subscription
	for _, s := range m.subs {
		if s.UserID != userID || !s.ActiveAt(now) {
			continue
		}
		if best == nil || s.EndsAt.After(best.EndsAt) {
			best = s
		}
	}
	if best == nil {
		return nil, types.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (m *MemoryStore) ExpireSubscriptions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.IsActive && !s.EndsAt.After(now) {
			s.IsActive = false
			s.Status = types.SubscriptionExpired
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListExpiringSubscriptions(_ context.Context, from, to time.Time) ([]types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Subscription
	for _, s := range m.subs {
		if s.IsActive && s.EndsAt.After(from) && !s.EndsAt.After(to) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out, nil
}

// Subscriptions returns a copy of every stored subscription for a user.
func (m *MemoryStore) Subscriptions(userID int64) []types.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

func (m *MemoryStore) CreateVerificationRequest(_ context.Context, req *types.VerificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRequestID++
	req.ID = m.nextRequestID
	req.Status = types.RequestPending
	req.CreatedAt = m.now()
	stored := *req
	m.requests[req.ID] = &stored
	return nil
}

func (m *MemoryStore) GetVerificationRequest(_ context.Context, id int64) (*types.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := *req
	return &out, nil
}

func (m *MemoryStore) resolveLocked(id int64, status types.RequestStatus, review types.Review) (*types.VerificationRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	if req.Status != types.RequestPending {
		return nil, types.ErrAlreadyProcessed
	}
	req.Status = status
	admin := review.AdminID
	at := review.At
	req.ReviewedBy = &admin
	req.ReviewedAt = &at
	req.AdminNotes = review.Notes
	out := *req
	return &out, nil
}

func (m *MemoryStore) ApproveVerificationRequest(_ context.Context, id int64, review types.Review, sub *types.Subscription) (*types.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, err := m.resolveLocked(id, types.RequestApproved, review)
	if err != nil {
		return nil, err
	}
	for _, s := range m.subs {
		if s.UserID == req.UserID && s.IsActive {
			s.IsActive = false
			s.Status = types.SubscriptionExpired
		}
	}
	sub.UserID = req.UserID
	sub.PlanType = req.PlanType
	sub.IsActive = true
	sub.Status = types.SubscriptionActive
	m.insertSubscription(sub)
	if u, ok := m.users[req.UserID]; ok {
		u.IsActive = true
		u.UpdatedAt = m.now()
	}
	return req, nil
}

func (m *MemoryStore) RejectVerificationRequest(_ context.Context, id int64, review types.Review) (*types.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(id, types.RequestRejected, review)
}

func (m *MemoryStore) ListPendingVerificationRequests(_ context.Context, since time.Time) ([]types.VerificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.VerificationRequest
	for _, req := range m.requests {
		if req.Status == types.RequestPending && !req.CreatedAt.Before(since) {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// VerificationRequests returns a copy of every stored request ordered by id.
func (m *MemoryStore) VerificationRequests() []types.VerificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.VerificationRequest, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	_ types.Repository   = (*MemoryStore)(nil)
	_ types.SessionStore = (*MemoryStore)(nil)
	_ types.LockStore    = (*MemoryStore)(nil)
	_ types.UpdateMarker = (*MemoryStore)(nil)
	_ types.Repository   = (*PostgresStore)(nil)
	_ types.SessionStore = (*RedisSessionStore)(nil)
	_ types.LockStore    = (*RedisStateStore)(nil)
	_ types.UpdateMarker = (*RedisStateStore)(nil)
)
