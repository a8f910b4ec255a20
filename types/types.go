package types

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("verification request already processed")
)

// Session is the per-chat workflow state. It is written as one value so every
// transition replaces it atomically.
type Session struct {
	ChatID          int64     `json:"chat_id"`
	State           ChatState `json:"state"`
	SelectedPlan    PlanType  `json:"selected_plan,omitempty"`
	PaymentProofRef string    `json:"payment_proof_ref,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExpiresAt       time.Time `json:"expires_at"`

	// Expired is set by the store when a flow was in progress but its TTL
	// has passed. State is then StateNone.
	Expired bool `json:"-"`
}

type SessionStore interface {
	// GetSession returns a StateNone session when nothing is stored or the
	// TTL passed. A flow that lapsed recently comes back with Expired set.
	GetSession(ctx context.Context, chatID int64) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	ClearSession(ctx context.Context, chatID int64) error
}

type LockStore interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}

type UpdateMarker interface {
	// AdvanceUpdateID stores id when it is greater than the last seen one.
	AdvanceUpdateID(ctx context.Context, id int64) (bool, error)
	LastUpdateID(ctx context.Context) (int64, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, profile Profile) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*User, error)
	RefreshUser(ctx context.Context, userID int64, profile Profile) error
	SetUserActive(ctx context.Context, userID int64, active bool) error
}

type SubscriptionStore interface {
	// CreateTrial inserts a trial unless the user already has one.
	CreateTrial(ctx context.Context, sub *Subscription) (bool, error)
	HasUsedTrial(ctx context.Context, userID int64) (bool, error)
	GetActiveSubscription(ctx context.Context, userID int64, now time.Time) (*Subscription, error)
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
	ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]Subscription, error)
}

type VerificationStore interface {
	CreateVerificationRequest(ctx context.Context, req *VerificationRequest) error
	GetVerificationRequest(ctx context.Context, id int64) (*VerificationRequest, error)
	// ApproveVerificationRequest flips a pending request to approved, inserts sub
	// and activates the user in one unit. It returns ErrAlreadyProcessed when the
	// request is no longer pending.
	ApproveVerificationRequest(ctx context.Context, id int64, review Review, sub *Subscription) (*VerificationRequest, error)
	RejectVerificationRequest(ctx context.Context, id int64, review Review) (*VerificationRequest, error)
	ListPendingVerificationRequests(ctx context.Context, since time.Time) ([]VerificationRequest, error)
}

type Repository interface {
	UserStore
	SubscriptionStore
	VerificationStore
}
