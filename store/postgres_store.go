package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const queryTimeout = 5 * time.Second

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "subscriptions_bot"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "subscriptions_bot"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

const userColumns = `id, chat_id, username, first_name, last_name, is_active, created_at, updated_at`

const subscriptionColumns = `id, user_id, plan_type, price::text, starts_at, ends_at, is_trial, is_active, status, created_at`

const requestColumns = `id, user_id, plan_type, payment_proof_ref, transaction_id, status, admin_notes, reviewed_by, reviewed_at, created_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var (
		sub   types.Subscription
		price string
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanType, &price, &sub.StartsAt, &sub.EndsAt, &sub.IsTrial, &sub.IsActive, &sub.Status, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("subscription %d: bad price %q: %w", sub.ID, price, err)
	}
	return &sub, nil
}

func scanRequest(row pgx.Row) (*types.VerificationRequest, error) {
	var req types.VerificationRequest
	err := row.Scan(&req.ID, &req.UserID, &req.PlanType, &req.PaymentProofRef, &req.TransactionID, &req.Status, &req.AdminNotes, &req.ReviewedBy, &req.ReviewedAt, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, p types.Profile) (*types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, `
INSERT INTO users (chat_id, username, first_name, last_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chat_id) DO UPDATE SET
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  updated_at = NOW()
RETURNING `+userColumns,
		p.ChatID, strings.TrimSpace(p.Username), strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName)))
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByChatID(ctx context.Context, chatID int64) (*types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = $1`, chatID))
}

func (s *PostgresStore) RefreshUser(ctx context.Context, userID int64, p types.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
UPDATE users SET
  username = $2,
  first_name = $3,
  last_name = $4,
  updated_at = NOW()
WHERE id = $1
  AND (username, first_name, last_name) IS DISTINCT FROM ($2, $3, $4)
`, userID, strings.TrimSpace(p.Username), strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName))
	return err
}

func (s *PostgresStore) SetUserActive(ctx context.Context, userID int64, active bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateTrial(ctx context.Context, sub *types.Subscription) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	err := s.pool.QueryRow(ctx, `
INSERT INTO subscriptions (user_id, plan_type, price, starts_at, ends_at, is_trial, is_active, status)
VALUES ($1, 'trial', 0, $2, $3, TRUE, TRUE, 'active')
ON CONFLICT (user_id) WHERE plan_type = 'trial' DO NOTHING
RETURNING id, created_at
`, sub.UserID, sub.StartsAt, sub.EndsAt).Scan(&sub.ID, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sub.PlanType = types.PlanTrial
	sub.Price = decimal.Zero
	sub.IsTrial = true
	sub.IsActive = true
	sub.Status = types.SubscriptionActive
	return true, nil
}

func (s *PostgresStore) HasUsedTrial(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var used bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1 AND plan_type = 'trial')
`, userID).Scan(&used)
	return used, err
}

func (s *PostgresStore) GetActiveSubscription(ctx context.Context, userID int64, now time.Time) (*types.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanSubscription(s.pool.QueryRow(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE user_id = $1 AND is_active AND ends_at > $2
ORDER BY ends_at DESC
LIMIT 1
`, userID, now))
}

func (s *PostgresStore) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
UPDATE subscriptions SET is_active = FALSE, status = 'expired'
WHERE is_active AND ends_at <= $1
`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]types.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT `+subscriptionColumns+`
FROM subscriptions
WHERE is_active AND ends_at > $1 AND ends_at <= $2
ORDER BY ends_at
`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateVerificationRequest(ctx context.Context, req *types.VerificationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	req.Status = types.RequestPending
	return s.pool.QueryRow(ctx, `
INSERT INTO verification_requests (user_id, plan_type, payment_proof_ref, transaction_id, status)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING id, created_at
`, req.UserID, string(req.PlanType), req.PaymentProofRef, req.TransactionID).Scan(&req.ID, &req.CreatedAt)
}

func (s *PostgresStore) GetVerificationRequest(ctx context.Context, id int64) (*types.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE id = $1`, id))
}

// resolve flips a pending request inside tx. A request that is gone or no
// longer pending yields ErrNotFound or ErrAlreadyProcessed.
func resolve(ctx context.Context, tx pgx.Tx, id int64, status types.RequestStatus, review types.Review) (*types.VerificationRequest, error) {
	req, err := scanRequest(tx.QueryRow(ctx, `
UPDATE verification_requests
SET status = $2, reviewed_by = $3, reviewed_at = $4, admin_notes = $5
WHERE id = $1 AND status = 'pending'
RETURNING `+requestColumns,
		id, string(status), review.AdminID, review.At, review.Notes))
	if !errors.Is(err, types.ErrNotFound) {
		return req, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM verification_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.ErrNotFound
	}
	return nil, types.ErrAlreadyProcessed
}

func (s *PostgresStore) ApproveVerificationRequest(ctx context.Context, id int64, review types.Review, sub *types.Subscription) (*types.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := resolve(ctx, tx, id, types.RequestApproved, review)
	if err != nil {
		return nil, err
	}

	// The new plan replaces whatever the user had, trial included.
	if _, err := tx.Exec(ctx, `
UPDATE subscriptions SET is_active = FALSE, status = 'expired'
WHERE user_id = $1 AND is_active
`, req.UserID); err != nil {
		return nil, fmt.Errorf("supersede subscriptions: %w", err)
	}

	sub.UserID = req.UserID
	sub.PlanType = req.PlanType
	err = tx.QueryRow(ctx, `
INSERT INTO subscriptions (user_id, plan_type, price, starts_at, ends_at, is_trial, is_active, status)
VALUES ($1, $2, $3::numeric, $4, $5, FALSE, TRUE, 'active')
RETURNING id, created_at
`, sub.UserID, string(sub.PlanType), sub.Price.String(), sub.StartsAt, sub.EndsAt).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	sub.IsActive = true
	sub.Status = types.SubscriptionActive

	if _, err := tx.Exec(ctx, `UPDATE users SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, req.UserID); err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PostgresStore) RejectVerificationRequest(ctx context.Context, id int64, review types.Review) (*types.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := resolve(ctx, tx, id, types.RequestRejected, review)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PostgresStore) ListPendingVerificationRequests(ctx context.Context, since time.Time) ([]types.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT `+requestColumns+`
FROM verification_requests
WHERE status = 'pending' AND created_at >= $1
ORDER BY created_at
`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.VerificationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}
