// Package postgres provides a PostgreSQL-backed account, usage log and
// monthly aggregate store.
//
// Balance changes are single conditional UPDATE statements, so the reserve
// path is safe across multiple service instances.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/ledger"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
)

// Store is a PostgreSQL-backed store.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default none).
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	return pool, nil
}

func (s *Store) usersTable() string   { return s.tablePrefix + "users" }
func (s *Store) logsTable() string    { return s.tablePrefix + "usage_logs" }
func (s *Store) monthlyTable() string { return s.tablePrefix + "user_monthly_usage" }

const accountColumns = `id, auth_user_id, name, monthly_quota_tokens, used_tokens_this_period, billing_period_start, created_at`

// EnsureSchema creates the required tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGSERIAL PRIMARY KEY,
			auth_user_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			monthly_quota_tokens INTEGER NOT NULL DEFAULT %[4]d CHECK (monthly_quota_tokens > 0),
			used_tokens_this_period INTEGER NOT NULL DEFAULT 0 CHECK (used_tokens_this_period >= 0),
			billing_period_start DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS %[2]s (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES %[1]s (id),
			model TEXT NOT NULL,
			target_lang TEXT NOT NULL DEFAULT '',
			input_chars INTEGER NOT NULL,
			estimated_tokens INTEGER NOT NULL,
			cost_in_cents INTEGER NOT NULL DEFAULT 0,
			original_text TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS %[2]s_user_created_idx ON %[2]s (user_id, created_at);
		CREATE TABLE IF NOT EXISTS %[3]s (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES %[1]s (id),
			period_start DATE NOT NULL,
			total_tokens BIGINT NOT NULL DEFAULT 0,
			total_requests BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, period_start)
		);
	`, s.usersTable(), s.logsTable(), s.monthlyTable(), account.DefaultMonthlyQuota)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var (
		id            int64
		authID, name  string
		quota, used   int
		start, create time.Time
	)
	if err := row.Scan(&id, &authID, &name, &quota, &used, &start, &create); err != nil {
		return account.Account{}, err //nolint:wrapcheck // callers wrap
	}
	return account.Reconstruct(id, authID, name, quota, used, period.Date(start, time.UTC), create.UTC()), nil
}

// Get loads an account by id.
func (s *Store) Get(ctx context.Context, id int64) (account.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, accountColumns, s.usersTable()), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("postgres: get account %d: %w", id, err)
	}
	return acc, nil
}

// GetByAuthID loads an account by its external auth id.
func (s *Store) GetByAuthID(ctx context.Context, authID string) (account.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE auth_user_id = $1`, accountColumns, s.usersTable()), authID))
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("postgres: get account by auth id: %w", err)
	}
	return acc, nil
}

// Create inserts the account unless the auth id exists, then returns the stored row.
func (s *Store) Create(ctx context.Context, d account.Draft) (account.Account, error) {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (auth_user_id, name, monthly_quota_tokens, used_tokens_this_period, billing_period_start, created_at)
			VALUES ($1, $2, $3, 0, $4, $5)
			ON CONFLICT (auth_user_id) DO NOTHING`, s.usersTable()),
		d.AuthUserID, d.Name, d.MonthlyQuota, d.BillingPeriodStart, d.CreatedAt,
	)
	if err != nil {
		return account.Account{}, fmt.Errorf("postgres: create account: %w", err)
	}
	return s.GetByAuthID(ctx, d.AuthUserID)
}

// ResetPeriod zeroes usage and moves the period start to today
// unless the stored period already lies in today's month.
func (s *Store) ResetPeriod(ctx context.Context, id int64, today time.Time) (account.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET used_tokens_this_period = 0, billing_period_start = $2
			WHERE id = $1 AND date_trunc('month', billing_period_start) <> date_trunc('month', $2::date)
			RETURNING %s`, s.usersTable(), accountColumns),
		id, today,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Already current, or reset by a concurrent request.
		return s.Get(ctx, id)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("postgres: reset period for account %d: %w", id, err)
	}
	return acc, nil
}

// Reserve adds tokens to the used counter iff the result stays within quota.
func (s *Store) Reserve(ctx context.Context, id int64, tokens int) (account.Balance, bool, error) {
	var bal account.Balance
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET used_tokens_this_period = used_tokens_this_period + $2
			WHERE id = $1 AND used_tokens_this_period + $2 <= monthly_quota_tokens
			RETURNING monthly_quota_tokens, used_tokens_this_period`, s.usersTable()),
		id, tokens,
	).Scan(&bal.Quota, &bal.Used)
	if err == nil {
		return bal, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return account.Balance{}, false, fmt.Errorf("postgres: reserve for account %d: %w", id, err)
	}

	// Zero rows: either the account is missing or the balance is insufficient.
	acc, err := s.Get(ctx, id)
	if err != nil {
		return account.Balance{}, false, err
	}
	return acc.Balance(), false, nil
}

// Release subtracts tokens from the used counter, never below zero.
func (s *Store) Release(ctx context.Context, id int64, tokens int) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET used_tokens_this_period = GREATEST(used_tokens_this_period - $2, 0)
			WHERE id = $1`, s.usersTable()),
		id, tokens,
	)
	if err != nil {
		return fmt.Errorf("postgres: release for account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetUsed overwrites the used counter.
func (s *Store) SetUsed(ctx context.Context, id int64, used int) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET used_tokens_this_period = $2 WHERE id = $1`, s.usersTable()),
		id, used,
	)
	if err != nil {
		return fmt.Errorf("postgres: set used for account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendLog inserts a usage log entry.
func (s *Store) AppendLog(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, model, target_lang, input_chars, estimated_tokens, cost_in_cents,
			original_text, translated_text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`, s.logsTable()),
		e.UserID, e.Model, e.TargetLang, e.InputChars, e.EstimatedTokens, e.CostCents,
		e.OriginalText, e.TranslatedText, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("postgres: append log: %w", err)
	}
	return e, nil
}

// UpsertMonthly atomically adds tokens and one request to the month row.
func (s *Store) UpsertMonthly(
	ctx context.Context, userID int64, periodStart time.Time, tokens int, at time.Time,
) (ledger.MonthlyAggregate, error) {
	var (
		agg   ledger.MonthlyAggregate
		start time.Time
	)
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s AS m (user_id, period_start, total_tokens, total_requests, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (user_id, period_start) DO UPDATE SET
				total_tokens = m.total_tokens + EXCLUDED.total_tokens,
				total_requests = m.total_requests + 1,
				updated_at = EXCLUDED.updated_at
			RETURNING id, user_id, period_start, total_tokens, total_requests, updated_at`, s.monthlyTable()),
		userID, period.MonthStart(periodStart), tokens, at,
	).Scan(&agg.ID, &agg.UserID, &start, &agg.TotalTokens, &agg.TotalRequests, &agg.UpdatedAt)
	if err != nil {
		return ledger.MonthlyAggregate{}, fmt.Errorf("postgres: monthly upsert: %w", err)
	}
	agg.PeriodStart = period.Date(start, time.UTC)
	return agg, nil
}
