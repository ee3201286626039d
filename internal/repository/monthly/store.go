package monthly

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/lingometer/internal/db"
	"github.com/kailas-cloud/lingometer/internal/domain/ledger"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
)

// store is the consumer interface for monthly aggregates (ISP).
type store interface {
	RunScript(ctx context.Context, s *db.Script, keys, args []string) ([]string, error)
}

// KEYS[1] aggregate hash, KEYS[2] id sequence.
// ARGV: user_id, period_start, tokens, updated_at.
// Returns the HGETALL pairs after the increment.
var upsertScript = &db.Script{
	Name: "monthly_upsert",
	Source: `
if redis.call('EXISTS', KEYS[1]) == 0 then
  local id = redis.call('INCR', KEYS[2])
  redis.call('HSET', KEYS[1], 'id', tostring(id), 'user_id', ARGV[1], 'period_start', ARGV[2],
    'total_tokens', '0', 'total_requests', '0')
end
redis.call('HINCRBY', KEYS[1], 'total_tokens', tonumber(ARGV[3]))
redis.call('HINCRBY', KEYS[1], 'total_requests', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[4])
return redis.call('HGETALL', KEYS[1])
`,
}

// Store keeps one aggregate hash per (user, month).
type Store struct {
	store  store
	prefix string
}

// New creates a monthly aggregate store.
func New(s store, prefix string) *Store {
	return &Store{store: s, prefix: prefix}
}

func (s *Store) key(userID int64, periodStart time.Time) string {
	return s.prefix + "monthly:" + strconv.FormatInt(userID, 10) + ":" + periodStart.Format(period.MonthLayout)
}

// UpsertMonthly atomically adds tokens and one request, creating the row when absent.
func (s *Store) UpsertMonthly(
	ctx context.Context, userID int64, periodStart time.Time, tokens int, at time.Time,
) (ledger.MonthlyAggregate, error) {
	periodStart = period.MonthStart(periodStart)
	out, err := s.store.RunScript(ctx, upsertScript,
		[]string{s.key(userID, periodStart), s.prefix + "seq:monthly"},
		[]string{
			strconv.FormatInt(userID, 10),
			periodStart.Format(period.DateLayout),
			strconv.Itoa(tokens),
			at.UTC().Format(time.RFC3339Nano),
		},
	)
	if err != nil {
		return ledger.MonthlyAggregate{}, fmt.Errorf("monthly upsert %d/%s: %w",
			userID, periodStart.Format(period.MonthLayout), err)
	}
	return aggregateFromHash(db.PairsToMap(out))
}

func aggregateFromHash(m map[string]string) (ledger.MonthlyAggregate, error) {
	var a ledger.MonthlyAggregate
	var err error
	if a.ID, err = strconv.ParseInt(m["id"], 10, 64); err != nil {
		return a, fmt.Errorf("invalid id: %w", err)
	}
	if a.UserID, err = strconv.ParseInt(m["user_id"], 10, 64); err != nil {
		return a, fmt.Errorf("invalid user_id: %w", err)
	}
	if a.PeriodStart, err = time.Parse(period.DateLayout, m["period_start"]); err != nil {
		return a, fmt.Errorf("invalid period_start: %w", err)
	}
	if a.TotalTokens, err = strconv.Atoi(m["total_tokens"]); err != nil {
		return a, fmt.Errorf("invalid total_tokens: %w", err)
	}
	if a.TotalRequests, err = strconv.Atoi(m["total_requests"]); err != nil {
		return a, fmt.Errorf("invalid total_requests: %w", err)
	}
	if v := m["updated_at"]; v != "" {
		if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return a, fmt.Errorf("invalid updated_at: %w", err)
		}
	}
	return a, nil
}
