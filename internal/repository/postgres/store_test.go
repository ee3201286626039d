//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/ledger"
	"github.com/kailas-cloud/lingometer/internal/repository/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/lingometer_test?sslmode=disable"
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	pool := newTestPool(t)
	prefix := fmt.Sprintf("test_%s_", strings.ToLower(t.Name()))
	s := postgres.New(pool, postgres.WithTablePrefix(prefix))

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %[1]suser_monthly_usage, %[1]susage_logs, %[1]susers", prefix))
	})
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, s *postgres.Store, authID string, quota int, start time.Time) account.Account {
	t.Helper()
	acc, err := s.Create(context.Background(), account.Draft{
		AuthUserID:         authID,
		Name:               "Ann",
		MonthlyQuota:       quota,
		BillingPeriodStart: start,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return acc
}

func TestCreateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	first := seed(t, s, "auth-1", 50000, date(2026, 10, 1))
	second := seed(t, s, "auth-1", 999, date(2026, 11, 1))

	if first.ID() != second.ID() {
		t.Fatalf("expected same id, got %d and %d", first.ID(), second.ID())
	}
	if second.MonthlyQuota() != 50000 {
		t.Errorf("expected first quota kept, got %d", second.MonthlyQuota())
	}
	if !second.BillingPeriodStart().Equal(date(2026, 10, 1)) {
		t.Errorf("unexpected period start %v", second.BillingPeriodStart())
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, 424242); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByAuthID(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByAuthID: expected ErrNotFound, got %v", err)
	}
}

func TestReserveAndRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seed(t, s, "auth-1", 1000, date(2026, 10, 1))

	bal, ok, err := s.Reserve(ctx, acc.ID(), 900)
	if err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	if bal.Used != 900 || bal.Remaining() != 100 {
		t.Fatalf("unexpected balance %+v", bal)
	}

	bal, ok, err = s.Reserve(ctx, acc.ID(), 101)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ok {
		t.Fatal("expected reserve beyond quota to fail")
	}
	if bal.Remaining() != 100 {
		t.Errorf("expected remaining=100, got %d", bal.Remaining())
	}

	if err := s.Release(ctx, acc.ID(), 2000); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := s.Get(ctx, acc.ID())
	if got.UsedThisPeriod() != 0 {
		t.Errorf("expected release clamped at 0, got %d", got.UsedThisPeriod())
	}
}

func TestReserveUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Reserve(context.Background(), 777, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentReservesNoOverAllocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seed(t, s, "auth-1", 1000, date(2026, 10, 1))
	if err := s.SetUsed(ctx, acc.ID(), 900); err != nil {
		t.Fatalf("set used: %v", err)
	}

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for j := 0; j < 10; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := s.Reserve(ctx, acc.ID(), 80); err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted.Load())
	}
	got, _ := s.Get(ctx, acc.ID())
	if got.UsedThisPeriod() != 980 {
		t.Errorf("expected used=980, got %d", got.UsedThisPeriod())
	}
}

func TestResetPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seed(t, s, "auth-1", 50000, date(2026, 9, 3))
	if err := s.SetUsed(ctx, acc.ID(), 48000); err != nil {
		t.Fatalf("set used: %v", err)
	}

	got, err := s.ResetPeriod(ctx, acc.ID(), date(2026, 10, 17))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got.UsedThisPeriod() != 0 || !got.BillingPeriodStart().Equal(date(2026, 10, 17)) {
		t.Fatalf("unexpected account after reset: used=%d start=%v", got.UsedThisPeriod(), got.BillingPeriodStart())
	}

	// Same month again: no change.
	if err := s.SetUsed(ctx, acc.ID(), 200); err != nil {
		t.Fatalf("set used: %v", err)
	}
	got, err = s.ResetPeriod(ctx, acc.ID(), date(2026, 10, 31))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got.UsedThisPeriod() != 200 || !got.BillingPeriodStart().Equal(date(2026, 10, 17)) {
		t.Errorf("expected no reset within month, got used=%d start=%v", got.UsedThisPeriod(), got.BillingPeriodStart())
	}
}

func TestSetUsedNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetUsed(context.Background(), 99, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendLogAndMonthly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seed(t, s, "auth-1", 50000, date(2026, 10, 17))
	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	e, err := s.AppendLog(ctx, ledger.Entry{
		UserID:          acc.ID(),
		Model:           "GLM-4-Flash-250414",
		TargetLang:      "英文",
		InputChars:      1500,
		EstimatedTokens: 1000,
		OriginalText:    "hello",
		TranslatedText:  "hi",
		CreatedAt:       at,
	})
	if err != nil {
		t.Fatalf("append log: %v", err)
	}
	if e.ID == 0 {
		t.Error("expected id to be assigned")
	}

	if _, err := s.UpsertMonthly(ctx, acc.ID(), date(2026, 10, 17), 1000, at); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	agg, err := s.UpsertMonthly(ctx, acc.ID(), date(2026, 10, 20), 200, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if agg.TotalTokens != 1200 || agg.TotalRequests != 2 {
		t.Errorf("unexpected aggregate %+v", agg)
	}
	if !agg.PeriodStart.Equal(date(2026, 10, 1)) {
		t.Errorf("expected month start key, got %v", agg.PeriodStart)
	}
}

func TestTablePrefixIsolation(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	a := postgres.New(pool, postgres.WithTablePrefix("test_iso_a_"))
	b := postgres.New(pool, postgres.WithTablePrefix("test_iso_b_"))
	for _, s := range []*postgres.Store{a, b} {
		if err := s.EnsureSchema(ctx); err != nil {
			t.Fatalf("ensure schema: %v", err)
		}
	}
	t.Cleanup(func() {
		for _, p := range []string{"test_iso_a_", "test_iso_b_"} {
			pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %[1]suser_monthly_usage, %[1]susage_logs, %[1]susers", p))
		}
	})

	if _, err := a.Create(ctx, account.Draft{
		AuthUserID: "auth-1", MonthlyQuota: 10, BillingPeriodStart: date(2026, 10, 1), CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.GetByAuthID(ctx, "auth-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected isolation, got %v", err)
	}
}
