package translate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	domledger "github.com/kailas-cloud/lingometer/internal/domain/ledger"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
	"github.com/kailas-cloud/lingometer/internal/usecase/billing"
	"github.com/kailas-cloud/lingometer/internal/usecase/ledger"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memStore is an in-memory account, log and aggregate store.
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]account.Account
	logs     []domledger.Entry
	monthly  map[string]domledger.MonthlyAggregate

	logErr   error
	releases int
	writes   int
}

func newMemStore(accs ...account.Account) *memStore {
	s := &memStore{
		accounts: make(map[int64]account.Account),
		monthly:  make(map[string]domledger.MonthlyAggregate),
	}
	for _, a := range accs {
		s.accounts[a.ID()] = a
	}
	return s
}

func (s *memStore) account(id int64) account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memStore) Get(_ context.Context, id int64) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return account.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *memStore) Reserve(_ context.Context, id int64, tokens int) (account.Balance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	if a.UsedThisPeriod()+tokens > a.MonthlyQuota() {
		return a.Balance(), false, nil
	}
	a = a.WithUsed(a.UsedThisPeriod() + tokens)
	s.accounts[id] = a
	s.writes++
	return a.Balance(), true, nil
}

func (s *memStore) Release(_ context.Context, id int64, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	s.accounts[id] = a.WithUsed(max(0, a.UsedThisPeriod()-tokens))
	s.releases++
	return nil
}

func (s *memStore) ResetPeriod(_ context.Context, id int64, today time.Time) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	if !period.SameMonth(a.BillingPeriodStart(), today) {
		a = a.WithPeriod(today, 0)
		s.accounts[id] = a
		s.writes++
	}
	return a, nil
}

func (s *memStore) SetUsed(_ context.Context, id int64, used int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = s.accounts[id].WithUsed(used)
	s.writes++
	return nil
}

func (s *memStore) AppendLog(ctx context.Context, e domledger.Entry) (domledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return domledger.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logErr != nil {
		return domledger.Entry{}, s.logErr
	}
	e.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, e)
	s.writes++
	return e, nil
}

func (s *memStore) UpsertMonthly(_ context.Context, userID int64, periodStart time.Time, tokens int, at time.Time) (domledger.MonthlyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := periodStart.Format(period.MonthLayout)
	agg := s.monthly[key]
	agg.UserID = userID
	agg.PeriodStart = periodStart
	agg.TotalTokens += tokens
	agg.TotalRequests++
	agg.UpdatedAt = at
	s.monthly[key] = agg
	s.writes++
	return agg, nil
}

func (s *memStore) loggedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, e := range s.logs {
		total += e.EstimatedTokens
	}
	return total
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// mockTranslator calls fn, or echoes the text when fn is nil.
type mockTranslator struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, text, targetLang string) (domain.Translation, error)
}

func (m *mockTranslator) Translate(ctx context.Context, text, targetLang string) (domain.Translation, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, text, targetLang)
	}
	return domain.Translation{Text: "[" + targetLang + "] " + text, Model: "test-model"}, nil
}

func (m *mockTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errUpstream = errors.New("upstream 503")

func newService(store *memStore, provider *mockTranslator, mode Mode) *Service {
	clock := func() time.Time { return testNow }
	bill := billing.New(store, time.UTC).WithClock(clock)
	led := ledger.New(store, store, store).WithClock(clock)
	return New(store, bill, led, provider, Options{Mode: mode})
}
