package account

import (
	"context"

	"github.com/kailas-cloud/lingometer/internal/db"
)

const testPrefix = "lingometer:"

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn   func(ctx context.Context, key string) (map[string]string, error)
	getFn       func(ctx context.Context, key string) ([]byte, error)
	incrFn      func(ctx context.Context, key string) (int64, error)
	runScriptFn func(ctx context.Context, s *db.Script, keys, args []string) ([]string, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrFn != nil {
		return m.incrFn(ctx, key)
	}
	return 1, nil
}

func (m *mockStore) RunScript(ctx context.Context, s *db.Script, keys, args []string) ([]string, error) {
	if m.runScriptFn != nil {
		return m.runScriptFn(ctx, s, keys, args)
	}
	return nil, nil
}

func storedHash() map[string]string {
	return map[string]string{
		fieldID:          "7",
		fieldAuthUserID:  "auth-7",
		fieldName:        "Li",
		fieldQuota:       "50000",
		fieldUsed:        "1200",
		fieldPeriodStart: "2026-10-01",
		fieldCreatedAt:   "2026-10-01T08:00:00Z",
	}
}

func flatten(m map[string]string) []string {
	out := make([]string, 0, len(m)*2)
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}
