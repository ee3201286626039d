package usagelog

import (
	"context"

	"github.com/kailas-cloud/lingometer/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	incrFn      func(ctx context.Context, key string) (int64, error)
	runScriptFn func(ctx context.Context, s *db.Script, keys, args []string) ([]string, error)
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
	return []string{args[0]}, nil
}
