package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lingometer/internal/db"
)

// RunScript executes a Lua script via EVALSHA, falling back to EVAL when the
// server has not cached it yet. The reply must be an array of strings.
func (s *Store) RunScript(ctx context.Context, sc *db.Script, keys, args []string) ([]string, error) {
	res := s.lua(sc).Exec(ctx, s.client, keys, args)
	out, err := res.AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpEval, Err: fmt.Errorf("script %s: %w", sc.Name, err)}
	}
	return out, nil
}

func (s *Store) lua(sc *db.Script) *rueidis.Lua {
	if l, ok := s.scripts.Load(sc); ok {
		return l.(*rueidis.Lua)
	}
	l, _ := s.scripts.LoadOrStore(sc, rueidis.NewLuaScript(sc.Source))
	return l.(*rueidis.Lua)
}
