package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
type Store interface {
	Pinger
	HashStore
	KVStore
	ScriptRunner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Incr atomically increments key by one and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}

// Script is a server-side Lua script. Scripts return flat arrays of strings.
type Script struct {
	Name   string
	Source string
}

// ScriptRunner executes Lua scripts atomically on the server.
type ScriptRunner interface {
	RunScript(ctx context.Context, s *Script, keys, args []string) ([]string, error)
}

// PairsToMap converts a flat HGETALL-style reply into a map.
func PairsToMap(pairs []string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}
