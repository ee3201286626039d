package usagelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/lingometer/internal/db"
	"github.com/kailas-cloud/lingometer/internal/domain/ledger"
)

func TestAppendLog_Success(t *testing.T) {
	var gotKeys, gotArgs []string
	ms := &mockStore{
		incrFn: func(_ context.Context, key string) (int64, error) {
			if key != "lingometer:seq:usage_log" {
				t.Errorf("unexpected seq key %q", key)
			}
			return 12, nil
		},
		runScriptFn: func(_ context.Context, s *db.Script, keys, args []string) ([]string, error) {
			if s != appendScript {
				t.Errorf("unexpected script %s", s.Name)
			}
			gotKeys, gotArgs = keys, args
			return []string{"12"}, nil
		},
	}

	e, err := New(ms, "lingometer:").AppendLog(context.Background(), ledger.Entry{
		UserID:          7,
		Model:           "glm-4-flash",
		TargetLang:      "英文",
		InputChars:      2,
		EstimatedTokens: 2,
		OriginalText:    "你好",
		TranslatedText:  "Hello",
		CreatedAt:       time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != 12 {
		t.Errorf("id = %d, want 12", e.ID)
	}
	if gotKeys[0] != "lingometer:usage_log:12" || gotKeys[1] != "lingometer:usage_log:user:7" {
		t.Errorf("unexpected keys %v", gotKeys)
	}
	if gotArgs[0] != "12" {
		t.Errorf("first arg must be the id, got %q", gotArgs[0])
	}

	fields := db.PairsToMap(gotArgs[1:])
	want := map[string]string{
		"id":               "12",
		"user_id":          "7",
		"model":            "glm-4-flash",
		"target_lang":      "英文",
		"input_chars":      "2",
		"estimated_tokens": "2",
		"cost_in_cents":    "0",
		"original_text":    "你好",
		"translated_text":  "Hello",
		"created_at":       "2026-10-17T09:00:00Z",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, fields[k], v)
		}
	}
}

func TestAppendLog_SeqError(t *testing.T) {
	called := false
	ms := &mockStore{
		incrFn: func(context.Context, string) (int64, error) { return 0, errors.New("timeout") },
		runScriptFn: func(context.Context, *db.Script, []string, []string) ([]string, error) {
			called = true
			return nil, nil
		},
	}
	if _, err := New(ms, "p:").AppendLog(context.Background(), ledger.Entry{UserID: 1}); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("script must not run without an id")
	}
}

func TestAppendLog_ScriptError(t *testing.T) {
	cause := &db.Error{Op: db.OpEval, Err: errors.New("OOM")}
	ms := &mockStore{
		runScriptFn: func(context.Context, *db.Script, []string, []string) ([]string, error) {
			return nil, cause
		},
	}
	_, err := New(ms, "p:").AppendLog(context.Background(), ledger.Entry{UserID: 1})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}
