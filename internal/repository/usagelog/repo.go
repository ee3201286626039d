package usagelog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/lingometer/internal/db"
	"github.com/kailas-cloud/lingometer/internal/domain/ledger"
)

// store is the consumer interface for usage logs (ISP).
type store interface {
	Incr(ctx context.Context, key string) (int64, error)
	RunScript(ctx context.Context, s *db.Script, keys, args []string) ([]string, error)
}

// KEYS[1] entry hash, KEYS[2] per-user id list. ARGV[1] id, ARGV[2..] field/value pairs.
var appendScript = &db.Script{
	Name: "usage_log_append",
	Source: `
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('RPUSH', KEYS[2], ARGV[1])
return {ARGV[1]}
`,
}

// Repo appends immutable usage log entries.
type Repo struct {
	store  store
	prefix string
}

// New creates a usage log repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) entryKey(id int64) string {
	return r.prefix + "usage_log:" + strconv.FormatInt(id, 10)
}

func (r *Repo) userKey(userID int64) string {
	return r.prefix + "usage_log:user:" + strconv.FormatInt(userID, 10)
}

// AppendLog stores the entry and indexes it under its user.
func (r *Repo) AppendLog(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	id, err := r.store.Incr(ctx, r.prefix+"seq:usage_log")
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("allocate log id: %w", err)
	}
	e.ID = id

	args := append([]string{strconv.FormatInt(id, 10)}, entryToArgs(e)...)
	if _, err := r.store.RunScript(ctx, appendScript,
		[]string{r.entryKey(id), r.userKey(e.UserID)}, args); err != nil {
		return ledger.Entry{}, fmt.Errorf("append log: %w", err)
	}
	return e, nil
}

func entryToArgs(e ledger.Entry) []string {
	return []string{
		"id", strconv.FormatInt(e.ID, 10),
		"user_id", strconv.FormatInt(e.UserID, 10),
		"model", e.Model,
		"target_lang", e.TargetLang,
		"input_chars", strconv.Itoa(e.InputChars),
		"estimated_tokens", strconv.Itoa(e.EstimatedTokens),
		"cost_in_cents", strconv.Itoa(e.CostCents),
		"original_text", e.OriginalText,
		"translated_text", e.TranslatedText,
		"created_at", e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
