package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/lingometer/internal/db"
	"github.com/kailas-cloud/lingometer/internal/domain"
	domacc "github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
)

// store is the consumer interface for accounts (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string) (int64, error)
	RunScript(ctx context.Context, s *db.Script, keys, args []string) ([]string, error)
}

// Repo stores accounts as hashes with an auth id index.
type Repo struct {
	store  store
	prefix string
}

// New creates an account repository. prefix namespaces all keys (e.g. "lingometer:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) accountKey(id int64) string {
	return r.prefix + "account:" + strconv.FormatInt(id, 10)
}

func (r *Repo) authKey(authID string) string {
	return r.prefix + "account:auth:" + authID
}

func (r *Repo) seqKey() string {
	return r.prefix + "seq:account"
}

// Get loads an account by id.
func (r *Repo) Get(ctx context.Context, id int64) (domacc.Account, error) {
	m, err := r.store.HGetAll(ctx, r.accountKey(id))
	if err != nil {
		return domacc.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	if len(m) == 0 {
		return domacc.Account{}, domain.ErrNotFound
	}
	acc, err := accountFromHash(m)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("decode account %d: %w", id, err)
	}
	return acc, nil
}

// GetByAuthID resolves the auth index, then loads the account.
func (r *Repo) GetByAuthID(ctx context.Context, authID string) (domacc.Account, error) {
	raw, err := r.store.Get(ctx, r.authKey(authID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domacc.Account{}, domain.ErrNotFound
		}
		return domacc.Account{}, fmt.Errorf("lookup auth id: %w", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("invalid account id %q: %w", raw, err)
	}
	return r.Get(ctx, id)
}

// Create allocates an id and stores the account unless the auth id is taken.
// A losing concurrent insert burns its id; ids are never reused.
func (r *Repo) Create(ctx context.Context, d domacc.Draft) (domacc.Account, error) {
	id, err := r.store.Incr(ctx, r.seqKey())
	if err != nil {
		return domacc.Account{}, fmt.Errorf("allocate account id: %w", err)
	}

	out, err := r.store.RunScript(ctx, createScript,
		[]string{r.authKey(d.AuthUserID), r.accountKey(id)},
		draftToArgs(id, d),
	)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("create account: %w", err)
	}
	if len(out) != 1 {
		return domacc.Account{}, fmt.Errorf("create account: unexpected reply %v", out)
	}

	storedID, err := strconv.ParseInt(out[0], 10, 64)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("create account: invalid id %q: %w", out[0], err)
	}
	return r.Get(ctx, storedID)
}

// ResetPeriod zeroes usage and moves the period start to today
// unless the stored period already lies in today's month.
func (r *Repo) ResetPeriod(ctx context.Context, id int64, today time.Time) (domacc.Account, error) {
	out, err := r.store.RunScript(ctx, resetPeriodScript,
		[]string{r.accountKey(id)},
		[]string{today.Format(period.DateLayout), today.Format(period.MonthLayout)},
	)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("reset period for account %d: %w", id, err)
	}
	if len(out) == 0 {
		return domacc.Account{}, domain.ErrNotFound
	}
	acc, err := accountFromHash(db.PairsToMap(out))
	if err != nil {
		return domacc.Account{}, fmt.Errorf("decode account %d: %w", id, err)
	}
	return acc, nil
}

// Reserve charges tokens iff used + tokens <= quota.
func (r *Repo) Reserve(ctx context.Context, id int64, tokens int) (domacc.Balance, bool, error) {
	out, err := r.store.RunScript(ctx, reserveScript,
		[]string{r.accountKey(id)},
		[]string{strconv.Itoa(tokens)},
	)
	if err != nil {
		return domacc.Balance{}, false, fmt.Errorf("reserve for account %d: %w", id, err)
	}
	if len(out) == 0 {
		return domacc.Balance{}, false, domain.ErrNotFound
	}
	if len(out) != 3 {
		return domacc.Balance{}, false, fmt.Errorf("reserve for account %d: unexpected reply %v", id, out)
	}

	bal, err := balanceFromReply(out[1], out[2])
	if err != nil {
		return domacc.Balance{}, false, fmt.Errorf("reserve for account %d: %w", id, err)
	}
	return bal, out[0] == "1", nil
}

// Release gives back reserved tokens, clamping used at zero.
func (r *Repo) Release(ctx context.Context, id int64, tokens int) error {
	out, err := r.store.RunScript(ctx, releaseScript,
		[]string{r.accountKey(id)},
		[]string{strconv.Itoa(tokens)},
	)
	if err != nil {
		return fmt.Errorf("release for account %d: %w", id, err)
	}
	if len(out) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetUsed overwrites the used counter.
func (r *Repo) SetUsed(ctx context.Context, id int64, used int) error {
	out, err := r.store.RunScript(ctx, setUsedScript,
		[]string{r.accountKey(id)},
		[]string{strconv.Itoa(used)},
	)
	if err != nil {
		return fmt.Errorf("set used for account %d: %w", id, err)
	}
	if len(out) == 0 {
		return domain.ErrNotFound
	}
	return nil
}
