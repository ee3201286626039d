package translate

import (
	"context"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/usecase/ledger"
)

// AccountStore provides the account operations used around a translation.
type AccountStore interface {
	Get(ctx context.Context, id int64) (account.Account, error)
	// Reserve adds tokens to the used counter iff used + tokens <= quota.
	// It reports false with the current balance when the condition does not hold.
	Reserve(ctx context.Context, id int64, tokens int) (account.Balance, bool, error)
	// Release subtracts tokens from the used counter, never below zero.
	Release(ctx context.Context, id int64, tokens int) error
}

// PeriodRefresher rolls the billing period over when the month changed.
type PeriodRefresher interface {
	Refresh(ctx context.Context, acc account.Account) (account.Account, error)
}

// UsageCommitter records a successful translation.
type UsageCommitter interface {
	Commit(ctx context.Context, in ledger.Input) (ledger.Receipt, error)
}
