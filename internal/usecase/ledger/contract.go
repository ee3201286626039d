package ledger

import (
	"context"
	"time"

	domledger "github.com/kailas-cloud/lingometer/internal/domain/ledger"
)

// LogAppender stores usage log entries.
type LogAppender interface {
	AppendLog(ctx context.Context, e domledger.Entry) (domledger.Entry, error)
}

// MonthlyUpserter maintains per-(user, month) aggregates.
// UpsertMonthly must add tokens and one request atomically, inserting the row when absent.
type MonthlyUpserter interface {
	UpsertMonthly(ctx context.Context, userID int64, periodStart time.Time, tokens int, at time.Time) (domledger.MonthlyAggregate, error)
}

// UsageWriter overwrites an account's used counter.
type UsageWriter interface {
	SetUsed(ctx context.Context, id int64, used int) error
}
