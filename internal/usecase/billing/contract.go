package billing

import (
	"context"
	"time"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
)

// PeriodResetter persists a period rollover.
// ResetPeriod must only write when the stored period is not in today's month,
// and return the stored account either way.
type PeriodResetter interface {
	ResetPeriod(ctx context.Context, id int64, today time.Time) (account.Account, error)
}
