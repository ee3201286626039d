package usage

import (
	"github.com/kailas-cloud/lingometer/internal/domain/account"
)

// PeriodPreviewer shows an account as it looks in the current billing period.
type PeriodPreviewer interface {
	Preview(acc account.Account) account.Account
}
