// Package quota decides whether a prospective cost fits the remaining balance.
package quota

import (
	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
)

// Decision is the outcome of Admit.
type Decision struct {
	Allowed   bool
	Remaining int
	Requested int
}

// Err returns a *domain.QuotaInsufficientError for rejections, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domain.NewQuotaInsufficient(d.Remaining, d.Requested)
}

// Admit allows iff requested <= quota - used.
func Admit(acc account.Account, requested int) Decision {
	return AdmitBalance(acc.Balance(), requested)
}

// AdmitBalance applies the gate to a bare balance.
func AdmitBalance(b account.Balance, requested int) Decision {
	remaining := b.Remaining()
	return Decision{
		Allowed:   requested <= remaining,
		Remaining: remaining,
		Requested: requested,
	}
}
