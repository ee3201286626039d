package usage

import (
	"context"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
	domusage "github.com/kailas-cloud/lingometer/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	billing PeriodPreviewer
}

// New creates a Service.
func New(billing PeriodPreviewer) *Service {
	return &Service{billing: billing}
}

// GetReport builds the caller's report for the current period.
// A stale period is reported as already reset; nothing is written.
func (s *Service) GetReport(_ context.Context, acc account.Account) domusage.Report {
	cur := s.billing.Preview(acc)
	start := cur.BillingPeriodStart()

	return domusage.NewReport(
		cur.MonthlyQuota(),
		cur.UsedThisPeriod(),
		start,
		period.NextMonthStart(start),
	)
}
