package billing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
)

const (
	resetAttempts = 2
	retryDelay    = 50 * time.Millisecond
)

// Service is the billing period manager.
type Service struct {
	store PeriodResetter
	now   func() time.Time
	loc   *time.Location
}

// New creates a Service. loc decides what "today" is; nil means UTC.
func New(store PeriodResetter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, now: time.Now, loc: loc}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today returns the current calendar date.
func (s *Service) Today() time.Time {
	return period.Date(s.now(), s.loc)
}

// Refresh resets the account's usage when the calendar month has rolled over.
// Same-period accounts are returned as is, without a store round-trip.
func (s *Service) Refresh(ctx context.Context, acc account.Account) (account.Account, error) {
	today := s.Today()
	if !period.NeedsReset(acc, today) {
		return acc, nil
	}

	var lastErr error
	for attempt := 1; attempt <= resetAttempts; attempt++ {
		refreshed, err := s.store.ResetPeriod(ctx, acc.ID(), today)
		if err == nil {
			logpkg.FromContext(ctx).Info("billing period rolled over",
				zap.Int64("user_id", acc.ID()),
				zap.String("previous_start", acc.BillingPeriodStart().Format(period.DateLayout)),
				zap.String("new_start", refreshed.BillingPeriodStart().Format(period.DateLayout)),
			)
			return refreshed, nil
		}
		lastErr = err

		if attempt < resetAttempts {
			select {
			case <-ctx.Done():
				return account.Account{}, fmt.Errorf("reset billing period: %w", ctx.Err())
			case <-time.After(retryDelay):
			}
		}
	}
	return account.Account{}, fmt.Errorf("reset billing period: %w", lastErr)
}

// Preview returns what Refresh would produce, without writing.
func (s *Service) Preview(acc account.Account) account.Account {
	return period.Rolled(acc, s.Today())
}
