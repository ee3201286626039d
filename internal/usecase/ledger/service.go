package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	domledger "github.com/kailas-cloud/lingometer/internal/domain/ledger"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
	"github.com/kailas-cloud/lingometer/internal/metrics"
)

// Step names a ledger write.
type Step string

// Commit steps, in execution order.
const (
	StepLog     Step = "log"
	StepMonthly Step = "monthly"
	StepAccount Step = "account"
)

// CommitError reports which write failed. It matches both domain.ErrPersistence and the cause.
type CommitError struct {
	Step Step
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("ledger commit %s: %v", e.Step, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{domain.ErrPersistence, e.Err} }

// Input describes one successful translation to account for.
type Input struct {
	Account        account.Account // period already refreshed
	Model          string
	TargetLang     string
	OriginalText   string
	TranslatedText string
	InputChars     int
	Tokens         int
	// Reserved carries the balance after an atomic reservation. When set, the
	// account counter is already charged and is not written again.
	Reserved *account.Balance
}

// Receipt is the outcome of a commit.
type Receipt struct {
	Entry     domledger.Entry
	Monthly   domledger.MonthlyAggregate
	Remaining int
}

// Service records usage after a successful translation.
type Service struct {
	logs    LogAppender
	monthly MonthlyUpserter
	usage   UsageWriter
	now     func() time.Time
}

// New creates a Service.
func New(logs LogAppender, monthly MonthlyUpserter, usage UsageWriter) *Service {
	return &Service{logs: logs, monthly: monthly, usage: usage, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Commit appends the log entry, bumps the monthly aggregate and charges the account.
// A failed log append aborts before any other write.
func (s *Service) Commit(ctx context.Context, in Input) (Receipt, error) {
	acc := in.Account
	now := s.now().UTC()

	entry, err := s.logs.AppendLog(ctx, domledger.Entry{
		UserID:          acc.ID(),
		Model:           in.Model,
		TargetLang:      in.TargetLang,
		InputChars:      in.InputChars,
		EstimatedTokens: in.Tokens,
		OriginalText:    in.OriginalText,
		TranslatedText:  in.TranslatedText,
		CreatedAt:       now,
	})
	if err != nil {
		return Receipt{}, s.fail(StepLog, err)
	}

	// Aggregates key by month start even though the account keeps the literal reset date.
	monthly, err := s.monthly.UpsertMonthly(ctx, acc.ID(), period.MonthStart(acc.BillingPeriodStart()), in.Tokens, now)
	if err != nil {
		return Receipt{}, s.fail(StepMonthly, err)
	}

	var remaining int
	if in.Reserved != nil {
		remaining = in.Reserved.Remaining()
	} else {
		used := acc.UsedThisPeriod() + in.Tokens
		if err := s.usage.SetUsed(ctx, acc.ID(), used); err != nil {
			return Receipt{}, s.fail(StepAccount, err)
		}
		remaining = acc.MonthlyQuota() - used
	}

	metrics.TokensCommittedTotal.Add(float64(in.Tokens))
	logpkg.FromContext(ctx).Debug("usage committed",
		zap.Int64("user_id", acc.ID()),
		zap.Int64("log_id", entry.ID),
		zap.Int("tokens", in.Tokens),
		zap.Int("monthly_total_tokens", monthly.TotalTokens),
		zap.Int("remaining_tokens", remaining),
	)

	return Receipt{Entry: entry, Monthly: monthly, Remaining: remaining}, nil
}

func (s *Service) fail(step Step, err error) error {
	metrics.LedgerWriteErrorsTotal.WithLabelValues(string(step)).Inc()
	return &CommitError{Step: step, Err: err}
}
