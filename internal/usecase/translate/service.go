package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/quota"
	"github.com/kailas-cloud/lingometer/internal/domain/tokens"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
	"github.com/kailas-cloud/lingometer/internal/metrics"
	"github.com/kailas-cloud/lingometer/internal/usecase/ledger"
)

// DefaultTargetLang is used when a request names no target language.
const DefaultTargetLang = "英文"

const defaultCommitTimeout = 5 * time.Second

// Outcome labels a terminal stage.
type Outcome string

// Terminal outcomes.
const (
	OutcomeOK          Outcome = "ok"
	OutcomeQuota       Outcome = "quota"
	OutcomeProvider    Outcome = "provider"
	OutcomePersistence Outcome = "persistence"
	OutcomeError       Outcome = "error"
)

// Request is a translation request from an authenticated user.
type Request struct {
	Text       string
	TargetLang string
}

// Result is returned after the usage has been recorded.
type Result struct {
	TranslatedText  string
	EstimatedTokens int
	RemainingTokens int
}

// Options tunes the Service.
type Options struct {
	Mode              Mode
	DefaultTargetLang string
	CommitTimeout     time.Duration
}

// Service orchestrates refresh, admission, provider call and commit.
type Service struct {
	accounts AccountStore
	billing  PeriodRefresher
	ledger   UsageCommitter
	provider domain.Translator

	mode          Mode
	targetLang    string
	commitTimeout time.Duration
	locks         *keyedMutex
}

// New creates a Service.
func New(
	accounts AccountStore,
	billing PeriodRefresher,
	committer UsageCommitter,
	provider domain.Translator,
	opts Options,
) *Service {
	if opts.Mode == "" {
		opts.Mode = ModeAtomic
	}
	if opts.DefaultTargetLang == "" {
		opts.DefaultTargetLang = DefaultTargetLang
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = defaultCommitTimeout
	}
	return &Service{
		accounts:      accounts,
		billing:       billing,
		ledger:        committer,
		provider:      provider,
		mode:          opts.Mode,
		targetLang:    opts.DefaultTargetLang,
		commitTimeout: opts.CommitTimeout,
		locks:         newKeyedMutex(),
	}
}

// Mode returns the configured consistency mode.
func (s *Service) Mode() Mode { return s.mode }

// Translate translates req.Text for acc and charges the estimated cost.
// Nothing is charged when the gate rejects or the provider fails.
func (s *Service) Translate(ctx context.Context, acc account.Account, req Request) (Result, error) {
	res, outcome, err := s.translate(ctx, acc, req)
	metrics.TranslationsTotal.WithLabelValues(string(outcome)).Inc()

	log := logpkg.FromContext(ctx).With(
		zap.Int64("user_id", acc.ID()),
		zap.String("outcome", string(outcome)),
		zap.String("mode", string(s.mode)),
	)
	switch outcome {
	case OutcomeOK:
		log.Info("translation committed",
			zap.Int("estimated_tokens", res.EstimatedTokens),
			zap.Int("remaining_tokens", res.RemainingTokens),
		)
	case OutcomeQuota:
		metrics.QuotaRejectionsTotal.Inc()
		log.Info("translation rejected", zap.Error(err))
	default:
		log.Warn("translation failed", zap.Error(err))
	}
	return res, err
}

func (s *Service) translate(ctx context.Context, acc account.Account, req Request) (Result, Outcome, error) {
	targetLang := req.TargetLang
	if targetLang == "" {
		targetLang = s.targetLang
	}

	if s.mode == ModeSerialized {
		unlock := s.locks.Lock(acc.ID())
		defer unlock()

		fresh, err := s.accounts.Get(ctx, acc.ID())
		if err != nil {
			return Result{}, OutcomeError, fmt.Errorf("reload account: %w", err)
		}
		acc = fresh
	}

	acc, err := s.billing.Refresh(ctx, acc)
	if err != nil {
		return Result{}, OutcomeError, err
	}

	cost := tokens.Estimate(req.Text)
	if d := quota.Admit(acc, cost); !d.Allowed {
		return Result{}, OutcomeQuota, d.Err()
	}

	var reserved *account.Balance
	if s.mode == ModeAtomic {
		bal, ok, err := s.accounts.Reserve(ctx, acc.ID(), cost)
		if err != nil {
			return Result{}, OutcomeError, fmt.Errorf("reserve tokens: %w", err)
		}
		if !ok {
			return Result{}, OutcomeQuota, domain.NewQuotaInsufficient(bal.Remaining(), cost)
		}
		reserved = &bal
	}

	tr, err := s.provider.Translate(ctx, req.Text, targetLang)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
		}
		if reserved != nil {
			err = s.release(ctx, acc.ID(), cost, err)
		}
		return Result{}, OutcomeProvider, err
	}

	// The provider already did the work: record it even if the client went away.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
	defer cancel()

	rec, err := s.ledger.Commit(commitCtx, ledger.Input{
		Account:        acc,
		Model:          tr.Model,
		TargetLang:     targetLang,
		OriginalText:   req.Text,
		TranslatedText: tr.Text,
		InputChars:     tokens.CharCount(req.Text),
		Tokens:         cost,
		Reserved:       reserved,
	})
	if err != nil {
		var ce *ledger.CommitError
		if reserved != nil && errors.As(err, &ce) && ce.Step == ledger.StepLog {
			err = s.release(commitCtx, acc.ID(), cost, err)
		}
		return Result{}, OutcomePersistence, err
	}

	return Result{
		TranslatedText:  tr.Text,
		EstimatedTokens: cost,
		RemainingTokens: rec.Remaining,
	}, OutcomeOK, nil
}

// release returns a reservation and joins any release failure onto cause.
func (s *Service) release(ctx context.Context, id int64, cost int, cause error) error {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
	defer cancel()

	if err := s.accounts.Release(relCtx, id, cost); err != nil {
		return errors.Join(cause, fmt.Errorf("release reservation: %w", err))
	}
	return cause
}
