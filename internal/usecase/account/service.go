package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain"
	domacc "github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
)

// Service resolves verified identities to accounts, provisioning on first use.
type Service struct {
	repo  Repository
	quota int
	loc   *time.Location
	now   func() time.Time
}

// New creates a Service. defaultQuota <= 0 falls back to domacc.DefaultMonthlyQuota.
func New(repo Repository, defaultQuota int, loc *time.Location) *Service {
	if defaultQuota <= 0 {
		defaultQuota = domacc.DefaultMonthlyQuota
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, quota: defaultQuota, loc: loc, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve returns the account linked to the identity, creating it if absent.
func (s *Service) Resolve(ctx context.Context, id domacc.Identity) (domacc.Account, error) {
	if id.AuthUserID == "" {
		return domacc.Account{}, fmt.Errorf("resolve account: %w", domain.ErrUnauthorized)
	}

	acc, err := s.repo.GetByAuthID(ctx, id.AuthUserID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domacc.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now()
	acc, err = s.repo.Create(ctx, domacc.Draft{
		AuthUserID:         id.AuthUserID,
		Name:               id.DisplayName(),
		MonthlyQuota:       s.quota,
		BillingPeriodStart: period.MonthStart(period.Date(now, s.loc)),
		CreatedAt:          now.UTC(),
	})
	if err != nil {
		return domacc.Account{}, fmt.Errorf("provision account: %w", err)
	}

	logpkg.FromContext(ctx).Info("account provisioned",
		zap.Int64("user_id", acc.ID()),
		zap.String("auth_user_id", acc.AuthUserID()),
		zap.Int("monthly_quota_tokens", acc.MonthlyQuota()),
	)
	return acc, nil
}

// Get loads an account by id.
func (s *Service) Get(ctx context.Context, id int64) (domacc.Account, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return acc, nil
}
