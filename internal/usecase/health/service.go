package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the provider is failing while storage works.
	Degraded Status = "degraded"
	// Unhealthy indicates storage is unavailable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	provider ProviderChecker
	timeout  time.Duration
}

// New creates a Service. provider can be nil (provider check disabled).
func New(db DBPinger, provider ProviderChecker) *Service {
	return &Service{db: db, provider: provider, timeout: defaultCheckTimeout}
}

// Check runs health checks against all components, each bounded by its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 2)
	status := Healthy

	checks["database"] = s.run(ctx, s.db.Ping)
	if checks["database"] == CheckError {
		status = Unhealthy
	}

	if s.provider != nil {
		checks["provider"] = s.run(ctx, s.provider.HealthCheck)
		if checks["provider"] == CheckError && status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
