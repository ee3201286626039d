package chi

import (
	"context"
	"time"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
	domusage "github.com/kailas-cloud/lingometer/internal/domain/usage"
	healthuc "github.com/kailas-cloud/lingometer/internal/usecase/health"
	translateuc "github.com/kailas-cloud/lingometer/internal/usecase/translate"
)

var testAccount = account.Reconstruct(
	7, "auth-7", "Ann", 50000, 1000,
	time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
	time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
)

type mockVerifier struct {
	verifyFn func(token string) (account.Identity, error)
}

func (m *mockVerifier) Verify(token string) (account.Identity, error) {
	return m.verifyFn(token)
}

type mockResolver struct {
	resolveFn func(ctx context.Context, id account.Identity) (account.Account, error)
}

func (m *mockResolver) Resolve(ctx context.Context, id account.Identity) (account.Account, error) {
	return m.resolveFn(ctx, id)
}

type mockTranslator struct {
	translateFn func(ctx context.Context, acc account.Account, req translateuc.Request) (translateuc.Result, error)
}

func (m *mockTranslator) Translate(
	ctx context.Context, acc account.Account, req translateuc.Request,
) (translateuc.Result, error) {
	return m.translateFn(ctx, acc, req)
}

type mockUsage struct {
	reportFn func(ctx context.Context, acc account.Account) domusage.Report
}

func (m *mockUsage) GetReport(ctx context.Context, acc account.Account) domusage.Report {
	return m.reportFn(ctx, acc)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	return m.report
}
