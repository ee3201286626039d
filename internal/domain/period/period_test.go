package period

import (
	"testing"
	"time"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDate_UsesLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// 2026-10-31 20:00 UTC is already November 1st in UTC+8.
	ts := time.Date(2026, 10, 31, 20, 0, 0, 0, time.UTC)

	if got := Date(ts, time.UTC); !got.Equal(day(2026, 10, 31)) {
		t.Errorf("UTC date = %v", got)
	}
	if got := Date(ts, shanghai); !got.Equal(day(2026, 11, 1)) {
		t.Errorf("UTC+8 date = %v", got)
	}
}

func TestMonthStart(t *testing.T) {
	if got := MonthStart(day(2026, 2, 17)); !got.Equal(day(2026, 2, 1)) {
		t.Errorf("MonthStart = %v", got)
	}
	if got := NextMonthStart(day(2026, 12, 5)); !got.Equal(day(2027, 1, 1)) {
		t.Errorf("NextMonthStart = %v", got)
	}
}

func TestRolled_SameMonthUnchanged(t *testing.T) {
	acc := account.Reconstruct(1, "u", "", 50000, 1200, day(2026, 10, 1), day(2026, 10, 1))

	got := Rolled(acc, day(2026, 10, 17))
	if got != acc {
		t.Errorf("expected unchanged account, got %+v", got)
	}
}

func TestRolled_NewMonthResets(t *testing.T) {
	acc := account.Reconstruct(1, "u", "", 50000, 1200, day(2026, 8, 1), day(2026, 8, 1))

	got := Rolled(acc, day(2026, 10, 17))
	if got.UsedThisPeriod() != 0 {
		t.Errorf("used = %d, want 0", got.UsedThisPeriod())
	}
	if !got.BillingPeriodStart().Equal(day(2026, 10, 17)) {
		t.Errorf("period start = %v, want literal today", got.BillingPeriodStart())
	}
	if !SameMonth(got.BillingPeriodStart(), day(2026, 10, 17)) {
		t.Error("period start must be in today's month")
	}
}

func TestRolled_SameMonthDifferentYear(t *testing.T) {
	acc := account.Reconstruct(1, "u", "", 50000, 10, day(2025, 10, 1), day(2025, 10, 1))
	if !NeedsReset(acc, day(2026, 10, 3)) {
		t.Error("same month of a different year must reset")
	}
}
