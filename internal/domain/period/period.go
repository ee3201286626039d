// Package period holds the calendar-month billing period rules.
package period

import (
	"time"

	"github.com/kailas-cloud/lingometer/internal/domain/account"
)

// DateLayout is the ISO date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// MonthLayout identifies a period in storage keys.
const MonthLayout = "2006-01"

// Date truncates t to its calendar date in loc, returned as midnight UTC.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonthStart returns the first day of the month after t.
func NextMonthStart(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// SameMonth reports whether a and b share (year, month).
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// NeedsReset reports whether the account's period is stale relative to today.
func NeedsReset(acc account.Account, today time.Time) bool {
	return !SameMonth(acc.BillingPeriodStart(), today)
}

// Rolled returns the account as it looks after a rollover on today.
// The new period start is today's literal date, not the month start.
func Rolled(acc account.Account, today time.Time) account.Account {
	if !NeedsReset(acc, today) {
		return acc
	}
	return acc.WithPeriod(today, 0)
}
