package usage

import "time"

// Report is a user's quota standing for the current billing period.
type Report struct {
	monthlyQuota       int
	usedThisPeriod     int
	billingPeriodStart time.Time
	resetsAt           time.Time
}

// NewReport creates a usage report.
func NewReport(quota, used int, periodStart, resetsAt time.Time) Report {
	return Report{
		monthlyQuota:       quota,
		usedThisPeriod:     used,
		billingPeriodStart: periodStart,
		resetsAt:           resetsAt,
	}
}

// MonthlyQuota returns the token quota.
func (r Report) MonthlyQuota() int { return r.monthlyQuota }

// UsedThisPeriod returns tokens consumed this period.
func (r Report) UsedThisPeriod() int { return r.usedThisPeriod }

// BillingPeriodStart returns the current period's start date.
func (r Report) BillingPeriodStart() time.Time { return r.billingPeriodStart }

// Remaining returns quota minus used.
func (r Report) Remaining() int { return r.monthlyQuota - r.usedThisPeriod }

// IsExhausted reports whether nothing is left to spend.
func (r Report) IsExhausted() bool { return r.Remaining() <= 0 }

// ResetsAt returns the first day of the next calendar month.
func (r Report) ResetsAt() time.Time { return r.resetsAt }
