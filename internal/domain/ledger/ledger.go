// Package ledger holds the usage records written after a successful translation.
package ledger

import "time"

// Entry is one immutable usage log record.
type Entry struct {
	ID              int64
	UserID          int64
	Model           string
	TargetLang      string
	InputChars      int
	EstimatedTokens int
	CostCents       int
	OriginalText    string
	TranslatedText  string
	CreatedAt       time.Time
}

// MonthlyAggregate is the per-(user, month) usage rollup.
type MonthlyAggregate struct {
	ID            int64
	UserID        int64
	PeriodStart   time.Time // always the first day of a month
	TotalTokens   int
	TotalRequests int
	UpdatedAt     time.Time
}
