package account

import "time"

// DefaultMonthlyQuota is the quota assigned to newly provisioned accounts.
const DefaultMonthlyQuota = 50000

// Account is a user's quota state (immutable value object).
type Account struct {
	id                 int64
	authUserID         string
	name               string
	monthlyQuota       int
	usedThisPeriod     int
	billingPeriodStart time.Time
	createdAt          time.Time
}

// Reconstruct creates an Account without validation (storage hydration).
func Reconstruct(
	id int64, authUserID, name string,
	monthlyQuota, usedThisPeriod int,
	billingPeriodStart, createdAt time.Time,
) Account {
	return Account{
		id:                 id,
		authUserID:         authUserID,
		name:               name,
		monthlyQuota:       monthlyQuota,
		usedThisPeriod:     usedThisPeriod,
		billingPeriodStart: billingPeriodStart,
		createdAt:          createdAt,
	}
}

// ID returns the internal row id.
func (a Account) ID() int64 { return a.id }

// AuthUserID returns the external auth identifier.
func (a Account) AuthUserID() string { return a.authUserID }

// Name returns the display name captured at provisioning.
func (a Account) Name() string { return a.name }

// MonthlyQuota returns the token quota per billing period.
func (a Account) MonthlyQuota() int { return a.monthlyQuota }

// UsedThisPeriod returns tokens consumed in the current period.
func (a Account) UsedThisPeriod() int { return a.usedThisPeriod }

// BillingPeriodStart returns the date the current period started.
func (a Account) BillingPeriodStart() time.Time { return a.billingPeriodStart }

// CreatedAt returns the provisioning time.
func (a Account) CreatedAt() time.Time { return a.createdAt }

// Remaining returns quota minus used. Negative when usage overshot the quota.
func (a Account) Remaining() int { return a.monthlyQuota - a.usedThisPeriod }

// Balance returns the quota figures of the account.
func (a Account) Balance() Balance {
	return Balance{Quota: a.monthlyQuota, Used: a.usedThisPeriod}
}

// WithPeriod returns a copy with a new period start and used counter.
func (a Account) WithPeriod(start time.Time, used int) Account {
	a.billingPeriodStart = start
	a.usedThisPeriod = used
	return a
}

// WithUsed returns a copy with a new used counter.
func (a Account) WithUsed(used int) Account {
	a.usedThisPeriod = used
	return a
}

// Balance is the quota/used pair returned by atomic store updates.
type Balance struct {
	Quota int
	Used  int
}

// Remaining returns Quota - Used.
func (b Balance) Remaining() int { return b.Quota - b.Used }

// Identity is a verified caller as resolved from a bearer credential.
type Identity struct {
	AuthUserID string
	Email      string
	Name       string
}

// DisplayName returns Name, falling back to Email.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// Draft holds the attributes of an account about to be provisioned.
type Draft struct {
	AuthUserID         string
	Name               string
	MonthlyQuota       int
	BillingPeriodStart time.Time
	CreatedAt          time.Time
}
