package account

import (
	"fmt"
	"strconv"
	"time"

	domacc "github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
)

// Hash field names.
const (
	fieldID          = "id"
	fieldAuthUserID  = "auth_user_id"
	fieldName        = "name"
	fieldQuota       = "monthly_quota_tokens"
	fieldUsed        = "used_tokens_this_period"
	fieldPeriodStart = "billing_period_start"
	fieldCreatedAt   = "created_at"
)

// draftToArgs flattens a draft into HSET field/value pairs.
func draftToArgs(id int64, d domacc.Draft) []string {
	return []string{
		fieldID, strconv.FormatInt(id, 10),
		fieldAuthUserID, d.AuthUserID,
		fieldName, d.Name,
		fieldQuota, strconv.Itoa(d.MonthlyQuota),
		fieldUsed, "0",
		fieldPeriodStart, d.BillingPeriodStart.Format(period.DateLayout),
		fieldCreatedAt, d.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// accountFromHash hydrates an Account from an HGETALL result map.
func accountFromHash(m map[string]string) (domacc.Account, error) {
	id, err := strconv.ParseInt(m[fieldID], 10, 64)
	if err != nil {
		return domacc.Account{}, fmt.Errorf("invalid %s: %w", fieldID, err)
	}
	quota, err := strconv.Atoi(m[fieldQuota])
	if err != nil {
		return domacc.Account{}, fmt.Errorf("invalid %s: %w", fieldQuota, err)
	}
	used, err := strconv.Atoi(m[fieldUsed])
	if err != nil {
		return domacc.Account{}, fmt.Errorf("invalid %s: %w", fieldUsed, err)
	}
	start, err := time.Parse(period.DateLayout, m[fieldPeriodStart])
	if err != nil {
		return domacc.Account{}, fmt.Errorf("invalid %s: %w", fieldPeriodStart, err)
	}

	var createdAt time.Time
	if v := m[fieldCreatedAt]; v != "" {
		if createdAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return domacc.Account{}, fmt.Errorf("invalid %s: %w", fieldCreatedAt, err)
		}
	}

	return domacc.Reconstruct(id, m[fieldAuthUserID], m[fieldName], quota, used, start, createdAt), nil
}

// balanceFromReply parses the {quota, used} tail of a script reply.
func balanceFromReply(quota, used string) (domacc.Balance, error) {
	q, err := strconv.Atoi(quota)
	if err != nil {
		return domacc.Balance{}, fmt.Errorf("invalid quota in reply: %w", err)
	}
	u, err := strconv.Atoi(used)
	if err != nil {
		return domacc.Balance{}, fmt.Errorf("invalid used in reply: %w", err)
	}
	return domacc.Balance{Quota: q, Used: u}, nil
}
