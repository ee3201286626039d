package account

import (
	"context"

	domacc "github.com/kailas-cloud/lingometer/internal/domain/account"
)

// Repository provides account persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (domacc.Account, error)
	// GetByAuthID returns domain.ErrNotFound when no account is linked to authID.
	GetByAuthID(ctx context.Context, authID string) (domacc.Account, error)
	// Create inserts the draft unless an account with the same auth id exists,
	// and returns the stored account in both cases.
	Create(ctx context.Context, d domacc.Draft) (domacc.Account, error)
}
