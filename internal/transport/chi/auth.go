package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
	"github.com/kailas-cloud/lingometer/internal/security"
)

// TokenVerifier validates a bearer token and returns the caller identity.
type TokenVerifier interface {
	Verify(token string) (account.Identity, error)
}

// AccountResolver maps a verified identity to its account, provisioning on first use.
type AccountResolver interface {
	Resolve(ctx context.Context, id account.Identity) (account.Account, error)
}

// exemptPaths are routes that bypass authentication.
var exemptPaths = map[string]struct{}{
	"/api/healthz":  {},
	"/api/packages": {},
	"/metrics":      {},
}

type accountCtxKey struct{}

// ContextWithAccount stores the authenticated account in ctx.
func ContextWithAccount(ctx context.Context, acc account.Account) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, acc)
}

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (account.Account, bool) {
	acc, ok := ctx.Value(accountCtxKey{}).(account.Account)
	return acc, ok
}

// BearerAuthMiddleware verifies the Bearer JWT and attaches the caller's account
// to the request context.
func BearerAuthMiddleware(verifier TokenVerifier, resolver AccountResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			id, err := verifier.Verify(strings.TrimSpace(auth[len(bearerPrefix):]))
			if err != nil {
				msg := security.ErrInvalidToken.Error()
				if errors.Is(err, security.ErrExpiredToken) {
					msg = security.ErrExpiredToken.Error()
				}
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}

			acc, err := resolver.Resolve(r.Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, CodeUnauthorized, domain.ErrUnauthorized.Error())
					return
				}
				logpkg.FromContext(r.Context()).Error("resolve account failed",
					zap.String("auth_user_id", id.AuthUserID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), acc)))
		})
	}
}
