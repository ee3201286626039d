package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/security"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func validVerifier() *mockVerifier {
	return &mockVerifier{verifyFn: func(token string) (account.Identity, error) {
		if token != "good-token" {
			return account.Identity{}, security.ErrInvalidToken
		}
		return account.Identity{AuthUserID: "auth-7", Email: "ann@example.com"}, nil
	}}
}

func staticResolver() *mockResolver {
	return &mockResolver{resolveFn: func(_ context.Context, _ account.Identity) (account.Account, error) {
		return testAccount, nil
	}}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return errResp
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	handler := BearerAuthMiddleware(validVerifier(), staticResolver())(okHandler())

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if errResp := decodeError(t, rr); errResp.Code != CodeUnauthorized {
		t.Errorf("expected code %q, got %q", CodeUnauthorized, errResp.Code)
	}
}

func TestAuthMiddleware_WrongScheme_401(t *testing.T) {
	handler := BearerAuthMiddleware(validVerifier(), staticResolver())(okHandler())

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken_401(t *testing.T) {
	resolved := false
	resolver := &mockResolver{resolveFn: func(_ context.Context, _ account.Identity) (account.Account, error) {
		resolved = true
		return testAccount, nil
	}}
	handler := BearerAuthMiddleware(validVerifier(), resolver)(okHandler())

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if errResp := decodeError(t, rr); errResp.Message != security.ErrInvalidToken.Error() {
		t.Errorf("unexpected message %q", errResp.Message)
	}
	if resolved {
		t.Error("resolver must not run for an invalid token")
	}
}

func TestAuthMiddleware_ExpiredToken_401(t *testing.T) {
	verifier := &mockVerifier{verifyFn: func(string) (account.Identity, error) {
		return account.Identity{}, security.ErrExpiredToken
	}}
	handler := BearerAuthMiddleware(verifier, staticResolver())(okHandler())

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	req.Header.Set("Authorization", "Bearer old")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expired token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if errResp := decodeError(t, rr); errResp.Message != security.ErrExpiredToken.Error() {
		t.Errorf("unexpected message %q", errResp.Message)
	}
}

func TestAuthMiddleware_ValidToken_AttachesAccount(t *testing.T) {
	var got account.Account
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := AccountFromContext(r.Context())
		if !ok {
			t.Error("expected account in context")
		}
		got = acc
		w.WriteHeader(http.StatusOK)
	})
	handler := BearerAuthMiddleware(validVerifier(), staticResolver())(next)

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("valid token: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got.ID() != testAccount.ID() {
		t.Errorf("expected account %d, got %d", testAccount.ID(), got.ID())
	}
}

func TestAuthMiddleware_ResolveUnauthorized_401(t *testing.T) {
	resolver := &mockResolver{resolveFn: func(_ context.Context, _ account.Identity) (account.Account, error) {
		return account.Account{}, domain.ErrUnauthorized
	}}
	handler := BearerAuthMiddleware(validVerifier(), resolver)(okHandler())

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ResolveFailure_500(t *testing.T) {
	resolver := &mockResolver{resolveFn: func(_ context.Context, _ account.Identity) (account.Account, error) {
		return account.Account{}, errors.New("connection refused")
	}}
	handler := BearerAuthMiddleware(validVerifier(), resolver)(okHandler())

	req := httptest.NewRequest("GET", "/api/me/usage", http.NoBody)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if errResp := decodeError(t, rr); errResp.Code != CodeInternalError {
		t.Errorf("expected code %q, got %q", CodeInternalError, errResp.Code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := BearerAuthMiddleware(validVerifier(), staticResolver())(okHandler())

	for _, path := range []string{"/api/healthz", "/api/packages", "/metrics"} {
		req := httptest.NewRequest("GET", path, http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("%s: got %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}
