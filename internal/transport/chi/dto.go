package chi

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeBadRequest        ErrorCode = "bad_request"
	CodeQuotaInsufficient ErrorCode = "quota_insufficient"
	CodeProviderError     ErrorCode = "provider_error"
	CodePersistenceError  ErrorCode = "persistence_error"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Remaining *int      `json:"remaining,omitempty"`
	Requested *int      `json:"requested,omitempty"`
}

// TranslateRequest is the body of POST /api/translate.
type TranslateRequest struct {
	Text       *string `json:"text" validate:"required,max=20000"`
	TargetLang string  `json:"target_lang" validate:"omitempty,max=64"`
}

// TranslateResponse is returned after the usage has been recorded.
type TranslateResponse struct {
	TranslatedText  string `json:"translated_text"`
	EstimatedTokens int    `json:"estimated_tokens"`
	RemainingTokens int    `json:"remaining_tokens"`
}

// UsageResponse is the body of GET /api/me/usage.
type UsageResponse struct {
	MonthlyQuotaTokens   int    `json:"monthly_quota_tokens"`
	UsedTokensThisPeriod int    `json:"used_tokens_this_period"`
	BillingPeriodStart   string `json:"billing_period_start"`
	RemainingTokens      int    `json:"remaining_tokens"`
	ResetsOn             string `json:"resets_on"`
}

// PackageResponse is one entry of GET /api/packages.
type PackageResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TokensAmount int    `json:"tokens_amount"`
	PriceCents   int    `json:"price_cents"`
	Description  string `json:"description"`
}

// HealthResponse is the body of GET /api/healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
