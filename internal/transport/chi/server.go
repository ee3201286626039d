package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/domain/account"
	"github.com/kailas-cloud/lingometer/internal/domain/catalog"
	"github.com/kailas-cloud/lingometer/internal/domain/period"
	domusage "github.com/kailas-cloud/lingometer/internal/domain/usage"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
	healthuc "github.com/kailas-cloud/lingometer/internal/usecase/health"
	translateuc "github.com/kailas-cloud/lingometer/internal/usecase/translate"
)

// maxBodyBytes bounds the translate request body.
const maxBodyBytes = 1 << 20

// Translator runs a metered translation for an authenticated account.
type Translator interface {
	Translate(ctx context.Context, acc account.Account, req translateuc.Request) (translateuc.Result, error)
}

// UsageReporter builds the usage report for an account.
type UsageReporter interface {
	GetReport(ctx context.Context, acc account.Account) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API.
type Server struct {
	translate     Translator
	usage         UsageReporter
	health        HealthChecker
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(translate Translator, usage UsageReporter, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		translate: translate,
		usage:     usage,
		health:    health,
		validate:  newValidator(),
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeBadRequest),
		quotaHandler,
		sentinelHandler(domain.ErrProviderFailure, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrPersistence, http.StatusInternalServerError, CodePersistenceError),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/translate", s.Translate)
		r.Get("/me/usage", s.GetUsage)
		r.Get("/packages", s.ListPackages)
		r.Get("/healthz", s.HealthCheck)
	})
	r.Get("/metrics", s.Metrics)
}

// Translate handles POST /api/translate.
func (s *Server) Translate(w http.ResponseWriter, r *http.Request) {
	acc, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, validationMessage(err))
		return
	}

	res, err := s.translate.Translate(r.Context(), acc, translateuc.Request{
		Text:       *req.Text,
		TargetLang: req.TargetLang,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TranslateResponse{
		TranslatedText:  res.TranslatedText,
		EstimatedTokens: res.EstimatedTokens,
		RemainingTokens: res.RemainingTokens,
	})
}

// GetUsage handles GET /api/me/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	acc, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, domain.ErrUnauthorized.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), acc)
	writeJSON(w, http.StatusOK, UsageResponse{
		MonthlyQuotaTokens:   report.MonthlyQuota(),
		UsedTokensThisPeriod: report.UsedThisPeriod(),
		BillingPeriodStart:   report.BillingPeriodStart().Format(period.DateLayout),
		RemainingTokens:      report.Remaining(),
		ResetsOn:             report.ResetsAt().Format(period.DateLayout),
	})
}

// ListPackages handles GET /api/packages.
func (s *Server) ListPackages(w http.ResponseWriter, _ *http.Request) {
	pkgs := catalog.Packages()
	items := make([]PackageResponse, len(pkgs))
	for i, p := range pkgs {
		items[i] = PackageResponse{
			ID:           p.ID,
			Name:         p.Name,
			TokensAmount: p.TokensAmount,
			PriceCents:   p.PriceCents,
			Description:  p.Description,
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// HealthCheck handles GET /api/healthz.
// A degraded provider still answers 200; only a storage failure is 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into "field: tag" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " exceeds " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnauthorized,
		domain.ErrInvalidRequest,
		domain.ErrQuotaInsufficient,
		domain.ErrProviderFailure,
		domain.ErrPersistence,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// quotaHandler handles ErrQuotaInsufficient with the balance figures.
func quotaHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrQuotaInsufficient) {
		return false
	}
	resp := ErrorResponse{Code: CodeQuotaInsufficient, Message: msg}
	var qe *domain.QuotaInsufficientError
	if errors.As(err, &qe) {
		resp.Message = qe.Error()
		resp.Remaining = &qe.Remaining
		resp.Requested = &qe.Requested
	}
	writeJSON(w, http.StatusPaymentRequired, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Debug("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
