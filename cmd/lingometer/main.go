package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/config"
	logpkg "github.com/kailas-cloud/lingometer/internal/logger"
	"github.com/kailas-cloud/lingometer/internal/metrics"
	"github.com/kailas-cloud/lingometer/internal/security"
	chiTransport "github.com/kailas-cloud/lingometer/internal/transport/chi"
	openaiTr "github.com/kailas-cloud/lingometer/internal/transport/openai"
	accountuc "github.com/kailas-cloud/lingometer/internal/usecase/account"
	billinguc "github.com/kailas-cloud/lingometer/internal/usecase/billing"
	healthuc "github.com/kailas-cloud/lingometer/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/lingometer/internal/usecase/ledger"
	translateuc "github.com/kailas-cloud/lingometer/internal/usecase/translate"
	usageuc "github.com/kailas-cloud/lingometer/internal/usecase/usage"
	"github.com/kailas-cloud/lingometer/internal/version"
)

func main() {
	// Secrets may live in .env; a missing file is fine.
	envFileErr := godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if envFileErr != nil {
		logger.Debug("No .env file loaded", zap.Error(envFileErr))
	}

	logger.Info("Starting lingometer API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("consistency", cfg.Quota.Consistency),
	)

	loc, err := cfg.Billing.Location()
	if err != nil {
		logger.Fatal("Invalid billing timezone", zap.Error(err))
	}
	mode, err := translateuc.ParseMode(cfg.Quota.Consistency)
	if err != nil {
		logger.Fatal("Invalid consistency mode", zap.Error(err))
	}

	ctx := context.Background()
	store, err := openStorage(ctx, cfg.Database, cfg.Storage.KeyPrefix, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.close()
	logger.Info("Connected to database")

	// Register translation metrics explicitly (no init())
	metrics.RegisterTranslationMetrics()

	provider := openaiTr.NewTranslator(&openaiTr.Config{
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.BaseURL,
		Model:       cfg.Provider.Model,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
		Timeout:     time.Duration(cfg.Provider.TimeoutSec) * time.Second,
		Provider:    cfg.Provider.Name,
		Logger:      logger,
	})
	logger.Info("Translator created",
		zap.String("provider", cfg.Provider.Name),
		zap.String("model", cfg.Provider.Model),
	)

	// Use case services
	accountSvc := accountuc.New(store.accounts, cfg.Quota.DefaultMonthlyTokens, loc)
	billingSvc := billinguc.New(store.accounts, loc)
	ledgerSvc := ledgeruc.New(store.logs, store.monthly, store.accounts)
	translateSvc := translateuc.New(store.accounts, billingSvc, ledgerSvc, provider, translateuc.Options{
		Mode:              mode,
		DefaultTargetLang: cfg.Provider.DefaultTargetLang,
		CommitTimeout:     time.Duration(cfg.Quota.CommitTimeoutSec) * time.Second,
	})
	usageSvc := usageuc.New(billingSvc)

	// Pass a nil interface (not a typed nil pointer) when the provider check is off.
	var providerChecker healthuc.ProviderChecker
	if cfg.Provider.HealthCheck {
		providerChecker = provider
	}
	healthSvc := healthuc.New(store.pinger, providerChecker)

	verifier := security.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience,
		time.Duration(cfg.Auth.LeewaySec)*time.Second)

	server := chiTransport.NewServer(translateSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: cfg.CORS.AllowCredentials,
	}).Handler)
	r.Use(chiMiddleware.Timeout(time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second))
	r.Use(metrics.Middleware("/metrics"))
	r.Use(chiTransport.BearerAuthMiddleware(verifier, accountSvc))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routePattern(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
