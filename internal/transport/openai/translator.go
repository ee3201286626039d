// Package openai adapts an OpenAI-compatible chat completion API to domain.Translator.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/domain"
	"github.com/kailas-cloud/lingometer/internal/metrics"
)

// Defaults match the Zhipu GLM flash endpoint.
const (
	DefaultModel       = "GLM-4-Flash-250414"
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.3
)

const systemPrompt = "You are a professional translation assistant. " +
	"Translate the text I give you into the target language: %s. " +
	"The target language may be described in natural language (for example \"Simplified Chinese\" or \"英文\") " +
	"or given as a language code (for example zh, en, ja, fr); work out which language is meant. " +
	"Output only the translated text itself, with no explanation, prefix or suffix."

// Translator is a translation provider using a chat completion API (e.g. Zhipu GLM).
type Translator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	provider    string
	logger      *zap.Logger
}

// Config holds the translation provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Provider    string
	Logger      *zap.Logger
}

// NewTranslator creates an OpenAI-compatible translation provider.
func NewTranslator(cfg *Config) *Translator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	t := &Translator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
	if t.model == "" {
		t.model = DefaultModel
	}
	if t.maxTokens <= 0 {
		t.maxTokens = DefaultMaxTokens
	}
	if t.temperature <= 0 {
		t.temperature = DefaultTemperature
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	return t
}

// Translate implements domain.Translator with transport-level metrics.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) (domain.Translation, error) {
	req := openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, targetLang)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   t.maxTokens,
		Temperature: t.temperature,
	}

	start := time.Now()

	resp, err := t.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(t.provider, t.model, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(t.provider, t.model, errorType(ctx, err)).Inc()
		t.logger.Debug("chat completion failed", zap.Error(err), zap.Duration("duration", duration))
		return domain.Translation{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.ProviderRequestsTotal.WithLabelValues(t.provider, t.model, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(t.provider, t.model, "empty_response").Inc()
		return domain.Translation{}, domain.NewProviderError("empty completion response")
	}

	metrics.ProviderRequestsTotal.WithLabelValues(t.provider, t.model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(t.provider, t.model).Observe(duration.Seconds())

	model := resp.Model
	if model == "" {
		model = t.model
	}
	return domain.Translation{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (t *Translator) HealthCheck(ctx context.Context) error {
	if _, err := t.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func errorType(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "canceled"
	case errors.As(err, new(*openai.APIError)):
		return "api_error"
	case errors.As(err, new(*openai.RequestError)):
		return "request_error"
	default:
		return "transport_error"
	}
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrProviderFailure for correct 502 mapping.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return domain.NewProviderError(fmt.Sprintf("completion API error %d: %s", reqErr.HTTPStatusCode, detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewProviderError(fmt.Sprintf("completion API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
	}

	return domain.NewProviderError("completion request failed: " + err.Error())
}

// extractDetail reads the "detail" field some compatible APIs use for errors.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
