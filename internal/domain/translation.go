package domain

import "context"

// Translator is the shared translation contract between layers.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (Translation, error)
}

// Translation carries the provider output and its reported usage.
// Provider token counts are informational; billing uses the local estimate.
type Translation struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
