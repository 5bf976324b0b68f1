// Package summarizer turns fetched article texts into a short digest via a
// pluggable LLM backend (OpenAI, Anthropic or Google, chosen at
// construction time).
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"newsdigest/internal/config"
)

// ErrUnsupportedProvider is returned by New for unknown provider
// identifiers. This is a configuration error and is never retried.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

const (
	maxOutputTokens int64 = 500

	promptTemplate = `Summarize the following news articles about %q into a concise, easy-to-read digest.
Focus on key facts, trends, and insights. Keep it under 500 words.

Articles:
%s`
)

// Provider is the single capability each LLM backend implements.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Summarizer struct {
	provider Provider
	log      *slog.Logger
}

// New selects a backend from cfg.LLMProvider. An unknown identifier is an
// error; a known identifier with no credential yields a summarizer whose
// Summarize always returns "".
func New(cfg config.Config, log *slog.Logger) (*Summarizer, error) {
	var provider Provider

	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			provider = NewOpenAIProvider(cfg.OpenAIAPIKey)
		}
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			provider = NewAnthropicProvider(cfg.AnthropicAPIKey)
		}
	case "google":
		if cfg.GoogleAPIKey != "" {
			provider = NewGoogleProvider(cfg.GoogleAPIKey)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.LLMProvider)
	}

	if provider == nil {
		log.Warn("No API key configured for LLM provider so summaries will be skipped",
			"provider", cfg.LLMProvider)
	}

	return &Summarizer{provider: provider, log: log}, nil
}

// Summarize joins the texts and asks the backend for a topic-scoped digest.
// It returns "" when no backend is configured, the call fails, or the
// backend returns empty content. Failures are logged, never returned.
func (s *Summarizer) Summarize(ctx context.Context, texts []string, topic string) string {
	if s.provider == nil {
		return ""
	}

	if len(texts) == 0 {
		return ""
	}

	prompt := fmt.Sprintf(promptTemplate, topic, strings.Join(texts, "\n\n"))

	out, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to generate summary",
			"error", err,
			"topic", topic,
			"textCount", len(texts))

		return ""
	}

	return strings.TrimSpace(out)
}
