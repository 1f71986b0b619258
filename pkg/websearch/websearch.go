// Package websearch answers real-time questions through Perplexity's
// OpenAI-compatible chat API, which performs the web retrieval itself
// and returns a synthesized answer.
package websearch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prepzo/go-prepzo/pkg/inference"
)

// Perplexity API defaults.
const (
	// DefaultBaseURL is Perplexity's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.perplexity.ai"

	// DefaultModel is the search-enabled Sonar model.
	DefaultModel = "sonar"

	systemPrompt = "You are a web search assistant for a career coach. " +
		"Answer with current, factual information. Include concrete details " +
		"like dates, figures, and names when available. Keep answers short " +
		"enough to speak aloud."
)

// Sentinel errors.
var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("websearch: API key required")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("websearch: empty query")
)

// ChatProvider is the slice of inference.Provider the service needs.
type ChatProvider interface {
	Chat(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error)
}

// Service answers queries with live web information.
type Service struct {
	provider ChatProvider
	model    string
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithModel overrides the search model.
func WithModel(model string) ServiceOption {
	return func(s *Service) { s.model = model }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.With("component", "websearch") }
}

// NewService creates a web search service over a chat provider that is
// already pointed at a search-capable API.
func NewService(provider ChatProvider, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, ErrNotConfigured
	}
	s := &Service{
		provider: provider,
		model:    DefaultModel,
		logger:   slog.Default().With("component", "websearch"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewPerplexityService builds a Service over a fresh Perplexity client.
func NewPerplexityService(apiKey string, opts ...ServiceOption) (*Service, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := inference.NewClient(
		inference.WithBaseURL(DefaultBaseURL),
		inference.WithAPIKey(apiKey),
		inference.WithModel(DefaultModel),
	)
	if err != nil {
		return nil, err
	}
	return NewService(client, opts...)
}

// Search runs one web search query and returns the synthesized answer.
func (s *Service) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	resp, err := s.provider.Chat(ctx, &inference.ChatRequest{
		Model: s.model,
		Messages: []inference.Message{
			inference.NewSystemMessage(systemPrompt),
			inference.NewUserMessage(query),
		},
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(resp.Message.Content)
	s.logger.Info("web search answered",
		"query", query,
		"answer_len", len(answer),
	)
	return answer, nil
}
