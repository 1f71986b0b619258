package kb

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prepzo/go-prepzo/pkg/inference"
)

// Responses used when retrieval finds nothing or degrades.
const (
	// NoResultsResponse is spoken when the index has no relevant snippets.
	NoResultsResponse = "I couldn't find specific information about that in my knowledge base, but I can share general coaching guidance."

	// snippetSeparator joins retrieved snippets.
	snippetSeparator = "\n\n---\n\n"

	// knowledgePrefix frames results as background knowledge.
	knowledgePrefix = "Based on the knowledge:\n\n"
)

// Embedder turns query text into a vector. inference.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, req *inference.EmbedRequest) (*inference.EmbedResponse, error)
}

// Searcher runs the full retrieval flow: embed the query, discover
// populated namespaces, search them all, and frame the best snippets.
type Searcher struct {
	index    Index
	embedder Embedder
	topK     int
	logger   *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithTopK sets how many snippets are returned.
func WithTopK(k int) SearcherOption {
	return func(s *Searcher) { s.topK = k }
}

// WithSearcherLogger sets the structured logger.
func WithSearcherLogger(l *slog.Logger) SearcherOption {
	return func(s *Searcher) { s.logger = l.With("component", "kb.searcher") }
}

// NewSearcher creates a searcher over the given index.
// The embedder may be nil for indexes that embed text themselves.
func NewSearcher(index Index, embedder Embedder, opts ...SearcherOption) (*Searcher, error) {
	if index == nil {
		return nil, ErrNotConfigured
	}
	s := &Searcher{
		index:    index,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   slog.Default().With("component", "kb.searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search embeds the query, searches every populated namespace, and
// returns the framed knowledge text. When nothing matches it returns
// NoResultsResponse with a nil error; infrastructure failures return
// an error for the caller to degrade on.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	q := Query{Text: query, TopK: s.topK}

	if s.embedder != nil {
		resp, err := s.embedder.Embed(ctx, &inference.EmbedRequest{Input: []string{query}})
		if err != nil {
			return "", err
		}
		if len(resp.Embeddings) > 0 {
			q.Vector = resp.Embeddings[0]
		}
	}

	namespaces, err := s.index.Namespaces(ctx)
	if err != nil {
		// Stats are advisory. Fall back to the default namespace.
		s.logger.Warn("namespace discovery failed, using default", "error", err)
		namespaces = nil
	}
	if len(namespaces) == 0 {
		namespaces = []string{DefaultNamespace}
	}
	q.Namespaces = namespaces

	matches, err := s.index.Search(ctx, q)
	if err != nil {
		return "", err
	}

	if len(matches) == 0 {
		s.logger.Info("no knowledge matches", "query", query)
		return NoResultsResponse, nil
	}

	snippets := make([]string, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, strings.TrimSpace(m.Text))
	}

	s.logger.Info("knowledge retrieved",
		"query", query,
		"matches", len(matches),
		"namespaces", len(namespaces),
	)

	return knowledgePrefix + strings.Join(snippets, snippetSeparator), nil
}
