// Package kb retrieves coaching knowledge for the agent. A query is
// embedded, matched against every populated namespace of a vector
// index, and the best snippets are framed as background knowledge for
// the model.
package kb

import (
	"context"
	"errors"
)

// Default retrieval settings.
const (
	// DefaultTopK is how many snippets are fetched per namespace.
	DefaultTopK = 3

	// DefaultNamespace is queried when the index reports no
	// populated namespaces.
	DefaultNamespace = ""
)

// Sentinel errors.
var (
	// ErrNotConfigured is returned when the index has no endpoint or key.
	ErrNotConfigured = errors.New("kb: index not configured")

	// ErrNoEmbedder is returned when no embedding provider is wired.
	ErrNoEmbedder = errors.New("kb: embedder required")
)

// Query is one retrieval request against an index.
type Query struct {
	// Text is the original query text. Local indexes may embed it
	// themselves.
	Text string

	// Vector is the embedded query.
	Vector []float64

	// TopK limits results per namespace.
	TopK int

	// Namespaces to search. Empty means the default namespace.
	Namespaces []string
}

// Match is one retrieved snippet.
type Match struct {
	// ID of the stored document.
	ID string

	// Text is the snippet content.
	Text string

	// Score is the similarity score, higher is better.
	Score float64

	// Namespace the match came from.
	Namespace string
}

// Index is a vector index that partitions documents into namespaces.
type Index interface {
	// Namespaces returns the populated partitions of the index.
	Namespaces(ctx context.Context) ([]string, error)

	// Search returns the best matches for the query across the
	// requested namespaces, ranked by score.
	Search(ctx context.Context, q Query) ([]Match, error)

	// Close releases index resources.
	Close() error
}
