package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/prepzo/go-prepzo/internal/httpc"
)

// PineconeIndex queries a hosted Pinecone index over its REST API.
type PineconeIndex struct {
	host   string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

// PineconeOption configures a PineconeIndex.
type PineconeOption func(*PineconeIndex)

// WithPineconeLogger sets the structured logger.
func WithPineconeLogger(l *slog.Logger) PineconeOption {
	return func(p *PineconeIndex) { p.logger = l.With("component", "kb.pinecone") }
}

// WithPineconeHTTPClient overrides the HTTP client, mainly for tests.
func WithPineconeHTTPClient(c *http.Client) PineconeOption {
	return func(p *PineconeIndex) { p.http = c }
}

// NewPineconeIndex creates an index client for the given index host.
func NewPineconeIndex(host, apiKey string, opts ...PineconeOption) (*PineconeIndex, error) {
	if host == "" || apiKey == "" {
		return nil, ErrNotConfigured
	}

	p := &PineconeIndex{
		host:   strings.TrimSuffix(host, "/"),
		apiKey: apiKey,
		http:   httpc.Client,
		logger: slog.Default().With("component", "kb.pinecone"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Namespaces returns the index partitions that hold at least one vector.
func (p *PineconeIndex) Namespaces(ctx context.Context) ([]string, error) {
	var stats struct {
		Namespaces map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}

	if err := p.post(ctx, "/describe_index_stats", map[string]any{}, &stats); err != nil {
		return nil, err
	}

	var out []string
	for name, ns := range stats.Namespaces {
		if ns.VectorCount > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Search queries each requested namespace and merges matches by score.
func (p *PineconeIndex) Search(ctx context.Context, q Query) ([]Match, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("kb: pinecone query requires a vector")
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	namespaces := q.Namespaces
	if len(namespaces) == 0 {
		namespaces = []string{DefaultNamespace}
	}

	var all []Match
	for _, ns := range namespaces {
		matches, err := p.queryNamespace(ctx, ns, q.Vector, topK)
		if err != nil {
			// One bad namespace should not sink the whole search.
			p.logger.Warn("namespace query failed", "namespace", ns, "error", err)
			continue
		}
		all = append(all, matches...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

func (p *PineconeIndex) queryNamespace(ctx context.Context, ns string, vector []float64, topK int) ([]Match, error) {
	payload := map[string]any{
		"namespace":       ns,
		"topK":            topK,
		"vector":          vector,
		"includeMetadata": true,
	}

	var result struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}

	if err := p.post(ctx, "/query", payload, &result); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(result.Matches))
	for _, m := range result.Matches {
		text, _ := m.Metadata["text"].(string)
		if text == "" {
			continue
		}
		matches = append(matches, Match{
			ID:        m.ID,
			Text:      text,
			Score:     m.Score,
			Namespace: ns,
		})
	}
	return matches, nil
}

// Close releases resources. The shared HTTP client stays open.
func (p *PineconeIndex) Close() error {
	return nil
}

func (p *PineconeIndex) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kb: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("kb: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("kb: pinecone request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("kb: pinecone %s: status %d: %s", path, resp.StatusCode, string(msg))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Verify PineconeIndex implements Index at compile time.
var _ Index = (*PineconeIndex)(nil)
