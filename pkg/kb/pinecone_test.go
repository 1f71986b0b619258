package kb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pineconeTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))

		switch r.URL.Path {
		case "/describe_index_stats":
			json.NewEncoder(w).Encode(map[string]any{
				"namespaces": map[string]any{
					"books":    map[string]any{"vectorCount": 120},
					"articles": map[string]any{"vectorCount": 7},
					"empty":    map[string]any{"vectorCount": 0},
				},
			})
		case "/query":
			var req struct {
				Namespace string    `json:"namespace"`
				TopK      int       `json:"topK"`
				Vector    []float64 `json:"vector"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotEmpty(t, req.Vector)

			matches := map[string][]map[string]any{
				"books": {
					{"id": "b1", "score": 0.91, "metadata": map[string]any{"text": "book snippet"}},
					{"id": "b2", "score": 0.55, "metadata": map[string]any{"text": "weaker book snippet"}},
				},
				"articles": {
					{"id": "a1", "score": 0.87, "metadata": map[string]any{"text": "article snippet"}},
				},
			}
			json.NewEncoder(w).Encode(map[string]any{"matches": matches[req.Namespace]})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestPineconeNamespaces(t *testing.T) {
	server := pineconeTestServer(t)
	defer server.Close()

	index, err := NewPineconeIndex(server.URL, "test-key")
	require.NoError(t, err)
	defer index.Close()

	namespaces, err := index.Namespaces(context.Background())
	require.NoError(t, err)

	// Empty namespaces are excluded, result is sorted.
	assert.Equal(t, []string{"articles", "books"}, namespaces)
}

func TestPineconeSearchMergesNamespaces(t *testing.T) {
	server := pineconeTestServer(t)
	defer server.Close()

	index, err := NewPineconeIndex(server.URL, "test-key")
	require.NoError(t, err)
	defer index.Close()

	matches, err := index.Search(context.Background(), Query{
		Vector:     []float64{0.1, 0.2, 0.3},
		TopK:       3,
		Namespaces: []string{"books", "articles"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Ranked across namespaces by score.
	assert.Equal(t, "b1", matches[0].ID)
	assert.Equal(t, "a1", matches[1].ID)
	assert.Equal(t, "b2", matches[2].ID)
	assert.Equal(t, "books", matches[0].Namespace)
}

func TestPineconeSearchRequiresVector(t *testing.T) {
	index, err := NewPineconeIndex("https://example.pinecone.io", "test-key")
	require.NoError(t, err)

	_, err = index.Search(context.Background(), Query{Text: "no vector"})
	assert.Error(t, err)
}

func TestPineconeRequiresConfig(t *testing.T) {
	_, err := NewPineconeIndex("", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
