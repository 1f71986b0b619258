package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const localCollectionPrefix = "kb_"

// LocalIndex is an embedded vector index backed by chromem-go with disk
// persistence. It serves development and air-gapped deployments where no
// hosted index is available. Each namespace maps to one collection.
type LocalIndex struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

// NewLocalIndex creates (or opens) the persistent index at dataDir/kb/.
// embedFunc is the embedding function, e.g. chromem.NewEmbeddingFuncOpenAI.
func NewLocalIndex(dataDir string, embedFunc chromem.EmbeddingFunc) (*LocalIndex, error) {
	dir := filepath.Join(dataDir, "kb")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("kb: create index dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("kb: open local index: %w", err)
	}
	return &LocalIndex{db: db, embedFn: embedFunc}, nil
}

// Add indexes a document under a namespace.
func (l *LocalIndex) Add(ctx context.Context, namespace, id, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	col, err := l.collection(namespace)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			"namespace": namespace,
		},
	})
}

// Namespaces returns the namespaces that hold at least one document.
func (l *LocalIndex) Namespaces(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	for name, col := range l.db.ListCollections() {
		if !strings.HasPrefix(name, localCollectionPrefix) {
			continue
		}
		if col.Count() == 0 {
			continue
		}
		out = append(out, strings.TrimPrefix(name, localCollectionPrefix))
	}
	sort.Strings(out)
	return out, nil
}

// Search queries each requested namespace and merges matches by score.
func (l *LocalIndex) Search(ctx context.Context, q Query) ([]Match, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("kb: local query requires text")
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	namespaces := q.Namespaces
	if len(namespaces) == 0 {
		namespaces = []string{DefaultNamespace}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var all []Match
	for _, ns := range namespaces {
		col := l.db.GetCollection(localCollectionPrefix+ns, l.embedFn)
		if col == nil {
			continue
		}
		count := col.Count()
		if count == 0 {
			continue
		}
		k := topK
		if k > count {
			k = count
		}

		// chromem-go sometimes rejects nResults despite the Count
		// check. Step k down if it fails.
		var results []chromem.Result
		var err error
		for attemptK := k; attemptK > 0; attemptK-- {
			results, err = col.Query(ctx, q.Text, attemptK, nil, nil)
			if err == nil {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("kb: local query namespace %q: %w", ns, err)
		}

		for _, r := range results {
			all = append(all, Match{
				ID:        r.ID,
				Text:      r.Content,
				Score:     float64(r.Similarity),
				Namespace: ns,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

// Close releases index resources. chromem persists on write, so there
// is nothing to flush.
func (l *LocalIndex) Close() error {
	return nil
}

func (l *LocalIndex) collection(namespace string) (*chromem.Collection, error) {
	name := localCollectionPrefix + namespace
	col := l.db.GetCollection(name, l.embedFn)
	if col == nil {
		var err error
		col, err = l.db.CreateCollection(name, nil, l.embedFn)
		if err != nil {
			return nil, fmt.Errorf("kb: create collection %q: %w", name, err)
		}
	}
	return col, nil
}

// Verify LocalIndex implements Index at compile time.
var _ Index = (*LocalIndex)(nil)
