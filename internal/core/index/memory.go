package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docwise-ai/docwise/internal/core"
	"github.com/docwise-ai/docwise/internal/models"
)

// MemoryIndex is an in-process vector index using brute-force cosine
// similarity, with one isolated chunk set per file. A file's set is
// immutable once published: Add swaps the whole set pointer under the
// map lock, so readers holding the old pointer keep a consistent view
// and traffic for unrelated files never serializes on a chunk scan.
type MemoryIndex struct {
	dim int

	mu    sync.RWMutex
	files map[string]*fileSet
}

type fileSet struct {
	chunks []models.Chunk
	norms  []float64
}

func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, files: make(map[string]*fileSet)}
}

var _ core.VectorIndex = (*MemoryIndex)(nil)

func (m *MemoryIndex) Add(ctx context.Context, fileID string, chunks []models.Chunk) error {
	set := &fileSet{
		chunks: make([]models.Chunk, len(chunks)),
		norms:  make([]float64, len(chunks)),
	}
	for i, ch := range chunks {
		if len(ch.Embedding) != m.dim {
			return fmt.Errorf("%w: chunk %d has dim %d, index expects %d",
				core.ErrConfigMismatch, ch.Seq, len(ch.Embedding), m.dim)
		}
		set.chunks[i] = ch
		set.norms[i] = norm(ch.Embedding)
	}

	m.mu.Lock()
	m.files[fileID] = set
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, fileID string, query []float32, k int) ([]models.SearchHit, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query has dim %d, index expects %d",
			core.ErrConfigMismatch, len(query), m.dim)
	}

	m.mu.RLock()
	set := m.files[fileID]
	m.mu.RUnlock()

	if set == nil || len(set.chunks) == 0 {
		return nil, nil
	}

	qn := norm(query)
	hits := make([]models.SearchHit, len(set.chunks))
	for i := range set.chunks {
		hits[i] = models.SearchHit{
			Chunk: set.chunks[i],
			Score: cosine(query, qn, set.chunks[i].Embedding, set.norms[i]),
		}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Chunk.Seq < hits[b].Chunk.Seq
	})

	if k <= 0 {
		k = 1
	}
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (m *MemoryIndex) Remove(ctx context.Context, fileID string) error {
	m.mu.Lock()
	delete(m.files, fileID)
	m.mu.Unlock()
	return nil
}

func cosine(q []float32, qn float64, v []float32, vn float64) float64 {
	if qn == 0 || vn == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	return dot / (qn * vn)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
