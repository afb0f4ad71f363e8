// Package index is the immutable in-memory embedding index.
//
// An Index is built once from (chunk, vector) pairs and never mutated afterwards,
// so readers holding a pointer to it are unaffected by re-ingestion.
package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
)

// Entry pairs a chunk with its embedding.
type Entry struct {
	Chunk  chunk.Chunk
	Vector []float32
}

// Index supports exact cosine-similarity search over its entries.
type Index struct {
	chunks  []chunk.Chunk
	vectors [][]float32 // unit length, or all zeros for a zero input vector
	dim     int
}

// New validates dimensions and builds an index. Vectors are copied and normalized.
func New(entries []Entry) (*Index, error) {
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
	}
	dim, err := domain.CheckDimensions(vectors, 0)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	ix := &Index{
		chunks:  make([]chunk.Chunk, len(entries)),
		vectors: make([][]float32, len(entries)),
		dim:     dim,
	}
	for i, e := range entries {
		ix.chunks[i] = e.Chunk
		ix.vectors[i] = normalize(e.Vector)
	}
	return ix, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Dimension returns the vector dimension (0 for an empty index).
func (ix *Index) Dimension() int { return ix.dim }

// Chunks returns a copy of the indexed chunks in insertion order.
func (ix *Index) Chunks() []chunk.Chunk { return slices.Clone(ix.chunks) }

// Documents returns the distinct document IDs in insertion order.
func (ix *Index) Documents() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, c := range ix.chunks {
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		ids = append(ids, c.DocumentID)
	}
	return ids
}

// Search returns up to k chunks by descending cosine similarity to query.
// Ties are broken by ascending chunk index, then by insertion order.
func (ix *Index) Search(query []float32, k int) ([]chunk.Hit, error) {
	if ix == nil || len(ix.chunks) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), ix.dim, domain.ErrEmbeddingProvider)
	}

	q := normalize(query)
	order := make([]int, len(ix.chunks))
	scores := make([]float64, len(ix.chunks))
	for i, v := range ix.vectors {
		order[i] = i
		scores[i] = dot(v, q)
	}

	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(ix.chunks[a].Index, ix.chunks[b].Index)
	})

	k = min(k, len(order))
	hits := make([]chunk.Hit, k)
	for i := range k {
		j := order[i]
		hits[i] = chunk.Hit{Chunk: ix.chunks[j], Score: scores[j]}
	}
	return hits, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
