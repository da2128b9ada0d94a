// Package chromem provides an index.Builder backed by chromem-go, a pure Go
// embedded vector database.
//
// chromem ranks by cosine similarity. For unit-length embeddings (OpenAI,
// MiniLM after pooling) squared L2 distance is 2 - 2*cosine, so the ranking
// matches the flat index and the reported distance is converted back to
// squared L2. For embedders that do not normalize, prefer index.FlatBuilder.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory/memory/index"
)

const collectionName = "fragments"

// Builder creates chromem-backed indexes. The encoded form is shared with
// index.Flat, so stores can switch between the two without re-embedding.
type Builder struct{}

// Index wraps one chromem collection. chromem normalizes what it stores,
// so the original vectors are kept alongside for Vectors and encoding.
type Index struct {
	col     *chromem.Collection
	dim     int
	vectors [][]float32
}

// Build creates a collection and inserts vectors in order. Document IDs are
// the insertion positions.
func (Builder) Build(vectors [][]float32) (index.Index, error) {
	dim, err := index.Validate(vectors)
	if err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection(
		collectionName,
		nil, // No collection metadata
		nil, // No embedding func (we provide embeddings)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	idx := &Index{
		col:     col,
		dim:     dim,
		vectors: make([][]float32, len(vectors)),
	}
	for i, v := range vectors {
		idx.vectors[i] = append([]float32(nil), v...)
		doc := chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   strconv.Itoa(i),
			Embedding: append([]float32(nil), v...),
		}
		if err := col.AddDocument(context.Background(), doc); err != nil {
			return nil, fmt.Errorf("add document %d: %w", i, err)
		}
	}

	log.Printf("[INDEX] Built chromem collection: vectors=%d, dim=%d", len(vectors), dim)
	return idx, nil
}

// Unmarshal decodes the flat encoding and loads it into a new collection.
func (b Builder) Unmarshal(data []byte) (index.Index, error) {
	flat, err := index.DecodeFlat(data)
	if err != nil {
		return nil, err
	}
	return b.Build(flat.Vectors())
}

// Query returns the k most similar vectors, converted to squared L2
// distance and ordered closest first, ties by lower position.
func (x *Index) Query(ctx context.Context, vector []float32, k int) ([]index.Neighbor, error) {
	if len(x.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: index has %d, query has %d", index.ErrDimensionMismatch, x.dim, len(vector))
	}

	// chromem picks its own top-k among equal similarities, so rank the
	// whole collection and cut afterwards. n is bounded by the store size.
	n := x.col.Count()
	if k > n {
		k = n
	}

	results, err := x.col.QueryEmbedding(ctx, append([]float32(nil), vector...), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]index.Neighbor, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil || pos < 0 || pos >= len(x.vectors) {
			log.Printf("[INDEX] Skipping chromem result with unknown id %q", r.ID)
			continue
		}
		hits = append(hits, index.Neighbor{
			Position: pos,
			Distance: 2 - 2*r.Similarity,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Vectors returns copies of the original vectors.
func (x *Index) Vectors() [][]float32 {
	out := make([][]float32, len(x.vectors))
	for i, v := range x.vectors {
		out[i] = append([]float32(nil), v...)
	}
	return out
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	return len(x.vectors)
}

// Dimensions returns the vector size.
func (x *Index) Dimensions() int {
	return x.dim
}

// MarshalBinary encodes the original vectors in the flat format.
func (x *Index) MarshalBinary() ([]byte, error) {
	flat := index.NewFlat(x.dim)
	if err := flat.Add(x.vectors...); err != nil {
		return nil, err
	}
	return flat.MarshalBinary()
}
