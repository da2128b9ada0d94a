package index

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Flat is an exact nearest-neighbor index. Every query scans all vectors
// and ranks them by squared Euclidean distance. At a few hundred vectors
// per user this is well under a millisecond.
type Flat struct {
	dim     int
	vectors [][]float32
}

// FlatBuilder builds Flat indexes. It is the default Builder.
type FlatBuilder struct{}

// NewFlat creates an empty flat index for vectors of size dim.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Build creates a flat index over vectors.
func (FlatBuilder) Build(vectors [][]float32) (Index, error) {
	dim, err := Validate(vectors)
	if err != nil {
		return nil, err
	}
	f := NewFlat(dim)
	if err := f.Add(vectors...); err != nil {
		return nil, err
	}
	return f, nil
}

// Unmarshal decodes a flat index.
func (FlatBuilder) Unmarshal(data []byte) (Index, error) {
	return DecodeFlat(data)
}

// Add appends vectors to the index. The first vector fixes the dimension
// of an index created with dim 0.
func (f *Flat) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if f.dim == 0 && len(f.vectors) == 0 {
			f.dim = len(v)
		}
		if len(v) != f.dim {
			return fmt.Errorf("%w: index has %d, vector has %d", ErrDimensionMismatch, f.dim, len(v))
		}
		f.vectors = append(f.vectors, append([]float32(nil), v...))
	}
	return nil
}

// Query returns the k closest vectors by squared L2 distance.
func (f *Flat) Query(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != f.dim {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimensionMismatch, f.dim, len(vector))
	}

	hits := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		d := SquaredL2(vector, v)
		if math.IsNaN(float64(d)) {
			d = float32(math.Inf(1))
		}
		hits[i] = Neighbor{Position: i, Distance: d}
	}

	// Stable sort keeps scan order for equal distances.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Vectors returns copies of the indexed vectors.
func (f *Flat) Vectors() [][]float32 {
	out := make([][]float32, len(f.vectors))
	for i, v := range f.vectors {
		out[i] = append([]float32(nil), v...)
	}
	return out
}

// Len returns the number of vectors.
func (f *Flat) Len() int {
	return len(f.vectors)
}

// Dimensions returns the vector size.
func (f *Flat) Dimensions() int {
	return f.dim
}

// MarshalBinary encodes the index. See EncodeFlat.
func (f *Flat) MarshalBinary() ([]byte, error) {
	return EncodeFlat(f), nil
}
