// Package index defines the similarity index contract used by the memory
// store and provides an exact, flat squared-L2 implementation.
//
// An Index is a derived structure: the memory store keeps the authoritative
// vectors and rebuilds the index from them whenever they change.
package index

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimension the index was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCorrupt is returned when a serialized index cannot be decoded.
	ErrCorrupt = errors.New("corrupt index data")
)

// Neighbor is a single query hit.
type Neighbor struct {
	// Position is the insertion position of the vector inside the index.
	Position int

	// Distance is the distance to the query. Lower is closer.
	Distance float32
}

// Index answers nearest-neighbor queries over a fixed set of vectors.
type Index interface {
	// Query returns up to k neighbors of vector, closest first.
	// Equal distances are ordered by lower position.
	Query(ctx context.Context, vector []float32, k int) ([]Neighbor, error)

	// Vectors returns copies of the indexed vectors in position order.
	Vectors() [][]float32

	// Len returns the number of indexed vectors.
	Len() int

	// Dimensions returns the vector size, 0 for an empty index.
	Dimensions() int

	// MarshalBinary encodes the index for the .index artifact.
	MarshalBinary() ([]byte, error)
}

// Builder constructs indexes from scratch or from their encoded form.
type Builder interface {
	// Build creates an index over vectors, in order.
	Build(vectors [][]float32) (Index, error)

	// Unmarshal decodes an index produced by Index.MarshalBinary.
	Unmarshal(data []byte) (Index, error)
}

// Validate returns the shared length of vectors, or ErrDimensionMismatch if
// they disagree. An empty set has dimension 0.
func Validate(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return 0, ErrDimensionMismatch
		}
	}
	return dim, nil
}

// SquaredL2 returns the squared Euclidean distance between a and b.
// Both must have the same length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
