package memory

import (
	"errors"

	"github.com/becomeliminal/nim-memory/memory/index"
)

var (
	// ErrEmbeddingFailure wraps errors from the Embedder, and empty vectors.
	ErrEmbeddingFailure = errors.New("embedding failed")

	// ErrPersistenceFailure wraps read, write and parse errors on the
	// .index/.json pair.
	ErrPersistenceFailure = errors.New("persistence failed")

	// ErrConsistencyFault means the loaded index and text list disagree
	// on the number of fragments.
	ErrConsistencyFault = errors.New("index and texts are out of sync")

	// ErrDimensionMismatch means an embedding's size differs from the
	// size the store was established with.
	ErrDimensionMismatch = index.ErrDimensionMismatch

	// ErrInvalidUserID is returned for user IDs that cannot be mapped to
	// a storage path.
	ErrInvalidUserID = errors.New("invalid user ID")

	// ErrEmptyText is returned when adding an empty fragment.
	ErrEmptyText = errors.New("fragment text is empty")
)
