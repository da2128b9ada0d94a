package chromem_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/becomeliminal/nim-memory/memory/index"
	"github.com/becomeliminal/nim-memory/memory/index/chromem"
)

// unit vectors on the plane, so cosine order equals L2 order
var planar = [][]float32{
	{1, 0},
	{0, 1},
	{-1, 0},
	{0.6, 0.8},
}

func TestBuilder_QueryMatchesFlatOrder(t *testing.T) {
	ctx := context.Background()

	cidx, err := chromem.Builder{}.Build(planar)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	fidx, _ := index.FlatBuilder{}.Build(planar)

	query := []float32{0.8, 0.6}
	got, err := cidx.Query(ctx, query, 4)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want, _ := fidx.Query(ctx, query, 4)

	if len(got) != len(want) {
		t.Fatalf("got %d hits, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].Position != want[i].Position {
			t.Errorf("hit %d: position %d, flat says %d", i, got[i].Position, want[i].Position)
		}
	}
}

func TestBuilder_TiesResolvedByLowerPosition(t *testing.T) {
	const n = 40
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, n+1)
		vectors[i][i] = 1
	}
	// orthogonal to every stored vector, so all distances are equal
	query := make([]float32, n+1)
	query[n] = 1

	idx, err := chromem.Builder{}.Build(vectors)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for run := 0; run < 10; run++ {
		hits, err := idx.Query(context.Background(), query, 3)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		var got []int
		for _, h := range hits {
			got = append(got, h.Position)
		}
		if want := []int{0, 1, 2}; !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: positions %v, want %v", run, got, want)
		}
	}
}

func TestBuilder_KClampedToCollectionSize(t *testing.T) {
	idx, err := chromem.Builder{}.Build(planar[:2])
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	hits, err := idx.Query(context.Background(), []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
	if hits[0].Position != 0 {
		t.Errorf("closest = %d, want 0", hits[0].Position)
	}
}

func TestBuilder_KeepsOriginalVectors(t *testing.T) {
	src := [][]float32{{3, 4}, {0, 2}}
	idx, err := chromem.Builder{}.Build(src)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !reflect.DeepEqual(idx.Vectors(), src) {
		t.Errorf("Vectors = %v, want un-normalized %v", idx.Vectors(), src)
	}
}

func TestBuilder_EncodingSharedWithFlat(t *testing.T) {
	idx, _ := chromem.Builder{}.Build(planar)
	data, err := idx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	flat, err := index.FlatBuilder{}.Unmarshal(data)
	if err != nil {
		t.Fatalf("flat Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(flat.Vectors(), planar) {
		t.Errorf("flat decoded %v, want %v", flat.Vectors(), planar)
	}

	back, err := chromem.Builder{}.Unmarshal(data)
	if err != nil {
		t.Fatalf("chromem Unmarshal failed: %v", err)
	}
	if back.Len() != len(planar) || back.Dimensions() != 2 {
		t.Errorf("round trip len=%d dim=%d", back.Len(), back.Dimensions())
	}
}

func TestBuilder_EmptyAndMismatch(t *testing.T) {
	empty, err := chromem.Builder{}.Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) failed: %v", err)
	}
	if hits, err := empty.Query(context.Background(), []float32{1}, 3); err != nil || len(hits) != 0 {
		t.Errorf("empty Query = %v, %v", hits, err)
	}

	idx, _ := chromem.Builder{}.Build(planar)
	if _, err := idx.Query(context.Background(), []float32{1, 0, 0}, 1); !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("Query with wrong dimension = %v, want ErrDimensionMismatch", err)
	}
}
