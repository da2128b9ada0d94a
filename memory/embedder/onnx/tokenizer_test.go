package onnx

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testVocab() map[string]int64 {
	return map[string]int64{
		"[UNK]": unkID, "[CLS]": clsID, "[SEP]": sepID,
		"hello": 7592, "world": 2088, "play": 2377, "##ing": 2075, "!": 999,
	}
}

func TestTokenizer_Encode(t *testing.T) {
	tok := NewTokenizer(testVocab())

	tests := []struct {
		text   string
		maxLen int
		want   []int64
	}{
		{"Hello, World!", 128, []int64{clsID, 7592, unkID, 2088, 999, sepID}},
		{"playing", 128, []int64{clsID, 2377, 2075, sepID}},
		{"xyz", 128, []int64{clsID, unkID, sepID}},
		{"", 128, []int64{clsID, sepID}},
		{"hello world hello", 4, []int64{clsID, 7592, 2088, sepID}},
	}
	for _, tt := range tests {
		if got := tok.Encode(tt.text, tt.maxLen); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Encode(%q, %d) = %v, want %v", tt.text, tt.maxLen, got, tt.want)
		}
	}
}

func TestLoadTokenizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	if err := os.WriteFile(path, []byte(`{"model":{"vocab":{"hello":7592}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadTokenizer(path)
	if err != nil {
		t.Fatalf("LoadTokenizer failed: %v", err)
	}
	if got := tok.Encode("hello", 8); !reflect.DeepEqual(got, []int64{clsID, 7592, sepID}) {
		t.Errorf("Encode = %v", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	os.WriteFile(empty, []byte(`{"model":{}}`), 0o644)
	if _, err := LoadTokenizer(empty); err == nil {
		t.Error("expected error for empty vocab")
	}
}

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		3, 0,
		1, 4,
		100, 100,
	}
	got, err := meanPool(hidden, []int64{1, 1, 0}, 2)
	if err != nil {
		t.Fatalf("meanPool failed: %v", err)
	}
	// mean of attended rows is (2, 2), normalized to (1/sqrt2, 1/sqrt2)
	want := float32(1 / math.Sqrt2)
	for i, v := range got {
		if math.Abs(float64(v-want)) > 1e-6 {
			t.Errorf("got[%d] = %v, want %v", i, v, want)
		}
	}

	if _, err := meanPool(hidden, []int64{1, 1}, 2); err == nil {
		t.Error("expected error for shape mismatch")
	}
	if _, err := meanPool(hidden, []int64{0, 0, 0}, 2); err == nil {
		t.Error("expected error with no attended tokens")
	}
}
