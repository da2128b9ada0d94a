package onnx

import (
	"fmt"
	"math"
)

// meanPool averages hidden states over the attended positions and returns a
// unit-length vector. hidden is laid out [seqLen][dim].
func meanPool(hidden []float32, mask []int64, dim int) ([]float32, error) {
	if dim <= 0 || len(hidden) != len(mask)*dim {
		return nil, fmt.Errorf("hidden state has %d values, want %d", len(hidden), len(mask)*dim)
	}

	out := make([]float32, dim)
	var attended float32
	for i, m := range mask {
		if m == 0 {
			continue
		}
		attended++
		row := hidden[i*dim : (i+1)*dim]
		for j, v := range row {
			out[j] += v
		}
	}
	if attended == 0 {
		return nil, fmt.Errorf("no attended tokens")
	}
	for j := range out {
		out[j] /= attended
	}
	return normalize(out), nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
