package index

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Flat indexes are stored as a protobuf wire-format message:
//
//	1: format version (varint)
//	2: dimension (varint)
//	3: vector count (varint)
//	4: count*dimension packed fixed32 floats (bytes)
//
// Unknown fields are skipped so newer writers stay readable.
const (
	fieldVersion protowire.Number = 1
	fieldDim     protowire.Number = 2
	fieldCount   protowire.Number = 3
	fieldData    protowire.Number = 4

	flatVersion = 1
)

// EncodeFlat serializes f.
func EncodeFlat(f *Flat) []byte {
	packed := make([]byte, 0, len(f.vectors)*f.dim*4)
	for _, v := range f.vectors {
		for _, x := range v {
			packed = protowire.AppendFixed32(packed, math.Float32bits(x))
		}
	}

	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, flatVersion)
	b = protowire.AppendTag(b, fieldDim, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.dim))
	b = protowire.AppendTag(b, fieldCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(f.vectors)))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	return b
}

// DecodeFlat parses data produced by EncodeFlat.
func DecodeFlat(data []byte) (*Flat, error) {
	var (
		version, dim, count uint64
		packed              []byte
		seenVersion         bool
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(data)
			seenVersion = true
		case num == fieldDim && typ == protowire.VarintType:
			dim, n = protowire.ConsumeVarint(data)
		case num == fieldCount && typ == protowire.VarintType:
			count, n = protowire.ConsumeVarint(data)
		case num == fieldData && typ == protowire.BytesType:
			packed, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(n))
		}
		data = data[n:]
	}

	if !seenVersion || version != flatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, version)
	}
	if dim > math.MaxInt32 {
		return nil, fmt.Errorf("%w: dimension %d out of range", ErrCorrupt, dim)
	}
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d vectors with zero dimension", ErrCorrupt, count)
	}
	// Bound count by the data actually present before multiplying.
	if dim > 0 && count > uint64(len(packed))/4/dim {
		return nil, fmt.Errorf("%w: %d vectors of dimension %d exceed %d bytes of data",
			ErrCorrupt, count, dim, len(packed))
	}
	if want := count * dim * 4; uint64(len(packed)) != want {
		return nil, fmt.Errorf("%w: expected %d bytes of vector data, got %d", ErrCorrupt, want, len(packed))
	}

	f := NewFlat(int(dim))
	f.vectors = make([][]float32, count)
	for i := range f.vectors {
		v := make([]float32, dim)
		for j := range v {
			bits, n := protowire.ConsumeFixed32(packed)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
			}
			v[j] = math.Float32frombits(bits)
			packed = packed[n:]
		}
		f.vectors[i] = v
	}
	return f, nil
}
