package vec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFloat64s packs values as consecutive little-endian IEEE 754 words.
func EncodeFloat64s(floats []float64) []byte {
	buf := make([]byte, len(floats)*8)
	for i, f := range floats {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeFloat64s is the inverse of EncodeFloat64s.
func DecodeFloat64s(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid data length: %d is not divisible by 8", len(data))
	}
	result := make([]float64, len(data)/8)
	for i := range result {
		result[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return result, nil
}

// EncodeVector returns v as a value to bind to a BLOB column. An empty
// vector is stored as NULL.
func EncodeVector(v []float64) any {
	if len(v) == 0 {
		return nil
	}
	return EncodeFloat64s(v)
}

// DecodeVector reads a column written by EncodeVector. NULL decodes to an
// empty vector.
func DecodeVector(data []byte) ([]float64, error) {
	if data == nil {
		return []float64{}, nil
	}
	return DecodeFloat64s(data)
}
