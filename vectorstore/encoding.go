package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector returns vec as raw little-endian float32 bytes.
func EncodeVector(vec []float32) []byte {
	return AppendVector(make([]byte, 0, len(vec)*4), vec)
}

// AppendVector appends the little-endian encoding of vec to dst.
func AppendVector(dst []byte, vec []float32) []byte {
	for _, v := range vec {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeVector parses raw little-endian float32 bytes.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vectorstore: vector encoding length %d is not a multiple of 4", len(b))
	}
	vec := make([]float32, len(b)/4)
	decodeInto(vec, b)
	return vec, nil
}

func decodeInto(dst []float32, b []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
}
