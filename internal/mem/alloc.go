package mem

import "unsafe"

// Alignment is the start address alignment of every block (one cache line).
const Alignment = 64

// Float32Size is the size of one float32 in bytes.
const Float32Size = 4

// AllocAligned returns a zeroed byte slice of length size whose first
// element sits on an Alignment boundary. It over-allocates by Alignment
// bytes; the returned slice keeps the whole allocation alive.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	buf := make([]byte, size+Alignment)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // address arithmetic for alignment
	off := int((Alignment - addr%Alignment) % Alignment)
	return buf[off : off+size : off+size]
}

// AllocAlignedFloat32 returns a zeroed, aligned float32 slice of length n.
func AllocAlignedFloat32(n int) []float32 {
	if n <= 0 {
		return nil
	}
	raw := AllocAligned(n * Float32Size)
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n) //nolint:gosec // aligned block reinterpreted as float32
}

// GrowFloat32 allocates an aligned block of length n and copies old into
// its prefix. n smaller than len(old) truncates the copy.
func GrowFloat32(old []float32, n int) []float32 {
	block := AllocAlignedFloat32(n)
	copy(block, old)
	return block
}

// Float32Bytes returns the memory footprint of n float32 values.
func Float32Bytes(n int) int64 {
	return int64(n) * Float32Size
}
