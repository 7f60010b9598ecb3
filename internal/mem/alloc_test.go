package mem

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAligned(t *testing.T) {
	for _, size := range []int{1, 10, 63, 64, 65, 100, 1024} {
		buf := AllocAligned(size)
		require.Len(t, buf, size)
		assert.Equal(t, size, cap(buf))

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Zero(t, addr%Alignment, "size %d", size)
	}

	assert.Nil(t, AllocAligned(0))
	assert.Nil(t, AllocAligned(-1))
}

func TestAllocAlignedFloat32(t *testing.T) {
	for _, n := range []int{1, 10, 16, 17, 100, 1024} {
		buf := AllocAlignedFloat32(n)
		require.Len(t, buf, n)

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Zero(t, addr%Alignment, "n %d", n)
		for _, v := range buf {
			assert.Zero(t, v)
		}
	}

	assert.Nil(t, AllocAlignedFloat32(0))
}

func TestGrowFloat32(t *testing.T) {
	old := []float32{1, 2, 3}
	grown := GrowFloat32(old, 8)
	require.Len(t, grown, 8)
	assert.Equal(t, []float32{1, 2, 3, 0, 0, 0, 0, 0}, grown)

	grown[0] = 42
	assert.Equal(t, float32(1), old[0], "grown block must not alias the old one")

	assert.Equal(t, []float32{1, 2}, GrowFloat32(old, 2))
	assert.Equal(t, int64(32), Float32Bytes(8))
}

func BenchmarkAllocAlignedFloat32(b *testing.B) {
	for _, n := range []int{512, 512 * 1000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = AllocAlignedFloat32(n)
			}
		})
	}
}
