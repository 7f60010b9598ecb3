package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRelease(t *testing.T) {
	l := Get(100)
	require.Len(t, l.Bytes, 100)
	assert.Equal(t, 1<<MinClassBits, cap(l.Bytes))

	for i := range l.Bytes {
		l.Bytes[i] = 0xAB
	}
	l.Release()
	assert.Nil(t, l.Bytes)

	// Double release is harmless.
	l.Release()
}

func TestReleasedBuffersAreZeroed(t *testing.T) {
	l := Get(64)
	for i := range l.Bytes {
		l.Bytes[i] = 0xFF
	}
	l.Release()

	for i := 0; i < 16; i++ {
		next := Get(64)
		for _, b := range next.Bytes[:cap(next.Bytes)] {
			require.Zero(t, b)
		}
		next.Release()
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{4096, 0},
		{4097, 1},
		{8192, 1},
		{1 << 20, 20 - MinClassBits},
		{1<<MaxClassBits + 1, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classOf(tt.n), "n=%d", tt.n)
	}
}

func TestOversizedLease(t *testing.T) {
	l := Get(1<<MaxClassBits + 1)
	assert.Equal(t, -1, l.class)
	assert.Len(t, l.Bytes, 1<<MaxClassBits+1)
	l.Release()
}

func TestGrow(t *testing.T) {
	l := Get(10)
	copy(l.Bytes, "0123456789")

	l.Grow(20)
	assert.Len(t, l.Bytes, 20)
	assert.Equal(t, "0123456789", string(l.Bytes[:10]))

	l.Grow(10000)
	assert.Len(t, l.Bytes, 10000)
	assert.Equal(t, "0123456789", string(l.Bytes[:10]))
	l.Release()
}

func TestConcurrentLeases(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed byte) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l := Get(5000)
				for k := range l.Bytes {
					l.Bytes[k] = seed
				}
				for _, b := range l.Bytes {
					if b != seed {
						t.Errorf("buffer shared between leases")
						break
					}
				}
				l.Release()
			}
		}(byte(i + 1))
	}
	wg.Wait()
}
