// Package pool provides reusable byte buffers for the encryption hot path.
// Buffers are grouped in power-of-two size classes backed by sync.Pool and
// handed out as leases that must be released exactly once.
package pool

import (
	"math/bits"
	"sync"
)

const (
	// MinClassBits is the smallest size class (4 KiB).
	MinClassBits = 12

	// MaxClassBits is the largest pooled size class (64 MiB). Larger requests
	// are allocated directly and dropped on release.
	MaxClassBits = 26
)

var classes [MaxClassBits - MinClassBits + 1]sync.Pool

// Lease is a checked-out buffer. Bytes has the requested length; its
// capacity is the size class.
type Lease struct {
	Bytes []byte

	class    int
	released bool
}

// Get checks out a buffer of length n. The caller must call Release,
// typically via defer, on every exit path.
func Get(n int) *Lease {
	if n < 0 {
		n = 0
	}
	c := classOf(n)
	if c < 0 {
		return &Lease{Bytes: make([]byte, n), class: -1}
	}
	if v := classes[c].Get(); v != nil {
		buf := v.(*[]byte)
		return &Lease{Bytes: (*buf)[:n], class: c}
	}
	buf := make([]byte, n, 1<<(c+MinClassBits))
	return &Lease{Bytes: buf, class: c}
}

// Release returns the buffer to its pool. The buffer is zeroed first since
// leases carry plaintext. Calling Release more than once is a no-op.
func (l *Lease) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	buf := l.Bytes[:cap(l.Bytes)]
	clear(buf)
	l.Bytes = nil
	if l.class < 0 {
		return
	}
	classes[l.class].Put(&buf)
}

// Grow extends the lease to length n, moving to a larger class if needed.
// Existing contents are preserved.
func (l *Lease) Grow(n int) {
	if n <= cap(l.Bytes) {
		l.Bytes = l.Bytes[:n]
		return
	}
	next := Get(n)
	copy(next.Bytes, l.Bytes)
	l.Release()
	*l = *next
}

func classOf(n int) int {
	if n <= 1<<MinClassBits {
		return 0
	}
	b := bits.Len(uint(n - 1))
	if b > MaxClassBits {
		return -1
	}
	return b - MinClassBits
}
