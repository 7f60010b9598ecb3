package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/wmlabtx/imgmzx/internal/pool"
)

const minRead = 64 * 1024

// Buffer is a pooled plaintext buffer returned by DecryptTo.
// Release must be called once the plaintext is no longer needed.
type Buffer struct {
	lease *pool.Lease
	n     int
}

// Bytes returns the plaintext. It is invalid after Release.
func (b *Buffer) Bytes() []byte {
	if b == nil || b.lease == nil || b.lease.Bytes == nil {
		return nil
	}
	return b.lease.Bytes[:b.n]
}

// Len returns the plaintext length.
func (b *Buffer) Len() int { return b.n }

// Release zeroes the buffer and returns it to the pool.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.lease.Release()
}

// DecryptTo decrypts blob into a pooled Buffer.
func (c *Codec) DecryptTo(blob []byte, password string) (*Buffer, bool) {
	if len(blob) < Overhead {
		return nil, false
	}
	k := c.DeriveKey(password)
	defer k.Destroy()

	n := len(blob) - Overhead
	lease := pool.Get(n)
	out, ok := k.Open(lease.Bytes[:0], blob)
	if !ok {
		lease.Release()
		return nil, false
	}
	return &Buffer{lease: lease, n: len(out)}, true
}

// EncryptStream reads src to EOF, seals it under password and writes the
// sealed frame to dst. It returns the number of bytes written.
func (c *Codec) EncryptStream(dst io.Writer, src io.Reader, password string) (int64, error) {
	lease := pool.Get(NonceSize + minRead)
	defer lease.Release()

	n, err := readInto(lease, NonceSize, src)
	if err != nil {
		return 0, fmt.Errorf("codec: read: %w", err)
	}
	lease.Grow(NonceSize + n + TagSize)

	k := c.DeriveKey(password)
	defer k.Destroy()

	frame, err := k.sealInPlace(lease.Bytes, n)
	if err != nil {
		return 0, err
	}
	written, err := dst.Write(frame)
	return int64(written), err
}

// DecryptStream reads a sealed frame from src to EOF and writes the
// plaintext to dst. A false ok with a nil error means the frame did not
// authenticate; nothing is written to dst in that case.
func (c *Codec) DecryptStream(dst io.Writer, src io.Reader, password string) (int64, bool, error) {
	lease := pool.Get(minRead)
	defer lease.Release()

	n, err := readInto(lease, 0, src)
	if err != nil {
		return 0, false, fmt.Errorf("codec: read: %w", err)
	}
	if n < Overhead {
		return 0, false, nil
	}

	k := c.DeriveKey(password)
	defer k.Destroy()

	plaintext, ok := k.openInPlace(lease.Bytes[:n])
	if !ok {
		return 0, false, nil
	}
	written, err := dst.Write(plaintext)
	return int64(written), true, err
}

// readInto reads r to EOF into l starting at off and returns the number of
// bytes read. l.Bytes is left with length off+n.
func readInto(l *pool.Lease, off int, r io.Reader) (int, error) {
	pos := off
	if len(l.Bytes) < off+minRead {
		l.Grow(off + minRead)
	}
	for {
		if pos == len(l.Bytes) {
			l.Grow(2 * len(l.Bytes))
		}
		m, err := r.Read(l.Bytes[pos:])
		pos += m
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	l.Bytes = l.Bytes[:pos]
	return pos - off, nil
}
