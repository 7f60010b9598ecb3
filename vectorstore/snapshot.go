package vectorstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/wmlabtx/imgmzx/model"
)

// Compression selects how snapshot blocks are stored.
type Compression uint8

const (
	// CompressionNone stores blocks verbatim.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

const (
	// snapshotMagic identifies arena snapshots (ASCII: "IMZV").
	snapshotMagic   uint32 = 0x494D5A56
	snapshotVersion uint32 = 1
	headerSize             = 32

	blockHeaderSize = 8
	blockSize       = 256 * 1024
)

var (
	// ErrInvalidSnapshot is returned for a stream that is not an arena snapshot.
	ErrInvalidSnapshot = errors.New("vectorstore: invalid snapshot")

	// ErrCorrupted is returned when a snapshot fails checksum validation.
	ErrCorrupted = errors.New("vectorstore: snapshot corrupted (checksum mismatch)")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// header is the fixed-size snapshot header. All fields are little-endian.
//
//	magic u32 | version u32 | compression u8 | pad [3] | dim u32 | count u64 | crc u32 | pad [4]
type header struct {
	compression Compression
	dim         uint32
	count       uint64
}

func (h header) marshal() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], snapshotMagic)
	binary.LittleEndian.PutUint32(buf[4:], snapshotVersion)
	buf[8] = byte(h.compression)
	binary.LittleEndian.PutUint32(buf[12:], h.dim)
	binary.LittleEndian.PutUint64(buf[16:], h.count)
	binary.LittleEndian.PutUint32(buf[24:], crc32.ChecksumIEEE(buf[:24]))
	return buf
}

func (h *header) unmarshal(buf []byte) error {
	if binary.LittleEndian.Uint32(buf[0:]) != snapshotMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	if v := binary.LittleEndian.Uint32(buf[4:]); v > snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, v)
	}
	if binary.LittleEndian.Uint32(buf[24:]) != crc32.ChecksumIEEE(buf[:24]) {
		return ErrCorrupted
	}
	h.compression = Compression(buf[8])
	h.dim = binary.LittleEndian.Uint32(buf[12:])
	h.count = binary.LittleEndian.Uint64(buf[16:])
	if h.compression > CompressionZSTD {
		return fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, h.compression)
	}
	if h.dim == 0 {
		return fmt.Errorf("%w: zero dimension", ErrInvalidSnapshot)
	}
	return nil
}

// WriteSnapshot writes every slot of the arena to w in slot order.
//
// Layout: header, then a sequence of blocks
// [uncompressed u32][compressed u32][data], terminated by an empty block,
// then the CRC32 of the uncompressed body. A compressed size of 0 marks a
// block stored verbatim. Each body record is
// [hash length u16][hash][dim × float32].
func (a *Arena) WriteSnapshot(w io.Writer, c Compression) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cw := &countingWriter{w: w}
	h := header{compression: c, dim: uint32(a.dim), count: uint64(len(a.hashes))} //nolint:gosec
	if _, err := cw.Write(h.marshal()); err != nil {
		return cw.n, err
	}

	bw, err := newBlockWriter(cw, c)
	if err != nil {
		return cw.n, err
	}
	defer bw.close()

	var rec []byte
	for slot, hash := range a.hashes {
		rec = rec[:0]
		rec = binary.LittleEndian.AppendUint16(rec, uint16(len(hash))) //nolint:gosec
		rec = append(rec, hash...)
		rec = AppendVector(rec, a.vector(slot))
		if _, err := bw.Write(rec); err != nil {
			return cw.n, err
		}
	}
	if err := bw.finish(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadSnapshot builds a new arena from a snapshot written by WriteSnapshot.
// opts configure the new arena; the initial capacity defaults to the
// snapshot's vector count.
func ReadSnapshot(r io.Reader, opts ...Option) (_ *Arena, err error) {
	var hbuf [headerSize]byte
	if _, err := io.ReadFull(r, hbuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	var h header
	if err := h.unmarshal(hbuf[:]); err != nil {
		return nil, err
	}

	opts = append([]Option{WithInitialCapacity(int(h.count))}, opts...) //nolint:gosec
	a, err := New(int(h.dim), opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	br := newBlockReader(r, h.compression)
	defer br.close()
	body := bufio.NewReader(br)

	vec := make([]float32, h.dim)
	raw := make([]byte, int(h.dim)*4)
	var lenBuf [2]byte
	for i := uint64(0); i < h.count; i++ {
		if _, err := io.ReadFull(body, lenBuf[:]); err != nil {
			return nil, truncated(err)
		}
		hashBuf := make([]byte, binary.LittleEndian.Uint16(lenBuf[:]))
		if _, err := io.ReadFull(body, hashBuf); err != nil {
			return nil, truncated(err)
		}
		if _, err := io.ReadFull(body, raw); err != nil {
			return nil, truncated(err)
		}
		hash := model.ContentHash(hashBuf)
		if err := hash.Validate(); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %w", ErrInvalidSnapshot, i, err)
		}
		decodeInto(vec, raw)
		if err := a.Insert(hash, vec); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %w", ErrInvalidSnapshot, i, err)
		}
	}

	// Drain the terminator and verify the body checksum.
	if _, err := body.ReadByte(); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%w: trailing data", ErrInvalidSnapshot)
		}
		return nil, truncated(err)
	}
	if err := br.verify(); err != nil {
		return nil, err
	}
	return a, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrInvalidSnapshot)
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// blockWriter buffers body bytes and emits compressed blocks.
type blockWriter struct {
	w   io.Writer
	c   Compression
	buf []byte
	out []byte
	crc uint32
	enc *zstd.Encoder
}

func newBlockWriter(w io.Writer, c Compression) (*blockWriter, error) {
	bw := &blockWriter{w: w, c: c, buf: make([]byte, 0, blockSize)}
	if c == CompressionZSTD {
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		bw.enc = enc
	}
	return bw, nil
}

func (bw *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := min(len(p), blockSize-len(bw.buf))
		bw.buf = append(bw.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(bw.buf) == blockSize {
			if err := bw.flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (bw *blockWriter) flush() error {
	if len(bw.buf) == 0 {
		return nil
	}
	bw.crc = crc32.Update(bw.crc, crc32.IEEETable, bw.buf)

	var payload []byte
	switch bw.c {
	case CompressionLZ4:
		bw.out = grow(bw.out, lz4.CompressBlockBound(len(bw.buf)))
		n, err := lz4.CompressBlock(bw.buf, bw.out, nil)
		if err != nil {
			return err
		}
		payload = bw.out[:n]
	case CompressionZSTD:
		bw.out = bw.enc.EncodeAll(bw.buf, bw.out[:0])
		payload = bw.out
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(bw.buf))) //nolint:gosec
	// Incompressible or uncompressed blocks are stored verbatim.
	if len(payload) == 0 || len(payload) >= len(bw.buf) {
		payload = bw.buf
	} else {
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(payload))) //nolint:gosec
	}
	if _, err := bw.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := bw.w.Write(payload); err != nil {
		return err
	}
	bw.buf = bw.buf[:0]
	return nil
}

func (bw *blockWriter) finish() error {
	if err := bw.flush(); err != nil {
		return err
	}
	var tail [blockHeaderSize + 4]byte
	binary.LittleEndian.PutUint32(tail[blockHeaderSize:], bw.crc)
	_, err := bw.w.Write(tail[:])
	return err
}

func (bw *blockWriter) close() {
	if bw.enc != nil {
		zstdEncoderPool.Put(bw.enc)
		bw.enc = nil
	}
}

// blockReader is an io.Reader over the decompressed body.
type blockReader struct {
	r    io.Reader
	c    Compression
	raw  []byte
	buf  []byte
	pos  int
	crc  uint32
	done bool
	dec  *zstd.Decoder
}

func newBlockReader(r io.Reader, c Compression) *blockReader {
	return &blockReader{r: r, c: c}
}

func (br *blockReader) Read(p []byte) (int, error) {
	for br.pos == len(br.buf) {
		if br.done {
			return 0, io.EOF
		}
		if err := br.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, br.buf[br.pos:])
	br.pos += n
	return n, nil
}

func (br *blockReader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(br.r, hdr[:]); err != nil {
		return truncated(err)
	}
	size := int(binary.LittleEndian.Uint32(hdr[0:]))
	packed := int(binary.LittleEndian.Uint32(hdr[4:]))
	br.pos = 0
	if size == 0 {
		br.done = true
		br.buf = br.buf[:0]
		return nil
	}
	if size > blockSize || packed > blockSize {
		return fmt.Errorf("%w: block size %d", ErrInvalidSnapshot, size)
	}

	br.buf = grow(br.buf, size)
	if packed == 0 {
		if _, err := io.ReadFull(br.r, br.buf); err != nil {
			return truncated(err)
		}
	} else {
		br.raw = grow(br.raw, packed)
		if _, err := io.ReadFull(br.r, br.raw); err != nil {
			return truncated(err)
		}
		if err := br.decompress(); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupted, err)
		}
	}
	br.crc = crc32.Update(br.crc, crc32.IEEETable, br.buf)
	return nil
}

func (br *blockReader) decompress() error {
	size := len(br.buf)
	switch br.c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(br.raw, br.buf)
		if err != nil {
			return err
		}
		if n != size {
			return errors.New("decompressed size mismatch")
		}
	case CompressionZSTD:
		if br.dec == nil {
			dec, err := getZstdDecoder()
			if err != nil {
				return err
			}
			br.dec = dec
		}
		out, err := br.dec.DecodeAll(br.raw, br.buf[:0])
		if err != nil {
			return err
		}
		if len(out) != size {
			return errors.New("decompressed size mismatch")
		}
	default:
		return errors.New("compressed block in uncompressed snapshot")
	}
	return nil
}

// verify reads the trailing checksum. Must be called after Read returned io.EOF.
func (br *blockReader) verify() error {
	var sum [4]byte
	if _, err := io.ReadFull(br.r, sum[:]); err != nil {
		return truncated(err)
	}
	if binary.LittleEndian.Uint32(sum[:]) != br.crc {
		return ErrCorrupted
	}
	return nil
}

func (br *blockReader) close() {
	if br.dec != nil {
		zstdDecoderPool.Put(br.dec)
		br.dec = nil
	}
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
