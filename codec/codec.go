package codec

import (
	"crypto/rand"
	"io"
	"runtime"
)

const (
	// NonceSize is the size of the random GCM nonce.
	NonceSize = 12
	// TagSize is the size of the GCM authentication tag.
	TagSize = 16
	// KeySize is the size of the derived AES-256 key.
	KeySize = 32
	// Overhead is the number of bytes a sealed blob adds to its plaintext.
	Overhead = NonceSize + TagSize

	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 100_000
)

// DefaultSalt is the fixed application-wide PBKDF2 salt.
var DefaultSalt = []byte{
	0x49, 0x6d, 0x67, 0x4d, 0x7a, 0x78, 0x2e, 0x76,
	0x31, 0x9e, 0x03, 0x5c, 0xd7, 0x41, 0xa8, 0x2b,
}

// Codec encrypts and decrypts blobs.
type Codec struct {
	iterations int
	salt       []byte
	rand       io.Reader
	workers    int
}

// Option configures a Codec.
type Option func(*Codec)

// WithIterations sets the PBKDF2 iteration count. Values below 1 keep the default.
func WithIterations(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithSalt sets the PBKDF2 salt. An empty salt keeps the default.
func WithSalt(salt []byte) Option {
	return func(c *Codec) {
		if len(salt) > 0 {
			c.salt = append([]byte(nil), salt...)
		}
	}
}

// WithRand sets the nonce source. Defaults to crypto/rand.
func WithRand(r io.Reader) Option {
	return func(c *Codec) {
		if r != nil {
			c.rand = r
		}
	}
}

// WithWorkers bounds the batch fan-out. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		iterations: DefaultIterations,
		salt:       DefaultSalt,
		rand:       rand.Reader,
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Iterations returns the configured PBKDF2 iteration count.
func (c *Codec) Iterations() int { return c.iterations }

// SealedSize returns the size of a blob sealing n plaintext bytes.
func SealedSize(n int) int { return n + Overhead }

// Encrypt seals plaintext under a key derived from password.
func (c *Codec) Encrypt(plaintext []byte, password string) ([]byte, error) {
	k := c.DeriveKey(password)
	defer k.Destroy()
	return k.Seal(nil, plaintext)
}

// Decrypt opens a blob sealed under password. It returns false if the blob
// is malformed or fails authentication.
func (c *Codec) Decrypt(blob []byte, password string) ([]byte, bool) {
	if len(blob) < Overhead {
		return nil, false
	}
	k := c.DeriveKey(password)
	defer k.Destroy()
	return k.Open(nil, blob)
}
