package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastCodec keeps key derivation cheap; the framing does not depend on the
// iteration count.
func fastCodec(opts ...Option) *Codec {
	return New(append([]Option{WithIterations(1000)}, opts...)...)
}

func TestEncryptEmpty(t *testing.T) {
	c := fastCodec()

	blob, err := c.Encrypt([]byte{}, "x")
	require.NoError(t, err)
	assert.Len(t, blob, 28)

	plain, ok := c.Decrypt(blob, "x")
	require.True(t, ok)
	assert.NotNil(t, plain)
	assert.Empty(t, plain)
}

func TestRoundTrip(t *testing.T) {
	c := fastCodec()

	tests := []struct {
		name string
		data []byte
	}{
		{"Nil", nil},
		{"Short", []byte("hello")},
		{"Block", bytes.Repeat([]byte{0xAB}, 16)},
		{"Large", bytes.Repeat([]byte("photo"), 200_000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := c.Encrypt(tt.data, "password")
			require.NoError(t, err)
			assert.Len(t, blob, NonceSize+len(tt.data)+TagSize)
			assert.Equal(t, SealedSize(len(tt.data)), len(blob))

			plain, ok := c.Decrypt(blob, "password")
			require.True(t, ok)
			assert.Equal(t, tt.data, plain)
		})
	}
}

func TestWrongPassword(t *testing.T) {
	c := fastCodec()
	blob, err := c.Encrypt([]byte("secret"), "p1")
	require.NoError(t, err)

	plain, ok := c.Decrypt(blob, "p2")
	assert.False(t, ok)
	assert.Nil(t, plain)
}

func TestMalformed(t *testing.T) {
	c := fastCodec()
	for _, n := range []int{0, 1, NonceSize, Overhead - 1} {
		_, ok := c.Decrypt(make([]byte, n), "x")
		assert.False(t, ok, "len=%d", n)
	}

	blob, err := c.Encrypt([]byte("truncate me"), "x")
	require.NoError(t, err)
	_, ok := c.Decrypt(blob[:len(blob)-1], "x")
	assert.False(t, ok)
}

func TestNonceFreshness(t *testing.T) {
	c := fastCodec()
	a, err := c.Encrypt([]byte("same"), "k")
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"), "k")
	require.NoError(t, err)
	assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
	assert.NotEqual(t, a, b)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultIterations, c.Iterations())

	k1 := c.DeriveKey("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	k2 := c.DeriveKey("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	defer k1.Destroy()
	defer k2.Destroy()
	assert.Equal(t, k1.Bytes(), k2.Bytes())
	assert.Len(t, k1.Bytes(), KeySize)

	k3 := c.DeriveKey("other")
	defer k3.Destroy()
	assert.NotEqual(t, k1.Bytes(), k3.Bytes())
}

func TestSaltChangesKey(t *testing.T) {
	a := fastCodec().DeriveKey("pw")
	b := fastCodec(WithSalt([]byte("another salt"))).DeriveKey("pw")
	assert.NotEqual(t, a.Bytes(), b.Bytes())
}

func TestKeyDestroy(t *testing.T) {
	c := fastCodec()
	k := c.DeriveKey("pw")
	blob, err := k.Seal(nil, []byte("data"))
	require.NoError(t, err)

	k.Destroy()
	assert.Equal(t, make([]byte, KeySize), k.Bytes())

	_, err = k.Seal(nil, []byte("data"))
	assert.ErrorIs(t, err, ErrKeyDestroyed)
	_, ok := k.Open(nil, blob)
	assert.False(t, ok)

	// Idempotent.
	k.Destroy()
}

func TestKeySealAppends(t *testing.T) {
	c := fastCodec()
	k := c.DeriveKey("pw")
	defer k.Destroy()

	prefix := []byte("hdr")
	out, err := k.Seal(prefix, []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, "hdr", string(out[:3]))

	plain, ok := k.Open(nil, out[3:])
	require.True(t, ok)
	assert.Equal(t, "body", string(plain))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandFailure(t *testing.T) {
	c := fastCodec(WithRand(failingReader{}))
	_, err := c.Encrypt([]byte("x"), "pw")
	assert.Error(t, err)
}

func TestBitFlipRejected(t *testing.T) {
	c := fastCodec()
	blob, err := c.Encrypt([]byte("tamper evident"), "pw")
	require.NoError(t, err)

	for i := 0; i < len(blob); i++ {
		for bit := 0; bit < 8; bit++ {
			mut := bytes.Clone(blob)
			mut[i] ^= 1 << bit
			_, ok := c.Decrypt(mut, "pw")
			require.False(t, ok, "byte %d bit %d", i, bit)
		}
	}
}
