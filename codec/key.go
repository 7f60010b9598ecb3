package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrKeyDestroyed is returned when a destroyed Key is used for sealing.
var ErrKeyDestroyed = errors.New("codec: key destroyed")

// Key is a derived AES-256-GCM key. Call Destroy when done with it.
type Key struct {
	material [KeySize]byte
	aead     cipher.AEAD
	rand     io.Reader
}

// DeriveKey derives the key for password. The result is deterministic for a
// given password, salt and iteration count.
func (c *Codec) DeriveKey(password string) *Key {
	pw := []byte(password)
	derived := pbkdf2.Key(pw, c.salt, c.iterations, KeySize, sha256.New)
	clear(pw)

	k := &Key{rand: c.rand}
	copy(k.material[:], derived)
	clear(derived)

	// Neither call can fail for a 32 byte key and the standard nonce size.
	block, err := aes.NewCipher(k.material[:])
	if err != nil {
		panic(fmt.Sprintf("codec: aes: %v", err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(fmt.Sprintf("codec: gcm: %v", err))
	}
	k.aead = aead
	return k
}

// Bytes returns a copy of the raw key material.
func (k *Key) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, k.material[:])
	return out
}

// Destroy wipes the key material. Safe to call more than once.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	clear(k.material[:])
	k.aead = nil
}

// Seal appends nonce||ciphertext||tag for plaintext to dst.
func (k *Key) Seal(dst, plaintext []byte) ([]byte, error) {
	if k.aead == nil {
		return nil, ErrKeyDestroyed
	}
	ret, out := sliceForAppend(dst, NonceSize+len(plaintext)+TagSize)
	nonce := out[:NonceSize]
	if _, err := io.ReadFull(k.rand, nonce); err != nil {
		return nil, fmt.Errorf("codec: nonce: %w", err)
	}
	k.aead.Seal(out[NonceSize:NonceSize], nonce, plaintext, nil)
	return ret, nil
}

// Open appends the plaintext of blob to dst. It reports false on malformed
// input, authentication failure or a destroyed key.
func (k *Key) Open(dst, blob []byte) ([]byte, bool) {
	if k.aead == nil || len(blob) < Overhead {
		return nil, false
	}
	out, err := k.aead.Open(dst, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, false
	}
	if out == nil {
		out = []byte{}
	}
	return out, true
}

// sealInPlace seals buf[NonceSize:NonceSize+n] where buf has room for the
// nonce in front and the tag behind. It returns the sealed frame.
func (k *Key) sealInPlace(buf []byte, n int) ([]byte, error) {
	if k.aead == nil {
		return nil, ErrKeyDestroyed
	}
	nonce := buf[:NonceSize]
	if _, err := io.ReadFull(k.rand, nonce); err != nil {
		return nil, fmt.Errorf("codec: nonce: %w", err)
	}
	plaintext := buf[NonceSize : NonceSize+n]
	sealed := k.aead.Seal(plaintext[:0], nonce, plaintext, nil)
	return buf[:NonceSize+len(sealed)], nil
}

// openInPlace decrypts blob over its own ciphertext bytes.
func (k *Key) openInPlace(blob []byte) ([]byte, bool) {
	if k.aead == nil || len(blob) < Overhead {
		return nil, false
	}
	ct := blob[NonceSize:]
	out, err := k.aead.Open(ct[:0], blob[:NonceSize], ct, nil)
	if err != nil {
		return nil, false
	}
	return out, true
}

func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
