package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HashLength is the length of a hex-encoded ContentHash.
const HashLength = sha256.Size * 2

// ErrInvalidHash is returned when a string is not a valid ContentHash.
var ErrInvalidHash = errors.New("invalid content hash")

// ContentHash is the lowercase hex SHA-256 digest of an object's plaintext.
type ContentHash string

// Sum returns the ContentHash of data.
func Sum(data []byte) ContentHash {
	sum := sha256.Sum256(data)
	return ContentHash(hex.EncodeToString(sum[:]))
}

// Parse normalizes s to lowercase and validates it as a ContentHash.
func Parse(s string) (ContentHash, error) {
	h := ContentHash(strings.ToLower(strings.TrimSpace(s)))
	if err := h.Validate(); err != nil {
		return "", err
	}
	return h, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) ContentHash {
	h, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Validate reports whether h is a 64 character lowercase hex string.
func (h ContentHash) Validate() error {
	if len(h) != HashLength {
		return fmt.Errorf("%w: length %d", ErrInvalidHash, len(h))
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: bad character %q at %d", ErrInvalidHash, c, i)
		}
	}
	return nil
}

// Matches reports whether data hashes to h.
func (h ContentHash) Matches(data []byte) bool {
	return Sum(data) == h
}

// Shard returns the two nested shard directory names for h.
// h must be valid.
func (h ContentHash) Shard() (string, string) {
	return string(h[0]), string(h[1])
}

func (h ContentHash) String() string {
	return string(h)
}

// Short returns an abbreviated form for logs.
func (h ContentHash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Neighbor is a single entry of a similarity scan.
type Neighbor struct {
	// Hash is the identity of the stored vector.
	Hash ContentHash
	// Distance is the cosine distance to the query, in [0, 1].
	Distance float32
}
