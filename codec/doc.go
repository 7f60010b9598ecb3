// Package codec implements the at-rest encryption used for every stored blob.
//
// A blob is framed as
//
//	nonce (12 bytes) || ciphertext (len(plaintext) bytes) || tag (16 bytes)
//
// and sealed with AES-256-GCM. The key is derived from a password (in
// practice the object's content hash) with PBKDF2-HMAC-SHA256 over a fixed
// application salt, 100,000 iterations by default.
//
// # Failure model
//
// Decryption failure (wrong password, tampering, truncation) is an expected
// outcome and is reported as a false ok value rather than an error. Only
// encryption can return an error, and only when the system RNG fails.
//
// # Variants
//
//   - Encrypt / Decrypt: whole buffers.
//   - EncryptStream / DecryptStream: read a source once into a pooled buffer
//     and seal or open it in place.
//   - DecryptTo: decrypt into a pooled Buffer the caller releases.
//   - EncryptBatch / DecryptBatch: independent items fanned out across
//     GOMAXPROCS workers; result i always belongs to item i.
//
// A Codec is safe for concurrent use.
package codec
