// Package model defines core types used throughout imgmzx.
//
// # Identity
//
//   - ContentHash: lowercase hex SHA-256 of an object's plaintext. It is the
//     object's identity, the password its encryption key is derived from, and
//     the key into the vector arena.
//
// # Results
//
//   - Neighbor: a (hash, distance) pair produced by a similarity scan.
package model
