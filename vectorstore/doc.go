// Package vectorstore implements the vector arena: a growable, thread-safe
// store of fixed-dimension float32 vectors keyed by content hash.
//
// All vectors live in one contiguous, cache-line aligned block of
// capacity × dimension floats. A hash → slot map and a slot → hash array
// track occupancy. Slots are only ever added or overwritten; there is no
// removal and no compaction.
//
// # Growth
//
// When the arena is full, Add allocates a block larger by a fixed step
// (1000 slots unless configured), bulk-copies the old contents and swaps
// the block under the write lock. Each growth bumps Generation.
//
// # Reading
//
// Get returns an owned copy that stays valid forever. View and ViewAll run
// a callback on the live block while holding the read lock, which keeps
// growth out for the callback's duration; the slices passed to the callback
// must not be retained after it returns.
//
// # Persistence
//
// EncodeVector and DecodeVector convert a vector to and from raw
// little-endian float32 bytes, the format exchanged with the metadata
// store. WriteSnapshot and ReadSnapshot persist a whole arena, optionally
// LZ4 or ZSTD compressed.
package vectorstore
