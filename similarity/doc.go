// Package similarity ranks every vector of an arena against a query.
//
// The search is exact: each call computes the distance from the query to
// every stored vector. The arena block is split into contiguous slot
// ranges that workers score in parallel, each writing only its own range of
// the output, so no locking is needed inside the fan-out. The arena read
// lock is held for the duration of the scan.
//
// Distance is clamp(1 - dot(q, v), 0, 1); vectors are assumed to be unit
// length.
package similarity
