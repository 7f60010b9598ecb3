// Package testutil provides helpers for tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	vec := rng.UnitVector(512)
//	dup := rng.NearDuplicate(vec, 0.01)
//	photo := rng.Bytes(64 << 10)
//
// ExactBeam is the brute-force reference ranking.
package testutil
