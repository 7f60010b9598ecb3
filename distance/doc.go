// Package distance provides the vector distance used by the similarity index.
//
// Vectors are expected to be unit length; the embedding service normalizes
// them and the index never does. Cosine is therefore computed as
// clamp(1 - dot(x, y), 0, 1), which covers the cosine-similarity range
// actually observed between photographs.
//
// # Usage
//
//	d := distance.Cosine(a, b)
//	ok := distance.NormalizeL2InPlace(vec)
package distance
