// Package engine keeps each object's cached nearest unseen neighbor fresh.
//
// The Engine ties the blob store, the vector arena, the similarity index,
// the metadata store and the embedding service together. Refresh embeds an
// object when its vector is missing, ranks the arena against it and writes
// the new neighbor back only when it moved by at least Config.Threshold, so
// floating-point jitter between identical recomputations never causes a
// metadata write.
//
// Objects whose blob can no longer be read are lost: their record is
// deleted and their arena slot tombstoned so no other object is pointed at
// them again. The arena itself never removes vectors.
package engine
