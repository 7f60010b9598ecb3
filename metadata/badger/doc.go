// Package badger implements metadata.Store on BadgerDB v4.
//
// Records are msgpack-encoded under "rec/<hash>". Vectors live under
// "vec/<hash>" as raw little-endian float32, the same encoding the vector
// arena uses, so a vector update never rewrites the record.
package badger
