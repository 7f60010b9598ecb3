// Package blobstore persists encrypted photographs under their content hash.
//
// Every object is stored twice, under a primary root and a backup root,
// using the same shard layout:
//
//	<root>/<hash[0]>/<hash[1]>/<hash>.<ext>
//
// Each file holds nonce ‖ ciphertext ‖ tag, sealed with the key derived
// from the hash itself. A Read verifies both the tag and that the plaintext
// hashes back to the requested hash.
//
// # Write protocol
//
// An existing file is first renamed to <path>.original (stage), the new
// file is written, and only then is the staged file moved to the trash
// (commit). The backup is replaced the same way by copying the freshly
// written primary. Any failure renames staged files back into place
// (rollback) before the error is returned, so a failed write never leaves a
// path without the valid copy it had before.
//
// # Read and self-heal
//
// Read tries the primary, then the backup, then the optional offsite
// Mirror. A copy that verifies repairs the copies that did not.
//
// # Delete
//
// Delete never erases: the primary (or, failing that, the backup) moves to
// <archive>/<yyyy-MM-dd>/<HHmmss>.<hash>.<ext> and any remaining backup to
// <trash>/<yyyy-MM-dd>/<uuid>.<hash>.<ext>.
//
// All operations of one Store serialize on a single mutex.
package blobstore
