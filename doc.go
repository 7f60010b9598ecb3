// Package imgmzx is an encrypted, content-addressed photo store with exact
// near-duplicate search.
//
// Every photo is stored under the SHA-256 of its plaintext, sealed with
// AES-256-GCM under a key derived from that hash, and written to a primary
// and a backup volume. Reads verify the decrypted bytes against the hash and
// repair a damaged copy from the other one, or from an optional S3 or MinIO
// mirror. A fixed-length feature vector per photo lives in an in-memory
// arena; Refresh ranks the whole arena against one photo and records its
// closest neighbor that the user has not yet seen.
//
// # Quick Start
//
//	cfg := imgmzx.DefaultConfig()
//	cfg.Root, cfg.Backup, cfg.Archive = "/mnt/a/photos", "/mnt/b/photos", "/mnt/a/archive"
//
//	db, err := imgmzx.Open(ctx, cfg, imgmzx.WithEmbedder(embedder))
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	hash, _ := db.Put(ctx, jpeg)
//	out, _ := db.Refresh(ctx, hash)
//	fmt.Println(out.Next, out.Distance)
//
// # Configuration
//
// Config can be filled in code or loaded with LoadConfig from a TOML, YAML
// or JSON file. Every key can be overridden by an IMGMZX_ environment
// variable, for example IMGMZX_ROOT or IMGMZX_MIRROR_BUCKET.
//
// # Persistence
//
// Metadata records live in Badger when MetadataDir is set and in memory
// otherwise. When SnapshotPath is set, Close writes the arena to a
// compressed snapshot and Open restores it, so vectors need not be
// recomputed.
//
// # Observability
//
// Pass WithLogger for structured slog output and WithMetricsCollector to
// receive per-operation metrics.
package imgmzx
