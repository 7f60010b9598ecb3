// Package s3 provides an Amazon S3 implementation of blobstore.Mirror.
//
// # Usage
//
//	mirror, err := s3.Load(ctx, "my-bucket", "mzx/", "eu-central-1")
//	if err != nil {
//	    return err
//	}
//	store, err := blobstore.New(cfg, codec.New(), blobstore.WithMirror(mirror))
//
// Credentials and region come from the default AWS configuration chain.
//
// # Features
//
//   - CRC32C integrity checks on small uploads
//   - Multipart uploads for large objects
//   - Configurable prefix for sharing a bucket
package s3
