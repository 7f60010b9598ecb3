// Package minio provides a blobstore.Mirror backed by MinIO or any other
// S3-compatible object storage.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mirror := minioblob.NewMirror(client, "photos", "mzx/")
//	store, err := blobstore.New(cfg, codec.New(), blobstore.WithMirror(mirror))
//
// Objects are uploaded exactly as stored on disk, already encrypted, so the
// bucket needs no server-side encryption to keep the photos private.
package minio
