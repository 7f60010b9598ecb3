package minio

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/wmlabtx/imgmzx/blobstore"
)

// Mirror implements blobstore.Mirror for MinIO and S3-compatible storage.
type Mirror struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.Mirror = (*Mirror)(nil)

// NewMirror creates a new MinIO mirror.
// rootPrefix is prepended to all keys (e.g. "mzx/").
func NewMirror(client *minio.Client, bucket, rootPrefix string) *Mirror {
	return &Mirror{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (m *Mirror) key(name string) string {
	return path.Join(m.prefix, name)
}

// Put uploads data under name.
func (m *Mirror) Put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

// Get downloads name.
func (m *Mirror) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

// Delete removes name. A missing key is not an error.
func (m *Mirror) Delete(ctx context.Context, name string) error {
	err := m.client.RemoveObject(ctx, m.bucket, m.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func translate(err error) error {
	if isNotFound(err) {
		return blobstore.ErrNotFound
	}
	return err
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
