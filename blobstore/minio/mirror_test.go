package minio

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmlabtx/imgmzx/blobstore"
)

func TestTranslate(t *testing.T) {
	for _, code := range []string{"NoSuchKey", "NotFound"} {
		err := translate(minio.ErrorResponse{Code: code})
		assert.ErrorIs(t, err, blobstore.ErrNotFound, code)
	}

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.Equal(t, other, translate(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain))
}

func TestKey(t *testing.T) {
	m := NewMirror(nil, "b", "mzx/")
	assert.Equal(t, "mzx/a/b/ab.mzx", m.key("a/b/ab.mzx"))

	m = NewMirror(nil, "b", "")
	assert.Equal(t, "a/b/ab.mzx", m.key("a/b/ab.mzx"))
}

// TestMirror_Integration requires a running MinIO instance.
// Skip if not available.
func TestMirror_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	bucket := "test-imgmzx"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	m := NewMirror(client, bucket, fmt.Sprintf("test-%d/", time.Now().UnixNano()))

	_, err = m.Get(ctx, "a/b/missing.mzx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	data := []byte("sealed bytes")
	require.NoError(t, m.Put(ctx, "a/b/ab.mzx", data))

	got, err := m.Get(ctx, "a/b/ab.mzx")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, m.Delete(ctx, "a/b/ab.mzx"))
	require.NoError(t, m.Delete(ctx, "a/b/ab.mzx"))

	_, err = m.Get(ctx, "a/b/ab.mzx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
