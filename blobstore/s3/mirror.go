package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wmlabtx/imgmzx/blobstore"
)

// Client is the subset of the S3 API used by Mirror. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithUploadConfig overrides DefaultUploadConfig.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(m *Mirror) {
		m.upload = cfg
	}
}

// Mirror implements blobstore.Mirror for S3.
type Mirror struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.Mirror = (*Mirror)(nil)

// NewMirror creates a new S3 mirror.
// rootPrefix is prepended to all keys (e.g. "mzx/").
func NewMirror(client Client, bucket, rootPrefix string, opts ...Option) *Mirror {
	m := &Mirror{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: DefaultUploadConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.uploader = newUploader(client, m.upload)
	return m
}

// Load creates a mirror using the default AWS configuration chain. A
// non-empty region overrides the region found there.
func Load(ctx context.Context, bucket, rootPrefix, region string, opts ...Option) (*Mirror, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return NewMirror(s3.NewFromConfig(cfg), bucket, rootPrefix, opts...), nil
}

func (m *Mirror) key(name string) string {
	return path.Join(m.prefix, name)
}

// Put uploads data under name.
func (m *Mirror) Put(ctx context.Context, name string, data []byte) error {
	key := m.key(name)
	if int64(len(data)) <= m.upload.PartSize {
		return putSmall(ctx, m.client, m.bucket, key, data, m.upload.EnableChecksum)
	}
	return putLarge(ctx, m.uploader, m.bucket, key, data, m.upload.EnableChecksum)
}

// Get downloads name.
func (m *Mirror) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, blobstore.ErrNotFound
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// Delete removes name. S3 treats a missing key as success.
func (m *Mirror) Delete(ctx context.Context, name string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(name)),
	})
	return err
}
