package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sahedhasan999/permitdraft-hero-sub000/blob"
	"github.com/sahedhasan999/permitdraft-hero-sub000/config"
)

func init() {
	blob.Register(blob.Plugin{
		Name:   "s3",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this
// package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (blob.BlobStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 blob store: PERMITDRAFT_S3_BUCKET is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 blob store: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})
	return New(client, cfg), nil
}

// New wraps an S3 client as a BlobStore. Exposed so tests and callers with an
// already-configured client can construct the store directly.
func New(client *s3.Client, cfg *config.Config) *S3BlobStore {
	return &S3BlobStore{
		client:           client,
		bucket:           cfg.S3Bucket,
		prefix:           strings.Trim(strings.TrimSpace(cfg.S3Prefix), "/"),
		region:           cfg.S3Region,
		externalEndpoint: strings.TrimSpace(cfg.S3ExternalEndpoint),
	}
}

type S3BlobStore struct {
	client           *s3.Client
	bucket           string
	prefix           string
	region           string
	externalEndpoint string
}

// s3Key returns the actual object key for a storage key, applying the prefix
// if set. The prefix is applied at access time and never persisted.
func (s *S3BlobStore) s3Key(key string) string {
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

func (s *S3BlobStore) Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) (string, error) {
	s3Key := s.s3Key(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &s3Key,
		Body:          data,
		ContentLength: aws.Int64(size),
		ContentType:   &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 blob store: put object: %w", err)
	}
	return s.objectURL(s3Key), nil
}

// objectURL builds the durable fetch URL for an object. When an external
// endpoint is configured (reverse proxy, MinIO) the URL is path-style under
// that endpoint; otherwise it is the virtual-hosted AWS form.
func (s *S3BlobStore) objectURL(s3Key string) string {
	escaped := escapeKey(s3Key)
	if s.externalEndpoint != "" {
		return strings.TrimRight(s.externalEndpoint, "/") + "/" + s.bucket + "/" + escaped
	}
	if s.region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ blob.BlobStore = (*S3BlobStore)(nil)
