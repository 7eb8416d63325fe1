package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ Store = (*S3Store)(nil)

// S3Store keeps blobs in an S3-compatible bucket under a fixed key prefix.
// Credentials come from the default AWS chain (env vars, shared config,
// instance role); a custom endpoint supports MinIO/R2-style deployments.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds a client from the default config chain. endpoint may be
// empty for real AWS; when set, path-style addressing is enabled, which is
// what S3-compatible servers expect.
func NewS3Store(ctx context.Context, bucket, region, endpoint string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket must not be empty")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: bucket, prefix: "qr_codes/"}, nil
}

func (s *S3Store) key(name string) string {
	return s.prefix + name
}

func (s *S3Store) Save(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: putting s3 object %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storage: getting s3 object %s: %w", name, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	// S3 DeleteObject succeeds for missing keys, so a double delete is
	// simply a no-op here — which is fine, the caller tolerates it.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("storage: deleting s3 object %s: %w", name, err)
	}
	return nil
}
