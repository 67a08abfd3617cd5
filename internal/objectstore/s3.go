// Package objectstore wraps presigned-URL issuance against an S3-compatible
// backend. The service never proxies bundle bytes; clients talk to the
// object store directly with the URLs issued here.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// signTimeout bounds local signature generation; exceeding it maps to a 502
// at the handler layer.
const signTimeout = 2 * time.Second

// URLTTL is the lifetime of issued presigned URLs.
const URLTTL = 15 * time.Minute

// Signer issues presigned PUT/GET URLs for bundle objects. Implementations
// must be safe for concurrent use.
type Signer interface {
	PresignPut(ctx context.Context, key string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
}

// S3Signer signs against a configured bucket using static credentials and a
// custom base endpoint (MinIO and friends).
type S3Signer struct {
	bucket  string
	presign *s3.PresignClient
}

// NewS3Signer builds the presign client once at boot; credentials are
// read-only after construction.
func NewS3Signer(endpoint, bucket, region, accessKey, secretKey string) (*S3Signer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &S3Signer{bucket: bucket, presign: s3.NewPresignClient(client)}, nil
}

// PresignPut returns a time-limited upload URL for key.
func (s *S3Signer) PresignPut(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, signTimeout)
	defer cancel()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(URLTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PresignGet returns a time-limited download URL for key.
func (s *S3Signer) PresignGet(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, signTimeout)
	defer cancel()
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(URLTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// NewBundleKey generates a fresh opaque object key for an upload. The
// version suffix keeps successive captures from colliding even within one
// second.
func NewBundleKey(version uint64) string {
	d := time.Now().UTC()
	return fmt.Sprintf("bundles/%d/%02d/%02d/v%d-%s.zip",
		d.Year(), int(d.Month()), d.Day(), version+1, uuid.New())
}
