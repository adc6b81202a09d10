package repositories

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rohits-web03/dispatch/internal/config"
)

// BlobStore is the gateway to the external object store that holds file and
// avatar bytes. Put returns the URL persisted on the owning row; Delete
// accepts that URL (or a bare key).
type BlobStore interface {
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, urlOrKey string) error
}

// S3BlobStore talks to any S3-compatible endpoint (Cloudflare R2, MinIO, AWS).
type S3BlobStore struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3BlobStore initializes the S3 client using static credentials and a
// custom endpoint. With no endpoint configured the R2 endpoint for the
// account is used.
func NewS3BlobStore(cfg config.S3Config) *S3BlobStore {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = strings.TrimRight(endpoint, "/") + "/" + cfg.BucketName
	}

	return &S3BlobStore{
		client:        client,
		bucket:        cfg.BucketName,
		publicBaseURL: strings.TrimRight(base, "/"),
	}
}

// Put uploads body under a fresh random key that keeps the extension of name.
func (s *S3BlobStore) Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error) {
	key := ObjectKey(name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, urlOrKey string) error {
	key := KeyFromURL(urlOrKey)
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// PresignGet creates a presigned URL for downloading an object.
func (s *S3BlobStore) PresignGet(ctx context.Context, urlOrKey string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(KeyFromURL(urlOrKey)),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// ObjectKey returns a random object key that keeps the extension of name.
func ObjectKey(name string) string {
	ext := strings.ToLower(path.Ext(name))
	return uuid.NewString() + ext
}

// KeyFromURL extracts the object key (last path segment) from a stored URL.
func KeyFromURL(urlOrKey string) string {
	if urlOrKey == "" {
		return ""
	}
	if u, err := url.Parse(urlOrKey); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(urlOrKey)
}
