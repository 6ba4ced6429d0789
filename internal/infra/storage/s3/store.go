package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImageStore hands out presigned upload/download URLs for listing images and
// removes objects when a listing is deleted.
type ImageStore interface {
	PresignUpload(ctx context.Context, ownerID, filename string) (key string, uploadURL string, err error)
	PresignGet(ctx context.Context, key string) (string, error)
	ObjectURL(key string) string
	Remove(ctx context.Context, key string) error
}

// Store wraps a MinIO/S3 client.
type Store struct {
	bucket         string
	publicBaseURL  string
	presignTTL     time.Duration
	client         *minio.Client
	bucketInitOnce sync.Once
	bucketInitErr  error
}

type Options struct {
	Endpoint      string
	PublicBaseURL string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignTTL    time.Duration
}

// NewStore configures the image store against the provided endpoint and credentials.
func NewStore(opts Options) (*Store, error) {
	cleanEndpoint := strings.TrimSpace(opts.Endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	client, err := minio.New(parseEndpoint(cleanEndpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	base := strings.TrimSpace(opts.PublicBaseURL)
	if base == "" {
		base = cleanEndpoint
	}
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Store{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		presignTTL:    ttl,
		client:        client,
	}, nil
}

// PresignUpload mints an object key under the owner's prefix and returns a
// presigned PUT URL for it.
func (s *Store) PresignUpload(ctx context.Context, ownerID, filename string) (string, string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", "", err
	}
	key := objectKey(ownerID, filename)
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.presignTTL)
	if err != nil {
		return "", "", fmt.Errorf("s3: presign upload: %w", err)
	}
	return key, u.String(), nil
}

// PresignGet returns a presigned GET URL. The bucket is publicly readable, so
// this matters only for deployments where the policy is tightened.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign get: %w", err)
	}
	return u.String(), nil
}

// ObjectURL builds the direct public URL for a stored object.
func (s *Store) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, strings.TrimLeft(key, "/"))
}

func (s *Store) Remove(ctx context.Context, key string) error {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return errors.New("s3: object key is required")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3: remove object: %w", err)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.bucketInitOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		if err := s.allowPublicRead(ctx); err != nil {
			s.bucketInitErr = err
		}
	})
	return s.bucketInitErr
}

func (s *Store) allowPublicRead(ctx context.Context) error {
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, s.bucket)
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("s3: set bucket policy: %w", err)
	}
	return nil
}

func objectKey(ownerID, filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	return fmt.Sprintf("listings/%s/%s%s", strings.TrimSpace(ownerID), uuid.NewString(), ext)
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

// NoopStore fails fast when object storage is unavailable.
type NoopStore struct{}

func (NoopStore) PresignUpload(context.Context, string, string) (string, string, error) {
	return "", "", errors.New("image storage is not configured")
}

func (NoopStore) PresignGet(context.Context, string) (string, error) {
	return "", errors.New("image storage is not configured")
}

func (NoopStore) ObjectURL(string) string { return "" }

func (NoopStore) Remove(context.Context, string) error { return nil }

var _ ImageStore = (*Store)(nil)
var _ ImageStore = NoopStore{}
