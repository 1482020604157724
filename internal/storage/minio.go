package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediavault/internal/config"
)

// transient backend blips are retried with bounded attempts before
// surfacing ErrStorageFailure
const (
	maxAttempts  = 3
	retryBackoff = 100 * time.Millisecond
)

// minioStore implements ObjectStore using an S3-compatible backend (MinIO,
// AWS S3, etc.). It is safe for concurrent use by multiple goroutines.
type minioStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible object store backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if
// missing).
func NewMinIO(cfg config.MinIOConfig) (ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms := &minioStore{client: cli, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return ms, nil
}

// Put writes a blob under key, retrying transient failures. The reader is
// rebuilt from the byte slice on every attempt so a partially consumed
// upload cannot poison the retry.
func (m *minioStore) Put(ctx context.Context, key string, data []byte, opt PutOptions) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff << uint(attempt-1)):
			}
		}
		_, lastErr = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType:  opt.ContentType,
			UserMetadata: opt.Metadata,
		})
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: put %s: %v", ErrStorageFailure, key, lastErr)
}

// Get downloads a blob by key. A missing key maps to ErrObjectNotFound.
func (m *minioStore) Get(ctx context.Context, key string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff << uint(attempt-1)):
			}
		}
		obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(obj)
		obj.Close()
		if err == nil {
			return data, nil
		}
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: get %s: %v", ErrStorageFailure, key, lastErr)
}

// Delete removes a blob by key. Deleting a missing key is not an error.
func (m *minioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStorageFailure, key, err)
	}
	return nil
}
