package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/postersnap/postersnap/internal/config"
)

const (
	svgContentType = "image/svg+xml"
	presignExpiry  = 24 * time.Hour
)

// Storage persists rendered poster pages in S3-compatible object storage.
// Deployments without object storage skip it and ship pages as inline data
// URIs instead.
type Storage struct {
	client *minio.Client
	bucket string
}

// New creates a storage client and ensures the artifact bucket exists.
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{client: client, bucket: cfg.BucketName}, nil
}

// PutPage uploads one rendered page and returns a presigned URL for it.
// Pages are keyed by poster id and page index so re-renders overwrite
// cleanly.
func (s *Storage) PutPage(ctx context.Context, posterID string, page int, data []byte) (string, error) {
	objectName := pageObjectName(posterID, page)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: svgContentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload page: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign page URL: %w", err)
	}

	return presigned.String(), nil
}

// Health verifies the bucket is reachable.
func (s *Storage) Health(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func pageObjectName(posterID string, page int) string {
	return fmt.Sprintf("posters/%s/page-%d.svg", posterID, page)
}
