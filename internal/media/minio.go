package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
)

// MinioStore puts photos into an S3-compatible bucket.
type MinioStore struct {
	client     *mclient.Client
	bucket     string
	publicBase string
	maxSize    int64
	logger     *slog.Logger
}

// NewMinioStore connects and fails fast when the bucket is missing.
func NewMinioStore(ctx context.Context, cfg config.MediaConfig, logger *slog.Logger) (*MinioStore, error) {
	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &MinioStore{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
		maxSize:    cfg.MaxSize,
		logger:     logger.With("component", "media_minio"),
	}, nil
}

func (s *MinioStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if err := checkPhoto(size, s.maxSize, contentType); err != nil {
		return "", err
	}

	object := ObjectName(name, contentType)
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucket, object, r, size, mclient.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", object, err)
	}

	s.logger.Debug("photo uploaded", "bucket", s.bucket, "object", object, "size", info.Size)
	return s.URL(object), nil
}

// URL returns the public address of object.
func (s *MinioStore) URL(object string) string {
	return s.publicBase + "/" + s.bucket + "/" + object
}
