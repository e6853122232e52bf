// Package media stores photos attached to submitted news.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/khlemanenka99-ai/news-portal/internal/config"
)

var (
	// ErrTooLarge is returned when a photo exceeds the configured size.
	ErrTooLarge = errors.New("photo too large")
	// ErrNotImage is returned for content that is not an image.
	ErrNotImage = errors.New("not an image")
)

// PhotoStore saves an uploaded photo and returns its public URL.
type PhotoStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// New builds the photo store selected by cfg.
func New(ctx context.Context, cfg config.MediaConfig, logger *slog.Logger) (PhotoStore, error) {
	switch cfg.Type {
	case "", "dir":
		return NewDirStore(cfg.Dir, cfg.BaseURL, cfg.MaxSize, logger)
	case "minio":
		return NewMinioStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported media type %q", cfg.Type)
	}
}

// ObjectName returns a fresh object name keeping the extension of name,
// or one derived from contentType.
func ObjectName(name, contentType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = extensionFor(contentType)
	}
	return uuid.NewString() + ext
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	exts, _ := mime.ExtensionsByType(contentType)
	if len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func checkPhoto(size, maxSize int64, contentType string) error {
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, maxSize)
	}
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	return nil
}

// DirStore writes photos to a local directory served under baseURL.
type DirStore struct {
	dir     string
	baseURL string
	maxSize int64
	logger  *slog.Logger
}

// NewDirStore creates dir if needed.
func NewDirStore(dir, baseURL string, maxSize int64, logger *slog.Logger) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DirStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		logger:  logger.With("component", "media_dir"),
	}, nil
}

func (s *DirStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if err := checkPhoto(size, s.maxSize, contentType); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	object := ObjectName(name, contentType)
	localPath := filepath.Join(s.dir, object)

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	reader := r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("write file: %w", err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		os.Remove(localPath)
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxSize)
	}

	s.logger.Debug("photo saved", "path", localPath, "size", written)
	return s.baseURL + "/" + object, nil
}
