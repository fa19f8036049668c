package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"clipforge/internal/config"
)

var (
	// ErrObjectNotFound indicates the requested bucket/key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrStoreWrite indicates an object could not be written.
	ErrStoreWrite = errors.New("object store write failed")
	// ErrStoreUnavailable indicates the store could not be reached.
	ErrStoreUnavailable = errors.New("object store unavailable")
)

// Client is the narrow object store contract used by the pipeline.
type Client interface {
	EnsureBucket(ctx context.Context, name string) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	URLFor(bucket, key string) string
}

// SourceKey is the key for an uploaded source video.
func SourceKey(projectID, filename string) string {
	return fmt.Sprintf("%s/source/%s", projectID, filename)
}

// AudioKey is the key for a project's extracted audio track.
func AudioKey(projectID string) string {
	return fmt.Sprintf("%s/audio/audio.wav", projectID)
}

// PreviewKey is the key for a clip's preview render.
func PreviewKey(projectID, clipID string) string {
	return fmt.Sprintf("%s/previews/%s.mp4", projectID, clipID)
}

// JoinURL builds {base}/{bucket}/{key}.
func JoinURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + path.Join(bucket, key)
}

// New builds the backend selected by configuration.
func New(cfg *config.Config) (Client, error) {
	if cfg == nil {
		return nil, errors.New("objectstore: config is required")
	}
	switch cfg.ObjectStore.Backend {
	case config.ObjectStoreS3:
		return NewS3(S3Options{
			Endpoint:      cfg.ObjectStore.Endpoint,
			Region:        cfg.ObjectStore.Region,
			AccessKey:     cfg.ObjectStore.AccessKey,
			SecretKey:     cfg.ObjectStore.SecretKey,
			UseSSL:        cfg.ObjectStore.UseSSL,
			PublicBaseURL: cfg.ObjectStore.PublicBaseURL,
		})
	case config.ObjectStoreFS, "":
		return NewFS(cfg.ObjectStore.Root, cfg.ObjectStore.PublicBaseURL)
	default:
		return nil, fmt.Errorf("objectstore: unsupported backend %q", cfg.ObjectStore.Backend)
	}
}

// Download copies bucket/key into dest, creating parent directories.
func Download(ctx context.Context, c Client, bucket, key, dest string) error {
	rc, err := c.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return out.Close()
}

// Upload streams the file at src to bucket/key.
func Upload(ctx context.Context, c Client, bucket, key, src, contentType string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open upload source: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat upload source: %w", err)
	}
	return c.Put(ctx, bucket, key, file, info.Size(), contentType)
}
