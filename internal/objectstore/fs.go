package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FS stores objects as files under Root/<bucket>/<key>.
type FS struct {
	root    string
	baseURL string
}

// NewFS returns a filesystem-backed client rooted at root.
func NewFS(root, publicBaseURL string) (*FS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("objectstore: fs root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root: %v", ErrStoreUnavailable, err)
	}
	if strings.TrimSpace(publicBaseURL) == "" {
		publicBaseURL = "file://" + filepath.ToSlash(root)
	}
	return &FS{root: root, baseURL: publicBaseURL}, nil
}

// Root returns the directory holding all buckets.
func (s *FS) Root() string { return s.root }

func (s *FS) EnsureBucket(_ context.Context, name string) error {
	dir, err := s.bucketDir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Put writes to a sibling temp file and renames it into place, so readers
// never observe a partial object.
func (s *FS) Put(ctx context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	dest, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		cleanup()
		return fmt.Errorf("%w: %s/%s: %w", ErrStoreWrite, bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func (s *FS) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return file, nil
}

func (s *FS) URLFor(bucket, key string) string {
	return JoinURL(s.baseURL, bucket, key)
}

func (s *FS) bucketDir(bucket string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("objectstore: invalid bucket %q", bucket)
	}
	return filepath.Join(s.root, bucket), nil
}

func (s *FS) objectPath(bucket, key string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	if cleaned == string(filepath.Separator) {
		return "", fmt.Errorf("objectstore: invalid key %q", key)
	}
	return filepath.Join(dir, cleaned), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
