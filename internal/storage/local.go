package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements Storage on the local filesystem. Objects live
// under a root directory with their key as the relative path. It backs
// tests and single-host deployments; it does not presign.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a LocalStorage rooted at root.
// If root is empty, a directory under os.TempDir() is used.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "clipforge-objects")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the storage root directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Put stores an object under key, creating intermediate directories.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(dst) // #nosec G304 - key is produced by upload negotiation
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write object: %w", err)
	}
	return f.Close()
}

// Fetch copies the object at key into a new file under dstDir.
func (s *LocalStorage) Fetch(ctx context.Context, key, dstDir string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	src := filepath.Join(s.root, filepath.FromSlash(key))
	in, err := os.Open(src) // #nosec G304 - key is produced by upload negotiation
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("open object: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.CreateTemp(dstDir, "src_*__"+filepath.Base(key))
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}

	name := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close download file: %w", err)
	}
	return name, nil
}
