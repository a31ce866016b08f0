package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/assetflow/internal/logger"
)

// Local is a filesystem-backed provider. Buckets are subdirectories of
// a root directory. Used by tests and local development.
type Local struct {
	incomingDir string
	publicDir   string
	productDir  string
}

// NewLocal builds a provider rooted at dir, creating the three bucket
// directories if needed.
func NewLocal(dir string) (*Local, error) {
	l := &Local{
		incomingDir: filepath.Join(dir, "incoming-files"),
		publicDir:   filepath.Join(dir, "public-files"),
		productDir:  filepath.Join(dir, "product-files"),
	}
	for _, d := range []string{l.incomingDir, l.publicDir, l.productDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create bucket dir %q: %w", d, err)
		}
	}
	return l, nil
}

func (l *Local) GetFile(ctx context.Context, key string, fn func(path string) error) error {
	path, err := l.download(key)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return fn(path)
}

func (l *Local) GetFileTemp(ctx context.Context, key string) (string, error) {
	return l.download(key)
}

func (l *Local) StoreImage(ctx context.Context, srcPath, destKey string) error {
	return l.store(l.publicDir, srcPath, destKey)
}

func (l *Local) StoreProductFile(ctx context.Context, srcPath, destKey string) error {
	return l.store(l.productDir, srcPath, destKey)
}

func (l *Local) download(key string) (string, error) {
	src, err := os.Open(filepath.Join(l.incomingDir, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("open incoming file %q: %w", key, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "asset-*"+filepath.Ext(key))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy %q to temp file: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	logger.Debug("file staged locally", logger.KeyKey, key, logger.KeyPath, tmp.Name())
	return tmp.Name(), nil
}

func (l *Local) store(bucketDir, srcPath, destKey string) error {
	dest := filepath.Join(bucketDir, filepath.FromSlash(destKey))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source %q: %w", srcPath, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination %q: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("copy to %q: %w", dest, err)
	}
	return out.Close()
}
