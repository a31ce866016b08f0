package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Preload is a fixture provider backed by in-memory blobs. Downloads
// materialize real temp files so the pipeline exercises its normal
// filesystem path, and uploads are recorded for assertions.
type Preload struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// Uploaded maps "bucket/key" to the uploaded byte count.
	uploaded map[string]int64

	// FailStoreImage makes the next N StoreImage calls fail. Used to
	// exercise the transient retry path.
	FailStoreImage int

	temps []string
}

// NewPreload builds an empty fixture provider.
func NewPreload() *Preload {
	return &Preload{
		blobs:    make(map[string][]byte),
		uploaded: make(map[string]int64),
	}
}

// Add registers a blob under an incoming key.
func (p *Preload) Add(key string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blobs[key] = data
}

// AddFile registers the content of a local file under an incoming key.
func (p *Preload) AddFile(key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p.Add(key, data)
	return nil
}

func (p *Preload) GetFile(ctx context.Context, key string, fn func(path string) error) error {
	path, err := p.GetFileTemp(ctx, key)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return fn(path)
}

func (p *Preload) GetFileTemp(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	data, ok := p.blobs[key]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no blob preloaded for key %q", key)
	}

	tmp, err := os.CreateTemp("", "asset-*"+filepath.Ext(key))
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	p.mu.Lock()
	p.temps = append(p.temps, tmp.Name())
	p.mu.Unlock()
	return tmp.Name(), nil
}

// TempFiles returns every temp path handed out by GetFileTemp, in order.
// The caller owns checking whether they were cleaned up.
func (p *Preload) TempFiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.temps...)
}

func (p *Preload) StoreImage(ctx context.Context, srcPath, destKey string) error {
	p.mu.Lock()
	if p.FailStoreImage > 0 {
		p.FailStoreImage--
		p.mu.Unlock()
		return fmt.Errorf("injected store failure for %q", destKey)
	}
	p.mu.Unlock()
	return p.record("public-files", srcPath, destKey)
}

func (p *Preload) StoreProductFile(ctx context.Context, srcPath, destKey string) error {
	return p.record("product-files", srcPath, destKey)
}

func (p *Preload) record(bucket, srcPath, destKey string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("stat upload source %q: %w", srcPath, err)
	}
	p.mu.Lock()
	p.uploaded[bucket+"/"+destKey] = info.Size()
	p.mu.Unlock()
	return nil
}

// Uploaded reports whether bucket/key was stored and its size.
func (p *Preload) Uploaded(bucket, key string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.uploaded[bucket+"/"+key]
	return n, ok
}

// UploadedKeys returns every recorded "bucket/key".
func (p *Preload) UploadedKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.uploaded))
	for k := range p.uploaded {
		keys = append(keys, k)
	}
	return keys
}
