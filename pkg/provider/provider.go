// Package provider abstracts blob movement between the object store
// and the local filesystem the pipeline works on.
package provider

import "context"

// FileProvider is the storage surface the worker depends on. Keys are
// object-store keys; paths are local temp files.
type FileProvider interface {
	// GetFile downloads key to a fresh temp file, runs fn on it, and
	// unconditionally removes the file afterwards, panics included.
	GetFile(ctx context.Context, key string, fn func(path string) error) error

	// GetFileTemp downloads key to a temp file the caller owns. The
	// model pipeline needs this: rendering emits siblings next to the
	// source, so cleanup happens after the uploads.
	GetFileTemp(ctx context.Context, key string) (string, error)

	// StoreImage uploads a derived image to the public bucket.
	StoreImage(ctx context.Context, srcPath, destKey string) error

	// StoreProductFile uploads a validated original to the product
	// bucket.
	StoreProductFile(ctx context.Context, srcPath, destKey string) error
}
