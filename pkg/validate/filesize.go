// Package validate holds the concrete validators the image and model
// pipelines are assembled from.
package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/marmos91/assetflow/pkg/asset"
)

// FileSize rejects files above the configured size cap before anything
// tries to decode them. Critical: it runs before every other check.
type FileSize struct{}

func (FileSize) Name() string   { return "FileSizeValidator" }
func (FileSize) Critical() bool { return true }

func (v FileSize) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	info, err := os.Stat(ac.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return asset.Invalid(v.Name(), asset.CodeFileNotFound,
				fmt.Sprintf("file not found: %s", ac.FilePath))
		}
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot stat file: %v", err))
	}

	if info.Size() > policy.MaxFileSizeBytes() {
		return asset.Invalid(v.Name(), asset.CodeFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d MB", info.Size(), policy.MaxFileSizeMB))
	}

	r := asset.Valid(v.Name())
	r.Metadata = map[string]any{"file_size_bytes": info.Size()}
	return r
}
