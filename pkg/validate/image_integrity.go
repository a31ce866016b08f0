package validate

import (
	"fmt"
	"image"
	"os"

	"github.com/marmos91/assetflow/pkg/asset"
)

// ImageIntegrity fully decodes the image to catch truncation and
// structural corruption. It reads the whole file, so it runs in the
// parallel standard phase.
type ImageIntegrity struct{}

func (ImageIntegrity) Name() string   { return "ImageIntegrityValidator" }
func (ImageIntegrity) Critical() bool { return false }

func (v ImageIntegrity) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	f, err := os.Open(ac.FilePath)
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot open image: %v", err))
	}
	defer f.Close()

	if _, _, err := image.Decode(f); err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileCorrupt,
			"image file is corrupt, truncated, or unreadable")
	}

	return asset.Valid(v.Name())
}
