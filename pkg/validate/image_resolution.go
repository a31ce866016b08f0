package validate

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/marmos91/assetflow/pkg/asset"
)

// ImageResolution reads only the image header and enforces both the
// dimension caps and the decompression-bomb threshold. It runs in the
// standard phase: the critical file-type gate already guarantees a
// known format.
type ImageResolution struct{}

func (ImageResolution) Name() string   { return "ImageResolutionValidator" }
func (ImageResolution) Critical() bool { return false }

func (v ImageResolution) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	f, err := os.Open(ac.FilePath)
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot open image: %v", err))
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileCorrupt,
			fmt.Sprintf("cannot read image header: %v", err))
	}

	// The bomb check comes first: a forged header can declare absurd
	// dimensions, and we refuse it before anyone decodes pixels.
	pixels := int64(cfg.Width) * int64(cfg.Height)
	if pixels > policy.MaxImagePixels {
		return asset.Invalid(v.Name(), asset.CodeFileTooLarge,
			fmt.Sprintf("image declares %d pixels, exceeding the decompression limit of %d", pixels, policy.MaxImagePixels))
	}

	if cfg.Width > policy.MaxImageWidth || cfg.Height > policy.MaxImageHeight {
		return asset.Invalid(v.Name(), asset.CodeDimensionTooLarge,
			fmt.Sprintf("image is %dx%d, limit is %dx%d", cfg.Width, cfg.Height, policy.MaxImageWidth, policy.MaxImageHeight))
	}

	r := asset.Valid(v.Name())
	r.Metadata = map[string]any{"width": cfg.Width, "height": cfg.Height}
	return r
}
