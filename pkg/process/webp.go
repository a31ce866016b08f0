// Package process holds the transforms that run after validation: the
// WebP image normalizer and the multi-angle model renderer.
package process

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/pkg/asset"
)

// webpQuality is the lossy encoding quality for derived images.
const webpQuality = 80

// WebPNormalizer re-encodes a validated image as WebP: the EXIF
// orientation is baked into the pixels, every other metadata block is
// dropped by the re-encode, and exotic color modes (CMYK, palette) end
// up as plain RGBA. The output lands next to the input as
// <stem>_clean.webp and the worker owns its upload and deletion.
type WebPNormalizer struct{}

func (WebPNormalizer) Name() string { return "WebPProcessor" }

func (p WebPNormalizer) Process(ac *asset.Context, policy *asset.Policy) asset.ProcessingResult[string] {
	orientation := readOrientation(ac.FilePath)

	f, err := os.Open(ac.FilePath)
	if err != nil {
		return asset.ProcessingResult[string]{ErrorMessage: fmt.Sprintf("cannot open image: %v", err)}
	}
	src, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return asset.ProcessingResult[string]{ErrorMessage: fmt.Sprintf("cannot decode image: %v", err)}
	}

	// Clone converts any source color model, including CMYK and palette
	// images, into NRGBA before we transform or encode.
	img := imaging.Clone(src)
	img = applyOrientation(img, orientation)

	outPath := cleanPath(ac.FilePath)
	out, err := os.Create(outPath)
	if err != nil {
		return asset.ProcessingResult[string]{ErrorMessage: fmt.Sprintf("cannot create output file: %v", err)}
	}
	if err := webp.Encode(out, img, &webp.Options{Quality: webpQuality}); err != nil {
		out.Close()
		os.Remove(outPath)
		return asset.ProcessingResult[string]{ErrorMessage: fmt.Sprintf("cannot encode webp: %v", err)}
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return asset.ProcessingResult[string]{ErrorMessage: fmt.Sprintf("cannot finish output file: %v", err)}
	}

	bounds := img.Bounds()
	logger.Debug("image normalized",
		logger.KeyTraceID, ac.TraceID,
		logger.KeyPath, outPath,
		"source_format", format,
		"orientation", orientation,
	)

	return asset.ProcessingResult[string]{
		Success: true,
		Output:  outPath,
		Metadata: map[string]any{
			"width":         bounds.Dx(),
			"height":        bounds.Dy(),
			"source_format": format,
		},
	}
}

// cleanPath derives the output filename: photo.jpg -> photo_clean.webp.
func cleanPath(in string) string {
	stem := strings.TrimSuffix(in, filepath.Ext(in))
	return stem + "_clean.webp"
}

// readOrientation returns the EXIF orientation tag, or 1 when the file
// has no usable EXIF block. Only JPEGs carry one in practice.
func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation bakes the EXIF orientation into the pixel data so
// the tag can be discarded with the rest of the metadata.
func applyOrientation(img *image.NRGBA, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
