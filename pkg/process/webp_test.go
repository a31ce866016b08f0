package process

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/assetflow/pkg/asset"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 17), G: uint8(y * 31), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestWebPNormalizer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	writeTestPNG(t, path, 12, 8)

	ac := asset.NewContext(path, "trace-1", asset.FileTypeImage)
	res := WebPNormalizer{}.Process(ac, asset.DefaultPolicy())
	require.True(t, res.Success, res.ErrorMessage)

	assert.Equal(t, filepath.Join(dir, "photo_clean.webp"), res.Output)
	assert.Equal(t, 12, res.Metadata["width"])
	assert.Equal(t, 8, res.Metadata["height"])
	assert.Equal(t, "png", res.Metadata["source_format"])

	// The output must be a decodable WebP with the source dimensions.
	f, err := os.Open(res.Output)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := webp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 12, decoded.Bounds().Dx())
	assert.Equal(t, 8, decoded.Bounds().Dy())
}

func TestWebPNormalizerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	ac := asset.NewContext(path, "trace-1", asset.FileTypeImage)
	res := WebPNormalizer{}.Process(ac, asset.DefaultPolicy())
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "cannot decode image")
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "/tmp/photo_clean.webp", cleanPath("/tmp/photo.jpg"))
	assert.Equal(t, "/tmp/scan_clean.webp", cleanPath("/tmp/scan.png"))
	assert.Equal(t, "/tmp/noext_clean.webp", cleanPath("/tmp/noext"))
}

func TestApplyOrientation(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))

	t.Run("rotation swaps dimensions", func(t *testing.T) {
		out := applyOrientation(src, 6)
		assert.Equal(t, 1, out.Bounds().Dx())
		assert.Equal(t, 2, out.Bounds().Dy())
	})

	t.Run("flip keeps dimensions", func(t *testing.T) {
		out := applyOrientation(src, 2)
		assert.Equal(t, 2, out.Bounds().Dx())
		assert.Equal(t, 1, out.Bounds().Dy())
	})

	t.Run("default orientation is identity", func(t *testing.T) {
		assert.Same(t, src, applyOrientation(src, 1))
	})
}

func TestReadOrientationFallsBackToOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.png")
	writeTestPNG(t, path, 2, 2)

	assert.Equal(t, 1, readOrientation(path))
	assert.Equal(t, 1, readOrientation(filepath.Join(t.TempDir(), "missing.jpg")))
}
