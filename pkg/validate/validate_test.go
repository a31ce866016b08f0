package validate

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/assetflow/pkg/asset"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeJPEG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

// writeForgedPNG writes a PNG signature plus a single well-formed IHDR
// chunk declaring the given dimensions. The header parses cleanly but
// there is no pixel data behind it.
func writeForgedPNG(t *testing.T, path string, w, h uint32) {
	t.Helper()

	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], 13)
	buf.Write(length[:])
	buf.WriteString("IHDR")
	buf.Write(ihdr)

	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// writeTetraSTL writes a binary STL tetrahedron: 4 vertices, 4 faces.
func writeTetraSTL(t *testing.T, path string) {
	t.Helper()

	a := [3]float32{0, 0, 0}
	b := [3]float32{1, 0, 0}
	c := [3]float32{0, 1, 0}
	d := [3]float32{0, 0, 1}
	faces := [][3][3]float32{
		{a, b, d},
		{b, c, d},
		{c, a, d},
		{a, c, b},
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(faces))))
	for _, f := range faces {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, [3]float32{}))
		for _, v := range f {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(0)))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func imageCtx(path string) *asset.Context {
	return asset.NewContext(path, "trace-1", asset.FileTypeImage)
}

func modelCtx(path string) *asset.Context {
	return asset.NewContext(path, "trace-1", asset.FileTypeModel)
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	policy := asset.DefaultPolicy()
	policy.MaxFileSizeMB = 1

	t.Run("under limit", func(t *testing.T) {
		path := filepath.Join(dir, "small.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))

		r := FileSize{}.Validate(imageCtx(path), policy)
		assert.True(t, r.IsValid)
		assert.Equal(t, int64(1024), r.Metadata["file_size_bytes"])
	})

	t.Run("over limit", func(t *testing.T) {
		path := filepath.Join(dir, "big.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, 1024*1024+1), 0o644))

		r := FileSize{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileTooLarge, r.ErrorCode)
	})

	t.Run("missing file", func(t *testing.T) {
		r := FileSize{}.Validate(imageCtx(filepath.Join(dir, "nope.bin")), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileNotFound, r.ErrorCode)
	})
}

func TestImageFileType(t *testing.T) {
	dir := t.TempDir()
	policy := asset.DefaultPolicy()

	t.Run("png accepted", func(t *testing.T) {
		path := filepath.Join(dir, "ok.png")
		writePNG(t, path, 4, 4)

		r := ImageFileType{}.Validate(imageCtx(path), policy)
		require.True(t, r.IsValid, r.ErrorMessage)
		assert.Equal(t, "image/png", r.Metadata["mime_type"])
	})

	t.Run("jpeg accepted", func(t *testing.T) {
		path := filepath.Join(dir, "ok.jpg")
		writeJPEG(t, path, 4, 4)

		r := ImageFileType{}.Validate(imageCtx(path), policy)
		require.True(t, r.IsValid, r.ErrorMessage)
		assert.Equal(t, "image/jpeg", r.Metadata["mime_type"])
	})

	t.Run("renamed text file is corrupt, not a mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "fake.jpg")
		require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0o644))

		r := ImageFileType{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileCorrupt, r.ErrorCode)
		assert.Contains(t, r.ErrorMessage, "unknown file type")
	})

	t.Run("recognized but disallowed format is a mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "anim.gif")
		gif := append([]byte("GIF89a"), 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x3b)
		require.NoError(t, os.WriteFile(path, gif, 0o644))

		r := ImageFileType{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeMimeMismatch, r.ErrorCode)
	})
}

func TestImageResolution(t *testing.T) {
	dir := t.TempDir()
	policy := asset.DefaultPolicy()

	t.Run("dimensions recorded", func(t *testing.T) {
		path := filepath.Join(dir, "ok.png")
		writePNG(t, path, 10, 20)

		r := ImageResolution{}.Validate(imageCtx(path), policy)
		require.True(t, r.IsValid, r.ErrorMessage)
		assert.Equal(t, 10, r.Metadata["width"])
		assert.Equal(t, 20, r.Metadata["height"])
	})

	t.Run("decompression bomb rejected before dimension check", func(t *testing.T) {
		path := filepath.Join(dir, "bomb.png")
		writeForgedPNG(t, path, 20000, 20000)

		r := ImageResolution{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileTooLarge, r.ErrorCode)
	})

	t.Run("oversized dimension rejected", func(t *testing.T) {
		path := filepath.Join(dir, "wide.png")
		writeForgedPNG(t, path, 5000, 100)

		r := ImageResolution{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeDimensionTooLarge, r.ErrorCode)
	})

	t.Run("unreadable header", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.png")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

		r := ImageResolution{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileCorrupt, r.ErrorCode)
	})
}

func TestImageIntegrity(t *testing.T) {
	dir := t.TempDir()
	policy := asset.DefaultPolicy()

	t.Run("intact image", func(t *testing.T) {
		path := filepath.Join(dir, "ok.png")
		writePNG(t, path, 8, 8)

		r := ImageIntegrity{}.Validate(imageCtx(path), policy)
		assert.True(t, r.IsValid, r.ErrorMessage)
	})

	t.Run("truncated jpeg", func(t *testing.T) {
		path := filepath.Join(dir, "cut.jpg")
		full := writeJPEG(t, path, 64, 64)
		require.NoError(t, os.WriteFile(path, full[:len(full)/2], 0o644))

		r := ImageIntegrity{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileCorrupt, r.ErrorCode)
	})

	t.Run("header with no pixel data", func(t *testing.T) {
		path := filepath.Join(dir, "hollow.png")
		writeForgedPNG(t, path, 16, 16)

		r := ImageIntegrity{}.Validate(imageCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeFileCorrupt, r.ErrorCode)
	})
}

func TestModelFileType(t *testing.T) {
	dir := t.TempDir()
	policy := asset.DefaultPolicy()

	t.Run("binary stl accepted", func(t *testing.T) {
		path := filepath.Join(dir, "ok.stl")
		writeTetraSTL(t, path)

		r := ModelFileType{}.Validate(modelCtx(path), policy)
		require.True(t, r.IsValid, r.ErrorMessage)
		assert.Equal(t, "model/stl", r.Metadata["mime_type"])
	})

	t.Run("ascii stl accepted", func(t *testing.T) {
		path := filepath.Join(dir, "ascii.stl")
		ascii := "solid tri\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nvertex 0 1 0\nendloop\nendfacet\nendsolid tri\n"
		require.NoError(t, os.WriteFile(path, []byte(ascii), 0o644))

		r := ModelFileType{}.Validate(modelCtx(path), policy)
		assert.True(t, r.IsValid, r.ErrorMessage)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(dir, "mesh.obj")
		writeTetraSTL(t, path)

		r := ModelFileType{}.Validate(modelCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeMimeMismatch, r.ErrorCode)
	})

	t.Run("stl extension with garbage content", func(t *testing.T) {
		path := filepath.Join(dir, "fake.stl")
		require.NoError(t, os.WriteFile(path, []byte("definitely not a mesh"), 0o644))

		r := ModelFileType{}.Validate(modelCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeMimeMismatch, r.ErrorCode)
	})
}

func TestMeshLoad(t *testing.T) {
	dir := t.TempDir()
	policy := asset.DefaultPolicy()

	t.Run("decodes and records stats", func(t *testing.T) {
		path := filepath.Join(dir, "tetra.stl")
		writeTetraSTL(t, path)

		r := MeshLoad{}.Validate(modelCtx(path), policy)
		require.True(t, r.IsValid, r.ErrorMessage)
		assert.Equal(t, 4, r.Metadata["vertices"])
		assert.Equal(t, 4, r.Metadata["faces"])
		assert.Equal(t, true, r.Metadata["watertight"])
	})

	t.Run("missing file", func(t *testing.T) {
		r := MeshLoad{}.Validate(modelCtx(filepath.Join(dir, "nope.stl")), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeMeshLoadFailure, r.ErrorCode)
	})
}

func TestModelComplexity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tetra.stl")
	writeTetraSTL(t, path)

	t.Run("within limits", func(t *testing.T) {
		r := ModelComplexity{}.Validate(modelCtx(path), asset.DefaultPolicy())
		require.True(t, r.IsValid, r.ErrorMessage)
		assert.Equal(t, 4, r.Metadata["vertices"])
		assert.Equal(t, 4, r.Metadata["faces"])
	})

	t.Run("too many faces", func(t *testing.T) {
		policy := asset.DefaultPolicy()
		policy.MaxModelFaces = 3

		r := ModelComplexity{}.Validate(modelCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeModelTooComplex, r.ErrorCode)
	})

	t.Run("too many vertices", func(t *testing.T) {
		policy := asset.DefaultPolicy()
		policy.MaxModelVertices = 3

		r := ModelComplexity{}.Validate(modelCtx(path), policy)
		assert.False(t, r.IsValid)
		assert.Equal(t, asset.CodeModelTooComplex, r.ErrorCode)
	})
}

func TestValidatorSets(t *testing.T) {
	images := ForImages()
	require.Len(t, images, 4)
	assert.Equal(t, "FileSizeValidator", images[0].Name())
	assert.Equal(t, "ImageFileTypeValidator", images[1].Name())
	assert.True(t, images[0].Critical())
	assert.True(t, images[1].Critical())
	assert.False(t, images[2].Critical())
	assert.False(t, images[3].Critical())

	models := ForModels()
	require.Len(t, models, 4)
	assert.Equal(t, "ModelFileTypeValidator", models[1].Name())
	assert.Equal(t, "MeshLoadValidator", models[2].Name())
	assert.True(t, models[2].Critical())
	assert.False(t, models[3].Critical())
}
