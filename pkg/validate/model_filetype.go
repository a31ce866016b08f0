package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/assetflow/pkg/asset"
)

// ModelFileType verifies that a model upload really is an STL file:
// the extension must be .stl, the header must match one of the two STL
// layouts, and the policy must allow the detected MIME type. Critical:
// it keeps arbitrary binaries away from the mesh decoder.
type ModelFileType struct{}

func (ModelFileType) Name() string   { return "ModelFileTypeValidator" }
func (ModelFileType) Critical() bool { return true }

func (v ModelFileType) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	ext := strings.ToLower(filepath.Ext(ac.FilePath))
	if ext != ".stl" {
		return asset.Invalid(v.Name(), asset.CodeMimeMismatch,
			fmt.Sprintf("unsupported model extension %q, expected .stl", ext))
	}

	f, err := os.Open(ac.FilePath)
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot open file: %v", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot stat file: %v", err))
	}

	header := make([]byte, stlHeaderLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot read file header: %v", err))
	}
	header = header[:n]

	if !DetectSTL(header, info.Size()) {
		return asset.Invalid(v.Name(), asset.CodeMimeMismatch,
			"file does not match the STL format")
	}

	if !policy.AllowsMime(asset.FileTypeModel, "model/stl") {
		return asset.Invalid(v.Name(), asset.CodeMimeMismatch,
			"model/stl is not an allowed model type")
	}

	r := asset.Valid(v.Name())
	r.Metadata = map[string]any{"mime_type": "model/stl"}
	return r
}
