package validate

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/marmos91/assetflow/pkg/asset"
)

// ImageFileType checks the magic bytes against the MIME types the
// policy allows for images. Critical: the extension is untrusted and
// the decoders must never see a mislabeled file.
type ImageFileType struct{}

func (ImageFileType) Name() string   { return "ImageFileTypeValidator" }
func (ImageFileType) Critical() bool { return true }

func (v ImageFileType) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	mt, err := mimetype.DetectFile(ac.FilePath)
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeFileRead,
			fmt.Sprintf("cannot read file for type detection: %v", err))
	}

	// mimetype never reports "no match": unrecognized bytes come back as
	// text/plain or application/octet-stream. Anything outside the image
	// family is corrupt or mislabeled data, not a policy decision.
	detected := mt.String()
	if !strings.HasPrefix(detected, "image/") {
		return asset.Invalid(v.Name(), asset.CodeFileCorrupt,
			fmt.Sprintf("unknown file type %q", detected))
	}

	// A real image format the policy does not accept is a mismatch.
	if !policy.AllowsMime(asset.FileTypeImage, detected) {
		return asset.Invalid(v.Name(), asset.CodeMimeMismatch,
			fmt.Sprintf("detected type %q is not allowed for images", detected))
	}

	r := asset.Valid(v.Name())
	r.Metadata = map[string]any{"mime_type": detected}
	return r
}
