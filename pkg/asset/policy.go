package asset

// FileType is the coarse job type carried in the ingress payload. It
// selects which pipeline the worker runs.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeModel FileType = "model"
)

// Policy is the immutable rule set every validator reads. One instance
// is shared by all in-flight jobs, so it must never be mutated after
// construction.
type Policy struct {
	// MaxFileSizeMB caps the on-disk size of any incoming file.
	MaxFileSizeMB int64

	// MaxModelVertices and MaxModelFaces bound mesh complexity. Faces
	// above MaxModelFaces are also refused by the renderer.
	MaxModelVertices int
	MaxModelFaces    int

	// AllowedFileTypes maps a FileType to the MIME types accepted for it.
	AllowedFileTypes map[FileType][]string

	// MaxImageWidth and MaxImageHeight bound declared image dimensions.
	MaxImageWidth  int
	MaxImageHeight int

	// MaxImagePixels is the decompression-bomb threshold: images whose
	// declared pixel count exceeds it are rejected before decoding.
	MaxImagePixels int64
}

// DefaultMaxImagePixels matches the widely used decompression-bomb
// threshold of common image libraries.
const DefaultMaxImagePixels = 178_956_970

// DefaultPolicy returns the production rule set.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxFileSizeMB:    100,
		MaxModelVertices: 1_000_000,
		MaxModelFaces:    500_000,
		AllowedFileTypes: map[FileType][]string{
			FileTypeImage: {"image/jpeg", "image/png", "image/webp"},
			FileTypeModel: {"model/stl"},
		},
		MaxImageWidth:  4096,
		MaxImageHeight: 4096,
		MaxImagePixels: DefaultMaxImagePixels,
	}
}

// MaxFileSizeBytes returns the size cap in bytes.
func (p *Policy) MaxFileSizeBytes() int64 {
	return p.MaxFileSizeMB * 1024 * 1024
}

// AllowsMime reports whether mime is acceptable for the given file type.
func (p *Policy) AllowsMime(ft FileType, mime string) bool {
	for _, m := range p.AllowedFileTypes[ft] {
		if m == mime {
			return true
		}
	}
	return false
}
