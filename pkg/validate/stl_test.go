package validate

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// binaryHeader builds an 84-byte binary STL prefix declaring n triangles.
func binaryHeader(n uint32) []byte {
	h := make([]byte, 84)
	binary.LittleEndian.PutUint32(h[80:], n)
	return h
}

func TestDetectSTL(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		fileSize int64
		want     bool
	}{
		{
			name:     "ascii solid prefix",
			header:   []byte("solid cube\nfacet normal 0 0 1\n"),
			fileSize: 30,
			want:     true,
		},
		{
			name:     "ascii with leading whitespace",
			header:   []byte("  \r\n\tsolid part\n"),
			fileSize: 16,
			want:     true,
		},
		{
			name:     "binary exact declared size",
			header:   binaryHeader(4),
			fileSize: 84 + 50*4,
			want:     true,
		},
		{
			name:     "binary one byte short",
			header:   binaryHeader(4),
			fileSize: 84 + 50*4 - 1,
			want:     false,
		},
		{
			name:     "binary larger than declared",
			header:   binaryHeader(2),
			fileSize: 84 + 50*2 + 100,
			want:     true,
		},
		{
			name:     "short header is not stl",
			header:   []byte("MZ\x00\x01"),
			fileSize: 4,
			want:     false,
		},
		{
			name:     "plain text is not stl",
			header:   []byte("hello world, definitely not a mesh"),
			fileSize: 34,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSTL(tt.header, tt.fileSize))
		})
	}
}

// A binary STL whose comment block happens to start with "solid" must
// not be mistaken for ASCII: the NUL bytes force the binary path.
func TestDetectSTLBinaryWithSolidComment(t *testing.T) {
	h := binaryHeader(1)
	copy(h, "solid exported from cad tool")
	h[40] = 0

	assert.True(t, DetectSTL(h, 84+50))
	assert.False(t, DetectSTL(h, 84+49))
}
