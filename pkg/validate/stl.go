package validate

import (
	"bytes"
	"encoding/binary"
)

// stlHeaderLen is how much of the file the detector inspects.
const stlHeaderLen = 2048

// binarySTLHeader is the fixed 80-byte comment block that precedes the
// 4-byte little-endian triangle count in a binary STL.
const binarySTLHeader = 80

// DetectSTL reports whether a file whose first bytes are header (up to
// 2048 bytes) and whose total size is fileSize is an STL model.
//
// ASCII layout: after left-stripping whitespace the header starts with
// the token "solid", and the first 80 bytes contain no NUL. The NUL
// check matters because a binary STL may legitimately begin with
// "solid" in its comment block.
//
// Binary layout: the uint32 at offset 80 declares N triangles and the
// file is at least 84 + 50*N bytes. Each triangle record is 50 bytes,
// so a shorter file cannot hold the declared geometry.
func DetectSTL(header []byte, fileSize int64) bool {
	if len(header) > stlHeaderLen {
		header = header[:stlHeaderLen]
	}

	if isASCIISTL(header) {
		return true
	}

	if len(header) < binarySTLHeader+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(header[binarySTLHeader : binarySTLHeader+4])
	expected := int64(84) + int64(50)*int64(n)
	return fileSize >= expected
}

func isASCIISTL(header []byte) bool {
	prefix := header
	if len(prefix) > binarySTLHeader {
		prefix = prefix[:binarySTLHeader]
	}
	if bytes.IndexByte(prefix, 0) >= 0 {
		return false
	}
	trimmed := bytes.TrimLeft(header, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("solid"))
}
