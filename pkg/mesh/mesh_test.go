package mesh

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triangle [3][3]float32

// tetrahedron is a closed mesh with consistent winding: 4 vertices,
// 6 edges, 4 faces, Euler number 2.
func tetrahedron() []triangle {
	a := [3]float32{0, 0, 0}
	b := [3]float32{1, 0, 0}
	c := [3]float32{0, 1, 0}
	d := [3]float32{0, 0, 1}
	return []triangle{
		{a, b, d},
		{b, c, d},
		{c, a, d},
		{a, c, b},
	}
}

// writeBinarySTL writes a minimal binary STL: 80-byte header, triangle
// count, then 50 bytes per triangle.
func writeBinarySTL(t *testing.T, path string, tris []triangle) {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(tris))))
	for _, tri := range tris {
		var normal [3]float32
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, normal))
		for _, v := range tri {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(0)))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadBinarySTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetra.stl")
	writeBinarySTL(t, path, tetrahedron())

	m, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, m.Source)

	assert.Equal(t, 4, m.Stats.VertexCount)
	assert.Equal(t, 4, m.Stats.FaceCount)
	assert.Equal(t, 6, m.Stats.EdgeCount)
	assert.True(t, m.Stats.Watertight)
	assert.True(t, m.Stats.WindingConsistent)
	assert.Equal(t, 2, m.Stats.EulerNumber)

	assert.Equal(t, [3]float64{0, 0, 0}, m.Stats.BoundsMin)
	assert.Equal(t, [3]float64{1, 1, 1}, m.Stats.BoundsMax)
}

func TestLoadASCIISTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	ascii := `solid tri
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid tri
`
	require.NoError(t, os.WriteFile(path, []byte(ascii), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Stats.FaceCount)
	assert.Equal(t, 3, m.Stats.VertexCount)
}

func TestLoadOpenMeshIsNotWatertight(t *testing.T) {
	// Drop one face from the tetrahedron: its three edges become
	// boundary edges shared by a single face.
	tris := tetrahedron()[:3]
	path := filepath.Join(t.TempDir(), "open.stl")
	writeBinarySTL(t, path, tris)

	m, err := Load(path)
	require.NoError(t, err)
	assert.False(t, m.Stats.Watertight)
	assert.True(t, m.Stats.WindingConsistent)
}

func TestLoadInconsistentWinding(t *testing.T) {
	tris := tetrahedron()
	// Flip one face so a shared edge is traversed twice in the same
	// direction.
	tris[3] = triangle{tris[3][0], tris[3][2], tris[3][1]}
	path := filepath.Join(t.TempDir(), "flipped.stl")
	writeBinarySTL(t, path, tris)

	m, err := Load(path)
	require.NoError(t, err)
	assert.False(t, m.Stats.WindingConsistent)
}

func TestLoadRejectsEmptyMesh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.stl")
	writeBinarySTL(t, path, nil)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no triangles")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.stl"))
	require.Error(t, err)
}

func TestStatsMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetra.stl")
	writeBinarySTL(t, path, tetrahedron())

	m, err := Load(path)
	require.NoError(t, err)

	md := m.Stats.Metadata()
	assert.Equal(t, 4, md["vertices"])
	assert.Equal(t, 4, md["faces"])
	assert.Equal(t, 6, md["edges"])
	assert.Equal(t, true, md["watertight"])
	assert.Equal(t, true, md["winding_consistent"])
	assert.Equal(t, 2, md["euler_number"])
	assert.Len(t, md["bounds_min"], 3)
	assert.Len(t, md["bounds_max"], 3)
}
