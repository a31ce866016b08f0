// Package mesh decodes STL files and derives the geometry statistics
// the validation pipeline and the repository metadata rely on.
package mesh

import (
	"fmt"

	"github.com/fogleman/fauxgl"
)

// Mesh is a decoded triangle soup plus the statistics computed once at
// load time. Instances are read-only after Load returns and safe to
// share across goroutines.
type Mesh struct {
	Source *fauxgl.Mesh
	Stats  Stats
}

// Stats summarizes mesh geometry. Watertight and WindingConsistent are
// quality metadata, not validation gates.
type Stats struct {
	VertexCount       int
	FaceCount         int
	EdgeCount         int
	Watertight        bool
	WindingConsistent bool
	EulerNumber       int
	BoundsMin         [3]float64
	BoundsMax         [3]float64
}

// Load decodes the STL file at path. Both ASCII and binary layouts are
// handled by the decoder; an empty or unparseable file yields an error.
func Load(path string) (*Mesh, error) {
	src, err := fauxgl.LoadSTL(path)
	if err != nil {
		return nil, fmt.Errorf("decode stl: %w", err)
	}
	if len(src.Triangles) == 0 {
		return nil, fmt.Errorf("decode stl: no triangles in %q", path)
	}
	return &Mesh{Source: src, Stats: computeStats(src)}, nil
}

type undirectedEdge struct {
	a, b fauxgl.Vector
}

// canonical orders the endpoints so both directions of an edge map to
// the same key.
func canonical(a, b fauxgl.Vector) undirectedEdge {
	if less(b, a) {
		a, b = b, a
	}
	return undirectedEdge{a, b}
}

func less(a, b fauxgl.Vector) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func computeStats(m *fauxgl.Mesh) Stats {
	vertices := make(map[fauxgl.Vector]struct{})
	undirected := make(map[undirectedEdge]int)
	directed := make(map[[2]fauxgl.Vector]int)

	for _, t := range m.Triangles {
		ps := [3]fauxgl.Vector{t.V1.Position, t.V2.Position, t.V3.Position}
		for i := 0; i < 3; i++ {
			vertices[ps[i]] = struct{}{}
			a, b := ps[i], ps[(i+1)%3]
			undirected[canonical(a, b)]++
			directed[[2]fauxgl.Vector{a, b}]++
		}
	}

	// Watertight: every undirected edge is shared by exactly two faces.
	watertight := len(undirected) > 0
	for _, n := range undirected {
		if n != 2 {
			watertight = false
			break
		}
	}

	// Consistent winding: no directed edge appears twice, i.e. adjacent
	// faces traverse their shared edge in opposite directions.
	winding := true
	for _, n := range directed {
		if n > 1 {
			winding = false
			break
		}
	}

	box := m.BoundingBox()

	v := len(vertices)
	e := len(undirected)
	f := len(m.Triangles)

	return Stats{
		VertexCount:       v,
		FaceCount:         f,
		EdgeCount:         e,
		Watertight:        watertight,
		WindingConsistent: winding,
		EulerNumber:       v - e + f,
		BoundsMin:         [3]float64{box.Min.X, box.Min.Y, box.Min.Z},
		BoundsMax:         [3]float64{box.Max.X, box.Max.Y, box.Max.Z},
	}
}

// Metadata flattens the stats into the free-form map stored on the file
// row after a successful validation.
func (s Stats) Metadata() map[string]any {
	return map[string]any{
		"vertices":           s.VertexCount,
		"faces":              s.FaceCount,
		"edges":              s.EdgeCount,
		"watertight":         s.Watertight,
		"winding_consistent": s.WindingConsistent,
		"euler_number":       s.EulerNumber,
		"bounds_min":         s.BoundsMin[:],
		"bounds_max":         s.BoundsMax[:],
	}
}
