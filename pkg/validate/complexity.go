package validate

import (
	"fmt"

	"github.com/marmos91/assetflow/pkg/asset"
)

// ModelComplexity caps vertex and face counts. Runs in the standard
// phase: the mesh is already decoded and the counts are cheap reads.
type ModelComplexity struct{}

func (ModelComplexity) Name() string   { return "ModelComplexityValidator" }
func (ModelComplexity) Critical() bool { return false }

func (v ModelComplexity) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	m, err := ac.Mesh()
	if err != nil {
		// MeshLoad gates this path, so a failure here means the standard
		// phase ran without the critical phase.
		return asset.Invalid(v.Name(), asset.CodeMeshLoadFailure,
			fmt.Sprintf("mesh unavailable: %v", err))
	}

	if m.Stats.VertexCount > policy.MaxModelVertices {
		return asset.Invalid(v.Name(), asset.CodeModelTooComplex,
			fmt.Sprintf("mesh has %d vertices, limit is %d", m.Stats.VertexCount, policy.MaxModelVertices))
	}
	if m.Stats.FaceCount > policy.MaxModelFaces {
		return asset.Invalid(v.Name(), asset.CodeModelTooComplex,
			fmt.Sprintf("mesh has %d faces, limit is %d", m.Stats.FaceCount, policy.MaxModelFaces))
	}

	r := asset.Valid(v.Name())
	r.Metadata = map[string]any{
		"vertices": m.Stats.VertexCount,
		"faces":    m.Stats.FaceCount,
	}
	return r
}
