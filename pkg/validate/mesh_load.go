package validate

import (
	"fmt"

	"github.com/marmos91/assetflow/pkg/asset"
)

// MeshLoad decodes the mesh through the context so every later check
// shares the same decoded instance. Critical: downstream validators and
// the renderer assume a loadable mesh.
type MeshLoad struct{}

func (MeshLoad) Name() string   { return "MeshLoadValidator" }
func (MeshLoad) Critical() bool { return true }

func (v MeshLoad) Validate(ac *asset.Context, policy *asset.Policy) asset.Result {
	m, err := ac.Mesh()
	if err != nil {
		return asset.Invalid(v.Name(), asset.CodeMeshLoadFailure,
			fmt.Sprintf("cannot load mesh: %v", err))
	}

	r := asset.Valid(v.Name())
	r.Metadata = m.Stats.Metadata()
	return r
}
