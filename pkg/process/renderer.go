package process

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/fogleman/fauxgl"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/pkg/asset"
)

const (
	renderWidth  = 1024
	renderHeight = 768
	renderFovy   = 30
	renderNear   = 1
	renderFar    = 10

	// cameraDistance is relative to the bi-unit cube the mesh is
	// normalized into before rendering.
	cameraDistance = 1.8
)

// renderView is one camera placement. Angles are degrees; elevation is
// measured from the horizontal plane, azimuth around the vertical axis.
type renderView struct {
	name      string
	elevation float64
	azimuth   float64
}

// renderViews are the four product shots, in upload order.
var renderViews = []renderView{
	{name: "iso", elevation: 30, azimuth: 45},
	{name: "front", elevation: 0, azimuth: 0},
	{name: "side", elevation: 0, azimuth: 90},
	{name: "top", elevation: 90, azimuth: 0},
}

// ModelRenderer produces WebP preview renders of a validated mesh from
// four fixed angles. A single failed angle degrades to a warning; only
// a fully failed render set fails the processor.
type ModelRenderer struct{}

func (ModelRenderer) Name() string { return "ModelRenderProcessor" }

func (p ModelRenderer) Process(ac *asset.Context, policy *asset.Policy) asset.ProcessingResult[asset.ModelOutput] {
	m, err := ac.Mesh()
	if err != nil {
		return asset.ProcessingResult[asset.ModelOutput]{
			ErrorMessage: fmt.Sprintf("cannot load mesh for rendering: %v", err),
		}
	}

	if m.Stats.FaceCount > policy.MaxModelFaces {
		return asset.ProcessingResult[asset.ModelOutput]{
			ErrorMessage: fmt.Sprintf("mesh has %d faces, refusing to render above %d", m.Stats.FaceCount, policy.MaxModelFaces),
		}
	}

	// The shared mesh is read-only; normalization mutates vertices, so
	// render from a private copy.
	scene := m.Source.Copy()
	scene.BiUnitCube()

	stem := strings.TrimSuffix(ac.FilePath, filepath.Ext(ac.FilePath))

	var paths []string
	var failed []string
	for _, view := range renderViews {
		outPath := fmt.Sprintf("%s_%s.webp", stem, view.name)
		if err := renderOne(scene, view, outPath); err != nil {
			logger.Warn("render angle failed",
				logger.KeyTraceID, ac.TraceID,
				"angle", view.name,
				logger.KeyError, err.Error(),
			)
			failed = append(failed, view.name)
			continue
		}
		paths = append(paths, outPath)
	}

	if len(paths) == 0 {
		return asset.ProcessingResult[asset.ModelOutput]{
			ErrorMessage: "all render angles failed",
		}
	}

	var warning string
	if len(failed) > 0 {
		warning = fmt.Sprintf("Failed to render angle(s): %s", strings.Join(failed, ", "))
	}

	return asset.ProcessingResult[asset.ModelOutput]{
		Success: true,
		Output: asset.ModelOutput{
			OriginalFile:        ac.FilePath,
			GeneratedImagePaths: paths,
		},
		Warning:  warning,
		Metadata: m.Stats.Metadata(),
	}
}

// renderOne draws a single view and writes it as WebP. Renderer panics
// are converted to errors so one bad angle cannot take down the job.
func renderOne(scene *fauxgl.Mesh, view renderView, outPath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()

	eye := cameraEye(view)
	center := fauxgl.V(0, 0, 0)
	up := fauxgl.V(0, 0, 1)
	if view.elevation >= 89 {
		// Looking straight down the vertical axis; pick a horizontal up
		// vector to keep the view matrix well defined.
		up = fauxgl.V(0, 1, 0)
	}

	ctx := fauxgl.NewContext(renderWidth, renderHeight)
	ctx.ClearColorBufferWith(fauxgl.White)

	aspect := float64(renderWidth) / float64(renderHeight)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(renderFovy, aspect, renderNear, renderFar)
	light := eye.Normalize()

	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor("#9BA3AD")
	ctx.Shader = shader
	ctx.DrawMesh(scene)

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("cannot create render file: %w", err)
	}
	if err := webp.Encode(out, ctx.Image(), &webp.Options{Quality: webpQuality}); err != nil {
		out.Close()
		os.Remove(outPath)
		return fmt.Errorf("cannot encode render: %w", err)
	}
	return out.Close()
}

// cameraEye places the camera on a sphere around the origin.
func cameraEye(view renderView) fauxgl.Vector {
	el := view.elevation * math.Pi / 180
	az := view.azimuth * math.Pi / 180
	return fauxgl.V(
		cameraDistance*math.Cos(el)*math.Sin(az),
		-cameraDistance*math.Cos(el)*math.Cos(az),
		cameraDistance*math.Sin(el),
	)
}
