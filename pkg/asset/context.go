package asset

import (
	"sync"

	"github.com/marmos91/assetflow/pkg/mesh"
)

// Context carries the per-job state every validator and processor sees:
// the temp file on disk, the trace id for log correlation, and the
// decoded mesh, loaded at most once per job.
//
// The critical phase touches a Context from a single goroutine. During
// the parallel standard phase the mesh is already decoded and read-only,
// so concurrent reads through Mesh are safe.
type Context struct {
	FilePath string
	TraceID  string
	FileType FileType

	meshOnce sync.Once
	mesh     *mesh.Mesh
	meshErr  error
}

// NewContext builds a context for one job.
func NewContext(filePath, traceID string, ft FileType) *Context {
	return &Context{FilePath: filePath, TraceID: traceID, FileType: ft}
}

// Mesh decodes the file as STL on first call and memoizes the outcome.
// Every later call, including failures, returns the same value.
func (c *Context) Mesh() (*mesh.Mesh, error) {
	c.meshOnce.Do(func() {
		c.mesh, c.meshErr = mesh.Load(c.FilePath)
	})
	return c.mesh, c.meshErr
}
