package render

import (
	"iter"

	"github.com/go-gl/mathgl/mgl32"
)

// DrawItem is one renderable instance: what to draw and where.
type DrawItem struct {
	Pipeline  PipelineID
	Mesh      MeshID
	Material  MaterialID
	Binding   BindingID
	Transform mgl32.Mat4
}

// Scene yields the items to draw. The sequence is walked once when command
// buffers are recorded and once per frame when object uniforms are updated,
// and must yield items in the same order both times.
type Scene interface {
	Renderables() iter.Seq[DrawItem]
}

// Window is the presentation surface's host window.
type Window interface {
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height int)
	// ResizeRequested reports whether the window was resized since the last
	// call and clears the flag.
	ResizeRequested() bool
}

// TextureLoader decodes an image file into RGBA pixels.
type TextureLoader interface {
	LoadTexture(path string) (Pixels, error)
}

type emptyScene struct{}

func (emptyScene) Renderables() iter.Seq[DrawItem] {
	return func(func(DrawItem) bool) {}
}
