package render

import (
	"io/fs"

	"github.com/ashengine/ash/descriptor"
	"github.com/ashengine/ash/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Config tunes a Renderer. Start from DefaultConfig and override fields.
type Config struct {
	// FramesInFlight is the number of frames the CPU may record ahead of
	// the GPU.
	FramesInFlight int
	// ShaderFS resolves the shader paths of every pipeline.
	ShaderFS           fs.FS
	MainVertexShader   string
	MainFragmentShader string
	// Depth adds a depth attachment to the render pass.
	Depth bool
	// PresentModes is tried in order; FIFO is used when none is available.
	PresentModes  []gpu.PresentMode
	SurfaceFormat gpu.SurfaceFormat
	ClearColor    mgl32.Vec4

	SetsPerPool int
	PoolSizes   descriptor.PoolSizes
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight:     2,
		MainVertexShader:   "shaders/vert.spv",
		MainFragmentShader: "shaders/frag.spv",
		Depth:              true,
		PresentModes:       []gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeMailbox},
		SurfaceFormat: gpu.SurfaceFormat{
			Format:     gpu.FormatB8G8R8A8SRGB,
			ColorSpace: gpu.ColorSpaceSRGBNonlinear,
		},
		ClearColor:  mgl32.Vec4{0, 0, 0, 1},
		SetsPerPool: descriptor.DefaultSetsPerPool,
		PoolSizes:   descriptor.DefaultPoolSizes(),
	}
}
