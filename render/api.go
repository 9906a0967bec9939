package render

import (
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// CreateIndexedVertexBuffer uploads a mesh into one device-local buffer,
// vertices first and indices after them.
func (r *Renderer) CreateIndexedVertexBuffer(vertices []Vertex, indices []uint32) (MeshID, error) {
	mesh, err := r.res.createIndexedVertexBuffer(vertices, indices)
	if err != nil {
		return 0, err
	}
	r.meshes = append(r.meshes, mesh)
	return MeshID(len(r.meshes) - 1), nil
}

// Mesh returns the buffer layout of a created mesh.
func (r *Renderer) Mesh(id MeshID) (IndexedVertexBuffer, bool) {
	if id < 0 || int(id) >= len(r.meshes) {
		return IndexedVertexBuffer{}, false
	}
	return r.meshes[id], true
}

// ReadbackMesh copies a mesh buffer back to host memory.
func (r *Renderer) ReadbackMesh(id MeshID) ([]byte, error) {
	mesh, ok := r.Mesh(id)
	if !ok {
		return nil, errors.Newf("unknown mesh %d", id)
	}
	return r.res.readback(mesh.Buffer, mesh.Size)
}

// CreateTexture uploads decoded RGBA pixels.
func (r *Renderer) CreateTexture(p Pixels) (TextureID, error) {
	tex, err := r.res.createTexture(p)
	if err != nil {
		return 0, err
	}
	r.textures = append(r.textures, tex)
	return TextureID(len(r.textures) - 1), nil
}

// CreateTextureImage decodes path with the renderer's TextureLoader and
// uploads it.
func (r *Renderer) CreateTextureImage(path string) (TextureID, error) {
	if r.loader == nil {
		return 0, errors.New("no texture loader configured")
	}
	pixels, err := r.loader.LoadTexture(path)
	if err != nil {
		return 0, errors.Wrapf(err, "load texture %s", path)
	}
	return r.CreateTexture(pixels)
}

// CreateMaterial binds a texture for sampling in the fragment stage.
func (r *Renderer) CreateMaterial(tex TextureID) (MaterialID, error) {
	if tex < 0 || int(tex) >= len(r.textures) {
		return 0, errors.Newf("unknown texture %d", tex)
	}
	m := material{texture: tex}
	if err := r.buildMaterialSets(&m, r.swapchain.imageCount()); err != nil {
		return 0, err
	}
	r.materials = append(r.materials, m)
	return MaterialID(len(r.materials) - 1), nil
}

// CreateRenderable allocates per-image object uniforms for one instance.
func (r *Renderer) CreateRenderable() (BindingID, error) {
	if err := r.checkReady(); err != nil {
		return 0, err
	}
	var b renderableBinding
	if err := r.buildObjectSets(&b, r.swapchain.imageCount()); err != nil {
		return 0, err
	}
	r.bindings = append(r.bindings, b)
	r.rec.markDirty()
	return BindingID(len(r.bindings) - 1), nil
}

func (r *Renderer) Pipeline(name string) (PipelineID, bool) {
	return r.pipelines.lookup(name)
}

// SetPipeline selects the pipeline used by draw items with
// SelectedPipeline.
func (r *Renderer) SetPipeline(name string) error {
	id, ok := r.pipelines.lookup(name)
	if !ok {
		return errors.Newf("unknown pipeline %q", name)
	}
	if id != r.selected {
		r.selected = id
		r.rec.markDirty()
	}
	return nil
}

func (r *Renderer) SetClearColor(color mgl32.Vec4) {
	if color != r.clearColor {
		r.clearColor = color
		r.rec.markDirty()
	}
}

func (r *Renderer) SetScene(scene Scene) {
	if scene == nil {
		scene = emptyScene{}
	}
	r.scene = scene
	r.rec.markDirty()
}

func (r *Renderer) SetCamera(camera Camera) {
	r.camera = camera
}

func (r *Renderer) SetLight(light Light) {
	r.light = light
}

// SignalRecord marks the command buffers stale so the next frame records
// them again.
func (r *Renderer) SignalRecord() {
	r.rec.markDirty()
}

func (r *Renderer) SwapchainState() SwapchainState {
	return r.swapchain.state
}

func (r *Renderer) RecordState() RecordState {
	return r.rec.state
}

// SwapchainExtent returns the size of the current swapchain images.
func (r *Renderer) SwapchainExtent() gpu.Extent2D {
	return r.swapchain.extent
}

func (r *Renderer) Stats() Stats {
	return r.stats
}
