package render

import (
	"iter"
	"testing"
	"testing/fstest"

	"github.com/ashengine/ash/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
)

// spirv is a stand-in module; the fake device only checks its length.
var spirv = []byte{0x03, 0x02, 0x23, 0x07}

func testShaders() fstest.MapFS {
	return fstest.MapFS{
		"shaders/vert.spv":      {Data: spirv},
		"shaders/frag.spv":      {Data: spirv},
		"shaders/wire_vert.spv": {Data: spirv},
		"shaders/wire_frag.spv": {Data: spirv},
	}
}

type testWindow struct {
	width, height int
	resized       bool
}

func (w *testWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

func (w *testWindow) ResizeRequested() bool {
	resized := w.resized
	w.resized = false
	return resized
}

type testScene struct {
	items     []DrawItem
	onIterate func()
}

func (s *testScene) Renderables() iter.Seq[DrawItem] {
	return func(yield func(DrawItem) bool) {
		if s.onIterate != nil {
			s.onIterate()
		}
		for _, item := range s.items {
			if !yield(item) {
				return
			}
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ShaderFS = testShaders()
	return cfg
}

func newTestRenderer(t *testing.T, cfg Config, pipelines ...PipelineDesc) (*Renderer, *gputest.Device, *testWindow) {
	t.Helper()
	dev := gputest.NewDevice()
	win := &testWindow{width: 800, height: 600}
	r := New(dev, win, cfg)
	if err := r.Init(pipelines); err != nil {
		t.Fatalf("init: %+v", err)
	}
	return r, dev, win
}

// frameSubmissions drops one-time transfer submissions, which wait on no
// semaphore, and keeps the frames.
func frameSubmissions(dev *gputest.Device) []gputest.Submission {
	var frames []gputest.Submission
	for _, s := range dev.Submissions {
		if len(s.Wait) > 0 {
			frames = append(frames, s)
		}
	}
	return frames
}

func checkViolations(t *testing.T, dev *gputest.Device) {
	t.Helper()
	for _, v := range dev.Violations {
		t.Error(v)
	}
}

func quad() ([]Vertex, []uint32) {
	n := mgl32.Vec3{0, 0, 1}
	return []Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, Normal: n, TexCoord: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{0.5, -0.5, 0}, Normal: n, TexCoord: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Normal: n, TexCoord: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Normal: n, TexCoord: mgl32.Vec2{0, 1}},
	}, []uint32{0, 1, 2, 2, 3, 0}
}

// addQuad uploads a quad and returns a scene drawing it once.
func addQuad(t *testing.T, r *Renderer) *testScene {
	t.Helper()
	vertices, indices := quad()
	mesh, err := r.CreateIndexedVertexBuffer(vertices, indices)
	if err != nil {
		t.Fatal(err)
	}
	mat, err := r.CreateMaterial(WhiteTexture)
	if err != nil {
		t.Fatal(err)
	}
	binding, err := r.CreateRenderable()
	if err != nil {
		t.Fatal(err)
	}
	scene := &testScene{items: []DrawItem{{
		Mesh:      mesh,
		Material:  mat,
		Binding:   binding,
		Transform: mgl32.Ident4(),
	}}}
	r.SetScene(scene)
	return scene
}

func renderN(t *testing.T, r *Renderer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.Render(); err != nil {
			t.Fatalf("render %d: %+v", i, err)
		}
	}
}
