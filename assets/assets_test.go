package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/cockroachdb/errors"
)

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const quadOBJ = `mtllib quad.mtl
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl painted
f 1/1/1 2/2/1 3/3/1 4/4/1
`

const quadMTL = `newmtl painted
Kd 1 1 1
map_Kd tex.png
`

func testFS(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"models/quad.obj": {Data: []byte(quadOBJ)},
		"models/quad.mtl": {Data: []byte(quadMTL)},
		"models/tex.png":  {Data: encodePNG(t, 2, 2, color.NRGBA{R: 255, A: 255})},
		"bare.obj":        {Data: []byte("o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl plain\nf 1 2 3\n")},
		"big.png":         {Data: encodePNG(t, 64, 16, color.NRGBA{G: 255, A: 255})},
		"broken.png":      {Data: []byte("not an image")},
		"plain/tri.obj":   {Data: []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")},
	}
}

func TestLoadTexture(t *testing.T) {
	l := NewLoader(testFS(t))
	pixels, err := l.LoadTexture("models/tex.png")
	if err != nil {
		t.Fatal(err)
	}
	if pixels.Width != 2 || pixels.Height != 2 {
		t.Fatalf("unexpected size %dx%d", pixels.Width, pixels.Height)
	}
	if len(pixels.RGBA) != 2*2*4 {
		t.Fatalf("expected 16 bytes, got %d", len(pixels.RGBA))
	}
	if !bytes.Equal(pixels.RGBA[:4], []byte{255, 0, 0, 255}) {
		t.Errorf("unexpected first pixel %v", pixels.RGBA[:4])
	}
}

func TestLoadTextureErrors(t *testing.T) {
	l := NewLoader(testFS(t))
	if _, err := l.LoadTexture("missing.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist, got %v", err)
	}
	if _, err := l.LoadTexture("broken.png"); err == nil {
		t.Error("expected a decode error")
	}
}

func TestMaxTextureSize(t *testing.T) {
	l := NewLoader(testFS(t))
	l.MaxTextureSize = 32
	pixels, err := l.LoadTexture("big.png")
	if err != nil {
		t.Fatal(err)
	}
	if pixels.Width != 32 || pixels.Height != 8 {
		t.Fatalf("expected 32x8, got %dx%d", pixels.Width, pixels.Height)
	}
	if len(pixels.RGBA) != 32*8*4 {
		t.Errorf("unexpected byte count %d", len(pixels.RGBA))
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 50, 0, 100, 50},
		{100, 50, 200, 100, 50},
		{100, 50, 50, 50, 25},
		{50, 100, 50, 25, 50},
		{1000, 1, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d, %d, %d) = %d, %d", tt.w, tt.h, tt.limit, w, h)
		}
	}
}

func TestLoadOBJTriangulates(t *testing.T) {
	l := NewLoader(testFS(t))
	meshes, err := l.LoadOBJ("models/quad.obj", "models/quad.mtl")
	if err != nil {
		t.Fatal(err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	mesh := meshes[0]
	if len(mesh.Vertices) != 4 {
		t.Errorf("expected 4 unique vertices, got %d", len(mesh.Vertices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(mesh.Indices) != len(want) {
		t.Fatalf("expected indices %v, got %v", want, mesh.Indices)
	}
	for i := range want {
		if mesh.Indices[i] != want[i] {
			t.Fatalf("expected indices %v, got %v", want, mesh.Indices)
		}
	}
	// V is flipped for Vulkan's top-left texture origin.
	if mesh.Vertices[0].TexCoord.Y() != 1 {
		t.Errorf("expected flipped v, got %v", mesh.Vertices[0].TexCoord)
	}
	if mesh.Vertices[0].Normal.Z() != 1 {
		t.Errorf("expected +Z normal, got %v", mesh.Vertices[0].Normal)
	}
	if mesh.Texture != "models/tex.png" {
		t.Errorf("unexpected texture path %q", mesh.Texture)
	}
}

func TestLoadOBJWithoutMaterials(t *testing.T) {
	l := NewLoader(testFS(t))
	meshes, err := l.LoadOBJ("bare.obj", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(meshes) != 1 || len(meshes[0].Indices) != 3 {
		t.Fatalf("unexpected meshes %+v", meshes)
	}
	if meshes[0].Texture != "" {
		t.Errorf("expected no texture, got %q", meshes[0].Texture)
	}
}

func TestLoadModel(t *testing.T) {
	l := NewLoader(testFS(t))
	model, err := l.LoadModel(context.Background(), "models/quad.obj")
	if err != nil {
		t.Fatal(err)
	}
	if len(model.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(model.Meshes))
	}
	tex, ok := model.Textures["models/tex.png"]
	if !ok {
		t.Fatalf("texture missing from %v", model.Textures)
	}
	if tex.Width != 2 || tex.Height != 2 {
		t.Errorf("unexpected texture size %dx%d", tex.Width, tex.Height)
	}
}

func TestLoadModelMissingTexture(t *testing.T) {
	fsys := testFS(t)
	delete(fsys, "models/tex.png")
	l := NewLoader(fsys)
	_, err := l.LoadModel(context.Background(), "models/quad.obj")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist, got %v", err)
	}
}

func TestLoadModelWithoutMaterialLibrary(t *testing.T) {
	l := NewLoader(testFS(t))
	model, err := l.LoadModel(context.Background(), "plain/tri.obj")
	if err != nil {
		t.Fatal(err)
	}
	if len(model.Meshes) != 1 || len(model.Meshes[0].Indices) != 3 {
		t.Fatalf("unexpected meshes %+v", model.Meshes)
	}
	if model.Meshes[0].Texture != "" || len(model.Textures) != 0 {
		t.Errorf("expected no textures, got %q and %v", model.Meshes[0].Texture, model.Textures)
	}
}
