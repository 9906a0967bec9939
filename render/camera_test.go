package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestProjectionFlipsY(t *testing.T) {
	c := DefaultCamera()
	proj := c.Projection(mgl32.Vec2{800, 600})
	ref := mgl32.Perspective(mgl32.DegToRad(45), 800.0/600.0, 0.1, 10)
	if !mgl32.FloatEqual(proj.At(1, 1), -ref.At(1, 1)) {
		t.Fatalf("expected flipped Y scale %f, got %f", -ref.At(1, 1), proj.At(1, 1))
	}
	if !mgl32.FloatEqual(proj.At(0, 0), ref.At(0, 0)) {
		t.Fatalf("X scale changed: %f vs %f", proj.At(0, 0), ref.At(0, 0))
	}
}

func TestViewLooksAtCenter(t *testing.T) {
	c := DefaultCamera()
	center := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if center.Z() >= 0 {
		t.Fatalf("center should be in front of the camera, got %v", center)
	}
}

func TestEncodeSizes(t *testing.T) {
	global, err := encode(GlobalUniforms{})
	if err != nil {
		t.Fatal(err)
	}
	light, err := encode(LightUniforms{})
	if err != nil {
		t.Fatal(err)
	}
	object, err := encode(ObjectUniforms{})
	if err != nil {
		t.Fatal(err)
	}
	if len(global) != globalUniformSize || len(light) != lightUniformSize || len(object) != objectUniformSize {
		t.Fatalf("unexpected uniform sizes %d, %d, %d", len(global), len(light), len(object))
	}
	vertex, err := encode(Vertex{})
	if err != nil {
		t.Fatal(err)
	}
	if len(vertex) != VertexSize {
		t.Fatalf("vertex encodes to %d bytes", len(vertex))
	}
}
