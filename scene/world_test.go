package scene

import (
	"math"
	"testing"

	"github.com/ashengine/ash/render"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

func TestTransformMatrix(t *testing.T) {
	tr := At(mgl32.Vec3{1, 2, 3})
	m := tr.Matrix()
	if got := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1}); !got.ApproxEqual(mgl32.Vec4{1, 2, 3, 1}) {
		t.Errorf("origin maps to %v", got)
	}

	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.Vec3{0, 0, math.Pi / 2}
	got := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	want := mgl32.Vec4{1, 4, 3, 1}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRenderablesInSpawnOrder(t *testing.T) {
	w := NewWorld()
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, w.Spawn(At(mgl32.Vec3{float32(i), 0, 0})))
	}
	// entity 2 has no renderable and is skipped
	for _, i := range []int{3, 0, 1} {
		if err := w.AddRenderable(ids[i], Renderable{Mesh: render.MeshID(i), Binding: render.BindingID(i)}); err != nil {
			t.Fatal(err)
		}
	}

	var meshes []render.MeshID
	for item := range w.Renderables() {
		meshes = append(meshes, item.Mesh)
		if item.Transform.At(0, 3) != float32(item.Mesh) {
			t.Errorf("mesh %d has translation %v", item.Mesh, item.Transform.Col(3))
		}
	}
	want := []render.MeshID{0, 1, 3}
	if len(meshes) != len(want) {
		t.Fatalf("expected %v, got %v", want, meshes)
	}
	for i := range want {
		if meshes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, meshes)
		}
	}
}

func TestRenderablesStopsEarly(t *testing.T) {
	w := NewWorld()
	for i := 0; i < 3; i++ {
		id := w.Spawn(At(mgl32.Vec3{}))
		_ = w.AddRenderable(id, Renderable{Binding: render.BindingID(i)})
	}
	n := 0
	for range w.Renderables() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected 1 item, got %d", n)
	}
}

func TestChangeHook(t *testing.T) {
	w := NewWorld()
	changes := 0
	w.OnChange(func() { changes++ })

	plain := w.Spawn(At(mgl32.Vec3{}))
	drawn := w.Spawn(At(mgl32.Vec3{}))
	if changes != 0 {
		t.Fatalf("spawn alone should not signal, got %d", changes)
	}

	_ = w.AddRenderable(drawn, Renderable{})
	if changes != 1 {
		t.Fatalf("expected 1 change, got %d", changes)
	}

	_ = w.SetTransform(drawn, At(mgl32.Vec3{1, 0, 0}))
	if changes != 1 {
		t.Fatalf("transform update should not signal, got %d", changes)
	}

	_ = w.Despawn(plain)
	if changes != 1 {
		t.Fatalf("despawning a non-renderable should not signal, got %d", changes)
	}
	_ = w.Despawn(drawn)
	if changes != 2 {
		t.Fatalf("expected 2 changes, got %d", changes)
	}
	if w.Len() != 0 {
		t.Errorf("expected empty world, got %d", w.Len())
	}
}

func TestUnknownEntity(t *testing.T) {
	w := NewWorld()
	id := uuid.New()

	if err := w.AddRenderable(id, Renderable{}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("AddRenderable: %v", err)
	}
	if err := w.SetTransform(id, Transform{}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("SetTransform: %v", err)
	}
	if err := w.Despawn(id); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Despawn: %v", err)
	}
	if _, ok := w.Transform(id); ok {
		t.Error("Transform should miss")
	}
}

func TestEach(t *testing.T) {
	w := NewWorld()
	id := w.Spawn(At(mgl32.Vec3{}))
	w.Each(func(_ uuid.UUID, tr Transform) Transform {
		tr.Rotation[2] += 0.5
		return tr
	})
	tr, _ := w.Transform(id)
	if tr.Rotation.Z() != 0.5 {
		t.Errorf("expected rotation 0.5, got %v", tr.Rotation.Z())
	}
}
