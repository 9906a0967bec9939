// Package scene is a small entity store feeding the renderer. Entities are
// identified by UUID and carry a Transform and optionally a Renderable.
package scene

import (
	"iter"
	"slices"

	"github.com/ashengine/ash/render"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type Transform struct {
	Position mgl32.Vec3
	// Rotation holds Euler angles in radians, applied X then Y then Z.
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// At returns an unrotated, unit-scale transform at pos.
func At(pos mgl32.Vec3) Transform {
	return Transform{Position: pos, Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix composes translation * rotation * scale.
func (t Transform) Matrix() mgl32.Mat4 {
	rotation := mgl32.AnglesToQuat(t.Rotation.X(), t.Rotation.Y(), t.Rotation.Z(), mgl32.XYZ).Mat4()
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(rotation).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// Renderable names the GPU resources an entity is drawn with. Binding must
// be unique per entity since it holds the entity's transform uniform.
type Renderable struct {
	Pipeline render.PipelineID
	Mesh     render.MeshID
	Material render.MaterialID
	Binding  render.BindingID
}

var ErrUnknownEntity = errors.New("unknown entity")

type entity struct {
	transform  Transform
	renderable *Renderable
}

// World implements render.Scene. Renderables are yielded in spawn order.
type World struct {
	order    []uuid.UUID
	entities map[uuid.UUID]*entity
	onChange func()
}

var _ render.Scene = (*World)(nil)

func NewWorld() *World {
	return &World{entities: make(map[uuid.UUID]*entity)}
}

// OnChange registers fn to run whenever the set of renderables changes. The
// renderer must re-record its command buffers then; transform updates alone
// do not need it.
func (w *World) OnChange(fn func()) {
	w.onChange = fn
}

func (w *World) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *World) Spawn(t Transform) uuid.UUID {
	id := uuid.New()
	w.order = append(w.order, id)
	w.entities[id] = &entity{transform: t}
	return id
}

func (w *World) Despawn(id uuid.UUID) error {
	e, ok := w.entities[id]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "despawn %s", id)
	}
	delete(w.entities, id)
	w.order = slices.DeleteFunc(w.order, func(other uuid.UUID) bool { return other == id })
	if e.renderable != nil {
		w.changed()
	}
	return nil
}

func (w *World) Len() int {
	return len(w.order)
}

func (w *World) AddRenderable(id uuid.UUID, r Renderable) error {
	e, ok := w.entities[id]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "add renderable to %s", id)
	}
	e.renderable = &r
	w.changed()
	return nil
}

func (w *World) Transform(id uuid.UUID) (Transform, bool) {
	e, ok := w.entities[id]
	if !ok {
		return Transform{}, false
	}
	return e.transform, true
}

func (w *World) SetTransform(id uuid.UUID, t Transform) error {
	e, ok := w.entities[id]
	if !ok {
		return errors.Wrapf(ErrUnknownEntity, "set transform of %s", id)
	}
	e.transform = t
	return nil
}

// Each calls fn for every entity in spawn order and stores the transform it
// returns.
func (w *World) Each(fn func(id uuid.UUID, t Transform) Transform) {
	for _, id := range w.order {
		e := w.entities[id]
		e.transform = fn(id, e.transform)
	}
}

func (w *World) Renderables() iter.Seq[render.DrawItem] {
	return func(yield func(render.DrawItem) bool) {
		for _, id := range w.order {
			e := w.entities[id]
			if e.renderable == nil {
				continue
			}
			item := render.DrawItem{
				Pipeline:  e.renderable.Pipeline,
				Mesh:      e.renderable.Mesh,
				Material:  e.renderable.Material,
				Binding:   e.renderable.Binding,
				Transform: e.transform.Matrix(),
			}
			if !yield(item) {
				return
			}
		}
	}
}
