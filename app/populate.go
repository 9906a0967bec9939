package app

import (
	"context"
	"math"
	"time"

	"github.com/ashengine/ash/assets"
	"github.com/ashengine/ash/internal/logging"
	"github.com/ashengine/ash/render"
	"github.com/ashengine/ash/scene"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// uploader is the part of render.Renderer that turns imported assets into
// GPU resources.
type uploader interface {
	CreateTexture(p render.Pixels) (render.TextureID, error)
	CreateIndexedVertexBuffer(vertices []render.Vertex, indices []uint32) (render.MeshID, error)
	CreateMaterial(tex render.TextureID) (render.MaterialID, error)
	CreateRenderable() (render.BindingID, error)
}

// modelSource loads a decoded model by path.
type modelSource interface {
	LoadModel(ctx context.Context, objPath string) (*assets.Model, error)
}

// layout spreads n entities evenly along Y, centered on the origin.
func layout(n int, spacing float32) []mgl32.Vec3 {
	positions := make([]mgl32.Vec3, n)
	offset := float32(n-1) / 2
	for i := range positions {
		positions[i] = mgl32.Vec3{0, (float32(i) - offset) * spacing, 0}
	}
	return positions
}

// upload creates the GPU resources for one model and spawns one entity per
// mesh at pos. Materials without a diffuse map use the white texture.
func upload(r uploader, world *scene.World, model *assets.Model, pipeline render.PipelineID, pos mgl32.Vec3) ([]uuid.UUID, error) {
	textures := make(map[string]render.MaterialID, len(model.Textures))
	material := func(path string) (render.MaterialID, error) {
		if id, ok := textures[path]; ok {
			return id, nil
		}
		tex := render.WhiteTexture
		if path != "" {
			pixels, ok := model.Textures[path]
			if !ok {
				return 0, errors.AssertionFailedf("texture %s was not decoded", path)
			}
			var err error
			tex, err = r.CreateTexture(pixels)
			if err != nil {
				return 0, errors.Wrapf(err, "create texture %s", path)
			}
		}
		id, err := r.CreateMaterial(tex)
		if err != nil {
			return 0, err
		}
		textures[path] = id
		return id, nil
	}

	ids := make([]uuid.UUID, 0, len(model.Meshes))
	for _, mesh := range model.Meshes {
		meshID, err := r.CreateIndexedVertexBuffer(mesh.Vertices, mesh.Indices)
		if err != nil {
			return nil, errors.Wrapf(err, "upload mesh %q", mesh.Material)
		}
		materialID, err := material(mesh.Texture)
		if err != nil {
			return nil, err
		}
		binding, err := r.CreateRenderable()
		if err != nil {
			return nil, err
		}

		id := world.Spawn(scene.At(pos))
		err = world.AddRenderable(id, scene.Renderable{
			Pipeline: pipeline,
			Mesh:     meshID,
			Material: materialID,
			Binding:  binding,
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// populate loads every model in paths and places it in world.
func populate(ctx context.Context, r uploader, src modelSource, world *scene.World, paths []string, spacing float32) error {
	for i, pos := range layout(len(paths), spacing) {
		model, err := src.LoadModel(ctx, paths[i])
		if err != nil {
			return errors.Wrapf(err, "load model %s", paths[i])
		}
		ids, err := upload(r, world, model, render.MainPipeline, pos)
		if err != nil {
			return errors.Wrapf(err, "upload model %s", paths[i])
		}
		logging.Logger().Debug("model spawned", "path", paths[i], "entities", len(ids), "position", pos)
	}
	return nil
}

// spin advances every entity's rotation about Z by speed radians per
// second over dt.
func spin(world *scene.World, speed float64, dt time.Duration) {
	if speed == 0 || dt <= 0 {
		return
	}
	step := speed * dt.Seconds()
	world.Each(func(_ uuid.UUID, t scene.Transform) scene.Transform {
		t.Rotation[2] = float32(math.Mod(float64(t.Rotation[2])+step, 2*math.Pi))
		return t
	})
}
