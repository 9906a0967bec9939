package assets

import (
	"context"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/ashengine/ash/internal/logging"
	"github.com/ashengine/ash/render"
	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// Mesh is one material's share of a model, triangulated with shared
// vertices deduplicated.
type Mesh struct {
	Material string
	Vertices []render.Vertex
	Indices  []uint32
	// Texture is the diffuse map path relative to the loader's root, empty
	// when the material has none.
	Texture string
}

// Model is a decoded OBJ file with its diffuse textures.
type Model struct {
	Meshes   []Mesh
	Textures map[string]render.Pixels
}

type vertexKey struct {
	position int
	uv       int
	normal   int
}

type meshBuilder struct {
	decoder *obj.Decoder
	mesh    *Mesh
	unique  map[vertexKey]uint32
}

func index(indices []int, i int) int {
	if i < len(indices) {
		return indices[i]
	}
	return -1
}

func (b *meshBuilder) addVertex(face obj.Face, faceIndex int) {
	key := vertexKey{
		position: face.Vertices[faceIndex],
		uv:       index(face.Uvs, faceIndex),
		normal:   index(face.Normals, faceIndex),
	}
	idx, ok := b.unique[key]
	if !ok {
		vert := render.Vertex{Position: mgl32.Vec3{
			b.decoder.Vertices[key.position*3],
			b.decoder.Vertices[key.position*3+1],
			b.decoder.Vertices[key.position*3+2],
		}}

		if key.uv >= 0 && key.uv*2+1 < len(b.decoder.Uvs) {
			vert.TexCoord = mgl32.Vec2{
				b.decoder.Uvs[key.uv*2],
				1.0 - b.decoder.Uvs[key.uv*2+1],
			}
		}
		if key.normal >= 0 && key.normal*3+2 < len(b.decoder.Normals) {
			vert.Normal = mgl32.Vec3{
				b.decoder.Normals[key.normal*3],
				b.decoder.Normals[key.normal*3+1],
				b.decoder.Normals[key.normal*3+2],
			}
		}

		idx = uint32(len(b.mesh.Vertices))
		b.mesh.Vertices = append(b.mesh.Vertices, vert)
		b.unique[key] = idx
	}
	b.mesh.Indices = append(b.mesh.Indices, idx)
}

// LoadOBJ decodes a Wavefront model. The material library is read from
// mtlPath when given; otherwise the decoder uses its default material. One
// mesh is produced per material, in first-use order.
func (l *Loader) LoadOBJ(objPath, mtlPath string) ([]Mesh, error) {
	objFile, err := l.fsys.Open(objPath)
	if err != nil {
		return nil, err
	}
	defer objFile.Close()

	// The decoder always reads a material library; an empty one makes it
	// fall back to its default material.
	var mtlReader io.Reader = strings.NewReader("")
	if mtlPath != "" {
		mtlFile, err := l.fsys.Open(mtlPath)
		if err != nil {
			return nil, err
		}
		defer mtlFile.Close()
		mtlReader = mtlFile
	}

	decoder, err := obj.DecodeReader(objFile, mtlReader)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", objPath)
	}

	return buildMeshes(decoder, path.Dir(objPath)), nil
}

func buildMeshes(decoder *obj.Decoder, dir string) []Mesh {
	builders := make(map[string]*meshBuilder)
	var order []string

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			b, ok := builders[face.Material]
			if !ok {
				mesh := &Mesh{Material: face.Material}
				if mat, ok := decoder.Materials[face.Material]; ok && mat.MapKd != "" {
					mesh.Texture = path.Join(dir, strings.ReplaceAll(mat.MapKd, "\\", "/"))
				}
				b = &meshBuilder{decoder: decoder, mesh: mesh, unique: make(map[vertexKey]uint32)}
				builders[face.Material] = b
				order = append(order, face.Material)
			}

			for i := 2; i < len(face.Vertices); i++ {
				b.addVertex(face, 0)
				b.addVertex(face, i-1)
				b.addVertex(face, i)
			}
		}
	}

	meshes := make([]Mesh, 0, len(order))
	for _, name := range order {
		if mesh := builders[name].mesh; len(mesh.Indices) > 0 {
			meshes = append(meshes, *mesh)
		}
	}
	return meshes
}

// LoadModel loads objPath with the material library next to it, if any,
// and decodes every referenced texture concurrently.
func (l *Loader) LoadModel(ctx context.Context, objPath string) (*Model, error) {
	mtlPath := strings.TrimSuffix(objPath, path.Ext(objPath)) + ".mtl"
	if _, err := fs.Stat(l.fsys, mtlPath); err != nil {
		mtlPath = ""
	}

	meshes, err := l.LoadOBJ(objPath, mtlPath)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for _, mesh := range meshes {
		if mesh.Texture != "" {
			paths[mesh.Texture] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	decoded := make([]render.Pixels, len(sorted))
	group, ctx := errgroup.WithContext(ctx)
	for i, texturePath := range sorted {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pixels, err := l.LoadTexture(texturePath)
			if err != nil {
				return errors.Wrapf(err, "load texture %s", texturePath)
			}
			decoded[i] = pixels
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	model := &Model{Meshes: meshes, Textures: make(map[string]render.Pixels, len(sorted))}
	for i, texturePath := range sorted {
		model.Textures[texturePath] = decoded[i]
	}
	logging.Logger().Info("model loaded", "path", objPath, "meshes", len(meshes), "textures", len(sorted))
	return model, nil
}
