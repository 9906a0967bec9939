package render

import (
	"bytes"
	"encoding/binary"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

// VertexSize is the packed size of one Vertex in a vertex buffer.
const VertexSize = 32

func vertexAttributes() []gpu.VertexAttribute {
	return []gpu.VertexAttribute{
		{Location: 0, Format: gpu.FormatR32G32B32Float, Offset: 0},
		{Location: 1, Format: gpu.FormatR32G32B32Float, Offset: 12},
		{Location: 2, Format: gpu.FormatR32G32Float, Offset: 24},
	}
}

// GlobalUniforms is bound at set 0, binding 0.
type GlobalUniforms struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// LightUniforms is bound at set 0, binding 1.
type LightUniforms struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
}

// ObjectUniforms is bound at set 2, binding 0.
type ObjectUniforms struct {
	Model mgl32.Mat4
}

const (
	globalUniformSize = 128
	lightUniformSize  = 32
	objectUniformSize = 64
)

// encode writes data in the little-endian layout shaders read.
func encode(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return nil, errors.Wrap(err, "encode buffer data")
	}
	return buf.Bytes(), nil
}

// encodeMesh packs vertices followed by 32-bit indices. The returned offset
// is where the index data starts.
func encodeMesh(vertices []Vertex, indices []uint32) ([]byte, int, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, vertices); err != nil {
		return nil, 0, errors.Wrap(err, "encode vertices")
	}
	offset := buf.Len()
	if err := binary.Write(&buf, binary.LittleEndian, indices); err != nil {
		return nil, 0, errors.Wrap(err, "encode indices")
	}
	return buf.Bytes(), offset, nil
}
