package render

import "github.com/go-gl/mathgl/mgl32"

type Camera struct {
	Eye    mgl32.Vec3
	Center mgl32.Vec3
	Up     mgl32.Vec3
	// FOV is the vertical field of view in degrees.
	FOV  float32
	Near float32
	Far  float32
}

func DefaultCamera() Camera {
	return Camera{
		Eye:  mgl32.Vec3{2, 0, 0},
		Up:   mgl32.Vec3{0, 0, 1},
		FOV:  45,
		Near: 0.1,
		Far:  10,
	}
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Center, c.Up)
}

// Projection returns a perspective matrix with Y pointing down in clip
// space.
func (c Camera) Projection(extent mgl32.Vec2) mgl32.Mat4 {
	aspect := float32(1)
	if extent.Y() > 0 {
		aspect = extent.X() / extent.Y()
	}
	proj := mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.Near, c.Far)
	proj[5] *= -1
	return proj
}

type Light struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
}

func DefaultLight() Light {
	return Light{
		Position: mgl32.Vec4{1, 5, 0, 1},
		Color:    mgl32.Vec4{1, 1, 1, 1},
	}
}
