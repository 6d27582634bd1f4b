package ibl

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CaptureProjection is the square 90 degree perspective that makes one
// render cover exactly one cube face.
func CaptureProjection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 10)
}

// CaptureViews are the look-at matrices for the faces +X, -X, +Y, -Y, +Z, -Z,
// in cube layer order. The up vectors match the cube map face orientation
// with framebuffer rows running top to bottom.
func CaptureViews() [6]mgl32.Mat4 {
	origin := mgl32.Vec3{}
	return [6]mgl32.Mat4{
		mgl32.LookAtV(origin, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}),
		mgl32.LookAtV(origin, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}),
		mgl32.LookAtV(origin, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}),
		mgl32.LookAtV(origin, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}),
		mgl32.LookAtV(origin, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}),
		mgl32.LookAtV(origin, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}),
	}
}

// PrefilterRoughness is the roughness baked into mip m of a prefiltered map
// with mips levels.
func PrefilterRoughness(m, mips int) float32 {
	if mips <= 1 {
		return 0
	}
	return float32(m) / float32(mips-1)
}

// CubeVertices is a unit cube as 36 float3 positions. Triangles are
// counter-clockwise seen from outside the cube.
func CubeVertices() []float32 {
	return []float32{
		-1, 1, -1, 1, -1, -1, -1, -1, -1,
		1, -1, -1, -1, 1, -1, 1, 1, -1,

		-1, -1, 1, -1, 1, -1, -1, -1, -1,
		-1, 1, -1, -1, -1, 1, -1, 1, 1,

		1, -1, -1, 1, 1, 1, 1, -1, 1,
		1, 1, 1, 1, -1, -1, 1, 1, -1,

		-1, -1, 1, 1, 1, 1, -1, 1, 1,
		1, 1, 1, -1, -1, 1, 1, -1, 1,

		-1, 1, -1, 1, 1, 1, 1, 1, -1,
		1, 1, 1, -1, 1, -1, -1, 1, 1,

		-1, -1, -1, 1, -1, -1, -1, -1, 1,
		1, -1, -1, 1, -1, 1, -1, -1, 1,
	}
}
