package renderer

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/linmath"
)

// GlobalsSize is the std140 size of the Globals uniform block shared by the
// geometry, lighting and forward passes.
const GlobalsSize = 192

// Globals mirrors the Globals uniform block at set 0 binding 0.
type Globals struct {
	View           linmath.Mat4x4
	Projection     linmath.Mat4x4
	CameraPosition mgl32.Vec3
	// LightDirection points from the light into the scene.
	LightDirection mgl32.Vec3
	LightColor     mgl32.Vec3
	LightIntensity float32
	Exposure       float32
	// PrefilterMips is the mip count of the prefiltered specular cube.
	PrefilterMips int
}

// NewGlobals gathers the per-frame block from the camera and light.
func NewGlobals(cam *Camera, sun Light, exposure float32, prefilterMips int) Globals {
	return Globals{
		View:           cam.ViewVulkan(),
		Projection:     cam.ProjectionVulkan(),
		CameraPosition: cam.Position,
		LightDirection: sun.Direction,
		LightColor:     sun.Color,
		LightIntensity: sun.Intensity,
		Exposure:       exposure,
		PrefilterMips:  prefilterMips,
	}
}

func appendFloats(dst []byte, vs ...float32) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func appendMat(dst []byte, m *linmath.Mat4x4) []byte {
	for col := range m {
		dst = appendFloats(dst, m[col][:]...)
	}
	return dst
}

// Bytes packs the block in std140 order.
func (g *Globals) Bytes() []byte {
	b := make([]byte, 0, GlobalsSize)
	b = appendMat(b, &g.View)
	b = appendMat(b, &g.Projection)
	b = appendFloats(b, g.CameraPosition[0], g.CameraPosition[1], g.CameraPosition[2], 1)
	b = appendFloats(b, g.LightDirection[0], g.LightDirection[1], g.LightDirection[2], 0)
	b = appendFloats(b, g.LightColor[0], g.LightColor[1], g.LightColor[2], g.LightIntensity)
	return appendFloats(b, g.Exposure, float32(g.PrefilterMips), 0, 0)
}

// decodeGlobals reads the fields the Go kernels need back out of a packed
// block.
func decodeGlobals(b []byte) (camera, lightDir, lightColor mgl32.Vec3, intensity, exposure, prefilterMips float32) {
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])) }
	camera = mgl32.Vec3{f(32), f(33), f(34)}
	lightDir = mgl32.Vec3{f(36), f(37), f(38)}
	lightColor = mgl32.Vec3{f(40), f(41), f(42)}
	return camera, lightDir, lightColor, f(43), f(44), f(45)
}
