package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Kernel is a fragment stage written in Go. Software devices evaluate it once
// per covered pixel of a full-target draw and store the result in color
// attachment 0.
type Kernel func(fc *FragmentContext) [4]float32

// TextureReader samples a bound texture. Coordinates and directions follow
// the conventions of the matching GLSL sampler.
type TextureReader interface {
	Sample2D(u, v, lod float32) [4]float32
	SampleCube(dir mgl32.Vec3, lod float32) [4]float32
	Mips() int
	Extent() Extent
}

// ResourceReader exposes the resources bound for a draw.
type ResourceReader interface {
	Texture(set, binding int) TextureReader
	Uniform(set, binding int) []byte
}

// FragmentContext is the per-pixel input of a Kernel.
type FragmentContext struct {
	// X, Y are the pixel coordinates inside the target.
	X, Y int
	// U, V are the pixel center in [0,1] across the viewport, V pointing down.
	U, V      float32
	Push      []byte
	Resources ResourceReader
}

// NDC returns the pixel center in Vulkan normalized device coordinates.
func (fc *FragmentContext) NDC() mgl32.Vec2 {
	return mgl32.Vec2{fc.U*2 - 1, fc.V*2 - 1}
}

// PushMat4 decodes a column-major matrix at byte offset off of the push
// constant block.
func (fc *FragmentContext) PushMat4(off int) mgl32.Mat4 {
	return DecodeMat4(fc.Push[off:])
}

// PushFloat decodes a float32 at byte offset off of the push constant block.
func (fc *FragmentContext) PushFloat(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(fc.Push[off:]))
}

// EncodeMat4 appends m in column-major little-endian form.
func EncodeMat4(dst []byte, m mgl32.Mat4) []byte {
	for _, v := range m {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// EncodeFloats appends each value as a little-endian float32.
func EncodeFloats(dst []byte, vs ...float32) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeMat4 reads a column-major little-endian matrix.
func DecodeMat4(b []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}
