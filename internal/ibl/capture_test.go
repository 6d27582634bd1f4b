package ibl

import (
	"testing"

	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func TestPrefilterRoughness(t *testing.T) {
	want := []float32{0, 0.25, 0.5, 0.75, 1}
	for m, w := range want {
		if got := PrefilterRoughness(m, len(want)); got != w {
			t.Errorf("mip %d: expected roughness %v, got %v", m, w, got)
		}
	}
	if got := PrefilterRoughness(0, 1); got != 0 {
		t.Errorf("single mip chain should use roughness 0, got %v", got)
	}
}

func TestCaptureProjectionIsSquareNinetyDegrees(t *testing.T) {
	p := CaptureProjection()
	if math32.Abs(p.At(0, 0)-1) > 1e-5 || math32.Abs(p.At(1, 1)-1) > 1e-5 {
		t.Errorf("expected unit focal lengths, got %v and %v", p.At(0, 0), p.At(1, 1))
	}
}

func TestCaptureViewsLookDownFaceAxes(t *testing.T) {
	axes := [6]mgl32.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	views := CaptureViews()
	for face, axis := range axes {
		got := views[face].Mul4x1(axis.Vec4(0)).Vec3()
		if !nearVec3(got, mgl32.Vec3{0, 0, -1}, 1e-5) {
			t.Errorf("face %d: axis should map to the view forward, got %v", face, got)
		}
	}
}

// Every capture pixel must land on the same texel of the face it renders
// when the cube is later sampled by direction.
func TestCaptureMatchesCubeSampling(t *testing.T) {
	proj := CaptureProjection()
	views := CaptureViews()
	coords := []float32{0.1, 0.3, 0.5, 0.8}
	for face := 0; face < 6; face++ {
		push := gpu.EncodeMat4(nil, proj.Mul4(views[face]))
		for _, u := range coords {
			for _, v := range coords {
				fc := &gpu.FragmentContext{U: u, V: v, Push: push}
				got, s, tc := gpu.CubeFace(captureDirection(fc))
				if got != face {
					t.Fatalf("face %d pixel (%v, %v) sampled from face %d", face, u, v, got)
				}
				if math32.Abs(s-u) > 1e-4 || math32.Abs(tc-v) > 1e-4 {
					t.Errorf("face %d pixel (%v, %v) sampled at (%v, %v)", face, u, v, s, tc)
				}
			}
		}
	}
}

func TestCubeVerticesFaceOutward(t *testing.T) {
	v := CubeVertices()
	if len(v) != 36*3 {
		t.Fatalf("expected 108 floats, got %d", len(v))
	}
	for tri := 0; tri < 12; tri++ {
		a := mgl32.Vec3{v[tri*9], v[tri*9+1], v[tri*9+2]}
		b := mgl32.Vec3{v[tri*9+3], v[tri*9+4], v[tri*9+5]}
		c := mgl32.Vec3{v[tri*9+6], v[tri*9+7], v[tri*9+8]}
		normal := b.Sub(a).Cross(c.Sub(a))
		center := a.Add(b).Add(c).Mul(1.0 / 3)
		if normal.Dot(center) <= 0 {
			t.Errorf("triangle %d is wound inward", tri)
		}
	}
}

func TestSphericalUV(t *testing.T) {
	u, v := SphericalUV(mgl32.Vec3{1, 0, 0})
	if math32.Abs(u-0.5) > 1e-4 || math32.Abs(v-0.5) > 1e-4 {
		t.Errorf("+X should map to the panorama center, got (%v, %v)", u, v)
	}
	_, v = SphericalUV(mgl32.Vec3{0, 1, 0})
	if v > 1e-3 {
		t.Errorf("zenith should map to row 0, got v = %v", v)
	}
	_, v = SphericalUV(mgl32.Vec3{0, -1, 0})
	if v < 1-1e-3 {
		t.Errorf("nadir should map to the last row, got v = %v", v)
	}
}

func TestIntegrateBRDFMirror(t *testing.T) {
	a, b := IntegrateBRDF(1, 0, 64)
	if math32.Abs(a-1) > 1e-4 || math32.Abs(b) > 1e-4 {
		t.Errorf("a smooth surface seen head-on should give scale 1 bias 0, got %v %v", a, b)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.PrefilterMips = 9
	if err := cfg.Validate(); err == nil {
		t.Error("more mips than a 128 map has should be rejected")
	}
	cfg = DefaultConfig()
	cfg.IrradianceSampleDelta = 0
	if err := cfg.Validate(); err == nil {
		t.Error("a zero sample step should be rejected")
	}
}

// nearVec3 compares per component with an absolute tolerance, so zero
// components do not need exact float equality.
func nearVec3(a, b mgl32.Vec3, tol float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
