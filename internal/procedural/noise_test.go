package procedural

import (
	"image/color"
	"testing"

	"github.com/chewxy/math32"
)

func TestNoiseZeroOnLattice(t *testing.T) {
	p := NewPerlin(7, 0)
	for _, c := range [][3]float32{{0, 0, 0}, {3, 1, 2}, {-4, 9, 17}} {
		if n := p.Noise3(c[0], c[1], c[2]); n != 0 {
			t.Errorf("expected 0 at lattice point %v, got %f", c, n)
		}
	}
}

func TestNoiseRangeAndDeterminism(t *testing.T) {
	a, b, c := NewPerlin(42, 0), NewPerlin(42, 0), NewPerlin(43, 0)
	differs := false
	for i := 0; i < 500; i++ {
		x, y, z := float32(i)*0.137, float32(i)*0.291, float32(i)*0.053
		n := a.Noise3(x, y, z)
		if math32.Abs(n) > 1.1 {
			t.Fatalf("noise %f out of range at %d", n, i)
		}
		if n != b.Noise3(x, y, z) {
			t.Fatalf("same seed gave different noise at %d", i)
		}
		if n != c.Noise3(x, y, z) {
			differs = true
		}
	}
	if !differs {
		t.Error("different seeds gave identical noise")
	}
}

func TestPeriodicNoiseTiles(t *testing.T) {
	const period = 4
	p := NewPerlin(3, period)
	for i := 0; i < 50; i++ {
		x, y := float32(i)*0.071, float32(i)*0.113
		if d := math32.Abs(p.FBM(x, y, 0, 4, 0.5) - p.FBM(x+period, y, 0, 4, 0.5)); d > 1e-4 {
			t.Fatalf("fbm not periodic in x at %d: diff %f", i, d)
		}
		if d := math32.Abs(p.Noise3(x, y, 0) - p.Noise3(x, y-period, 0)); d > 1e-4 {
			t.Fatalf("noise not periodic in y at %d: diff %f", i, d)
		}
	}
}

func TestRoughnessMapBounds(t *testing.T) {
	img := RoughnessMap(NewPerlin(1, 4), 32, 0.5, 0.2)
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("unexpected bounds %v", b)
	}
	lo, hi := toByte(0.3)-1, toByte(0.7)+1
	varied := false
	for _, v := range img.Pix {
		if v < lo || v > hi {
			t.Fatalf("roughness %d outside [%d, %d]", v, lo, hi)
		}
		if v != img.Pix[0] {
			varied = true
		}
	}
	if !varied {
		t.Error("expected the map to vary")
	}
}

func TestMarbleMapBlendsColors(t *testing.T) {
	base := color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	vein := color.NRGBA{R: 40, G: 60, B: 80, A: 255}
	img := MarbleMap(NewPerlin(9, 4), 16, base, vein)
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i+3] != 255 {
			t.Fatalf("pixel %d not opaque", i/4)
		}
		if img.Pix[i] < vein.R || img.Pix[i] > base.R || img.Pix[i+2] < vein.B || img.Pix[i+2] > base.B {
			t.Fatalf("pixel %d %v outside the base to vein range", i/4, img.Pix[i:i+4])
		}
	}
}
