package procedural

import (
	"image"

	perlin "github.com/aquilax/go-perlin"
	"github.com/go-gl/mathgl/mgl32"
)

// Detail is fractal noise that does not repeat, for surface detail sampled
// once across a texture.
type Detail struct {
	// Scale is the noise frequency across one texture.
	Scale float64
	noise *perlin.Perlin
}

// NewDetail returns three octaves of noise, each at twice the frequency and
// half the weight of the last.
func NewDetail(seed int64, scale float64) *Detail {
	return &Detail{Scale: scale, noise: perlin.NewPerlin(2, 2, 3, seed)}
}

// Height returns the noise at texture coordinate (u, v).
func (d *Detail) Height(u, v float64) float64 {
	return d.noise.Noise2D(u*d.Scale, v*d.Scale)
}

// NormalMap encodes the tangent space normals of the height field as RGB.
// strength scales the slopes; zero gives a flat map.
func NormalMap(d *Detail, size int, strength float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	step := 1 / float64(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			u, v := float64(x)*step, float64(y)*step
			du := float32(d.Height(u+step, v)-d.Height(u-step, v)) / float32(2*step)
			dv := float32(d.Height(u, v+step)-d.Height(u, v-step)) / float32(2*step)
			n := mgl32.Vec3{-du * strength, -dv * strength, 1}.Normalize()
			i := img.PixOffset(x, y)
			img.Pix[i] = toByte(n[0]*0.5 + 0.5)
			img.Pix[i+1] = toByte(n[1]*0.5 + 0.5)
			img.Pix[i+2] = toByte(n[2]*0.5 + 0.5)
			img.Pix[i+3] = 255
		}
	}
	return img
}
