package procedural

import (
	"image"
	"image/color"
)

// sample evaluates fn over a size x size image covering one noise period,
// so the result tiles when p is periodic.
func sample(p *Perlin, size int, fn func(u, v float32) float32) []float32 {
	out := make([]float32, size*size)
	scale := float32(max(p.Period, 1)) / float32(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			out[y*size+x] = fn(float32(x)*scale, float32(y)*scale)
		}
	}
	return out
}

func toByte(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// RoughnessMap returns a grayscale map of base +/- variation driven by
// fractal noise, for a material's roughness slot.
func RoughnessMap(p *Perlin, size int, base, variation float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i, n := range sample(p, size, func(u, v float32) float32 { return p.FBM(u, v, 0, 5, 0.5) }) {
		img.Pix[i] = toByte(base + n*variation)
	}
	return img
}

// MarbleMap blends from base to vein along a marble pattern.
func MarbleMap(p *Perlin, size int, base, vein color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	stripes := float32(2) / float32(max(p.Period, 1))
	mix := func(a, b uint8, t float32) uint8 {
		return uint8(float32(a) + (float32(b)-float32(a))*t + 0.5)
	}
	for i, t := range sample(p, size, func(u, v float32) float32 { return p.Marble(u, v, stripes) }) {
		t = 1 - t
		t = t * t * t
		img.Pix[i*4] = mix(base.R, vein.R, t)
		img.Pix[i*4+1] = mix(base.G, vein.G, t)
		img.Pix[i*4+2] = mix(base.B, vein.B, t)
		img.Pix[i*4+3] = 255
	}
	return img
}
