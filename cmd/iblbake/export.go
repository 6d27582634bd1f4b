package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"
)

// pixelReader reads back one subresource as linear RGBA float texels.
type pixelReader interface {
	ReadPixels(img gpu.Image, mip, layer int) ([]float32, gpu.Extent, error)
}

// toneMap applies exposure, Reinhard and the sRGB curve.
func toneMap(v, exposure float32) uint8 {
	v *= exposure
	v = v / (1 + v)
	if v <= 0.0031308 {
		v *= 12.92
	} else {
		v = 1.055*math32.Pow(v, 1/2.4) - 0.055
	}
	return uint8(math32.Round(min(max(v, 0), 1) * 255))
}

// linear stores values already in [0, 1] without tone mapping, as the BRDF
// lookup table is data rather than radiance.
func linear(v, _ float32) uint8 {
	return uint8(math32.Round(min(max(v, 0), 1) * 255))
}

func toImage(px []float32, ext gpu.Extent, exposure float32, encode func(v, exposure float32) uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, ext.Width, ext.Height))
	for i := 0; i < ext.Width*ext.Height; i++ {
		img.Pix[i*4] = encode(px[i*4], exposure)
		img.Pix[i*4+1] = encode(px[i*4+1], exposure)
		img.Pix[i*4+2] = encode(px[i*4+2], exposure)
		img.Pix[i*4+3] = 255
	}
	return img
}

// faceStrip lays the six cube faces of one mip side by side, each scaled
// to cell pixels, in +X, -X, +Y, -Y, +Z, -Z order.
func faceStrip(r pixelReader, tex *gpu.Texture, mip, cell int, exposure float32) (*image.NRGBA, error) {
	strip := image.NewNRGBA(image.Rect(0, 0, cell*6, cell))
	draw.Draw(strip, strip.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	for face := 0; face < 6; face++ {
		px, ext, err := r.ReadPixels(tex.Image(), mip, face)
		if err != nil {
			return nil, err
		}
		src := toImage(px, ext, exposure, toneMap)
		dst := image.Rect(face*cell, 0, (face+1)*cell, cell)
		draw.NearestNeighbor.Scale(strip, dst, src, src.Bounds(), draw.Src, nil)
	}
	return strip, nil
}

func writePNG(dir, name string, img image.Image) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return path, f.Close()
}
