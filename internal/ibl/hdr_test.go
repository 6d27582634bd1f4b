package ibl

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
)

func rgbeFile() []byte {
	var b bytes.Buffer
	b.WriteString("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 2 +X 8\n")

	// Row 0, new-style RLE: red and green runs, a blue literal, one exponent.
	b.Write([]byte{2, 2, 0, 8})
	b.Write([]byte{128 + 8, 128})
	b.Write([]byte{128 + 8, 64})
	b.Write([]byte{8, 0, 16, 32, 48, 64, 80, 96, 112})
	b.Write([]byte{128 + 8, 129})

	// Row 1, flat pixel followed by an old-style run of seven.
	b.Write([]byte{128, 0, 0, 129})
	b.Write([]byte{1, 1, 1, 7})
	return b.Bytes()
}

func TestDecodeRGBE(t *testing.T) {
	p, err := DecodeRGBE(bytes.NewReader(rgbeFile()))
	if err != nil {
		t.Fatalf("DecodeRGBE failed: %v", err)
	}
	if p.Width != 8 || p.Height != 2 {
		t.Fatalf("expected 8x2, got %dx%d", p.Width, p.Height)
	}
	for x := 0; x < 8; x++ {
		c := p.At(x, 0)
		if c[0] != 1 || c[1] != 0.5 {
			t.Errorf("row 0 pixel %d: expected red 1 green 0.5, got %v", x, c)
		}
		if want := float32(x) * 16 / 128; c[2] != want {
			t.Errorf("row 0 pixel %d: expected blue %v, got %v", x, want, c[2])
		}
		if c := p.At(x, 1); c != [4]float32{1, 0, 0, 1} {
			t.Errorf("row 1 pixel %d: expected pure red, got %v", x, c)
		}
	}
}

func TestDecodeRGBERejectsOtherFormats(t *testing.T) {
	_, err := DecodeRGBE(bytes.NewReader([]byte("\x89PNG\r\n")))
	if !errors.Is(err, errNotRadiance) {
		t.Errorf("expected errNotRadiance, got %v", err)
	}
	truncated := rgbeFile()[:60]
	if _, err := DecodeRGBE(bytes.NewReader(truncated)); err == nil {
		t.Error("a truncated file should fail to decode")
	}
}

func TestLoadPanoramaFormats(t *testing.T) {
	dir := t.TempDir()

	hdrPath := filepath.Join(dir, "sky.hdr")
	if err := os.WriteFile(hdrPath, rgbeFile(), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPanorama(hdrPath)
	if err != nil {
		t.Fatalf("LoadPanorama(.hdr) failed: %v", err)
	}
	if p.Width != 8 {
		t.Errorf("expected width 8, got %d", p.Width)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 0, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	pngPath := filepath.Join(dir, "sky.png")
	if err := os.WriteFile(pngPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = LoadPanorama(pngPath)
	if err != nil {
		t.Fatalf("LoadPanorama(.png) failed: %v", err)
	}
	c := p.At(1, 1)
	if math32.Abs(c[0]-1) > 1e-4 || c[1] != 0 || math32.Abs(c[2]-1) > 1e-4 {
		t.Errorf("expected linear magenta, got %v", c)
	}

	if _, err := LoadPanorama(filepath.Join(dir, "missing.hdr")); err == nil {
		t.Error("a missing file should be an error")
	}
}

func TestPanoramaBytes(t *testing.T) {
	p := ConstantPanorama(3, 2, [3]float32{1, 2, 3})
	if got := len(p.Bytes()); got != 3*2*16 {
		t.Errorf("expected %d bytes, got %d", 3*2*16, got)
	}
}
