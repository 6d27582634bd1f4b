package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"GopherPBR/internal/gpu/soft"
	"GopherPBR/internal/ibl"
	"GopherPBR/internal/shaders"
)

func TestToneMap(t *testing.T) {
	if got := toneMap(0, 1); got != 0 {
		t.Errorf("black should stay black, got %d", got)
	}
	if got := toneMap(1e9, 1); got != 255 {
		t.Errorf("very bright values should saturate, got %d", got)
	}
	if toneMap(0.5, 2) <= toneMap(0.5, 1) {
		t.Error("higher exposure should brighten")
	}
	if got := linear(0.5, 100); got != 128 {
		t.Errorf("expected linear 0.5 to store 128, got %d", got)
	}
}

func TestExportWritesPreviews(t *testing.T) {
	dev := soft.New(soft.WithWorkers(2))
	defer dev.Destroy()
	cfg := ibl.Config{
		EnvironmentSize:       8,
		IrradianceSize:        4,
		PrefilterSize:         8,
		PrefilterMips:         2,
		BRDFSize:              4,
		IrradianceSampleDelta: 0.2,
		PrefilterSamples:      8,
		BRDFSamples:           8,
	}
	baker, err := ibl.NewBaker(dev, shaders.NewLibrary(""), cfg, namedTextures{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := baker.Bake(ibl.ConstantPanorama(8, 4, [3]float32{1, 1, 1}))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Destroy()

	dir := t.TempDir()
	written, err := export(dev, res, dir, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"environment.png", "irradiance.png", "prefiltered_mip0.png", "prefiltered_mip1.png", "brdf_lut.png"}
	if len(written) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), written)
	}
	for i, name := range want {
		if written[i] != filepath.Join(dir, name) {
			t.Errorf("file %d: expected %s, got %s", i, name, written[i])
		}
	}

	f, err := os.Open(filepath.Join(dir, "irradiance.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 4 {
		t.Fatalf("expected a 24x4 strip, got %v", b)
	}
	// Radiance 1 maps to Reinhard 0.5, about 188 after the sRGB curve.
	r, _, _, _ := img.At(10, 2).RGBA()
	if got := r >> 8; got < 185 || got > 191 {
		t.Errorf("expected tone mapped irradiance near 188, got %d", got)
	}
}
