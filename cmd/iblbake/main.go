// Command iblbake runs the image-based lighting precompute on the software
// device and writes the results as PNG previews: one strip of six faces
// for the environment, the irradiance map and each prefiltered mip, plus
// the BRDF lookup table.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/gpu/soft"
	"GopherPBR/internal/ibl"
	"GopherPBR/internal/logger"
	"GopherPBR/internal/renderer"
	"GopherPBR/internal/shaders"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "JSON or YAML renderer config; only the ibl section is used")
	panorama := flag.String("panorama", "", "equirectangular .hdr or LDR image (required)")
	outDir := flag.String("out", "ibl_out", "output directory")
	cell := flag.Int("face", 128, "edge length of each face in the preview strips")
	exposure := flag.Float64("exposure", 1, "exposure applied before tone mapping")
	workers := flag.Int("workers", 0, "kernel goroutines; 0 uses every CPU")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	if *debug {
		logger.InitDebug()
	} else {
		logger.Init()
	}
	defer logger.Sync()

	if *panorama == "" {
		flag.Usage()
		os.Exit(2)
	}
	cfg := renderer.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = renderer.LoadConfig(*configPath); err != nil {
			logger.Log.Fatal("Could not load config", zap.Error(err))
		}
	}
	if err := run(cfg.IBL, *panorama, *outDir, *cell, float32(*exposure), *workers); err != nil {
		logger.Log.Fatal("Bake failed", zap.Error(err))
	}
}

type namedTextures map[string]*gpu.Texture

func (n namedTextures) Register(name string, tex *gpu.Texture) { n[name] = tex }

func run(cfg ibl.Config, panoramaPath, outDir string, cell int, exposure float32, workers int) error {
	pano, err := ibl.LoadPanorama(panoramaPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var opts []soft.Option
	if workers > 0 {
		opts = append(opts, soft.WithWorkers(workers))
	}
	dev := soft.New(opts...)
	defer dev.Destroy()

	registered := namedTextures{}
	baker, err := ibl.NewBaker(dev, shaders.NewLibrary(""), cfg, registered)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := baker.Bake(pano)
	if err != nil {
		return err
	}
	defer res.Destroy()
	logger.Log.Info("Bake finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("textures", len(registered)))

	written, err := export(dev, res, outDir, cell, exposure)
	for _, path := range written {
		logger.Log.Info("Wrote preview", zap.String("path", path))
	}
	return err
}

// export writes every preview and returns the paths written so far.
func export(r pixelReader, res *ibl.Result, outDir string, cell int, exposure float32) ([]string, error) {
	var written []string
	strip := func(name string, tex *gpu.Texture, mip int) error {
		img, err := faceStrip(r, tex, mip, cell, exposure)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		path, err := writePNG(outDir, name, img)
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := strip("environment.png", res.Environment, 0); err != nil {
		return written, err
	}
	if err := strip("irradiance.png", res.Irradiance, 0); err != nil {
		return written, err
	}
	for mip := 0; mip < res.PrefilterMips; mip++ {
		if err := strip(fmt.Sprintf("prefiltered_mip%d.png", mip), res.Prefiltered, mip); err != nil {
			return written, err
		}
	}

	px, ext, err := r.ReadPixels(res.BRDF.Image(), 0, 0)
	if err != nil {
		return written, fmt.Errorf("brdf: %w", err)
	}
	path, err := writePNG(outDir, "brdf_lut.png", toImage(px, ext, 1, linear))
	if err != nil {
		return written, err
	}
	return append(written, path), nil
}
