// Command gopherpbr opens a window and renders a PBR scene lit by an HDR
// environment: either an OBJ model or a grid of material spheres.
package main

import (
	"flag"

	"GopherPBR/internal/engine"
	"GopherPBR/internal/logger"
	"GopherPBR/internal/renderer"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "JSON or YAML renderer config; defaults are used when empty")
	panorama := flag.String("panorama", "", "equirectangular .hdr or LDR image for the environment")
	shaderDir := flag.String("shaders", "", "directory of compiled SPIR-V shaders (overrides the config)")
	modelPath := flag.String("model", "", "OBJ model to show instead of the material grid")
	hotReload := flag.Bool("hot-reload", false, "rebuild pipelines when shader binaries change")
	orbit := flag.Float64("orbit", 0, "orbit the camera around the scene at this many radians per second")
	debug := flag.Bool("debug", false, "enable validation layers and debug logging")
	flag.Parse()

	if *debug {
		logger.InitDebug()
	} else {
		logger.Init()
	}
	defer logger.Sync()

	cfg := renderer.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = renderer.LoadConfig(*configPath); err != nil {
			logger.Log.Fatal("Could not load config", zap.Error(err))
		}
	}
	if *shaderDir != "" {
		cfg.ShaderDir = *shaderDir
	}
	if *hotReload {
		cfg.HotReload = true
	}

	gopher := engine.NewGopher(cfg)
	gopher.Debug = *debug
	gopher.Panorama = *panorama

	var s *scene
	gopher.SetOnSetup(func(g *engine.Gopher) error {
		var err error
		if *modelPath != "" {
			s, err = loadModelScene(g, *modelPath)
		} else {
			s, err = materialGrid(g)
		}
		if err == nil && *orbit != 0 {
			g.EnableCameraInput = false
			g.Behaviours.Add(orbitCamera(g, float32(*orbit)))
		}
		return err
	})
	// Clicking an item starts or stops its spin.
	gopher.SetOnPick(func(i int) {
		if s != nil {
			s.toggleSpin(gopher, i)
		}
	})
	gopher.SetOnClose(func(g *engine.Gopher) {
		if s != nil {
			s.release(g.Renderer())
		}
	})

	if err := gopher.Run(); err != nil {
		logger.Log.Fatal("Renderer stopped", zap.Error(err))
	}
}
