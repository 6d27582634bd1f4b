package renderer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"GopherPBR/internal/ibl"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// Config holds everything the renderer reads at startup. It is loaded from
// JSON or YAML; fields missing from the file keep their defaults.
type Config struct {
	// Frames recorded ahead of the GPU.
	FramesInFlight int `json:"framesInFlight" yaml:"framesInFlight"`
	// Directory of the compiled SPIR-V shaders; empty for software devices.
	ShaderDir string `json:"shaderDir" yaml:"shaderDir"`
	// Watch ShaderDir and rebuild pipelines when binaries change.
	HotReload bool `json:"hotReload" yaml:"hotReload"`

	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Title  string `json:"title" yaml:"title"`

	// Linear exposure applied before tone mapping.
	Exposure   float32    `json:"exposure" yaml:"exposure"`
	ClearColor [4]float32 `json:"clearColor" yaml:"clearColor"`

	Sun Light `json:"sun" yaml:"sun"`

	IBL ibl.Config `json:"ibl" yaml:"ibl"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		ShaderDir:      "shaders/spv",
		Width:          1280,
		Height:         720,
		Title:          "GopherPBR",
		Exposure:       1,
		ClearColor:     [4]float32{0, 0, 0, 1},
		Sun:            *CreateSunlight(mgl32.Vec3{-0.3, -1, -0.4}),
		IBL:            ibl.DefaultConfig(),
	}
}

// LoadConfig reads a config over the defaults and validates it. Files ending
// in .yaml or .yml are YAML, anything else JSON.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}
	if err := unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.FramesInFlight < 1 || c.FramesInFlight > 3 {
		return fmt.Errorf("framesInFlight must be 1..3, got %d", c.FramesInFlight)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size %dx%d is not positive", c.Width, c.Height)
	}
	if c.Exposure <= 0 {
		return fmt.Errorf("exposure must be positive, got %v", c.Exposure)
	}
	if c.Sun.Direction.Len() == 0 {
		return fmt.Errorf("sun direction is zero")
	}
	return c.IBL.Validate()
}
