package ibl

import (
	"fmt"

	"GopherPBR/internal/gpu"
)

// Config sizes the precomputed maps and the sample counts of their kernels.
type Config struct {
	EnvironmentSize int `json:"environmentSize" yaml:"environmentSize"`
	IrradianceSize  int `json:"irradianceSize" yaml:"irradianceSize"`
	PrefilterSize   int `json:"prefilterSize" yaml:"prefilterSize"`
	PrefilterMips   int `json:"prefilterMips" yaml:"prefilterMips"`
	BRDFSize        int `json:"brdfSize" yaml:"brdfSize"`

	// Angular step of the irradiance convolution, in radians.
	IrradianceSampleDelta float32 `json:"irradianceSampleDelta" yaml:"irradianceSampleDelta"`
	PrefilterSamples      int     `json:"prefilterSamples" yaml:"prefilterSamples"`
	BRDFSamples           int     `json:"brdfSamples" yaml:"brdfSamples"`
}

// DefaultConfig returns the production sizes.
func DefaultConfig() Config {
	return Config{
		EnvironmentSize:       512,
		IrradianceSize:        32,
		PrefilterSize:         128,
		PrefilterMips:         5,
		BRDFSize:              512,
		IrradianceSampleDelta: 0.025,
		PrefilterSamples:      1024,
		BRDFSamples:           1024,
	}
}

func (c Config) Validate() error {
	for name, v := range map[string]int{
		"environmentSize":  c.EnvironmentSize,
		"irradianceSize":   c.IrradianceSize,
		"prefilterSize":    c.PrefilterSize,
		"prefilterMips":    c.PrefilterMips,
		"brdfSize":         c.BRDFSize,
		"prefilterSamples": c.PrefilterSamples,
		"brdfSamples":      c.BRDFSamples,
	} {
		if v <= 0 {
			return fmt.Errorf("ibl: %s must be positive, got %d", name, v)
		}
	}
	if max := gpu.MipLevels(c.PrefilterSize); c.PrefilterMips > max {
		return fmt.Errorf("ibl: prefilterMips %d exceeds the %d levels of a %d map", c.PrefilterMips, max, c.PrefilterSize)
	}
	if c.IrradianceSampleDelta <= 0 || c.IrradianceSampleDelta > 0.5 {
		return fmt.Errorf("ibl: irradianceSampleDelta %v outside (0, 0.5]", c.IrradianceSampleDelta)
	}
	return nil
}
