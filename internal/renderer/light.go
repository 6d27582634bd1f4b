package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Light is the directional light evaluated by the lighting and forward
// passes. Image-based lighting supplies everything else.
type Light struct {
	Direction mgl32.Vec3 `json:"direction" yaml:"direction"`
	Color     mgl32.Vec3 `json:"color" yaml:"color"`
	Intensity float32    `json:"intensity" yaml:"intensity"`
}

// CreateDirectionalLight creates a light shining along direction.
func CreateDirectionalLight(direction mgl32.Vec3, color mgl32.Vec3, intensity float32) *Light {
	return &Light{
		Direction: direction.Normalize(),
		Color:     color,
		Intensity: intensity,
	}
}

// CreateSunlight creates a warm white sun.
func CreateSunlight(direction mgl32.Vec3) *Light {
	return CreateDirectionalLight(direction, mgl32.Vec3{1.0, 0.95, 0.8}, 1.2)
}
