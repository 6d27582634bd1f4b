package renderer

import (
	"errors"
	"fmt"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	"go.uber.org/zap"
)

// ErrMissingAlbedo is returned when a material has no albedo texture.
var ErrMissingAlbedo = errors.New("material: albedo texture is required")

// MaterialDesc names the texture files of a material. Only Albedo is
// required; unset slots sample the default white texture.
type MaterialDesc struct {
	Albedo    string
	Normal    string
	Metallic  string
	Roughness string
	AO        string
	// Transparent materials are drawn by the forward pass, blended.
	Transparent bool
}

// Material slot names, in binding order of the material set.
var materialSlots = []string{"albedoMap", "normalMap", "metallicMap", "roughnessMap", "aoMap"}

func materialBindings() []gpu.Binding {
	b := make([]gpu.Binding, len(materialSlots))
	for i, name := range materialSlots {
		b[i] = gpu.TextureBinding(name, gpu.StageFragment)
	}
	return b
}

// Material is a descriptor set (set 1) over the material textures plus the
// pass pipeline it is drawn with.
type Material struct {
	Name        string
	Transparent bool
	Pipeline    *PipelineRef

	set      *gpu.BindingSet
	textures []*SharedTexture
}

func (m *Material) Set() *gpu.BindingSet { return m.set }

// MaterialFactory creates materials against one shared material layout.
type MaterialFactory struct {
	textures    *TextureManager
	queue       *gpu.ReclaimQueue
	layout      *gpu.BindingLayout
	opaque      *PipelineRef
	transparent *PipelineRef
}

func NewMaterialFactory(dev gpu.Device, textures *TextureManager, queue *gpu.ReclaimQueue, opaque, transparent *PipelineRef) (*MaterialFactory, error) {
	layout, err := gpu.NewBindingLayout(dev, "material", materialBindings())
	if err != nil {
		return nil, err
	}
	return &MaterialFactory{
		textures:    textures,
		queue:       queue,
		layout:      layout,
		opaque:      opaque,
		transparent: transparent,
	}, nil
}

// Layout returns the material set layout the pass pipelines are built with.
func (f *MaterialFactory) Layout() *gpu.BindingLayout { return f.layout }

// Create loads the textures of desc and writes the material set.
func (f *MaterialFactory) Create(name string, desc MaterialDesc) (*Material, error) {
	if desc.Albedo == "" {
		return nil, fmt.Errorf("material %s: %w", name, ErrMissingAlbedo)
	}
	m := &Material{Name: name, Transparent: desc.Transparent, Pipeline: f.opaque}
	if desc.Transparent {
		m.Pipeline = f.transparent
	}

	paths := []string{desc.Albedo, desc.Normal, desc.Metallic, desc.Roughness, desc.AO}
	for i, path := range paths {
		var tex *SharedTexture
		if path == "" {
			tex = f.textures.Default()
		} else {
			var err error
			tex, err = f.textures.LoadTexture(path, i == 0)
			if err != nil {
				f.release(m)
				return nil, fmt.Errorf("material %s: %w", name, err)
			}
		}
		m.textures = append(m.textures, tex)
	}

	set, err := f.layout.NewSet()
	if err != nil {
		f.release(m)
		return nil, fmt.Errorf("material %s: %w", name, err)
	}
	m.set = set
	for i, slot := range materialSlots {
		if err := set.SetTexture(slot, m.textures[i].Get()); err != nil {
			f.release(m)
			return nil, fmt.Errorf("material %s: %w", name, err)
		}
	}
	logger.Log.Debug("Material created",
		zap.String("material", name),
		zap.Bool("transparent", desc.Transparent))
	return m, nil
}

// Replace retires old in favor of new and returns new. The old set and
// texture references go through the reclaim queue because frames in flight
// may still bind them.
func (f *MaterialFactory) Replace(old, new *Material) *Material {
	if old != nil && old != new {
		f.release(old)
		logger.Log.Debug("Material retired", zap.String("material", old.Name))
	}
	return new
}

// Release retires m.
func (f *MaterialFactory) Release(m *Material) {
	if m != nil {
		f.release(m)
	}
}

func (f *MaterialFactory) release(m *Material) {
	if m.set != nil {
		f.queue.Push(m.set)
		m.set = nil
	}
	for _, tex := range m.textures {
		f.textures.ReleaseTexture(tex)
	}
	m.textures = nil
}

// Destroy releases the material layout. The device must be idle.
func (f *MaterialFactory) Destroy() {
	f.layout.Destroy()
}
