package gpu

import (
	"fmt"
)

// Binding declares one named resource slot of a descriptor set. Its index is
// its position in the declaring list.
type Binding struct {
	Name   string
	Kind   DescriptorKind
	Stages ShaderStage
	// Size is the byte range bound for buffer kinds.
	Size int
}

func TextureBinding(name string, stages ShaderStage) Binding {
	return Binding{Name: name, Kind: KindTexture, Stages: stages}
}

func UniformBinding(name string, stages ShaderStage, size int) Binding {
	return Binding{Name: name, Kind: KindUniformBuffer, Stages: stages, Size: size}
}

func StorageBinding(name string, stages ShaderStage, size int) Binding {
	return Binding{Name: name, Kind: KindStorageBuffer, Stages: stages, Size: size}
}

// BindingLayout is a descriptor set layout whose bindings can be addressed by
// name.
type BindingLayout struct {
	Label    string
	raw      DescriptorSetLayout
	bindings []Binding
	index    map[string]int
}

// NewBindingLayout creates a layout with bindings at indices 0..len-1 in
// declaration order.
func NewBindingLayout(dev Device, label string, bindings []Binding) (*BindingLayout, error) {
	l := &BindingLayout{
		Label:    label,
		bindings: append([]Binding(nil), bindings...),
		index:    make(map[string]int, len(bindings)),
	}
	raw := make([]DescriptorLayoutBinding, len(bindings))
	for i, b := range bindings {
		if b.Name == "" {
			return nil, fmt.Errorf("layout %s: binding %d has no name", label, i)
		}
		if _, dup := l.index[b.Name]; dup {
			return nil, fmt.Errorf("layout %s: duplicate binding %q", label, b.Name)
		}
		if b.Kind != KindTexture && b.Size <= 0 {
			return nil, fmt.Errorf("layout %s: buffer binding %q needs a size", label, b.Name)
		}
		l.index[b.Name] = i
		raw[i] = DescriptorLayoutBinding{Index: i, Kind: b.Kind, Stages: b.Stages, Size: b.Size}
	}
	var err error
	l.raw, err = dev.NewDescriptorSetLayout(label, raw)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", label, err)
	}
	return l, nil
}

func (l *BindingLayout) Raw() DescriptorSetLayout { return l.raw }

// Len returns the number of bindings.
func (l *BindingLayout) Len() int { return len(l.bindings) }

// Bindings returns a copy of the declared bindings in index order.
func (l *BindingLayout) Bindings() []Binding {
	return append([]Binding(nil), l.bindings...)
}

// Index returns the binding index assigned to name.
func (l *BindingLayout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

func (l *BindingLayout) Destroy() {
	if l != nil && l.raw != nil {
		l.raw.Destroy()
	}
}

// NewSet allocates a descriptor set of this layout.
func (l *BindingLayout) NewSet() (*BindingSet, error) {
	raw, err := l.raw.NewSet()
	if err != nil {
		return nil, fmt.Errorf("layout %s: allocate set: %w", l.Label, err)
	}
	return &BindingSet{layout: l, raw: raw}, nil
}

// NewSets allocates n sets, typically one per frame in flight.
func (l *BindingLayout) NewSets(n int) ([]*BindingSet, error) {
	sets := make([]*BindingSet, 0, n)
	for i := 0; i < n; i++ {
		s, err := l.NewSet()
		if err != nil {
			for _, prev := range sets {
				prev.Destroy()
			}
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, nil
}

// BindingSet is a descriptor set written by binding name.
type BindingSet struct {
	layout *BindingLayout
	raw    DescriptorSet
}

func (s *BindingSet) Raw() DescriptorSet     { return s.raw }
func (s *BindingSet) Layout() *BindingLayout { return s.layout }

func (s *BindingSet) Destroy() {
	if s != nil && s.raw != nil {
		s.raw.Destroy()
	}
}

func (s *BindingSet) lookup(name string, kind DescriptorKind) (int, Binding, error) {
	i, ok := s.layout.index[name]
	if !ok {
		return 0, Binding{}, fmt.Errorf("layout %s: no binding %q", s.layout.Label, name)
	}
	b := s.layout.bindings[i]
	if b.Kind != kind {
		return 0, Binding{}, fmt.Errorf("layout %s: binding %q is a %s, cannot write a %s",
			s.layout.Label, name, b.Kind, kind)
	}
	return i, b, nil
}

// SetTexture points a texture binding at the base view and sampler of tex.
func (s *BindingSet) SetTexture(name string, tex *Texture) error {
	i, _, err := s.lookup(name, KindTexture)
	if err != nil {
		return err
	}
	if tex.Sampler == nil {
		return fmt.Errorf("layout %s: texture %s bound to %q has no sampler", s.layout.Label, tex.Label, name)
	}
	return s.raw.Update([]DescriptorWrite{{
		Binding: i,
		Kind:    KindTexture,
		View:    tex.View,
		Sampler: tex.Sampler,
	}})
}

// SetBuffer points a uniform or storage binding at buf, covering the declared
// binding size from offset.
func (s *BindingSet) SetBuffer(name string, buf Buffer, offset int) error {
	i, ok := s.layout.index[name]
	if !ok {
		return fmt.Errorf("layout %s: no binding %q", s.layout.Label, name)
	}
	kind := s.layout.bindings[i].Kind
	if kind == KindTexture {
		return fmt.Errorf("layout %s: binding %q is a texture, cannot write a buffer", s.layout.Label, name)
	}
	b := s.layout.bindings[i]
	if offset+b.Size > buf.Desc().Size {
		return fmt.Errorf("layout %s: binding %q needs %d bytes at offset %d, buffer has %d",
			s.layout.Label, name, b.Size, offset, buf.Desc().Size)
	}
	return s.raw.Update([]DescriptorWrite{{
		Binding: i,
		Kind:    kind,
		Buffer:  buf,
		Offset:  offset,
		Range:   b.Size,
	}})
}
