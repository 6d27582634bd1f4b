package soft

import (
	"fmt"
	"sync"

	"GopherPBR/internal/gpu"
)

// object is embedded by every device object. Its address identifies the
// object in command buffer reference sets.
type object struct {
	dev       *Device
	label     string
	destroyed bool
}

func (o *object) Destroy() {
	if o.destroyed {
		return
	}
	o.destroyed = true
	if o.dev.inUse(o) {
		o.dev.violate("%s destroyed while a pending submission references it", o.label)
	}
	o.dev.record(Event{Op: OpDestroy, Label: o.label})
}

type image struct {
	object
	desc    gpu.ImageDesc
	mu      sync.RWMutex
	data    [][]float32
	layouts []gpu.Layout
}

func newImage(d *Device, desc gpu.ImageDesc) *image {
	im := &image{
		object:  object{dev: d, label: desc.Label},
		desc:    desc,
		data:    make([][]float32, desc.Mips*desc.Layers),
		layouts: make([]gpu.Layout, desc.Mips*desc.Layers),
	}
	for m := 0; m < desc.Mips; m++ {
		e := desc.Extent.Mip(m)
		for l := 0; l < desc.Layers; l++ {
			im.data[m*desc.Layers+l] = make([]float32, e.Width*e.Height*4)
		}
	}
	return im
}

func (i *image) Desc() gpu.ImageDesc { return i.desc }

func (i *image) sub(mip, layer int) []float32 { return i.data[mip*i.desc.Layers+layer] }

func (i *image) layout(mip, layer int) gpu.Layout { return i.layouts[mip*i.desc.Layers+layer] }

func (i *image) NewView(desc gpu.ViewDesc) (gpu.View, error) {
	if desc.Mips == 0 {
		desc.Mips = i.desc.Mips - desc.BaseMip
	}
	if desc.Layers == 0 {
		desc.Layers = i.desc.Layers - desc.BaseLayer
	}
	if desc.BaseMip+desc.Mips > i.desc.Mips || desc.BaseLayer+desc.Layers > i.desc.Layers {
		return nil, fmt.Errorf("soft: view %s outside image %s", desc.Label, i.label)
	}
	if desc.Cube && (!i.desc.Cube || desc.Layers != 6) {
		return nil, fmt.Errorf("soft: cube view %s of non-cube image %s", desc.Label, i.label)
	}
	return &view{object: object{dev: i.dev, label: desc.Label}, img: i, desc: desc}, nil
}

type view struct {
	object
	img  *image
	desc gpu.ViewDesc
}

func (v *view) Image() gpu.Image   { return v.img }
func (v *view) Desc() gpu.ViewDesc { return v.desc }
func (v *view) extent() gpu.Extent { return v.img.desc.Extent.Mip(v.desc.BaseMip) }

type sampler struct {
	object
	desc gpu.SamplerDesc
}

func (s *sampler) Desc() gpu.SamplerDesc { return s.desc }

type buffer struct {
	object
	desc gpu.BufferDesc
	mu   sync.RWMutex
	data []byte
}

func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Write(offset int, data []byte) error {
	if !b.desc.HostVisible {
		return fmt.Errorf("soft: buffer %s is not host visible", b.label)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("soft: write of %d bytes at %d overflows buffer %s (%d bytes)", len(data), offset, b.label, len(b.data))
	}
	b.mu.Lock()
	copy(b.data[offset:], data)
	b.mu.Unlock()
	return nil
}

func (b *buffer) bytes(offset, size int) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if size <= 0 || offset+size > len(b.data) {
		size = len(b.data) - offset
	}
	return append([]byte(nil), b.data[offset:offset+size]...)
}

type renderPass struct {
	object
	desc gpu.RenderPassDesc
}

func (p *renderPass) Desc() gpu.RenderPassDesc { return p.desc }

func (p *renderPass) NewFramebuffer(views []gpu.View, extent gpu.Extent) (gpu.Framebuffer, error) {
	want := len(p.desc.Colors)
	if p.desc.Depth != nil {
		want++
	}
	if len(views) != want {
		return nil, fmt.Errorf("soft: pass %s needs %d views, got %d", p.label, want, len(views))
	}
	fb := &framebuffer{object: object{dev: p.dev, label: p.label}, pass: p, extent: extent}
	for i, v := range views {
		sv := v.(*view)
		if sv.desc.Mips != 1 {
			return nil, fmt.Errorf("soft: attachment %d of %s views %d mips", i, p.label, sv.desc.Mips)
		}
		if e := sv.extent(); e.Width < extent.Width || e.Height < extent.Height {
			return nil, fmt.Errorf("soft: attachment %d of %s is %v, framebuffer is %v", i, p.label, e, extent)
		}
		fb.views = append(fb.views, sv)
	}
	return fb, nil
}

type framebuffer struct {
	object
	pass   *renderPass
	views  []*view
	extent gpu.Extent
}

func (f *framebuffer) Pass() gpu.RenderPass { return f.pass }
func (f *framebuffer) Extent() gpu.Extent   { return f.extent }

func (f *framebuffer) Views() []gpu.View {
	out := make([]gpu.View, len(f.views))
	for i, v := range f.views {
		out[i] = v
	}
	return out
}

type setLayout struct {
	object
	bindings []gpu.DescriptorLayoutBinding
}

func (l *setLayout) Bindings() []gpu.DescriptorLayoutBinding {
	return append([]gpu.DescriptorLayoutBinding(nil), l.bindings...)
}

func (l *setLayout) NewSet() (gpu.DescriptorSet, error) {
	return &descriptorSet{
		object: object{dev: l.dev, label: l.label + " set"},
		layout: l,
		writes: make(map[int]gpu.DescriptorWrite),
	}, nil
}

type descriptorSet struct {
	object
	layout *setLayout
	mu     sync.Mutex
	writes map[int]gpu.DescriptorWrite
}

func (s *descriptorSet) Layout() gpu.DescriptorSetLayout { return s.layout }

func (s *descriptorSet) Update(writes []gpu.DescriptorWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if w.Binding < 0 || w.Binding >= len(s.layout.bindings) {
			return fmt.Errorf("soft: %s has no binding %d", s.label, w.Binding)
		}
		if k := s.layout.bindings[w.Binding].Kind; k != w.Kind {
			return fmt.Errorf("soft: %s binding %d is a %s, write is a %s", s.label, w.Binding, k, w.Kind)
		}
		s.writes[w.Binding] = w
	}
	return nil
}

func (s *descriptorSet) snapshot() map[int]gpu.DescriptorWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]gpu.DescriptorWrite, len(s.writes))
	for k, v := range s.writes {
		out[k] = v
	}
	return out
}

type shaderModule struct {
	object
	src gpu.ShaderSource
}

func (m *shaderModule) Source() gpu.ShaderSource { return m.src }

type pipeline struct {
	object
	desc *gpu.PipelineDesc
}

func (p *pipeline) Desc() *gpu.PipelineDesc { return p.desc }

type fence struct {
	object
	signaled bool
	pending  bool
}

func (f *fence) Wait() error {
	f.dev.mu.Lock()
	signaled, pending := f.signaled, f.pending
	f.dev.mu.Unlock()
	if signaled {
		return nil
	}
	if !pending {
		return fmt.Errorf("soft: wait on fence that was never submitted")
	}
	return f.dev.completeThrough(f)
}

func (f *fence) Reset() error {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	if f.pending {
		return fmt.Errorf("soft: reset of pending fence: %w", gpu.ErrInFlight)
	}
	f.signaled = false
	return nil
}

func (f *fence) Signaled() bool {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	return f.signaled
}

type semaphore struct {
	object
}
