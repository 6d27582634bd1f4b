package vulkan

import (
	"fmt"

	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

type setLayout struct {
	dev       *Device
	handle    vk.DescriptorSetLayout
	label     string
	bindings  []gpu.DescriptorLayoutBinding
	destroyed bool
}

func (d *Device) NewDescriptorSetLayout(label string, bindings []gpu.DescriptorLayoutBinding) (gpu.DescriptorSetLayout, error) {
	vb := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vb[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(b.Index),
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: 1,
			StageFlags:      shaderStages(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vb)),
		PBindings:    vb,
	}
	var handle vk.DescriptorSetLayout
	if err := vkError(vk.CreateDescriptorSetLayout(d.device, &info, nil, &handle), "create set layout "+label); err != nil {
		return nil, err
	}
	return &setLayout{
		dev:      d,
		handle:   handle,
		label:    label,
		bindings: append([]gpu.DescriptorLayoutBinding(nil), bindings...),
	}, nil
}

func (l *setLayout) Bindings() []gpu.DescriptorLayoutBinding {
	return append([]gpu.DescriptorLayoutBinding(nil), l.bindings...)
}

func (l *setLayout) NewSet() (gpu.DescriptorSet, error) {
	sets := make([]vk.DescriptorSet, 1)
	res := vk.AllocateDescriptorSets(l.dev.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     l.dev.descPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.handle},
	}, &sets[0])
	if err := vkError(res, "allocate set "+l.label); err != nil {
		return nil, err
	}
	return &descriptorSet{layout: l, handle: sets[0]}, nil
}

func (l *setLayout) Destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	vk.DestroyDescriptorSetLayout(l.dev.device, l.handle, nil)
}

type descriptorSet struct {
	layout    *setLayout
	handle    vk.DescriptorSet
	destroyed bool
}

func (s *descriptorSet) Layout() gpu.DescriptorSetLayout { return s.layout }

func (s *descriptorSet) Update(writes []gpu.DescriptorWrite) error {
	vw := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.handle,
			DstBinding:      uint32(w.Binding),
			DescriptorCount: 1,
			DescriptorType:  descriptorType(w.Kind),
		}
		switch w.Kind {
		case gpu.KindTexture:
			if w.View == nil || w.Sampler == nil {
				return fmt.Errorf("vulkan: set %s binding %d: texture write needs a view and a sampler", s.layout.label, w.Binding)
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     w.Sampler.(*sampler).handle,
				ImageView:   w.View.(*view).handle,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		default:
			if w.Buffer == nil {
				return fmt.Errorf("vulkan: set %s binding %d: %s write needs a buffer", s.layout.label, w.Binding, w.Kind)
			}
			size := w.Range
			if size == 0 {
				size = w.Buffer.Desc().Size - w.Offset
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: w.Buffer.(*buffer).handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(size),
			}}
		}
		vw = append(vw, write)
	}
	vk.UpdateDescriptorSets(s.layout.dev.device, uint32(len(vw)), vw, 0, nil)
	return nil
}

func (s *descriptorSet) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	handle := s.handle
	vk.FreeDescriptorSets(s.layout.dev.device, s.layout.dev.descPool, 1, &handle)
}
