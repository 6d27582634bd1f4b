package vulkan

import (
	"fmt"

	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

type image struct {
	dev    *Device
	handle vk.Image
	memory vk.DeviceMemory
	desc   gpu.ImageDesc
	// owned is false for swapchain images.
	owned     bool
	destroyed bool
}

func (d *Device) NewImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Mips < 1 {
		desc.Mips = 1
	}
	if desc.Layers < 1 {
		desc.Layers = 1
	}
	if desc.Cube && desc.Layers != 6 {
		return nil, fmt.Errorf("vulkan: cube image %s needs 6 layers, got %d", desc.Label, desc.Layers)
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  uint32(desc.Extent.Width),
			Height: uint32(desc.Extent.Height),
			Depth:  1,
		},
		MipLevels:     uint32(desc.Mips),
		ArrayLayers:   uint32(desc.Layers),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if desc.Cube {
		info.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	var handle vk.Image
	if err := vkError(vk.CreateImage(d.device, &info, nil, &handle), "create image "+desc.Label); err != nil {
		return nil, err
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, handle, &req)
	mem, err := d.allocate(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(d.device, handle, nil)
		return nil, fmt.Errorf("image %s: %w", desc.Label, err)
	}
	vk.BindImageMemory(d.device, handle, mem, 0)
	return &image{dev: d, handle: handle, memory: mem, desc: desc, owned: true}, nil
}

func (i *image) Desc() gpu.ImageDesc { return i.desc }

func (i *image) NewView(desc gpu.ViewDesc) (gpu.View, error) {
	if desc.Mips == 0 {
		desc.Mips = i.desc.Mips - desc.BaseMip
	}
	if desc.Layers == 0 {
		desc.Layers = i.desc.Layers - desc.BaseLayer
	}
	viewType := vk.ImageViewType2d
	switch {
	case desc.Cube:
		viewType = vk.ImageViewTypeCube
	case desc.Layers > 1:
		viewType = vk.ImageViewType2dArray
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.handle,
		ViewType: viewType,
		Format:   vkFormat(i.desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect(i.desc.Format),
			BaseMipLevel:   uint32(desc.BaseMip),
			LevelCount:     uint32(desc.Mips),
			BaseArrayLayer: uint32(desc.BaseLayer),
			LayerCount:     uint32(desc.Layers),
		},
	}
	var handle vk.ImageView
	if err := vkError(vk.CreateImageView(i.dev.device, &info, nil, &handle), "create view "+desc.Label); err != nil {
		return nil, err
	}
	return &view{img: i, handle: handle, desc: desc}, nil
}

func (i *image) Destroy() {
	if i.destroyed || !i.owned {
		return
	}
	i.destroyed = true
	vk.DestroyImage(i.dev.device, i.handle, nil)
	vk.FreeMemory(i.dev.device, i.memory, nil)
}

type view struct {
	img       *image
	handle    vk.ImageView
	desc      gpu.ViewDesc
	destroyed bool
}

func (v *view) Image() gpu.Image   { return v.img }
func (v *view) Desc() gpu.ViewDesc { return v.desc }

func (v *view) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	vk.DestroyImageView(v.img.dev.device, v.handle, nil)
}

type sampler struct {
	dev       *Device
	handle    vk.Sampler
	desc      gpu.SamplerDesc
	destroyed bool
}

func (d *Device) NewSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	address := addressMode(desc.Address)
	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter(desc.MagFilter),
		MinFilter:    filter(desc.MinFilter),
		MipmapMode:   mipmapMode(desc.MipFilter),
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		CompareOp:    vk.CompareOpAlways,
		MaxLod:       desc.MaxLod,
		BorderColor:  vk.BorderColorIntOpaqueBlack,
	}
	var handle vk.Sampler
	if err := vkError(vk.CreateSampler(d.device, &info, nil, &handle), "create sampler "+desc.Label); err != nil {
		return nil, err
	}
	return &sampler{dev: d, handle: handle, desc: desc}, nil
}

func (s *sampler) Desc() gpu.SamplerDesc { return s.desc }

func (s *sampler) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	vk.DestroySampler(s.dev.device, s.handle, nil)
}

type buffer struct {
	dev       *Device
	handle    vk.Buffer
	memory    vk.DeviceMemory
	desc      gpu.BufferDesc
	destroyed bool
}

func (d *Device) NewBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("vulkan: buffer %s has size %d", desc.Label, desc.Size)
	}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := vkError(vk.CreateBuffer(d.device, &info, nil, &handle), "create buffer "+desc.Label); err != nil {
		return nil, err
	}
	props := vk.MemoryPropertyDeviceLocalBit
	if desc.HostVisible {
		props = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, handle, &req)
	mem, err := d.allocate(req, props)
	if err != nil {
		vk.DestroyBuffer(d.device, handle, nil)
		return nil, fmt.Errorf("buffer %s: %w", desc.Label, err)
	}
	vk.BindBufferMemory(d.device, handle, mem, 0)
	return &buffer{dev: d, handle: handle, memory: mem, desc: desc}, nil
}

func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Write(offset int, data []byte) error {
	if !b.desc.HostVisible {
		return fmt.Errorf("vulkan: buffer %s is not host visible", b.desc.Label)
	}
	if offset < 0 || offset+len(data) > b.desc.Size {
		return fmt.Errorf("vulkan: write of %d bytes at %d overflows buffer %s (%d bytes)",
			len(data), offset, b.desc.Label, b.desc.Size)
	}
	if len(data) == 0 {
		return nil
	}
	return b.dev.mapped(b.memory, offset, data)
}

func (b *buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	vk.DestroyBuffer(b.dev.device, b.handle, nil)
	vk.FreeMemory(b.dev.device, b.memory, nil)
}
