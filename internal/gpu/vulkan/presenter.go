package vulkan

import (
	"errors"
	"fmt"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	vk "github.com/vulkan-go/vulkan"
	"go.uber.org/zap"
)

// Presenter is the window swapchain.
type Presenter struct {
	dev       *Device
	swapchain vk.Swapchain
	format    gpu.Format
	extent    gpu.Extent
	requested int
	images    []*image
}

func newPresenter(d *Device, extent gpu.Extent, count int) (*Presenter, error) {
	p := &Presenter{dev: d, requested: count, swapchain: vk.NullSwapchain}
	if err := p.create(extent); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Presenter) surfaceFormat() (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(p.dev.physical, p.dev.surface, &count, nil)
	if count == 0 {
		return vk.SurfaceFormat{}, errors.New("vulkan: surface has no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(p.dev.physical, p.dev.surface, &count, formats)
	var fallback *vk.SurfaceFormat
	for i := range formats {
		f := &formats[i]
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorspaceSrgbNonlinear {
			return *f, nil
		}
		if fallback == nil && gpuFormat(f.Format) != gpu.FormatUndefined {
			fallback = f
		}
	}
	if fallback == nil {
		return vk.SurfaceFormat{}, errors.New("vulkan: no supported surface format")
	}
	return *fallback, nil
}

func clampExtent(want gpu.Extent, caps *vk.SurfaceCapabilities) vk.Extent2D {
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	clamp := func(v, lo, hi uint32) uint32 {
		return min(max(v, lo), hi)
	}
	return vk.Extent2D{
		Width:  clamp(uint32(want.Width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(uint32(want.Height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func (p *Presenter) create(want gpu.Extent) error {
	var caps vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(p.dev.physical, p.dev.surface, &caps)
	if err := vkError(res, "surface capabilities"); err != nil {
		return err
	}
	caps.Deref()
	format, err := p.surfaceFormat()
	if err != nil {
		return err
	}
	extent := clampExtent(want, &caps)
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("vulkan: swapchain extent %dx%d", extent.Width, extent.Height)
	}
	images := uint32(p.requested)
	if images < caps.MinImageCount {
		images = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && images > caps.MaxImageCount {
		images = caps.MaxImageCount
	}

	old := p.swapchain
	var swapchain vk.Swapchain
	res = vk.CreateSwapchain(p.dev.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          p.dev.surface,
		MinImageCount:    images,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &swapchain)
	if err := vkError(res, "create swapchain"); err != nil {
		return err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(p.dev.device, old, nil)
	}
	p.swapchain = swapchain
	p.format = gpuFormat(format.Format)
	p.extent = gpu.Extent{Width: int(extent.Width), Height: int(extent.Height)}

	var count uint32
	vk.GetSwapchainImages(p.dev.device, swapchain, &count, nil)
	handles := make([]vk.Image, count)
	vk.GetSwapchainImages(p.dev.device, swapchain, &count, handles)
	p.images = p.images[:0]
	for i, h := range handles {
		p.images = append(p.images, &image{
			dev:    p.dev,
			handle: h,
			desc: gpu.ImageDesc{
				Label:  fmt.Sprintf("swap image %d", i),
				Format: p.format,
				Extent: p.extent,
				Mips:   1,
				Layers: 1,
				Usage:  gpu.UsageColorAttachment,
			},
		})
	}
	logger.Log.Info("Swapchain created",
		zap.Int("width", p.extent.Width),
		zap.Int("height", p.extent.Height),
		zap.String("format", p.format.String()),
		zap.Int("images", len(p.images)))
	return nil
}

func (p *Presenter) Format() gpu.Format { return p.format }
func (p *Presenter) Extent() gpu.Extent { return p.extent }

func (p *Presenter) Images() []gpu.Image {
	out := make([]gpu.Image, len(p.images))
	for i, im := range p.images {
		out[i] = im
	}
	return out
}

func (p *Presenter) Acquire(signal gpu.Semaphore) (int, error) {
	var index uint32
	res := vk.AcquireNextImage(p.dev.device, p.swapchain, vk.MaxUint64,
		signal.(*semaphore).handle, vk.NullFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
		return int(index), nil
	case vk.ErrorOutOfDate:
		return 0, gpu.ErrOutOfDate
	}
	return 0, vkError(res, "acquire next image")
}

// Present queues the image; a suboptimal swapchain is reported as out of
// date so the caller rebuilds it.
func (p *Presenter) Present(index int, wait []gpu.Semaphore) error {
	sems := semaphores(wait)
	res := vk.QueuePresent(p.dev.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(sems)),
		PWaitSemaphores:    sems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{p.swapchain},
		PImageIndices:      []uint32{uint32(index)},
	})
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	}
	return vkError(res, "queue present")
}

func (p *Presenter) Recreate(extent gpu.Extent) error {
	return p.create(extent)
}

func (p *Presenter) Destroy() {
	if p.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(p.dev.device, p.swapchain, nil)
		p.swapchain = vk.NullSwapchain
	}
	p.images = nil
}
