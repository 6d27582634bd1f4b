package vulkan

import (
	"fmt"

	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

type renderPass struct {
	dev       *Device
	handle    vk.RenderPass
	desc      gpu.RenderPassDesc
	destroyed bool
}

func attachment(a gpu.AttachmentDesc) vk.AttachmentDescription {
	layout := imageLayout(a.Layout)
	return vk.AttachmentDescription{
		Format:         vkFormat(a.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         loadOp(a.Load),
		StoreOp:        storeOp(a.Store),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  layout,
		FinalLayout:    layout,
	}
}

// NewRenderPass creates a single-subpass pass whose attachments start and end
// in their declared layouts, so the pass itself never transitions anything.
func (d *Device) NewRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	var attachments []vk.AttachmentDescription
	var colors []vk.AttachmentReference
	for i, c := range desc.Colors {
		attachments = append(attachments, attachment(c))
		colors = append(colors, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colors)),
		PColorAttachments:    colors,
	}
	if desc.Depth != nil {
		attachments = append(attachments, attachment(*desc.Depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(desc.Colors)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}
	var handle vk.RenderPass
	if err := vkError(vk.CreateRenderPass(d.device, &info, nil, &handle), "create render pass "+desc.Label); err != nil {
		return nil, err
	}
	return &renderPass{dev: d, handle: handle, desc: desc}, nil
}

func (p *renderPass) Desc() gpu.RenderPassDesc { return p.desc }

func (p *renderPass) NewFramebuffer(views []gpu.View, extent gpu.Extent) (gpu.Framebuffer, error) {
	want := len(p.desc.Colors)
	if p.desc.Depth != nil {
		want++
	}
	if len(views) != want {
		return nil, fmt.Errorf("vulkan: pass %s takes %d attachments, got %d", p.desc.Label, want, len(views))
	}
	handles := make([]vk.ImageView, len(views))
	for i, v := range views {
		handles[i] = v.(*view).handle
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      p.handle,
		AttachmentCount: uint32(len(handles)),
		PAttachments:    handles,
		Width:           uint32(extent.Width),
		Height:          uint32(extent.Height),
		Layers:          1,
	}
	var handle vk.Framebuffer
	if err := vkError(vk.CreateFramebuffer(p.dev.device, &info, nil, &handle), "create framebuffer "+p.desc.Label); err != nil {
		return nil, err
	}
	return &framebuffer{pass: p, handle: handle, views: append([]gpu.View(nil), views...), extent: extent}, nil
}

func (p *renderPass) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	vk.DestroyRenderPass(p.dev.device, p.handle, nil)
}

type framebuffer struct {
	pass      *renderPass
	handle    vk.Framebuffer
	views     []gpu.View
	extent    gpu.Extent
	destroyed bool
}

func (f *framebuffer) Pass() gpu.RenderPass { return f.pass }
func (f *framebuffer) Views() []gpu.View    { return append([]gpu.View(nil), f.views...) }
func (f *framebuffer) Extent() gpu.Extent   { return f.extent }

func (f *framebuffer) Destroy() {
	if f.destroyed {
		return
	}
	f.destroyed = true
	vk.DestroyFramebuffer(f.pass.dev.device, f.handle, nil)
}
