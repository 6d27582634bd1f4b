package vulkan

import (
	"fmt"
	"unsafe"

	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

type commandBuffer struct {
	dev    *Device
	handle vk.CommandBuffer
	label  string
	// err is the first recording error, returned by End.
	err       error
	destroyed bool
}

func (d *Device) NewCommandBuffer(label string) (gpu.CommandBuffer, error) {
	handles := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, handles)
	if err := vkError(res, "allocate command buffer "+label); err != nil {
		return nil, err
	}
	return &commandBuffer{dev: d, handle: handles[0], label: label}, nil
}

func (c *commandBuffer) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("vulkan: %s: %s", c.label, fmt.Sprintf(format, args...))
	}
}

// Begin resets the buffer and starts a one-time recording. The caller
// guarantees the previous submission has completed.
func (c *commandBuffer) Begin() error {
	c.err = nil
	if err := vkError(vk.ResetCommandBuffer(c.handle, 0), "reset "+c.label); err != nil {
		return err
	}
	return vkError(vk.BeginCommandBuffer(c.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}), "begin "+c.label)
}

func (c *commandBuffer) End() error {
	if err := vkError(vk.EndCommandBuffer(c.handle), "end "+c.label); err != nil {
		return err
	}
	return c.err
}

func (c *commandBuffer) BeginRenderPass(fb gpu.Framebuffer, clears []gpu.ClearValue) {
	f := fb.(*framebuffer)
	desc := f.pass.desc
	values := make([]vk.ClearValue, 0, len(f.views))
	for i := range desc.Colors {
		var cv gpu.ClearValue
		if i < len(clears) {
			cv = clears[i]
		}
		values = append(values, vk.NewClearValue(cv.Color[:]))
	}
	if desc.Depth != nil {
		var cv gpu.ClearValue
		if i := len(desc.Colors); i < len(clears) {
			cv = clears[i]
		}
		values = append(values, vk.NewClearDepthStencil(cv.Depth, 0))
	}
	extent := vk.Extent2D{Width: uint32(f.extent.Width), Height: uint32(f.extent.Height)}
	vk.CmdBeginRenderPass(c.handle, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      f.pass.handle,
		Framebuffer:     f.handle,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}, vk.SubpassContentsInline)
	c.SetViewport(0, 0, f.extent.Width, f.extent.Height)
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) SetViewport(x, y, width, height int) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X:        float32(x),
		Y:        float32(y),
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: int32(x), Y: int32(y)},
		Extent: vk.Extent2D{Width: uint32(width), Height: uint32(height)},
	}})
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (c *commandBuffer) BindDescriptorSets(p gpu.Pipeline, first int, sets []gpu.DescriptorSet) {
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.(*descriptorSet).handle
	}
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, p.(*pipeline).layout,
		uint32(first), uint32(len(handles)), handles, 0, nil)
}

func (c *commandBuffer) PushConstants(p gpu.Pipeline, stages gpu.ShaderStage, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.handle, p.(*pipeline).layout, shaderStages(stages),
		uint32(offset), uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) BindVertexBuffer(b gpu.Buffer, offset int) {
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{b.(*buffer).handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *commandBuffer) BindIndexBuffer(b gpu.Buffer, offset int, t gpu.IndexType) {
	vk.CmdBindIndexBuffer(c.handle, b.(*buffer).handle, vk.DeviceSize(offset), indexType(t))
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	vk.CmdDraw(c.handle, uint32(vertexCount), uint32(instanceCount), uint32(firstVertex), uint32(firstInstance))
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	vk.CmdDrawIndexed(c.handle, uint32(indexCount), uint32(instanceCount), uint32(firstIndex),
		int32(vertexOffset), uint32(firstInstance))
}

func (c *commandBuffer) PipelineBarrier(b gpu.ImageBarrier) {
	img := b.Image.(*image)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       accessFlags(b.SrcAccess),
		DstAccessMask:       accessFlags(b.DstAccess),
		OldLayout:           imageLayout(b.Old),
		NewLayout:           imageLayout(b.New),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect(img.desc.Format),
			BaseMipLevel:   uint32(b.Range.BaseMip),
			LevelCount:     uint32(b.Range.Mips),
			BaseArrayLayer: uint32(b.Range.BaseLayer),
			LayerCount:     uint32(b.Range.Layers),
		},
	}
	vk.CmdPipelineBarrier(c.handle, stageFlags(b.SrcStage), stageFlags(b.DstStage), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (c *commandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, region gpu.BufferImageCopy) {
	img := dst.(*image)
	vk.CmdCopyBufferToImage(c.handle, src.(*buffer).handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1,
		[]vk.BufferImageCopy{{
			BufferOffset: vk.DeviceSize(region.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     aspect(img.desc.Format),
				MipLevel:       uint32(region.Mip),
				BaseArrayLayer: uint32(region.Layer),
				LayerCount:     1,
			},
			ImageExtent: vk.Extent3D{
				Width:  uint32(region.Extent.Width),
				Height: uint32(region.Extent.Height),
				Depth:  1,
			},
		}})
}

func corner(e gpu.Extent) [2]vk.Offset3D {
	return [2]vk.Offset3D{{}, {X: int32(e.Width), Y: int32(e.Height), Z: 1}}
}

func (c *commandBuffer) BlitImage(src, dst gpu.Image, region gpu.ImageBlit) {
	s, d := src.(*image), dst.(*image)
	if s.desc.Format.IsDepth() || d.desc.Format.IsDepth() {
		c.fail("blit %s -> %s: depth images cannot be blitted", s.desc.Label, d.desc.Label)
		return
	}
	layers := func(mip int) vk.ImageSubresourceLayers {
		return vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       uint32(mip),
			BaseArrayLayer: uint32(region.BaseLayer),
			LayerCount:     uint32(region.Layers),
		}
	}
	vk.CmdBlitImage(c.handle,
		s.handle, vk.ImageLayoutTransferSrcOptimal,
		d.handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{{
			SrcSubresource: layers(region.SrcMip),
			SrcOffsets:     corner(s.desc.Extent.Mip(region.SrcMip)),
			DstSubresource: layers(region.DstMip),
			DstOffsets:     corner(d.desc.Extent.Mip(region.DstMip)),
		}}, vk.FilterLinear)
}

func (c *commandBuffer) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	vk.FreeCommandBuffers(c.dev.device, c.dev.cmdPool, 1, []vk.CommandBuffer{c.handle})
}
