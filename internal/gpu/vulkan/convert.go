package vulkan

import (
	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

var formats = map[gpu.Format]vk.Format{
	gpu.FormatRGBA8Unorm:   vk.FormatR8g8b8a8Unorm,
	gpu.FormatRGBA8Srgb:    vk.FormatR8g8b8a8Srgb,
	gpu.FormatBGRA8Unorm:   vk.FormatB8g8r8a8Unorm,
	gpu.FormatBGRA8Srgb:    vk.FormatB8g8r8a8Srgb,
	gpu.FormatRG16Float:    vk.FormatR16g16Sfloat,
	gpu.FormatRGBA16Float:  vk.FormatR16g16b16a16Sfloat,
	gpu.FormatRGBA32Float:  vk.FormatR32g32b32a32Sfloat,
	gpu.FormatDepth32Float: vk.FormatD32Sfloat,
}

func vkFormat(f gpu.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// gpuFormat maps a surface format back; unknown formats are undefined.
func gpuFormat(f vk.Format) gpu.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return gpu.FormatUndefined
}

var layouts = [...]vk.ImageLayout{
	gpu.LayoutUndefined:       vk.ImageLayoutUndefined,
	gpu.LayoutTransferDst:     vk.ImageLayoutTransferDstOptimal,
	gpu.LayoutTransferSrc:     vk.ImageLayoutTransferSrcOptimal,
	gpu.LayoutColorAttachment: vk.ImageLayoutColorAttachmentOptimal,
	gpu.LayoutDepthAttachment: vk.ImageLayoutDepthStencilAttachmentOptimal,
	gpu.LayoutShaderReadOnly:  vk.ImageLayoutShaderReadOnlyOptimal,
	gpu.LayoutPresent:         vk.ImageLayoutPresentSrc,
}

func imageLayout(l gpu.Layout) vk.ImageLayout { return layouts[l] }

func accessFlags(a gpu.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	bits := []struct {
		from gpu.Access
		to   vk.AccessFlagBits
	}{
		{gpu.AccessTransferRead, vk.AccessTransferReadBit},
		{gpu.AccessTransferWrite, vk.AccessTransferWriteBit},
		{gpu.AccessShaderRead, vk.AccessShaderReadBit},
		{gpu.AccessColorRead, vk.AccessColorAttachmentReadBit},
		{gpu.AccessColorWrite, vk.AccessColorAttachmentWriteBit},
		{gpu.AccessDepthRead, vk.AccessDepthStencilAttachmentReadBit},
		{gpu.AccessDepthWrite, vk.AccessDepthStencilAttachmentWriteBit},
	}
	for _, b := range bits {
		if a&b.from != 0 {
			out |= b.to
		}
	}
	return vk.AccessFlags(out)
}

func stageFlags(s gpu.SyncStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	bits := []struct {
		from gpu.SyncStage
		to   vk.PipelineStageFlagBits
	}{
		{gpu.SyncTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{gpu.SyncTransfer, vk.PipelineStageTransferBit},
		{gpu.SyncVertexShader, vk.PipelineStageVertexShaderBit},
		{gpu.SyncFragmentShader, vk.PipelineStageFragmentShaderBit},
		{gpu.SyncEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
		{gpu.SyncLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
		{gpu.SyncColorOutput, vk.PipelineStageColorAttachmentOutputBit},
		{gpu.SyncBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
	}
	for _, b := range bits {
		if s&b.from != 0 {
			out |= b.to
		}
	}
	return vk.PipelineStageFlags(out)
}

func shaderStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&gpu.StageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&gpu.StageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(out)
}

func imageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&gpu.UsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&gpu.UsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.UsageDepthAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpu.UsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&gpu.UsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(out)
}

func bufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&gpu.BufferVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferStorage != 0 {
		out |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferTransferSrc != 0 {
		out |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(out)
}

func aspect(f gpu.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func descriptorType(k gpu.DescriptorKind) vk.DescriptorType {
	switch k {
	case gpu.KindUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case gpu.KindStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	default:
		return vk.DescriptorTypeCombinedImageSampler
	}
}

func loadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadLoad:
		return vk.AttachmentLoadOpLoad
	case gpu.LoadDontCare:
		return vk.AttachmentLoadOpDontCare
	default:
		return vk.AttachmentLoadOpClear
	}
}

func storeOp(op gpu.StoreOp) vk.AttachmentStoreOp {
	if op == gpu.StoreDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func filter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func mipmapMode(f gpu.Filter) vk.SamplerMipmapMode {
	if f == gpu.FilterNearest {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

func addressMode(a gpu.AddressMode) vk.SamplerAddressMode {
	if a == gpu.AddressClampToEdge {
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

func cullMode(c gpu.CullMode) vk.CullModeFlags {
	switch c {
	case gpu.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case gpu.CullNone:
		return vk.CullModeFlags(vk.CullModeNone)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func frontFace(f gpu.FrontFace) vk.FrontFace {
	if f == gpu.FrontClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func compareOp(c gpu.CompareOp) vk.CompareOp {
	switch c {
	case gpu.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpLess
	}
}

func topology(t gpu.Topology) vk.PrimitiveTopology {
	if t == gpu.TopologyTriangleStrip {
		return vk.PrimitiveTopologyTriangleStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

func vertexFormat(f gpu.VertexFormat) vk.Format {
	switch f {
	case gpu.VertexFloat2:
		return vk.FormatR32g32Sfloat
	case gpu.VertexFloat3:
		return vk.FormatR32g32b32Sfloat
	default:
		return vk.FormatR32g32b32a32Sfloat
	}
}

func indexType(t gpu.IndexType) vk.IndexType {
	if t == gpu.IndexUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func colorMask(m gpu.ColorMask) vk.ColorComponentFlags {
	var out vk.ColorComponentFlagBits
	if m&gpu.MaskR != 0 {
		out |= vk.ColorComponentRBit
	}
	if m&gpu.MaskG != 0 {
		out |= vk.ColorComponentGBit
	}
	if m&gpu.MaskB != 0 {
		out |= vk.ColorComponentBBit
	}
	if m&gpu.MaskA != 0 {
		out |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(out)
}
