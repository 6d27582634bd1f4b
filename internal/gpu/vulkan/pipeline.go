package vulkan

import (
	"encoding/binary"
	"fmt"

	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

type shaderModule struct {
	dev       *Device
	handle    vk.ShaderModule
	src       gpu.ShaderSource
	destroyed bool
}

func (d *Device) NewShaderModule(src gpu.ShaderSource) (gpu.ShaderModule, error) {
	if len(src.SPIRV) == 0 || len(src.SPIRV)%4 != 0 {
		return nil, fmt.Errorf("vulkan: shader %s: SPIR-V must be a non-empty multiple of 4 bytes, got %d", src.Label, len(src.SPIRV))
	}
	code := make([]uint32, len(src.SPIRV)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(src.SPIRV[i*4:])
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(src.SPIRV)),
		PCode:    code,
	}
	var handle vk.ShaderModule
	if err := vkError(vk.CreateShaderModule(d.device, &info, nil, &handle), "create shader "+src.Label); err != nil {
		return nil, err
	}
	if src.Entry == "" {
		src.Entry = "main"
	}
	return &shaderModule{dev: d, handle: handle, src: src}, nil
}

func (m *shaderModule) Source() gpu.ShaderSource { return m.src }

func (m *shaderModule) Destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	vk.DestroyShaderModule(m.dev.device, m.handle, nil)
}

type pipeline struct {
	dev       *Device
	handle    vk.Pipeline
	layout    vk.PipelineLayout
	desc      *gpu.PipelineDesc
	destroyed bool
}

func stage(m gpu.ShaderModule, s vk.ShaderStageFlagBits) vk.PipelineShaderStageCreateInfo {
	sm := m.(*shaderModule)
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s,
		Module: sm.handle,
		PName:  sm.src.Entry + "\x00",
	}
}

func vertexInput(schema gpu.VertexSchema) vk.PipelineVertexInputStateCreateInfo {
	info := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if schema.Stride == 0 {
		return info
	}
	attrs := make([]vk.VertexInputAttributeDescription, len(schema.Attributes))
	for i, a := range schema.Attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: uint32(a.Location),
			Binding:  0,
			Format:   vertexFormat(a.Format),
			Offset:   uint32(a.Offset),
		}
	}
	info.VertexBindingDescriptionCount = 1
	info.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(schema.Stride),
		InputRate: vk.VertexInputRateVertex,
	}}
	info.VertexAttributeDescriptionCount = uint32(len(attrs))
	info.PVertexAttributeDescriptions = attrs
	return info
}

func blendAttachments(states []gpu.BlendState) []vk.PipelineColorBlendAttachmentState {
	out := make([]vk.PipelineColorBlendAttachmentState, len(states))
	for i, s := range states {
		out[i] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: colorMask(s.WriteMask),
			BlendEnable:    vk.False,
		}
		if s.Enable {
			out[i].BlendEnable = vk.True
			out[i].SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			out[i].DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			out[i].ColorBlendOp = vk.BlendOpAdd
			out[i].SrcAlphaBlendFactor = vk.BlendFactorOne
			out[i].DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			out[i].AlphaBlendOp = vk.BlendOpAdd
		}
	}
	return out
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// NewPipeline creates the pipeline layout and the graphics pipeline for desc.
// Viewport and scissor are dynamic; command buffers set them per pass.
func (d *Device) NewPipeline(desc *gpu.PipelineDesc) (gpu.Pipeline, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		setLayouts[i] = l.(*setLayout).handle
	}
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: shaderStages(r.Stages),
			Offset:     uint32(r.Offset),
			Size:       uint32(r.Size),
		}
	}
	var layout vk.PipelineLayout
	res := vk.CreatePipelineLayout(d.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if err := vkError(res, "create pipeline layout "+desc.Label); err != nil {
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		stage(desc.Vertex, vk.ShaderStageVertexBit),
		stage(desc.Fragment, vk.ShaderStageFragmentBit),
	}
	input := vertexInput(desc.VertexSchema)
	blends := blendAttachments(desc.Blend)
	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: &input,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: topology(desc.Topology),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    cullMode(desc.CullMode),
			FrontFace:   frontFace(desc.FrontFace),
			LineWidth:   1,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vkBool(desc.DepthTest),
			DepthWriteEnable: vkBool(desc.DepthWrite),
			DepthCompareOp:   compareOp(desc.DepthCompare),
			MaxDepthBounds:   1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(blends)),
			PAttachments:    blends,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:             layout,
		RenderPass:         desc.Pass.(*renderPass).handle,
		BasePipelineHandle: vk.Pipeline(vk.NullHandle),
		BasePipelineIndex:  -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	res = vk.CreateGraphicsPipelines(d.device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := vkError(res, "create pipeline "+desc.Label); err != nil {
		vk.DestroyPipelineLayout(d.device, layout, nil)
		return nil, err
	}
	return &pipeline{dev: d, handle: pipelines[0], layout: layout, desc: desc}, nil
}

func (p *pipeline) Desc() *gpu.PipelineDesc { return p.desc }

func (p *pipeline) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	vk.DestroyPipeline(p.dev.device, p.handle, nil)
	vk.DestroyPipelineLayout(p.dev.device, p.layout, nil)
}
