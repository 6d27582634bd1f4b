package gpu

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is returned when a program's declared resources do not
// match the layouts a pipeline is built with.
var ErrSchemaMismatch = errors.New("gpu: shader binding schema mismatch")

type VertexFormat int

const (
	VertexFloat2 VertexFormat = iota
	VertexFloat3
	VertexFloat4
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() int {
	switch f {
	case VertexFloat2:
		return 8
	case VertexFloat3:
		return 12
	default:
		return 16
	}
}

type VertexAttribute struct {
	Location int
	Format   VertexFormat
	Offset   int
}

// VertexSchema describes the vertex buffer layout a pipeline consumes.
type VertexSchema struct {
	Name       string
	Stride     int
	Attributes []VertexAttribute
}

var (
	// VertexNone is for draws that generate their vertices in the shader.
	VertexNone = VertexSchema{Name: "none"}
	// VertexPosition is a bare float3 position, used by cube draws.
	VertexPosition = VertexSchema{
		Name:   "position",
		Stride: 12,
		Attributes: []VertexAttribute{
			{Location: 0, Format: VertexFloat3, Offset: 0},
		},
	}
	// VertexStandard is position, normal, uv and tangent (w = handedness).
	VertexStandard = VertexSchema{
		Name:   "standard",
		Stride: 48,
		Attributes: []VertexAttribute{
			{Location: 0, Format: VertexFloat3, Offset: 0},
			{Location: 1, Format: VertexFloat3, Offset: 12},
			{Location: 2, Format: VertexFloat2, Offset: 24},
			{Location: 3, Format: VertexFloat4, Offset: 32},
		},
	}
)

type PushConstantRange struct {
	Stages ShaderStage
	Offset int
	Size   int
}

// BlendState configures one color attachment. Enabled blending is
// straight-alpha "over".
type BlendState struct {
	Enable    bool
	WriteMask ColorMask
}

// PipelineDesc is the complete description handed to the backend. Builders
// fill it with defaults and customization hooks may edit any field.
type PipelineDesc struct {
	Label         string
	Vertex        ShaderModule
	Fragment      ShaderModule
	VertexSchema  VertexSchema
	Topology      Topology
	CullMode      CullMode
	FrontFace     FrontFace
	DepthTest     bool
	DepthWrite    bool
	DepthCompare  CompareOp
	Blend         []BlendState
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
	Pass          RenderPass
}

// ShaderBinding is a resource declared by shader source.
type ShaderBinding struct {
	Set   int
	Index int
	Kind  DescriptorKind
	Name  string
	Stage ShaderStage
}

// Program pairs the vertex and fragment modules of a pass with the binding
// schema and push constant size their source declares.
type Program struct {
	Label            string
	Vertex           ShaderModule
	Fragment         ShaderModule
	Bindings         []ShaderBinding
	PushConstantSize int
}

func (p *Program) Destroy() {
	if p == nil {
		return
	}
	if p.Vertex != nil {
		p.Vertex.Destroy()
	}
	if p.Fragment != nil {
		p.Fragment.Destroy()
	}
}

// PipelineBuilder assembles graphics pipelines. One builder type serves every
// pass; the vertex layout is a value, not a subtype.
type PipelineBuilder struct {
	dev       Device
	label     string
	program   *Program
	schema    VertexSchema
	shared    []*BindingLayout
	bindings  []Binding
	push      []PushConstantRange
	customize []func(*PipelineDesc)
}

func NewPipelineBuilder(dev Device, label string) *PipelineBuilder {
	return &PipelineBuilder{dev: dev, label: label, schema: VertexNone}
}

func (b *PipelineBuilder) Program(p *Program) *PipelineBuilder {
	b.program = p
	return b
}

func (b *PipelineBuilder) VertexSchema(s VertexSchema) *PipelineBuilder {
	b.schema = s
	return b
}

// Shared adds layouts owned elsewhere. They occupy the first set indices, in
// the order given, before the builder's own layout.
func (b *PipelineBuilder) Shared(layouts ...*BindingLayout) *PipelineBuilder {
	b.shared = append(b.shared, layouts...)
	return b
}

// Bindings declares the builder's own descriptor set.
func (b *PipelineBuilder) Bindings(bindings ...Binding) *PipelineBuilder {
	b.bindings = append(b.bindings, bindings...)
	return b
}

func (b *PipelineBuilder) PushConstants(stages ShaderStage, size int) *PipelineBuilder {
	offset := 0
	for _, r := range b.push {
		if end := r.Offset + r.Size; end > offset {
			offset = end
		}
	}
	b.push = append(b.push, PushConstantRange{Stages: stages, Offset: offset, Size: size})
	return b
}

// Customize registers a hook run on the description after defaults are
// applied and before the pipeline is created.
func (b *PipelineBuilder) Customize(fn func(*PipelineDesc)) *PipelineBuilder {
	b.customize = append(b.customize, fn)
	return b
}

// Build creates the builder's descriptor set layout and the pipeline for
// pass. Camera projections flip Y into Vulkan clip space, which mirrors
// screen-space winding, so counter-clockwise meshes are front facing under
// the default FrontClockwise.
func (b *PipelineBuilder) Build(pass RenderPass) (*GraphicsPipeline, error) {
	if b.program == nil {
		return nil, fmt.Errorf("pipeline %s: no program", b.label)
	}
	gp := &GraphicsPipeline{Label: b.label, shared: b.shared, ownSet: -1}
	layouts := make([]DescriptorSetLayout, 0, len(b.shared)+1)
	for _, l := range b.shared {
		layouts = append(layouts, l.Raw())
	}
	if len(b.bindings) > 0 {
		own, err := NewBindingLayout(b.dev, b.label, b.bindings)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", b.label, err)
		}
		gp.layout = own
		gp.ownSet = len(layouts)
		layouts = append(layouts, own.Raw())
	}

	passDesc := pass.Desc()
	desc := &PipelineDesc{
		Label:         b.label,
		Vertex:        b.program.Vertex,
		Fragment:      b.program.Fragment,
		VertexSchema:  b.schema,
		Topology:      TopologyTriangleList,
		CullMode:      CullBack,
		FrontFace:     FrontClockwise,
		DepthTest:     passDesc.Depth != nil,
		DepthWrite:    passDesc.Depth != nil,
		DepthCompare:  CompareLess,
		Blend:         make([]BlendState, len(passDesc.Colors)),
		SetLayouts:    layouts,
		PushConstants: append([]PushConstantRange(nil), b.push...),
		Pass:          pass,
	}
	for i := range desc.Blend {
		desc.Blend[i] = BlendState{WriteMask: MaskAll}
	}
	for _, fn := range b.customize {
		fn(desc)
	}

	if err := validateProgram(b.program, desc); err != nil {
		gp.layout.Destroy()
		return nil, fmt.Errorf("pipeline %s: %w", b.label, err)
	}
	handle, err := b.dev.NewPipeline(desc)
	if err != nil {
		gp.layout.Destroy()
		return nil, fmt.Errorf("pipeline %s: %w", b.label, err)
	}
	gp.handle = handle
	gp.desc = desc
	return gp, nil
}

func validateProgram(p *Program, desc *PipelineDesc) error {
	for _, sb := range p.Bindings {
		if sb.Set >= len(desc.SetLayouts) {
			return fmt.Errorf("%w: %s declares set %d, pipeline has %d sets",
				ErrSchemaMismatch, sb.Name, sb.Set, len(desc.SetLayouts))
		}
		bindings := desc.SetLayouts[sb.Set].Bindings()
		if sb.Index >= len(bindings) {
			return fmt.Errorf("%w: %s declares binding %d of set %d, set has %d bindings",
				ErrSchemaMismatch, sb.Name, sb.Index, sb.Set, len(bindings))
		}
		lb := bindings[sb.Index]
		if lb.Kind != sb.Kind {
			return fmt.Errorf("%w: %s (set %d binding %d) is a %s in the shader and a %s in the layout",
				ErrSchemaMismatch, sb.Name, sb.Set, sb.Index, sb.Kind, lb.Kind)
		}
		if lb.Stages&sb.Stage != sb.Stage {
			return fmt.Errorf("%w: %s (set %d binding %d) is not visible to the stage that reads it",
				ErrSchemaMismatch, sb.Name, sb.Set, sb.Index)
		}
	}
	pushed := 0
	for _, r := range desc.PushConstants {
		if end := r.Offset + r.Size; end > pushed {
			pushed = end
		}
	}
	if p.PushConstantSize != pushed {
		return fmt.Errorf("%w: program declares %d bytes of push constants, pipeline pushes %d",
			ErrSchemaMismatch, p.PushConstantSize, pushed)
	}
	return nil
}

// GraphicsPipeline owns a backend pipeline and, when it declares bindings of
// its own, the descriptor set layout for them. Shared layouts are not owned.
type GraphicsPipeline struct {
	Label  string
	handle Pipeline
	desc   *PipelineDesc
	layout *BindingLayout
	shared []*BindingLayout
	ownSet int
}

func (p *GraphicsPipeline) Handle() Pipeline       { return p.handle }
func (p *GraphicsPipeline) Desc() *PipelineDesc    { return p.desc }
func (p *GraphicsPipeline) Layout() *BindingLayout { return p.layout }

// OwnSet returns the set index of the pipeline's own layout, or -1.
func (p *GraphicsPipeline) OwnSet() int { return p.ownSet }

// PushStages returns the union of stages of all push constant ranges.
func (p *GraphicsPipeline) PushStages() ShaderStage {
	var s ShaderStage
	for _, r := range p.desc.PushConstants {
		s |= r.Stages
	}
	return s
}

func (p *GraphicsPipeline) Destroy() {
	if p == nil {
		return
	}
	if p.handle != nil {
		p.handle.Destroy()
		p.handle = nil
	}
	p.layout.Destroy()
	p.layout = nil
}
