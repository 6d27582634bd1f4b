package renderer

import (
	"fmt"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/shaders"
)

// PipelineRef is a stable handle to a pass pipeline. Materials keep the ref;
// resizes and shader reloads swap the pipeline behind it.
type PipelineRef struct {
	Name    string
	program *gpu.Program
	p       *gpu.GraphicsPipeline
}

func (r *PipelineRef) Get() *gpu.GraphicsPipeline { return r.p }

func (r *PipelineRef) set(program *gpu.Program, p *gpu.GraphicsPipeline) {
	r.program, r.p = program, p
}

// Destroy releases the pipeline and its shader modules, leaving the ref
// empty for the next build.
func (r *PipelineRef) Destroy() {
	if r.p != nil {
		r.p.Destroy()
		r.p = nil
	}
	if r.program != nil {
		r.program.Destroy()
		r.program = nil
	}
}

// pipelineSpec is everything needed to (re)build one pass pipeline.
type pipelineSpec struct {
	program string
	kernel  gpu.Kernel
	schema  gpu.VertexSchema
	shared  []*gpu.BindingLayout
	own     []gpu.Binding
	push    int
	edit    func(*gpu.PipelineDesc)
}

func buildPipeline(dev gpu.Device, lib *shaders.Library, ref *PipelineRef, spec pipelineSpec, pass gpu.RenderPass) error {
	prog, err := lib.Program(dev, spec.program, spec.kernel)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", ref.Name, err)
	}
	b := gpu.NewPipelineBuilder(dev, ref.Name).
		Program(prog).
		VertexSchema(spec.schema).
		Shared(spec.shared...).
		Bindings(spec.own...)
	if spec.push > 0 {
		b.PushConstants(gpu.StageVertex, spec.push)
	}
	if spec.edit != nil {
		b.Customize(spec.edit)
	}
	p, err := b.Build(pass)
	if err != nil {
		prog.Destroy()
		return err
	}
	ref.set(prog, p)
	return nil
}

func lightingBindings() []gpu.Binding {
	names := []string{"gPosition", "gNormal", "gAlbedo", "gARM", "irradianceMap", "prefilterMap", "brdfLUT"}
	b := make([]gpu.Binding, len(names))
	for i, n := range names {
		b[i] = gpu.TextureBinding(n, gpu.StageFragment)
	}
	return b
}

func noCull(d *gpu.PipelineDesc) {
	d.CullMode = gpu.CullNone
}

// transparentState blends over the lit image and tests against, but does
// not write, the G-buffer depth.
func transparentState(d *gpu.PipelineDesc) {
	d.DepthWrite = false
	for i := range d.Blend {
		d.Blend[i].Enable = true
	}
}

// skyboxState draws the inside of the cube at the far plane behind
// everything already in the depth buffer.
func skyboxState(d *gpu.PipelineDesc) {
	d.CullMode = gpu.CullFront
	d.DepthWrite = false
	d.DepthCompare = gpu.CompareLessOrEqual
}
