// Package ibl precomputes the image-based lighting maps: an environment cube
// projected from an equirectangular panorama, its diffuse irradiance
// convolution, a roughness-prefiltered specular cube and the split-sum BRDF
// lookup table.
package ibl

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"
	"GopherPBR/internal/shaders"

	"go.uber.org/zap"
)

// Inspector receives the baked textures for debug display.
type Inspector interface {
	Register(name string, tex *gpu.Texture)
}

// Result holds the four baked maps, all in ShaderReadOnly.
type Result struct {
	Environment   *gpu.Texture
	Irradiance    *gpu.Texture
	Prefiltered   *gpu.Texture
	BRDF          *gpu.Texture
	PrefilterMips int
}

func (r *Result) Destroy() {
	if r == nil {
		return
	}
	r.BRDF.Destroy()
	r.Prefiltered.Destroy()
	r.Irradiance.Destroy()
	r.Environment.Destroy()
}

// Baker runs the precompute passes on a device.
type Baker struct {
	dev       gpu.Device
	lib       *shaders.Library
	cfg       Config
	inspector Inspector
}

func NewBaker(dev gpu.Device, lib *shaders.Library, cfg Config, inspector Inspector) (*Baker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Baker{dev: dev, lib: lib, cfg: cfg, inspector: inspector}, nil
}

// bakeState is the transient state of one bake.
type bakeState struct {
	transients []gpu.Destroyer
	cube       gpu.Buffer
	capture    gpu.RenderPass
	lut        gpu.RenderPass
}

func (s *bakeState) keep(d gpu.Destroyer) {
	s.transients = append(s.transients, d)
}

// release destroys transients in reverse creation order.
func (s *bakeState) release() {
	for i := len(s.transients) - 1; i >= 0; i-- {
		s.transients[i].Destroy()
	}
	s.transients = nil
}

var cubeSampler = gpu.SamplerDesc{
	MinFilter: gpu.FilterLinear,
	MagFilter: gpu.FilterLinear,
	MipFilter: gpu.FilterLinear,
	Address:   gpu.AddressClampToEdge,
}

// Bake produces the IBL maps for pano. It blocks until the device has
// finished every pass; all intermediate objects are destroyed before it
// returns.
func (b *Baker) Bake(pano *Panorama) (*Result, error) {
	start := time.Now()
	s := &bakeState{}
	defer s.release()

	if err := b.prepare(s); err != nil {
		return nil, err
	}
	panorama, err := b.uploadPanorama(s, pano)
	if err != nil {
		return nil, err
	}

	res := &Result{PrefilterMips: b.cfg.PrefilterMips}
	ok := false
	defer func() {
		if !ok {
			res.Destroy()
		}
	}()

	if res.Environment, err = b.bakeEnvironment(s, panorama); err != nil {
		return nil, err
	}
	if res.Irradiance, err = b.bakeIrradiance(s, res.Environment); err != nil {
		return nil, err
	}
	if res.Prefiltered, err = b.bakePrefiltered(s, res.Environment); err != nil {
		return nil, err
	}
	if res.BRDF, err = b.bakeBRDF(s); err != nil {
		return nil, err
	}
	ok = true

	if b.inspector != nil {
		b.inspector.Register("ibl/environment", res.Environment)
		b.inspector.Register("ibl/irradiance", res.Irradiance)
		b.inspector.Register("ibl/prefiltered", res.Prefiltered)
		b.inspector.Register("ibl/brdf_lut", res.BRDF)
	}
	logger.Log.Info("IBL maps baked",
		zap.Int("environmentSize", b.cfg.EnvironmentSize),
		zap.Int("prefilterMips", b.cfg.PrefilterMips),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (b *Baker) prepare(s *bakeState) error {
	verts := CubeVertices()
	data := make([]byte, 0, len(verts)*4)
	for _, v := range verts {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	var err error
	if s.cube, err = gpu.NewBufferWithData(b.dev, "ibl cube", gpu.BufferVertex, data); err != nil {
		return fmt.Errorf("ibl: %w", err)
	}
	s.keep(s.cube)

	s.capture, err = b.dev.NewRenderPass(gpu.RenderPassDesc{
		Label: "ibl capture",
		Colors: []gpu.AttachmentDesc{{
			Format: gpu.FormatRGBA16Float,
			Load:   gpu.LoadClear,
			Store:  gpu.StoreStore,
			Layout: gpu.LayoutColorAttachment,
		}},
	})
	if err != nil {
		return fmt.Errorf("ibl: %w", err)
	}
	s.keep(s.capture)

	s.lut, err = b.dev.NewRenderPass(gpu.RenderPassDesc{
		Label: "ibl brdf",
		Colors: []gpu.AttachmentDesc{{
			Format: gpu.FormatRG16Float,
			Load:   gpu.LoadClear,
			Store:  gpu.StoreStore,
			Layout: gpu.LayoutColorAttachment,
		}},
	})
	if err != nil {
		return fmt.Errorf("ibl: %w", err)
	}
	s.keep(s.lut)
	return nil
}

func (b *Baker) uploadPanorama(s *bakeState, pano *Panorama) (*gpu.Texture, error) {
	tex, err := gpu.NewTexture(b.dev, gpu.ImageDesc{
		Label:  "ibl panorama",
		Format: gpu.FormatRGBA32Float,
		Extent: gpu.Extent{Width: pano.Width, Height: pano.Height},
		Usage:  gpu.UsageSampled | gpu.UsageTransferDst,
	}, &gpu.SamplerDesc{
		MinFilter: gpu.FilterLinear,
		MagFilter: gpu.FilterLinear,
		Address:   gpu.AddressRepeat,
	})
	if err != nil {
		return nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(tex)
	if err := gpu.UploadTexture(b.dev, tex, pano.Bytes()); err != nil {
		return nil, fmt.Errorf("ibl: %w", err)
	}
	return tex, nil
}

// capturePipeline builds a cube capture pipeline sampling one texture and
// returns it with a descriptor set pointing at source.
func (b *Baker) capturePipeline(s *bakeState, program, binding string, kernel gpu.Kernel, source *gpu.Texture) (*gpu.GraphicsPipeline, *gpu.BindingSet, error) {
	prog, err := b.lib.Program(b.dev, program, kernel)
	if err != nil {
		return nil, nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(prog)
	p, err := gpu.NewPipelineBuilder(b.dev, "ibl "+program).
		Program(prog).
		VertexSchema(gpu.VertexPosition).
		Bindings(gpu.TextureBinding(binding, gpu.StageFragment)).
		PushConstants(gpu.StageVertex|gpu.StageFragment, CapturePushSize).
		Customize(func(d *gpu.PipelineDesc) {
			d.CullMode = gpu.CullNone
		}).
		Build(s.capture)
	if err != nil {
		return nil, nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(p)
	set, err := p.Layout().NewSet()
	if err != nil {
		return nil, nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(set)
	if err := set.SetTexture(binding, source); err != nil {
		return nil, nil, fmt.Errorf("ibl: %w", err)
	}
	return p, set, nil
}

func newCube(dev gpu.Device, label string, size, mips int, usage gpu.ImageUsage) (*gpu.Texture, error) {
	sampler := cubeSampler
	tex, err := gpu.NewTexture(dev, gpu.ImageDesc{
		Label:  label,
		Format: gpu.FormatRGBA16Float,
		Extent: gpu.Extent{Width: size, Height: size},
		Mips:   mips,
		Cube:   true,
		Usage:  gpu.UsageSampled | gpu.UsageColorAttachment | usage,
	}, &sampler)
	if err != nil {
		return nil, fmt.Errorf("ibl: %w", err)
	}
	return tex, nil
}

// renderFaces draws the capture cube into all six faces of one mip of dst.
func (b *Baker) renderFaces(s *bakeState, cmd gpu.CommandBuffer, p *gpu.GraphicsPipeline, set *gpu.BindingSet, dst *gpu.Texture, mip int, roughness float32) error {
	proj := CaptureProjection()
	views := CaptureViews()
	ext := dst.Extent(mip)
	for face := 0; face < 6; face++ {
		view, err := dst.SubView(mip, face)
		if err != nil {
			return err
		}
		rt, err := gpu.NewRenderTargetFor(s.capture, []gpu.View{view}, ext)
		if err != nil {
			return err
		}
		s.keep(rt)

		push := gpu.EncodeMat4(make([]byte, 0, CapturePushSize), proj.Mul4(views[face]))
		push = gpu.EncodeFloats(push, roughness)

		cmd.BeginRenderPass(rt.Framebuffer, []gpu.ClearValue{{Color: [4]float32{0, 0, 0, 1}}})
		cmd.SetViewport(0, 0, ext.Width, ext.Height)
		cmd.BindPipeline(p.Handle())
		cmd.BindDescriptorSets(p.Handle(), p.OwnSet(), []gpu.DescriptorSet{set.Raw()})
		cmd.PushConstants(p.Handle(), p.PushStages(), 0, push)
		cmd.BindVertexBuffer(s.cube, 0)
		cmd.Draw(36, 1, 0, 0)
		cmd.EndRenderPass()
	}
	return nil
}

func (b *Baker) bakeEnvironment(s *bakeState, panorama *gpu.Texture) (*gpu.Texture, error) {
	start := time.Now()
	size := b.cfg.EnvironmentSize
	mips := gpu.MipLevels(size)
	env, err := newCube(b.dev, "ibl environment", size, mips, gpu.UsageTransferSrc|gpu.UsageTransferDst)
	if err != nil {
		return nil, err
	}
	p, set, err := b.capturePipeline(s, "equirect", "equirectangularMap", EquirectKernel(), panorama)
	if err != nil {
		env.Destroy()
		return nil, err
	}

	err = gpu.OneShot(b.dev, "bake environment", func(cmd gpu.CommandBuffer) error {
		if err := gpu.Transition(cmd, env, gpu.MipRange(0, 1), gpu.LayoutColorAttachment); err != nil {
			return err
		}
		if err := b.renderFaces(s, cmd, p, set, env, 0, 0); err != nil {
			return err
		}
		return generateMips(cmd, env)
	})
	if err != nil {
		env.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	logger.Log.Info("Environment cube captured",
		zap.Int("size", size),
		zap.Int("mips", mips),
		zap.Duration("elapsed", time.Since(start)))
	return env, nil
}

// generateMips fills mips 1.. of a cube whose mip 0 was just rendered, by
// successive linear blits, and leaves the whole chain in ShaderReadOnly.
func generateMips(cmd gpu.CommandBuffer, tex *gpu.Texture) error {
	if err := gpu.Transition(cmd, tex, gpu.MipRange(0, 1), gpu.LayoutTransferSrc); err != nil {
		return err
	}
	desc := tex.Desc()
	for mip := 1; mip < desc.Mips; mip++ {
		if err := gpu.Transition(cmd, tex, gpu.MipRange(mip, 1), gpu.LayoutTransferDst); err != nil {
			return err
		}
		cmd.BlitImage(tex.Image(), tex.Image(), gpu.ImageBlit{
			SrcMip: mip - 1,
			DstMip: mip,
			Layers: desc.Layers,
		})
		if err := gpu.Transition(cmd, tex, gpu.MipRange(mip, 1), gpu.LayoutTransferSrc); err != nil {
			return err
		}
	}
	return gpu.TransitionAll(cmd, tex, gpu.LayoutShaderReadOnly)
}

func (b *Baker) bakeIrradiance(s *bakeState, env *gpu.Texture) (*gpu.Texture, error) {
	start := time.Now()
	irr, err := newCube(b.dev, "ibl irradiance", b.cfg.IrradianceSize, 1, 0)
	if err != nil {
		return nil, err
	}
	p, set, err := b.capturePipeline(s, "irradiance", "environmentMap", IrradianceKernel(b.cfg.IrradianceSampleDelta), env)
	if err != nil {
		irr.Destroy()
		return nil, err
	}
	err = gpu.OneShot(b.dev, "bake irradiance", func(cmd gpu.CommandBuffer) error {
		if err := gpu.TransitionAll(cmd, irr, gpu.LayoutColorAttachment); err != nil {
			return err
		}
		if err := b.renderFaces(s, cmd, p, set, irr, 0, 0); err != nil {
			return err
		}
		return gpu.TransitionAll(cmd, irr, gpu.LayoutShaderReadOnly)
	})
	if err != nil {
		irr.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	logger.Log.Info("Irradiance cube convolved",
		zap.Int("size", b.cfg.IrradianceSize),
		zap.Duration("elapsed", time.Since(start)))
	return irr, nil
}

func (b *Baker) bakePrefiltered(s *bakeState, env *gpu.Texture) (*gpu.Texture, error) {
	start := time.Now()
	mips := b.cfg.PrefilterMips
	pre, err := newCube(b.dev, "ibl prefiltered", b.cfg.PrefilterSize, mips, 0)
	if err != nil {
		return nil, err
	}
	p, set, err := b.capturePipeline(s, "prefilter", "environmentMap", PrefilterKernel(b.cfg.PrefilterSamples), env)
	if err != nil {
		pre.Destroy()
		return nil, err
	}
	err = gpu.OneShot(b.dev, "bake prefilter", func(cmd gpu.CommandBuffer) error {
		if err := gpu.TransitionAll(cmd, pre, gpu.LayoutColorAttachment); err != nil {
			return err
		}
		for mip := 0; mip < mips; mip++ {
			if err := b.renderFaces(s, cmd, p, set, pre, mip, PrefilterRoughness(mip, mips)); err != nil {
				return err
			}
		}
		return gpu.TransitionAll(cmd, pre, gpu.LayoutShaderReadOnly)
	})
	if err != nil {
		pre.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	logger.Log.Info("Specular cube prefiltered",
		zap.Int("size", b.cfg.PrefilterSize),
		zap.Int("mips", mips),
		zap.Duration("elapsed", time.Since(start)))
	return pre, nil
}

func (b *Baker) bakeBRDF(s *bakeState) (*gpu.Texture, error) {
	start := time.Now()
	size := b.cfg.BRDFSize
	lut, err := gpu.NewTexture(b.dev, gpu.ImageDesc{
		Label:  "ibl brdf lut",
		Format: gpu.FormatRG16Float,
		Extent: gpu.Extent{Width: size, Height: size},
		Usage:  gpu.UsageSampled | gpu.UsageColorAttachment,
	}, &gpu.SamplerDesc{
		MinFilter: gpu.FilterLinear,
		MagFilter: gpu.FilterLinear,
		Address:   gpu.AddressClampToEdge,
	})
	if err != nil {
		return nil, fmt.Errorf("ibl: %w", err)
	}
	prog, err := b.lib.Program(b.dev, "brdf", BRDFKernel(b.cfg.BRDFSamples))
	if err != nil {
		lut.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(prog)
	p, err := gpu.NewPipelineBuilder(b.dev, "ibl brdf").
		Program(prog).
		Customize(func(d *gpu.PipelineDesc) {
			d.CullMode = gpu.CullNone
		}).
		Build(s.lut)
	if err != nil {
		lut.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(p)
	rt, err := gpu.NewRenderTargetFor(s.lut, []gpu.View{lut.View}, lut.Extent(0))
	if err != nil {
		lut.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	s.keep(rt)

	err = gpu.OneShot(b.dev, "bake brdf", func(cmd gpu.CommandBuffer) error {
		if err := gpu.TransitionAll(cmd, lut, gpu.LayoutColorAttachment); err != nil {
			return err
		}
		cmd.BeginRenderPass(rt.Framebuffer, []gpu.ClearValue{{}})
		cmd.SetViewport(0, 0, size, size)
		cmd.BindPipeline(p.Handle())
		cmd.Draw(3, 1, 0, 0)
		cmd.EndRenderPass()
		return gpu.TransitionAll(cmd, lut, gpu.LayoutShaderReadOnly)
	})
	if err != nil {
		lut.Destroy()
		return nil, fmt.Errorf("ibl: %w", err)
	}
	logger.Log.Info("BRDF lookup table integrated",
		zap.Int("size", size),
		zap.Duration("elapsed", time.Since(start)))
	return lut, nil
}
