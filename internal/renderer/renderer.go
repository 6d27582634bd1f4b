// Package renderer draws PBR scenes with a hybrid deferred/forward frame:
// a geometry pass into the G-buffer, a full-screen lighting pass with
// image-based lighting into the presentable image, then a forward pass for
// the skybox and transparent items.
package renderer

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/ibl"
	"GopherPBR/internal/logger"
	"GopherPBR/internal/shaders"

	"go.uber.org/zap"
)

// ErrNoEnvironment is returned by RenderFrame before SetEnvironment has
// baked the IBL maps.
var ErrNoEnvironment = errors.New("renderer: no environment baked")

// Renderer owns every GPU object of the frame. It is not safe for
// concurrent use; RequestShaderReload may be called from any goroutine.
type Renderer struct {
	cfg       Config
	dev       gpu.Device
	presenter gpu.Presenter
	lib       *shaders.Library
	scene     Scene
	camera    *Camera

	queue     *gpu.ReclaimQueue
	ring      *gpu.FrameRing
	textures  *TextureManager
	materials *MaterialFactory
	inspector *TextureRegistry

	globalLayout  *gpu.BindingLayout
	globalBuffers []gpu.Buffer
	globalSets    []*gpu.BindingSet
	env           *ibl.Result
	skybox        *Skybox

	// Rebuilt on resize.
	gbuffer         *GBuffer
	swap            []*gpu.Texture
	lightingPass    gpu.RenderPass
	forwardPass     gpu.RenderPass
	lightingTargets []*gpu.RenderTarget
	forwardTargets  []*gpu.RenderTarget
	lighting        PipelineRef
	lightingSet     *gpu.BindingSet
	opaque          PipelineRef
	transparent     PipelineRef

	state       FrameState
	needsResize bool
	reload      atomic.Bool

	// SurfaceExtent reports the drawable size when the presentable images
	// go out of date. Nil keeps the presenter's current extent.
	SurfaceExtent func() gpu.Extent
}

// New creates the renderer and every resolution-dependent object for the
// presenter's current extent. SetEnvironment must run before the first
// frame.
func New(dev gpu.Device, presenter gpu.Presenter, cfg Config, scene Scene, camera *Camera) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		cfg:       cfg,
		dev:       dev,
		presenter: presenter,
		lib:       shaders.NewLibrary(cfg.ShaderDir),
		scene:     scene,
		camera:    camera,
		queue:     gpu.NewReclaimQueue(cfg.FramesInFlight),
		inspector: NewTextureRegistry(),
	}
	r.lighting.Name = "lighting"
	r.opaque.Name = "gbuffer"
	r.transparent.Name = "transparent"

	var u Unwind
	defer u.Unwind()

	var err error
	if r.ring, err = gpu.NewFrameRing(dev, cfg.FramesInFlight); err != nil {
		return nil, err
	}
	u.Add(r.ring.Destroy)
	if r.textures, err = NewTextureManager(dev, r.queue); err != nil {
		return nil, err
	}
	u.Add(r.textures.Close)
	if r.materials, err = NewMaterialFactory(dev, r.textures, r.queue, &r.opaque, &r.transparent); err != nil {
		return nil, err
	}
	u.Add(r.materials.Destroy)
	if err = r.createGlobals(); err != nil {
		return nil, err
	}
	u.Add(r.destroyGlobals)
	if r.skybox, err = NewSkybox(dev); err != nil {
		return nil, err
	}
	u.Add(r.skybox.Destroy)
	if err = r.build(); err != nil {
		return nil, err
	}
	u.Discard()

	logger.Log.Info("Renderer created",
		zap.String("device", dev.Name()),
		zap.Int("framesInFlight", cfg.FramesInFlight),
		zap.Int("width", presenter.Extent().Width),
		zap.Int("height", presenter.Extent().Height))
	return r, nil
}

func (r *Renderer) Textures() *TextureManager       { return r.textures }
func (r *Renderer) Materials() *MaterialFactory     { return r.materials }
func (r *Renderer) Inspector() *TextureRegistry     { return r.inspector }
func (r *Renderer) ReclaimQueue() *gpu.ReclaimQueue { return r.queue }
func (r *Renderer) Camera() *Camera                 { return r.camera }
func (r *Renderer) Device() gpu.Device              { return r.dev }

// State returns the stage of the frame being recorded, Idle between frames.
func (r *Renderer) State() FrameState { return r.state }

func (r *Renderer) createGlobals() error {
	var err error
	r.globalLayout, err = gpu.NewBindingLayout(r.dev, "globals", []gpu.Binding{
		gpu.UniformBinding("globals", gpu.StageAllGraphics, GlobalsSize),
	})
	if err != nil {
		return err
	}
	for i := 0; i < r.cfg.FramesInFlight; i++ {
		buf, err := r.dev.NewBuffer(gpu.BufferDesc{
			Label:       fmt.Sprintf("globals %d", i),
			Size:        GlobalsSize,
			Usage:       gpu.BufferUniform,
			HostVisible: true,
		})
		if err != nil {
			return err
		}
		r.globalBuffers = append(r.globalBuffers, buf)
	}
	if r.globalSets, err = r.globalLayout.NewSets(r.cfg.FramesInFlight); err != nil {
		return err
	}
	for i, set := range r.globalSets {
		if err := set.SetBuffer("globals", r.globalBuffers[i], 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) destroyGlobals() {
	for _, s := range r.globalSets {
		s.Destroy()
	}
	for _, b := range r.globalBuffers {
		b.Destroy()
	}
	r.globalSets, r.globalBuffers = nil, nil
	r.globalLayout.Destroy()
}

// SetEnvironment bakes the IBL maps for pano and binds them. The previous
// environment, if any, is retired through the reclaim queue.
func (r *Renderer) SetEnvironment(pano *ibl.Panorama) error {
	baker, err := ibl.NewBaker(r.dev, r.lib, r.cfg.IBL, r.inspector)
	if err != nil {
		return err
	}
	res, err := baker.Bake(pano)
	if err != nil {
		return err
	}
	if err := r.dev.WaitIdle(); err != nil {
		res.Destroy()
		return err
	}
	old := r.env
	r.env = res
	if err := r.bindEnvironment(); err != nil {
		return err
	}
	if old != nil {
		r.queue.Push(old)
	}
	return nil
}

// bindEnvironment (re)creates the sets that sample the IBL maps.
func (r *Renderer) bindEnvironment() error {
	if r.env == nil {
		return nil
	}
	r.skybox.teardown()
	if err := r.skybox.build(r.dev, r.lib, r.forwardPass, r.env.Environment); err != nil {
		return err
	}
	return r.writeLightingSet()
}

func (r *Renderer) writeLightingSet() error {
	if r.lightingSet != nil {
		r.lightingSet.Destroy()
		r.lightingSet = nil
	}
	set, err := r.lighting.Get().Layout().NewSet()
	if err != nil {
		return err
	}
	r.lightingSet = set
	inputs := []*gpu.Texture{r.gbuffer.Colors[0], r.gbuffer.Colors[1], r.gbuffer.Colors[2], r.gbuffer.Colors[3]}
	names := []string{"gPosition", "gNormal", "gAlbedo", "gARM"}
	if r.env != nil {
		inputs = append(inputs, r.env.Irradiance, r.env.Prefiltered, r.env.BRDF)
		names = append(names, "irradianceMap", "prefilterMap", "brdfLUT")
	}
	for i, tex := range inputs {
		if err := set.SetTexture(names[i], tex); err != nil {
			return err
		}
	}
	return nil
}

// build creates everything that depends on the presentable images.
func (r *Renderer) build() error {
	extent := r.presenter.Extent()
	var u Unwind
	defer u.Unwind()
	u.Add(r.teardown)

	for i, img := range r.presenter.Images() {
		tex, err := gpu.WrapImage(img, fmt.Sprintf("swap %d", i))
		if err != nil {
			return err
		}
		r.swap = append(r.swap, tex)
	}
	r.ring.SetImageCount(len(r.swap))

	var err error
	if r.gbuffer, err = NewGBuffer(r.dev, extent); err != nil {
		return err
	}
	r.gbuffer.Register(r.inspector)

	format := r.presenter.Format()
	r.lightingPass, err = r.dev.NewRenderPass(gpu.RenderPassDesc{
		Label: "lighting",
		Colors: []gpu.AttachmentDesc{{
			Format: format, Load: gpu.LoadClear, Store: gpu.StoreStore, Layout: gpu.LayoutColorAttachment,
		}},
	})
	if err != nil {
		return err
	}
	r.forwardPass, err = r.dev.NewRenderPass(gpu.RenderPassDesc{
		Label: "forward",
		Colors: []gpu.AttachmentDesc{{
			Format: format, Load: gpu.LoadLoad, Store: gpu.StoreStore, Layout: gpu.LayoutColorAttachment,
		}},
		Depth: &gpu.AttachmentDesc{
			Format: gpu.FormatDepth32Float, Load: gpu.LoadLoad, Store: gpu.StoreDontCare, Layout: gpu.LayoutDepthAttachment,
		},
	})
	if err != nil {
		return err
	}
	for _, tex := range r.swap {
		lt, err := gpu.NewRenderTargetFor(r.lightingPass, []gpu.View{tex.View}, extent)
		if err != nil {
			return err
		}
		r.lightingTargets = append(r.lightingTargets, lt)
		ft, err := gpu.NewRenderTargetFor(r.forwardPass, []gpu.View{tex.View, r.gbuffer.Depth.View}, extent)
		if err != nil {
			return err
		}
		r.forwardTargets = append(r.forwardTargets, ft)
	}

	if err := r.buildPipelines(); err != nil {
		return err
	}
	u.Discard()
	return nil
}

func (r *Renderer) buildPipelines() error {
	shared := []*gpu.BindingLayout{r.globalLayout, r.materials.Layout()}
	err := buildPipeline(r.dev, r.lib, &r.opaque, pipelineSpec{
		program: "gbuffer",
		schema:  gpu.VertexStandard,
		shared:  shared,
		push:    64,
	}, r.gbuffer.Target.Pass)
	if err != nil {
		return err
	}
	err = buildPipeline(r.dev, r.lib, &r.transparent, pipelineSpec{
		program: "forward",
		schema:  gpu.VertexStandard,
		shared:  shared,
		push:    64,
		edit:    transparentState,
	}, r.forwardPass)
	if err != nil {
		return err
	}
	err = buildPipeline(r.dev, r.lib, &r.lighting, pipelineSpec{
		program: "lighting",
		kernel:  LightingKernel(),
		shared:  []*gpu.BindingLayout{r.globalLayout},
		own:     lightingBindings(),
		edit:    noCull,
	}, r.lightingPass)
	if err != nil {
		return err
	}
	if r.env == nil {
		return r.writeLightingSet()
	}
	return r.bindEnvironment()
}

func (r *Renderer) teardownPipelines() {
	r.skybox.teardown()
	if r.lightingSet != nil {
		r.lightingSet.Destroy()
		r.lightingSet = nil
	}
	r.lighting.Destroy()
	r.transparent.Destroy()
	r.opaque.Destroy()
}

// teardown destroys everything build created. The device must be idle.
func (r *Renderer) teardown() {
	r.teardownPipelines()
	for _, t := range r.forwardTargets {
		t.Destroy()
	}
	for _, t := range r.lightingTargets {
		t.Destroy()
	}
	r.forwardTargets, r.lightingTargets = nil, nil
	if r.forwardPass != nil {
		r.forwardPass.Destroy()
		r.forwardPass = nil
	}
	if r.lightingPass != nil {
		r.lightingPass.Destroy()
		r.lightingPass = nil
	}
	r.gbuffer.Destroy()
	r.gbuffer = nil
	for _, tex := range r.swap {
		tex.Destroy()
	}
	r.swap = nil
}

// Resize runs the rebuild protocol: wait for the device, flush the reclaim
// queue, tear down every resolution-dependent object, recreate the
// presentable images and build again. A zero extent (minimized window)
// defers the rebuild until a later frame sees a usable size.
func (r *Renderer) Resize(extent gpu.Extent) error {
	if extent.Width <= 0 || extent.Height <= 0 {
		r.needsResize = true
		return nil
	}
	start := time.Now()
	if err := r.dev.WaitIdle(); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	r.queue.Flush()
	r.teardown()
	if err := r.presenter.Recreate(extent); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	if err := r.build(); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	r.camera.Resize(extent.Width, extent.Height)
	r.needsResize = false
	logger.Log.Info("Renderer rebuilt",
		zap.Int("width", extent.Width),
		zap.Int("height", extent.Height),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// RequestShaderReload asks the next frame to rebuild the pipelines from the
// shader binaries on disk.
func (r *Renderer) RequestShaderReload() {
	r.reload.Store(true)
}

// ReloadShaders waits for the device and rebuilds every pipeline. Materials
// keep working because they hold pipeline refs.
func (r *Renderer) ReloadShaders() error {
	r.reload.Store(false)
	if err := r.dev.WaitIdle(); err != nil {
		return fmt.Errorf("reload shaders: %w", err)
	}
	r.teardownPipelines()
	if err := r.buildPipelines(); err != nil {
		return fmt.Errorf("reload shaders: %w", err)
	}
	logger.Log.Info("Shaders reloaded")
	return nil
}

// Close waits for the device and destroys everything the renderer owns.
// Materials and meshes created by callers must be released first.
func (r *Renderer) Close() error {
	err := r.dev.WaitIdle()
	r.queue.Flush()
	r.teardown()
	r.skybox.Destroy()
	if r.env != nil {
		r.env.Destroy()
		r.env = nil
	}
	r.textures.Close()
	r.queue.Flush()
	r.materials.Destroy()
	r.destroyGlobals()
	r.ring.Destroy()
	r.textures.LogStats()
	logger.Log.Info("Renderer closed")
	return err
}
