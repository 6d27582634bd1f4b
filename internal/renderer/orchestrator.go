package renderer

import (
	"errors"
	"fmt"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	"go.uber.org/zap"
)

// FrameState is the stage of the frame being recorded.
type FrameState int

const (
	StateIdle FrameState = iota
	StateBeginFrame
	StateGeometryPass
	StateLightingPass
	StateForwardPass
	StateEndFrame
)

var frameStateNames = [...]string{
	StateIdle:         "idle",
	StateBeginFrame:   "begin frame",
	StateGeometryPass: "geometry pass",
	StateLightingPass: "lighting pass",
	StateForwardPass:  "forward pass",
	StateEndFrame:     "end frame",
}

func (s FrameState) String() string {
	if s >= 0 && int(s) < len(frameStateNames) {
		return frameStateNames[s]
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

func (r *Renderer) surfaceExtent() gpu.Extent {
	if r.SurfaceExtent != nil {
		return r.SurfaceExtent()
	}
	return r.presenter.Extent()
}

// RenderFrame records, submits and presents one frame. Out-of-date
// presentable images trigger the rebuild protocol; the frame is then
// skipped without error. Any other error leaves the renderer unusable.
func (r *Renderer) RenderFrame() error {
	if r.env == nil {
		return ErrNoEnvironment
	}
	if r.reload.Load() {
		if err := r.ReloadShaders(); err != nil {
			return err
		}
	}
	if r.needsResize {
		if err := r.Resize(r.surfaceExtent()); err != nil || r.needsResize {
			return err
		}
	}
	defer func() { r.state = StateIdle }()

	r.state = StateBeginFrame
	slot, err := r.ring.Begin()
	if err != nil {
		return r.fail(err)
	}
	index, err := r.presenter.Acquire(slot.ImageAvailable)
	if errors.Is(err, gpu.ErrOutOfDate) {
		logger.Log.Debug("Presentable images out of date", zap.String("stage", "acquire"))
		return r.Resize(r.surfaceExtent())
	}
	if err != nil {
		return r.fail(err)
	}
	if err := r.ring.ClaimImage(slot, index); err != nil {
		return r.fail(err)
	}
	r.queue.Advance()
	globals := NewGlobals(r.camera, r.cfg.Sun, r.cfg.Exposure, r.env.PrefilterMips)
	if err := r.globalBuffers[slot.Index].Write(0, globals.Bytes()); err != nil {
		return r.fail(err)
	}

	cmd := slot.Commands
	if err := cmd.Begin(); err != nil {
		return r.fail(err)
	}
	globalSet := r.globalSets[slot.Index]
	swap := r.swap[index]
	swap.Discard()
	opaque, transparent := r.scene.Collect()

	r.state = StateGeometryPass
	if err := r.recordGeometry(cmd, globalSet, opaque); err != nil {
		return r.fail(err)
	}
	for _, tex := range r.gbuffer.Colors {
		if err := gpu.TransitionAll(cmd, tex, gpu.LayoutShaderReadOnly); err != nil {
			return r.fail(err)
		}
	}

	r.state = StateLightingPass
	if err := r.recordLighting(cmd, globalSet, swap, index); err != nil {
		return r.fail(err)
	}
	if err := gpu.TransitionAll(cmd, swap, gpu.LayoutColorAttachment); err != nil {
		return r.fail(err)
	}
	if err := gpu.TransitionAll(cmd, r.gbuffer.Depth, gpu.LayoutDepthAttachment); err != nil {
		return r.fail(err)
	}

	r.state = StateForwardPass
	cmd.BeginRenderPass(r.forwardTargets[index].Framebuffer, nil)
	r.skybox.Record(cmd, r.camera)
	r.recordItems(cmd, globalSet, transparent)
	cmd.EndRenderPass()

	r.state = StateEndFrame
	if err := gpu.TransitionAll(cmd, swap, gpu.LayoutPresent); err != nil {
		return r.fail(err)
	}
	if err := cmd.End(); err != nil {
		return r.fail(err)
	}
	err = r.dev.Submit(gpu.SubmitInfo{
		Commands:   []gpu.CommandBuffer{cmd},
		Wait:       []gpu.Semaphore{slot.ImageAvailable},
		WaitStages: []gpu.SyncStage{gpu.SyncColorOutput},
		Signal:     []gpu.Semaphore{slot.RenderFinished},
		Fence:      slot.Fence,
	})
	if err != nil {
		return r.fail(err)
	}
	err = r.presenter.Present(index, []gpu.Semaphore{slot.RenderFinished})
	r.ring.Advance()
	if errors.Is(err, gpu.ErrOutOfDate) {
		logger.Log.Debug("Presentable images out of date", zap.String("stage", "present"))
		return r.Resize(r.surfaceExtent())
	}
	if err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Renderer) fail(err error) error {
	return fmt.Errorf("frame %d, %s: %w", r.ring.Frame(), r.state, err)
}

func (r *Renderer) recordGeometry(cmd gpu.CommandBuffer, globals *gpu.BindingSet, opaque []DrawItem) error {
	for _, tex := range r.gbuffer.Colors {
		if err := gpu.TransitionAll(cmd, tex, gpu.LayoutColorAttachment); err != nil {
			return err
		}
	}
	if err := gpu.TransitionAll(cmd, r.gbuffer.Depth, gpu.LayoutDepthAttachment); err != nil {
		return err
	}
	cmd.BeginRenderPass(r.gbuffer.Target.Framebuffer, r.gbuffer.Clears())
	r.recordItems(cmd, globals, opaque)
	cmd.EndRenderPass()
	return nil
}

func (r *Renderer) recordLighting(cmd gpu.CommandBuffer, globals *gpu.BindingSet, swap *gpu.Texture, index int) error {
	if err := gpu.TransitionAll(cmd, swap, gpu.LayoutColorAttachment); err != nil {
		return err
	}
	cmd.BeginRenderPass(r.lightingTargets[index].Framebuffer, []gpu.ClearValue{{Color: r.cfg.ClearColor}})
	p := r.lighting.Get()
	cmd.BindPipeline(p.Handle())
	cmd.BindDescriptorSets(p.Handle(), 0, []gpu.DescriptorSet{globals.Raw(), r.lightingSet.Raw()})
	cmd.Draw(3, 1, 0, 0)
	cmd.EndRenderPass()
	return nil
}

// recordItems draws items in order with the pipeline of each material,
// rebinding the pipeline only when it changes.
func (r *Renderer) recordItems(cmd gpu.CommandBuffer, globals *gpu.BindingSet, items []DrawItem) {
	var bound *gpu.GraphicsPipeline
	for i := range items {
		item := &items[i]
		p := item.Material.Pipeline.Get()
		if p != bound {
			cmd.BindPipeline(p.Handle())
			bound = p
		}
		cmd.BindDescriptorSets(p.Handle(), 0, []gpu.DescriptorSet{globals.Raw(), item.Material.Set().Raw()})
		if item.Draw != nil {
			item.Draw(cmd, item, p)
			continue
		}
		cmd.PushConstants(p.Handle(), gpu.StageVertex, 0, gpu.EncodeMat4(nil, item.Transform))
		cmd.BindVertexBuffer(item.Mesh.Vertices, 0)
		cmd.BindIndexBuffer(item.Mesh.Indices, 0, gpu.IndexUint32)
		cmd.DrawIndexed(item.Mesh.IndexCount, 1, item.Mesh.FirstIndex, 0, 0)
	}
}
