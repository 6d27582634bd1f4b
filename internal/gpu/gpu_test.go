package gpu_test

import (
	"errors"
	"strings"
	"testing"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/gpu/soft"
)

func newDevice(t *testing.T) *soft.Device {
	t.Helper()
	dev := soft.New(soft.WithWorkers(2))
	t.Cleanup(dev.Destroy)
	return dev
}

func newTexture(t *testing.T, dev gpu.Device, desc gpu.ImageDesc) *gpu.Texture {
	t.Helper()
	tex, err := gpu.NewTexture(dev, desc, &gpu.SamplerDesc{})
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	t.Cleanup(tex.Destroy)
	return tex
}

func TestTransitionTracksLayouts(t *testing.T) {
	dev := newDevice(t)
	tex := newTexture(t, dev, gpu.ImageDesc{
		Label:  "chain",
		Format: gpu.FormatRGBA16Float,
		Extent: gpu.Extent{Width: 8, Height: 8},
		Mips:   4,
		Usage:  gpu.UsageTransferDst | gpu.UsageTransferSrc | gpu.UsageSampled,
	})

	err := gpu.OneShot(dev, "transitions", func(cmd gpu.CommandBuffer) error {
		if err := gpu.Transition(cmd, tex, gpu.MipRange(0, 1), gpu.LayoutTransferDst); err != nil {
			return err
		}
		if err := gpu.Transition(cmd, tex, gpu.SubresourceRange{}, gpu.LayoutShaderReadOnly); err == nil {
			t.Error("a range with mixed layouts should be rejected")
		}
		if err := gpu.Transition(cmd, tex, gpu.MipRange(0, 1), gpu.LayoutPresent); !errors.Is(err, gpu.ErrUnsupportedTransition) {
			t.Errorf("expected ErrUnsupportedTransition, got %v", err)
		}
		return gpu.Transition(cmd, tex, gpu.MipRange(0, 1), gpu.LayoutShaderReadOnly)
	})
	if err != nil {
		t.Fatalf("OneShot failed: %v", err)
	}
	if l := tex.Layout(0, 0); l != gpu.LayoutShaderReadOnly {
		t.Errorf("expected mip 0 in ShaderReadOnly, got %s", l)
	}
	if l := tex.Layout(1, 0); l != gpu.LayoutUndefined {
		t.Errorf("expected mip 1 untouched, got %s", l)
	}

	barriers := dev.EventsOf(soft.OpBarrier)
	if len(barriers) != 2 {
		t.Fatalf("failed transitions must not record barriers; expected 2, got %d", len(barriers))
	}
	if b := barriers[1].Barrier; b.Old != gpu.LayoutTransferDst || b.New != gpu.LayoutShaderReadOnly {
		t.Errorf("unexpected second barrier %s -> %s", b.Old, b.New)
	}
}

func TestUploadBarrierSequence(t *testing.T) {
	dev := newDevice(t)
	tex := newTexture(t, dev, gpu.ImageDesc{
		Label:  "albedo",
		Format: gpu.FormatRGBA8Unorm,
		Extent: gpu.Extent{Width: 2, Height: 1},
		Usage:  gpu.UsageTransferDst | gpu.UsageSampled,
	})
	if err := gpu.UploadTexture(dev, tex, []byte{255, 0, 0, 255, 0, 255, 0, 255}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	var seq []string
	for _, e := range dev.Events() {
		switch e.Op {
		case soft.OpBarrier:
			seq = append(seq, e.Barrier.Old.String()+">"+e.Barrier.New.String())
		case soft.OpCopy:
			seq = append(seq, "copy")
		}
	}
	want := "Undefined>TransferDst copy TransferDst>ShaderReadOnly"
	if got := strings.Join(seq, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	px, _, err := dev.ReadPixels(tex.Image(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if px[0] != 1 || px[1] != 0 || px[5] != 1 {
		t.Errorf("unexpected texels %v", px)
	}
	if err := gpu.UploadTexture(dev, tex, []byte{1, 2, 3}); err == nil {
		t.Error("a short upload should be rejected")
	}
}

func TestFailedUploadDiscardsLayouts(t *testing.T) {
	dev := newDevice(t)
	tex := newTexture(t, dev, gpu.ImageDesc{
		Label:  "half",
		Format: gpu.FormatRG16Float,
		Extent: gpu.Extent{Width: 1, Height: 1},
		Usage:  gpu.UsageTransferDst | gpu.UsageSampled,
	})
	if err := gpu.UploadTexture(dev, tex, make([]byte, 4)); err == nil {
		t.Fatal("expected upload of a format without an upload path to fail")
	}
	if got := tex.Layout(0, 0); got != gpu.LayoutUndefined {
		t.Errorf("expected layouts discarded after a failed upload, got %s", got)
	}
	cmd, err := dev.NewCommandBuffer("after failure")
	if err != nil {
		t.Fatal(err)
	}
	defer cmd.Destroy()
	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := gpu.TransitionAll(cmd, tex, gpu.LayoutTransferDst); err != nil {
		t.Fatalf("transition after a failed upload: %v", err)
	}
	if err := cmd.End(); err != nil {
		t.Errorf("recording after a failed upload should stay valid: %v", err)
	}
}

func TestBindingLayoutIndices(t *testing.T) {
	dev := newDevice(t)
	layout, err := gpu.NewBindingLayout(dev, "material", []gpu.Binding{
		gpu.TextureBinding("albedo", gpu.StageFragment),
		gpu.TextureBinding("normal", gpu.StageFragment),
		gpu.UniformBinding("params", gpu.StageAllGraphics, 16),
	})
	if err != nil {
		t.Fatalf("NewBindingLayout failed: %v", err)
	}
	defer layout.Destroy()

	for want, name := range []string{"albedo", "normal", "params"} {
		if got, ok := layout.Index(name); !ok || got != want {
			t.Errorf("%s: expected index %d, got %d (found %v)", name, want, got, ok)
		}
	}
	for i, b := range layout.Raw().Bindings() {
		if b.Index != i {
			t.Errorf("binding %d has index %d", i, b.Index)
		}
	}

	set, err := layout.NewSet()
	if err != nil {
		t.Fatal(err)
	}
	defer set.Destroy()
	buf, err := dev.NewBuffer(gpu.BufferDesc{Label: "params", Size: 16, Usage: gpu.BufferUniform, HostVisible: true})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()
	tex := newTexture(t, dev, gpu.ImageDesc{Label: "white", Format: gpu.FormatRGBA8Unorm, Extent: gpu.Extent{Width: 1, Height: 1}})

	if err := set.SetBuffer("albedo", buf, 0); err == nil {
		t.Error("writing a buffer to a texture binding should fail")
	}
	if err := set.SetTexture("params", tex); err == nil {
		t.Error("writing a texture to a uniform binding should fail")
	}
	if err := set.SetTexture("missing", tex); err == nil {
		t.Error("writing an undeclared binding should fail")
	}
	if err := set.SetTexture("albedo", tex); err != nil {
		t.Errorf("SetTexture failed: %v", err)
	}
	if err := set.SetBuffer("params", buf, 8); err == nil {
		t.Error("a binding range past the end of the buffer should fail")
	}

	if _, err := gpu.NewBindingLayout(dev, "dup", []gpu.Binding{
		gpu.TextureBinding("a", gpu.StageFragment),
		gpu.TextureBinding("a", gpu.StageFragment),
	}); err == nil {
		t.Error("duplicate binding names should be rejected")
	}
}

func colorPass(t *testing.T, dev gpu.Device) gpu.RenderPass {
	t.Helper()
	pass, err := dev.NewRenderPass(gpu.RenderPassDesc{
		Label: "color",
		Colors: []gpu.AttachmentDesc{{
			Format: gpu.FormatRGBA16Float,
			Layout: gpu.LayoutColorAttachment,
		}},
		Depth: &gpu.AttachmentDesc{Format: gpu.FormatDepth32Float, Layout: gpu.LayoutDepthAttachment},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pass.Destroy)
	return pass
}

func testProgram(t *testing.T, dev gpu.Device, bindings []gpu.ShaderBinding, push int) *gpu.Program {
	t.Helper()
	vs, err := dev.NewShaderModule(gpu.ShaderSource{Label: "test.vert", Stage: gpu.StageVertex})
	if err != nil {
		t.Fatal(err)
	}
	fs, err := dev.NewShaderModule(gpu.ShaderSource{Label: "test.frag", Stage: gpu.StageFragment})
	if err != nil {
		t.Fatal(err)
	}
	p := &gpu.Program{Label: "test", Vertex: vs, Fragment: fs, Bindings: bindings, PushConstantSize: push}
	t.Cleanup(p.Destroy)
	return p
}

func TestPipelineBuilderDefaultsAndHooks(t *testing.T) {
	dev := newDevice(t)
	pass := colorPass(t, dev)
	global, err := gpu.NewBindingLayout(dev, "global", []gpu.Binding{
		gpu.UniformBinding("globals", gpu.StageAllGraphics, 192),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer global.Destroy()

	prog := testProgram(t, dev, []gpu.ShaderBinding{
		{Set: 0, Index: 0, Kind: gpu.KindUniformBuffer, Name: "globals", Stage: gpu.StageVertex},
		{Set: 1, Index: 0, Kind: gpu.KindTexture, Name: "albedoMap", Stage: gpu.StageFragment},
	}, 64)

	hooked := false
	p, err := gpu.NewPipelineBuilder(dev, "opaque").
		Program(prog).
		VertexSchema(gpu.VertexStandard).
		Shared(global).
		Bindings(gpu.TextureBinding("albedo", gpu.StageFragment)).
		PushConstants(gpu.StageVertex, 64).
		Customize(func(d *gpu.PipelineDesc) {
			if d.CullMode != gpu.CullBack || !d.DepthTest || !d.DepthWrite || d.DepthCompare != gpu.CompareLess {
				t.Errorf("defaults should be applied before hooks, got %+v", d)
			}
			hooked = true
			d.CullMode = gpu.CullFront
		}).
		Build(pass)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer p.Destroy()

	if !hooked {
		t.Error("customization hook was not invoked")
	}
	desc := p.Desc()
	if desc.CullMode != gpu.CullFront {
		t.Error("hook changes should reach the pipeline")
	}
	if len(desc.SetLayouts) != 2 || desc.SetLayouts[0] != global.Raw() {
		t.Errorf("shared layout should be prepended as set 0, got %d sets", len(desc.SetLayouts))
	}
	if p.OwnSet() != 1 {
		t.Errorf("expected own set at index 1, got %d", p.OwnSet())
	}
	if len(desc.Blend) != 1 || desc.Blend[0].WriteMask != gpu.MaskAll || desc.Blend[0].Enable {
		t.Errorf("expected one opaque blend state, got %+v", desc.Blend)
	}
	if desc.VertexSchema.Stride != 48 {
		t.Errorf("expected the standard vertex schema, got stride %d", desc.VertexSchema.Stride)
	}
}

func TestPipelineBuilderSchemaMismatch(t *testing.T) {
	dev := newDevice(t)
	pass := colorPass(t, dev)

	tests := []struct {
		name     string
		bindings []gpu.ShaderBinding
		push     int
		pushed   int
	}{
		{"missing set", []gpu.ShaderBinding{{Set: 1, Index: 0, Kind: gpu.KindTexture, Stage: gpu.StageFragment}}, 0, 0},
		{"missing binding", []gpu.ShaderBinding{{Set: 0, Index: 3, Kind: gpu.KindTexture, Stage: gpu.StageFragment}}, 0, 0},
		{"kind", []gpu.ShaderBinding{{Set: 0, Index: 0, Kind: gpu.KindUniformBuffer, Stage: gpu.StageFragment}}, 0, 0},
		{"stage", []gpu.ShaderBinding{{Set: 0, Index: 0, Kind: gpu.KindTexture, Stage: gpu.StageVertex}}, 0, 0},
		{"push size", nil, 68, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := gpu.NewPipelineBuilder(dev, tt.name).
				Program(testProgram(t, dev, tt.bindings, tt.push)).
				Bindings(gpu.TextureBinding("tex", gpu.StageFragment))
			if tt.pushed > 0 {
				b.PushConstants(gpu.StageVertex, tt.pushed)
			}
			p, err := b.Build(pass)
			if !errors.Is(err, gpu.ErrSchemaMismatch) {
				t.Errorf("expected ErrSchemaMismatch, got %v", err)
			}
			if p != nil {
				p.Destroy()
			}
		})
	}
}

func TestFrameRingBoundsWorkInFlight(t *testing.T) {
	dev := newDevice(t)
	presenter, err := soft.NewPresenter(dev, gpu.Extent{Width: 4, Height: 4}, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer presenter.Destroy()

	ring, err := gpu.NewFrameRing(dev, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer ring.Destroy()
	ring.SetImageCount(len(presenter.Images()))

	swap := make([]*gpu.Texture, len(presenter.Images()))
	for i, img := range presenter.Images() {
		if swap[i], err = gpu.WrapImage(img, "swap"); err != nil {
			t.Fatal(err)
		}
		defer swap[i].Destroy()
	}

	for frame := 0; frame < 100; frame++ {
		slot, err := ring.Begin()
		if err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		index, err := presenter.Acquire(slot.ImageAvailable)
		if err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		if err := ring.ClaimImage(slot, index); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		cmd := slot.Commands
		if err := cmd.Begin(); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		target := swap[index]
		target.Discard()
		if err := gpu.TransitionAll(cmd, target, gpu.LayoutColorAttachment); err != nil {
			t.Fatal(err)
		}
		if err := gpu.TransitionAll(cmd, target, gpu.LayoutPresent); err != nil {
			t.Fatal(err)
		}
		if err := cmd.End(); err != nil {
			t.Fatal(err)
		}
		err = dev.Submit(gpu.SubmitInfo{
			Commands:   []gpu.CommandBuffer{cmd},
			Wait:       []gpu.Semaphore{slot.ImageAvailable},
			WaitStages: []gpu.SyncStage{gpu.SyncColorOutput},
			Signal:     []gpu.Semaphore{slot.RenderFinished},
			Fence:      slot.Fence,
		})
		if err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		if err := presenter.Present(index, []gpu.Semaphore{slot.RenderFinished}); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		ring.Advance()
	}
	if err := dev.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if got := dev.MaxPending(); got > 2 {
		t.Errorf("expected at most 2 frames in flight, got %d", got)
	}
	if got := len(presenter.Presented()); got != 100 {
		t.Errorf("expected 100 presents, got %d", got)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Errorf("unexpected violations %v", v)
	}
}

func TestFrameRingRejectsReuseWhileInFlight(t *testing.T) {
	dev := newDevice(t)
	ring, err := gpu.NewFrameRing(dev, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer ring.Destroy()
	ring.SetImageCount(1)

	slot, err := ring.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := ring.ClaimImage(slot, 0); err != nil {
		t.Fatal(err)
	}
	if err := slot.Commands.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := slot.Commands.End(); err != nil {
		t.Fatal(err)
	}
	if err := dev.Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{slot.Commands}, Fence: slot.Fence}); err != nil {
		t.Fatal(err)
	}
	if err := slot.Commands.Begin(); !errors.Is(err, gpu.ErrInFlight) {
		t.Errorf("re-recording a pending command buffer: expected ErrInFlight, got %v", err)
	}
	if err := slot.Fence.Reset(); !errors.Is(err, gpu.ErrInFlight) {
		t.Errorf("resetting a pending fence: expected ErrInFlight, got %v", err)
	}
	ring.Advance()
	if _, err := ring.Begin(); err != nil {
		t.Fatalf("Begin should wait for the slot fence: %v", err)
	}
	if !slot.Fence.Signaled() {
		t.Error("the slot fence should be signaled after Begin")
	}
	if err := dev.WaitIdle(); err != nil {
		t.Fatal(err)
	}
}

func TestRenderTargetOwnsPass(t *testing.T) {
	dev := newDevice(t)
	tex := newTexture(t, dev, gpu.ImageDesc{
		Label:  "target",
		Format: gpu.FormatRGBA8Unorm,
		Extent: gpu.Extent{Width: 4, Height: 4},
		Usage:  gpu.UsageColorAttachment,
	})
	rt, err := gpu.NewRenderTarget(dev, gpu.RenderPassDesc{
		Label:  "offscreen",
		Colors: []gpu.AttachmentDesc{{Format: gpu.FormatRGBA8Unorm, Layout: gpu.LayoutColorAttachment}},
	}, []gpu.View{tex.View}, gpu.Extent{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	rt.Destroy()
	destroys := 0
	for _, e := range dev.EventsOf(soft.OpDestroy) {
		if e.Label == "offscreen" {
			destroys++
		}
	}
	if destroys != 2 {
		t.Errorf("expected the framebuffer and the pass destroyed, got %d destroys", destroys)
	}
}
