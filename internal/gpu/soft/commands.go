package soft

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
)

type cbState int

const (
	stateInitial cbState = iota
	stateRecording
	stateExecutable
	statePending
)

type rect struct{ x, y, w, h int }

type commandBuffer struct {
	object
	state cbState
	ops   []func() error
	err   error
	uses  map[*object]struct{}

	fb       *framebuffer
	pipe     *pipeline
	sets     []*descriptorSet
	push     []byte
	viewport rect
	vertex   *buffer
	index    *buffer
}

func (c *commandBuffer) Begin() error {
	c.dev.mu.Lock()
	pending := c.state == statePending
	c.dev.mu.Unlock()
	if pending {
		return fmt.Errorf("soft: begin %s: %w", c.label, gpu.ErrInFlight)
	}
	c.ops = nil
	c.err = nil
	c.uses = make(map[*object]struct{})
	c.fb, c.pipe, c.sets, c.push = nil, nil, nil, nil
	c.vertex, c.index = nil, nil
	c.state = stateRecording
	return nil
}

func (c *commandBuffer) End() error {
	if c.state != stateRecording {
		return fmt.Errorf("soft: end %s: not recording", c.label)
	}
	if c.fb != nil {
		c.fail("render pass %s still open", c.fb.label)
	}
	c.state = stateExecutable
	return c.err
}

func (c *commandBuffer) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("soft: "+format, args...)
	}
}

func (c *commandBuffer) use(objs ...*object) {
	for _, o := range objs {
		c.uses[o] = struct{}{}
	}
}

func (c *commandBuffer) recording() bool {
	if c.state != stateRecording {
		c.fail("%s: command recorded outside Begin/End", c.label)
		return false
	}
	return true
}

func (c *commandBuffer) BeginRenderPass(fb gpu.Framebuffer, clears []gpu.ClearValue) {
	if !c.recording() {
		return
	}
	if c.fb != nil {
		c.fail("begin pass %s inside pass %s", fb.Pass().Desc().Label, c.fb.label)
		return
	}
	f := fb.(*framebuffer)
	desc := f.pass.desc
	c.use(&f.object, &f.pass.object)
	attachments := slices.Clone(desc.Colors)
	if desc.Depth != nil {
		attachments = append(attachments, *desc.Depth)
	}
	for i, a := range attachments {
		v := f.views[i]
		c.use(&v.object, &v.img.object)
		if got := v.img.layout(v.desc.BaseMip, v.desc.BaseLayer); got != a.Layout {
			c.fail("pass %s: attachment %d (%s) is %s, pass expects %s", desc.Label, i, v.img.label, got, a.Layout)
		}
	}
	c.fb = f
	c.viewport = rect{0, 0, f.extent.Width, f.extent.Height}
	c.dev.record(Event{Op: OpBeginPass, Label: desc.Label})

	clearValues := slices.Clone(clears)
	c.ops = append(c.ops, func() error {
		for i, a := range attachments {
			if a.Load != gpu.LoadClear {
				continue
			}
			var cv gpu.ClearValue
			if i < len(clearValues) {
				cv = clearValues[i]
			}
			v := f.views[i]
			v.img.mu.Lock()
			dst := v.img.sub(v.desc.BaseMip, v.desc.BaseLayer)
			for p := 0; p < len(dst); p += 4 {
				if a.Format.IsDepth() {
					dst[p] = cv.Depth
				} else {
					copy(dst[p:p+4], cv.Color[:])
				}
			}
			v.img.mu.Unlock()
		}
		return nil
	})
}

func (c *commandBuffer) EndRenderPass() {
	if !c.recording() {
		return
	}
	if c.fb == nil {
		c.fail("end pass without a pass")
		return
	}
	c.dev.record(Event{Op: OpEndPass, Label: c.fb.pass.desc.Label})
	c.fb = nil
}

func (c *commandBuffer) SetViewport(x, y, width, height int) {
	c.viewport = rect{x, y, width, height}
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	if !c.recording() {
		return
	}
	sp := p.(*pipeline)
	if c.fb != nil && !compatiblePasses(sp.desc.Pass.Desc(), c.fb.pass.desc) {
		c.fail("pipeline %s built for pass %s bound in pass %s", sp.label, sp.desc.Pass.Desc().Label, c.fb.pass.desc.Label)
	}
	c.pipe = sp
	c.use(&sp.object)
	c.dev.record(Event{Op: OpBindPipeline, Label: sp.label})
}

func compatiblePasses(a, b gpu.RenderPassDesc) bool {
	if len(a.Colors) != len(b.Colors) || (a.Depth == nil) != (b.Depth == nil) {
		return false
	}
	for i := range a.Colors {
		if a.Colors[i].Format != b.Colors[i].Format {
			return false
		}
	}
	return a.Depth == nil || a.Depth.Format == b.Depth.Format
}

func (c *commandBuffer) BindDescriptorSets(p gpu.Pipeline, first int, sets []gpu.DescriptorSet) {
	if !c.recording() {
		return
	}
	for len(c.sets) < first+len(sets) {
		c.sets = append(c.sets, nil)
	}
	for i, s := range sets {
		ds := s.(*descriptorSet)
		c.sets[first+i] = ds
		c.use(&ds.object)
	}
	c.dev.record(Event{Op: OpBindSets, Label: p.(*pipeline).label, Count: first})
}

func (c *commandBuffer) PushConstants(p gpu.Pipeline, stages gpu.ShaderStage, offset int, data []byte) {
	if !c.recording() {
		return
	}
	sp := p.(*pipeline)
	covered := false
	for _, r := range sp.desc.PushConstants {
		if offset >= r.Offset && offset+len(data) <= r.Offset+r.Size && r.Stages&stages == stages {
			covered = true
		}
	}
	if !covered {
		c.fail("push of %d bytes at %d not covered by a range of pipeline %s", len(data), offset, sp.label)
	}
	for len(c.push) < offset+len(data) {
		c.push = append(c.push, 0)
	}
	copy(c.push[offset:], data)
	c.dev.record(Event{Op: OpPushConstants, Label: sp.label, Data: slices.Clone(data)})
}

func (c *commandBuffer) BindVertexBuffer(b gpu.Buffer, offset int) {
	c.vertex = b.(*buffer)
	c.use(&c.vertex.object)
}

func (c *commandBuffer) BindIndexBuffer(b gpu.Buffer, offset int, t gpu.IndexType) {
	c.index = b.(*buffer)
	c.use(&c.index.object)
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	c.draw(OpDraw, vertexCount)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	if c.index == nil {
		c.fail("indexed draw without an index buffer")
	}
	c.draw(OpDrawIndexed, indexCount)
}

func (c *commandBuffer) draw(op Op, count int) {
	if !c.recording() {
		return
	}
	if c.fb == nil {
		c.fail("draw outside a render pass")
		return
	}
	if c.pipe == nil {
		c.fail("draw without a pipeline")
		return
	}
	desc := c.pipe.desc
	if desc.VertexSchema.Stride > 0 && c.vertex == nil {
		c.fail("pipeline %s consumes %s vertices, no vertex buffer bound", c.pipe.label, desc.VertexSchema.Name)
	}

	res := &drawResources{
		textures: make(map[[2]int]*textureReader),
		uniforms: make(map[[2]int]gpu.DescriptorWrite),
	}
	for si, layout := range desc.SetLayouts {
		if si >= len(c.sets) || c.sets[si] == nil {
			c.fail("pipeline %s: set %d not bound", c.pipe.label, si)
			continue
		}
		set := c.sets[si]
		if !slices.Equal(set.layout.bindings, layout.Bindings()) {
			c.fail("pipeline %s: set %d (%s) has an incompatible layout", c.pipe.label, si, set.label)
			continue
		}
		for bi, w := range set.snapshot() {
			switch w.Kind {
			case gpu.KindTexture:
				v := w.View.(*view)
				c.use(&v.object, &v.img.object)
				for m := v.desc.BaseMip; m < v.desc.BaseMip+v.desc.Mips; m++ {
					for l := v.desc.BaseLayer; l < v.desc.BaseLayer+v.desc.Layers; l++ {
						if got := v.img.layout(m, l); got != gpu.LayoutShaderReadOnly {
							c.fail("pipeline %s samples %s (mip %d layer %d) in layout %s",
								c.pipe.label, v.img.label, m, l, got)
						}
					}
				}
				res.textures[[2]int{si, bi}] = &textureReader{v: v, s: w.Sampler.(*sampler).desc}
			default:
				c.use(&w.Buffer.(*buffer).object)
				res.uniforms[[2]int{si, bi}] = w
			}
		}
	}
	c.dev.record(Event{Op: op, Label: c.pipe.label, Count: count})

	kernel := desc.Fragment.Source().Kernel
	if op != OpDraw || kernel == nil || len(c.fb.views) == 0 || len(c.fb.pass.desc.Colors) == 0 {
		return
	}
	job := &kernelJob{
		kernel:  kernel,
		target:  c.fb.views[0],
		vp:      c.viewport,
		push:    slices.Clone(c.push),
		res:     res,
		blend:   desc.Blend[0].Enable,
		compare: desc.DepthCompare,
	}
	if c.fb.pass.desc.Depth != nil && desc.DepthTest {
		job.depth = c.fb.views[len(c.fb.views)-1]
	}
	c.ops = append(c.ops, func() error { return c.dev.runKernel(job) })
}

func (c *commandBuffer) PipelineBarrier(b gpu.ImageBarrier) {
	if !c.recording() {
		return
	}
	if c.fb != nil {
		c.fail("barrier on %s inside render pass %s", b.Image.Desc().Label, c.fb.label)
	}
	want, err := gpu.LookupTransition(b.Old, b.New)
	if err != nil {
		c.fail("%v", err)
	} else if want != b.TransitionMasks {
		c.fail("barrier %s -> %s on %s has masks %+v, expected %+v", b.Old, b.New, b.Image.Desc().Label, b.TransitionMasks, want)
	}
	img := b.Image.(*image)
	c.use(&img.object)
	for m := b.Range.BaseMip; m < b.Range.BaseMip+b.Range.Mips; m++ {
		for l := b.Range.BaseLayer; l < b.Range.BaseLayer+b.Range.Layers; l++ {
			cur := img.layout(m, l)
			if b.Old != gpu.LayoutUndefined && cur != b.Old {
				c.fail("barrier on %s (mip %d layer %d) expects %s, image is %s", img.label, m, l, b.Old, cur)
			}
			img.layouts[m*img.desc.Layers+l] = b.New
		}
	}
	bc := b
	c.dev.record(Event{Op: OpBarrier, Label: img.label, Barrier: &bc})
}

func (c *commandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, region gpu.BufferImageCopy) {
	if !c.recording() {
		return
	}
	buf, img := src.(*buffer), dst.(*image)
	c.use(&buf.object, &img.object)
	if got := img.layout(region.Mip, region.Layer); got != gpu.LayoutTransferDst {
		c.fail("copy into %s in layout %s", img.label, got)
	}
	c.dev.record(Event{Op: OpCopy, Label: img.label})
	c.ops = append(c.ops, func() error {
		texels := region.Extent.Width * region.Extent.Height
		bpt := img.desc.Format.BytesPerTexel()
		data := buf.bytes(region.BufferOffset, texels*bpt)
		if len(data) < texels*bpt {
			return fmt.Errorf("copy into %s: buffer too small", img.label)
		}
		img.mu.Lock()
		defer img.mu.Unlock()
		return decodeTexels(img.desc.Format, data, img.sub(region.Mip, region.Layer)[:texels*4])
	})
}

func (c *commandBuffer) BlitImage(src, dst gpu.Image, region gpu.ImageBlit) {
	if !c.recording() {
		return
	}
	s, d := src.(*image), dst.(*image)
	c.use(&s.object, &d.object)
	for l := region.BaseLayer; l < region.BaseLayer+region.Layers; l++ {
		if got := s.layout(region.SrcMip, l); got != gpu.LayoutTransferSrc {
			c.fail("blit source %s mip %d in layout %s", s.label, region.SrcMip, got)
		}
		if got := d.layout(region.DstMip, l); got != gpu.LayoutTransferDst {
			c.fail("blit destination %s mip %d in layout %s", d.label, region.DstMip, got)
		}
	}
	c.dev.record(Event{Op: OpBlit, Label: d.label, Count: region.DstMip})
	c.ops = append(c.ops, func() error {
		srcExt := s.desc.Extent.Mip(region.SrcMip)
		dstExt := d.desc.Extent.Mip(region.DstMip)
		if s != d {
			s.mu.RLock()
			defer s.mu.RUnlock()
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		for l := region.BaseLayer; l < region.BaseLayer+region.Layers; l++ {
			from := s.sub(region.SrcMip, l)
			to := d.sub(region.DstMip, l)
			for y := 0; y < dstExt.Height; y++ {
				for x := 0; x < dstExt.Width; x++ {
					u := (float32(x) + 0.5) / float32(dstExt.Width)
					v := (float32(y) + 0.5) / float32(dstExt.Height)
					px := bilinear(from, srcExt, u, v, gpu.AddressClampToEdge)
					copy(to[(y*dstExt.Width+x)*4:], px[:])
				}
			}
		}
		return nil
	})
}

func (c *commandBuffer) execute() error {
	for _, op := range c.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func decodeTexels(f gpu.Format, data []byte, dst []float32) error {
	n := len(dst) / 4
	switch f {
	case gpu.FormatRGBA32Float:
		for i := 0; i < n*4; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case gpu.FormatRGBA8Unorm, gpu.FormatBGRA8Unorm:
		for i := 0; i < n*4; i++ {
			dst[i] = float32(data[i]) / 255
		}
	case gpu.FormatRGBA8Srgb, gpu.FormatBGRA8Srgb:
		for i := 0; i < n*4; i++ {
			v := float32(data[i]) / 255
			if i%4 != 3 {
				v = srgbToLinear(v)
			}
			dst[i] = v
		}
	default:
		return fmt.Errorf("no upload path for %s", f)
	}
	if f == gpu.FormatBGRA8Unorm || f == gpu.FormatBGRA8Srgb {
		for i := 0; i < n; i++ {
			dst[i*4], dst[i*4+2] = dst[i*4+2], dst[i*4]
		}
	}
	return nil
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}
