// Package soft is a reference implementation of gpu.Device that runs on the
// CPU. It keeps an ordered log of every call that matters for correctness
// (barriers, passes, draws, submissions, waits, destruction), rejects the
// layout and synchronization mistakes a validation layer would report, and
// evaluates full-target fragment kernels so baked results can be inspected.
package soft

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// Op names an event in the device log.
type Op string

const (
	OpSubmit        Op = "submit"
	OpWaitIdle      Op = "wait-idle"
	OpDestroy       Op = "destroy"
	OpBarrier       Op = "barrier"
	OpBeginPass     Op = "begin-pass"
	OpEndPass       Op = "end-pass"
	OpBindPipeline  Op = "bind-pipeline"
	OpBindSets      Op = "bind-sets"
	OpPushConstants Op = "push-constants"
	OpDraw          Op = "draw"
	OpDrawIndexed   Op = "draw-indexed"
	OpCopy          Op = "copy"
	OpBlit          Op = "blit"
	OpAcquire       Op = "acquire"
	OpPresent       Op = "present"
	OpRecreate      Op = "recreate"
)

// Event is one entry of the device log.
type Event struct {
	Seq   int
	Op    Op
	Label string
	// Barrier is set for OpBarrier events.
	Barrier *gpu.ImageBarrier
	// Data holds push constant bytes for OpPushConstants events.
	Data []byte
	// Count is the vertex or index count of draws and the first set of
	// OpBindSets.
	Count int
}

type submission struct {
	cmds  []*commandBuffer
	fence *fence
}

// Device is the software device. The zero value is not usable; call New.
type Device struct {
	mu         sync.Mutex
	events     []Event
	pending    []*submission
	maxPending int
	violations []string
	pool       pond.Pool
	destroyed  bool
}

type Option func(*options)

type options struct {
	workers int
}

// WithWorkers bounds the number of goroutines evaluating kernels.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func New(opts ...Option) *Device {
	o := options{workers: runtime.NumCPU()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	logger.Log.Debug("Software device created", zap.Int("workers", o.workers))
	return &Device{pool: pond.NewPool(o.workers)}
}

func (d *Device) Name() string { return "software reference device" }

func (d *Device) record(e Event) {
	d.mu.Lock()
	e.Seq = len(d.events)
	d.events = append(d.events, e)
	d.mu.Unlock()
}

func (d *Device) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.violations = append(d.violations, msg)
	d.mu.Unlock()
	logger.Log.Warn("Software device violation", zap.String("detail", msg))
}

// Events returns a copy of the device log.
func (d *Device) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// EventsOf returns the logged events with the given op, in order.
func (d *Device) EventsOf(op Op) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Event
	for _, e := range d.events {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// ClearEvents empties the log.
func (d *Device) ClearEvents() {
	d.mu.Lock()
	d.events = nil
	d.mu.Unlock()
}

// Violations returns every misuse detected so far, such as destroying an
// object still referenced by a pending submission.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// MaxPending returns the largest number of submissions that were pending at
// once.
func (d *Device) MaxPending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxPending
}

// Pending returns the number of submissions not yet completed.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Device) NewImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.Width <= 0 || desc.Extent.Height <= 0 {
		return nil, fmt.Errorf("soft: image %s has empty extent %v", desc.Label, desc.Extent)
	}
	if desc.Mips == 0 {
		desc.Mips = 1
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	return newImage(d, desc), nil
}

func (d *Device) NewSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	return &sampler{object: object{dev: d, label: desc.Label}, desc: desc}, nil
}

func (d *Device) NewBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("soft: buffer %s has size %d", desc.Label, desc.Size)
	}
	return &buffer{object: object{dev: d, label: desc.Label}, desc: desc, data: make([]byte, desc.Size)}, nil
}

func (d *Device) NewRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	if len(desc.Colors) == 0 && desc.Depth == nil {
		return nil, fmt.Errorf("soft: render pass %s has no attachments", desc.Label)
	}
	return &renderPass{object: object{dev: d, label: desc.Label}, desc: desc}, nil
}

func (d *Device) NewDescriptorSetLayout(label string, bindings []gpu.DescriptorLayoutBinding) (gpu.DescriptorSetLayout, error) {
	for i, b := range bindings {
		if b.Index != i {
			return nil, fmt.Errorf("soft: layout %s: binding %d has index %d", label, i, b.Index)
		}
	}
	return &setLayout{object: object{dev: d, label: label}, bindings: append([]gpu.DescriptorLayoutBinding(nil), bindings...)}, nil
}

func (d *Device) NewShaderModule(src gpu.ShaderSource) (gpu.ShaderModule, error) {
	return &shaderModule{object: object{dev: d, label: src.Label}, src: src}, nil
}

func (d *Device) NewPipeline(desc *gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Vertex == nil || desc.Fragment == nil {
		return nil, fmt.Errorf("soft: pipeline %s is missing a stage", desc.Label)
	}
	if len(desc.Blend) != len(desc.Pass.Desc().Colors) {
		return nil, fmt.Errorf("soft: pipeline %s has %d blend states for %d color attachments",
			desc.Label, len(desc.Blend), len(desc.Pass.Desc().Colors))
	}
	cp := *desc
	return &pipeline{object: object{dev: d, label: desc.Label}, desc: &cp}, nil
}

func (d *Device) NewCommandBuffer(label string) (gpu.CommandBuffer, error) {
	return &commandBuffer{object: object{dev: d, label: label}}, nil
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	return &fence{object: object{dev: d, label: "fence"}, signaled: signaled}, nil
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	return &semaphore{object: object{dev: d, label: "semaphore"}}, nil
}

// Submit queues command buffers. They execute, in submission order, when a
// fence of theirs or of a later submission is waited on, or at WaitIdle.
func (d *Device) Submit(info gpu.SubmitInfo) error {
	sub := &submission{}
	d.mu.Lock()
	for _, c := range info.Commands {
		cb := c.(*commandBuffer)
		if cb.state == statePending {
			d.mu.Unlock()
			return fmt.Errorf("soft: submit %s: %w", cb.label, gpu.ErrInFlight)
		}
		if cb.state != stateExecutable {
			d.mu.Unlock()
			return fmt.Errorf("soft: submit %s: command buffer not ended", cb.label)
		}
		sub.cmds = append(sub.cmds, cb)
	}
	if info.Fence != nil {
		f := info.Fence.(*fence)
		if f.signaled || f.pending {
			d.mu.Unlock()
			return fmt.Errorf("soft: submit: fence must be reset before reuse: %w", gpu.ErrInFlight)
		}
		f.pending = true
		sub.fence = f
	}
	for _, cb := range sub.cmds {
		cb.state = statePending
	}
	d.pending = append(d.pending, sub)
	if len(d.pending) > d.maxPending {
		d.maxPending = len(d.pending)
	}
	d.mu.Unlock()

	label := ""
	if len(sub.cmds) > 0 {
		label = sub.cmds[0].label
	}
	d.record(Event{Op: OpSubmit, Label: label, Count: len(sub.cmds)})
	return nil
}

// completeThrough executes pending submissions in order up to and including
// the one signaling f. A nil fence completes everything.
func (d *Device) completeThrough(f *fence) error {
	var errs []error
	for {
		d.mu.Lock()
		if len(d.pending) == 0 || (f != nil && !f.pending) {
			d.mu.Unlock()
			break
		}
		sub := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		for _, cb := range sub.cmds {
			if err := cb.execute(); err != nil {
				errs = append(errs, fmt.Errorf("soft: %s: %w", cb.label, err))
			}
		}
		d.mu.Lock()
		for _, cb := range sub.cmds {
			cb.state = stateExecutable
		}
		if sub.fence != nil {
			sub.fence.pending = false
			sub.fence.signaled = true
		}
		d.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (d *Device) WaitIdle() error {
	d.record(Event{Op: OpWaitIdle})
	return d.completeThrough(nil)
}

// Destroy waits for all work and stops the kernel workers.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	_ = d.completeThrough(nil)
	d.pool.StopAndWait()
}

// inUse reports whether a pending submission references obj.
func (d *Device) inUse(obj *object) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.pending {
		for _, cb := range sub.cmds {
			if _, ok := cb.uses[obj]; ok {
				return true
			}
		}
	}
	return false
}

// ReadPixels returns a copy of one subresource as RGBA float32 texels.
func (d *Device) ReadPixels(img gpu.Image, mip, layer int) ([]float32, gpu.Extent, error) {
	im, ok := img.(*image)
	if !ok {
		return nil, gpu.Extent{}, fmt.Errorf("soft: image from another device")
	}
	if mip >= im.desc.Mips || layer >= im.desc.Layers {
		return nil, gpu.Extent{}, fmt.Errorf("soft: %s has no mip %d layer %d", im.label, mip, layer)
	}
	im.mu.RLock()
	defer im.mu.RUnlock()
	return append([]float32(nil), im.sub(mip, layer)...), im.desc.Extent.Mip(mip), nil
}

// LayoutOf returns the layout the device believes a subresource is in.
func (d *Device) LayoutOf(img gpu.Image, mip, layer int) gpu.Layout {
	im := img.(*image)
	return im.layouts[mip*im.desc.Layers+layer]
}
