// Package gpu is the device abstraction the renderer is written against.
//
// A backend (Vulkan, or the software reference device) implements Device and
// the object interfaces below. On top of those raw objects the package
// provides owned wrappers, the image barrier controller, the binding and
// pipeline builder, the frame ring and the reclamation queue.
package gpu

import (
	"errors"
)

var (
	// ErrOutOfDate is returned by Presenter.Acquire and Presenter.Present
	// when the presentable images no longer match the surface.
	ErrOutOfDate = errors.New("gpu: presentable images out of date")
	// ErrInFlight is returned when a command buffer or fence is reused
	// while its previous submission is still pending.
	ErrInFlight = errors.New("gpu: object reused while in flight")
)

// Destroyer is implemented by every object that owns GPU memory or driver
// state. Destroy must be safe to call more than once.
type Destroyer interface {
	Destroy()
}

// DestroyFunc adapts a function to Destroyer.
type DestroyFunc func()

func (f DestroyFunc) Destroy() { f() }

type ImageDesc struct {
	Label  string
	Format Format
	Extent Extent
	Mips   int
	Layers int
	// Cube marks the image as cube compatible; Layers must be 6.
	Cube  bool
	Usage ImageUsage
}

type ViewDesc struct {
	Label string
	// Cube views all six layers as a cube map.
	Cube      bool
	BaseMip   int
	Mips      int
	BaseLayer int
	Layers    int
}

type Image interface {
	Destroyer
	Desc() ImageDesc
	NewView(desc ViewDesc) (View, error)
}

type View interface {
	Destroyer
	Image() Image
	Desc() ViewDesc
}

type SamplerDesc struct {
	Label     string
	MinFilter Filter
	MagFilter Filter
	MipFilter Filter
	Address   AddressMode
	MaxLod    float32
}

type Sampler interface {
	Destroyer
	Desc() SamplerDesc
}

type BufferDesc struct {
	Label string
	Size  int
	Usage BufferUsage
	// HostVisible buffers can be written from the CPU with Write.
	HostVisible bool
}

type Buffer interface {
	Destroyer
	Desc() BufferDesc
	Write(offset int, data []byte) error
}

// AttachmentDesc describes one attachment of a render pass. Layout is both
// the layout the attachment must be in when the pass begins and the layout
// it is left in; every transition happens through the barrier controller.
type AttachmentDesc struct {
	Format Format
	Load   LoadOp
	Store  StoreOp
	Layout Layout
}

type RenderPassDesc struct {
	Label  string
	Colors []AttachmentDesc
	Depth  *AttachmentDesc
}

type RenderPass interface {
	Destroyer
	Desc() RenderPassDesc
	// NewFramebuffer binds views to the pass attachments, colors first and
	// depth last.
	NewFramebuffer(views []View, extent Extent) (Framebuffer, error)
}

type Framebuffer interface {
	Destroyer
	Pass() RenderPass
	Views() []View
	Extent() Extent
}

// DescriptorLayoutBinding is a backend binding slot; Size is the byte range of
// buffer bindings.
type DescriptorLayoutBinding struct {
	Index  int
	Kind   DescriptorKind
	Stages ShaderStage
	Size   int
}

type DescriptorSetLayout interface {
	Destroyer
	Bindings() []DescriptorLayoutBinding
	NewSet() (DescriptorSet, error)
}

type DescriptorWrite struct {
	Binding int
	Kind    DescriptorKind
	Buffer  Buffer
	Offset  int
	Range   int
	View    View
	Sampler Sampler
}

type DescriptorSet interface {
	Destroyer
	Layout() DescriptorSetLayout
	Update(writes []DescriptorWrite) error
}

// ShaderSource is one compiled stage. SPIRV feeds hardware backends; Kernel
// is the CPU rendition of a fragment stage evaluated by software devices.
type ShaderSource struct {
	Label  string
	Stage  ShaderStage
	SPIRV  []byte
	Entry  string
	Kernel Kernel
}

type ShaderModule interface {
	Destroyer
	Source() ShaderSource
}

type Pipeline interface {
	Destroyer
	Desc() *PipelineDesc
}

// BufferImageCopy copies tightly packed texels from a buffer into one
// subresource.
type BufferImageCopy struct {
	BufferOffset int
	Mip          int
	Layer        int
	Extent       Extent
}

// ImageBlit scales the full extent of one mip level into another for a range
// of layers, with linear filtering.
type ImageBlit struct {
	SrcMip    int
	DstMip    int
	BaseLayer int
	Layers    int
}

type CommandBuffer interface {
	Destroyer
	Begin() error
	End() error
	BeginRenderPass(fb Framebuffer, clears []ClearValue)
	EndRenderPass()
	// SetViewport sets the viewport and a matching scissor rectangle.
	SetViewport(x, y, width, height int)
	BindPipeline(p Pipeline)
	BindDescriptorSets(p Pipeline, first int, sets []DescriptorSet)
	PushConstants(p Pipeline, stages ShaderStage, offset int, data []byte)
	BindVertexBuffer(b Buffer, offset int)
	BindIndexBuffer(b Buffer, offset int, t IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)
	DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)
	PipelineBarrier(b ImageBarrier)
	CopyBufferToImage(src Buffer, dst Image, region BufferImageCopy)
	BlitImage(src, dst Image, region ImageBlit)
}

type Fence interface {
	Destroyer
	// Wait blocks until the fence is signaled.
	Wait() error
	Reset() error
	Signaled() bool
}

type Semaphore interface {
	Destroyer
}

type SubmitInfo struct {
	Commands   []CommandBuffer
	Wait       []Semaphore
	WaitStages []SyncStage
	Signal     []Semaphore
	Fence      Fence
}

// Device creates objects and submits work to a single graphics queue.
type Device interface {
	Destroyer
	Name() string
	NewImage(desc ImageDesc) (Image, error)
	NewSampler(desc SamplerDesc) (Sampler, error)
	NewBuffer(desc BufferDesc) (Buffer, error)
	NewRenderPass(desc RenderPassDesc) (RenderPass, error)
	NewDescriptorSetLayout(label string, bindings []DescriptorLayoutBinding) (DescriptorSetLayout, error)
	NewShaderModule(src ShaderSource) (ShaderModule, error)
	NewPipeline(desc *PipelineDesc) (Pipeline, error)
	NewCommandBuffer(label string) (CommandBuffer, error)
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	Submit(info SubmitInfo) error
	// WaitIdle blocks until every submitted command has completed.
	WaitIdle() error
}

// Presenter owns the presentable images (a swapchain on hardware backends).
type Presenter interface {
	Destroyer
	Format() Format
	Extent() Extent
	Images() []Image
	// Acquire returns the index of the next presentable image and arranges
	// for signal to be signaled when it is ready.
	Acquire(signal Semaphore) (int, error)
	Present(index int, wait []Semaphore) error
	// Recreate rebuilds the presentable images for a new extent. The device
	// must be idle.
	Recreate(extent Extent) error
}
