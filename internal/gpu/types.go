package gpu

import "fmt"

// Format is the texel format of an image or attachment.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRG16Float
	FormatRGBA16Float
	FormatRGBA32Float
	FormatDepth32Float
)

var formatNames = [...]string{
	FormatUndefined:    "Undefined",
	FormatRGBA8Unorm:   "RGBA8Unorm",
	FormatRGBA8Srgb:    "RGBA8Srgb",
	FormatBGRA8Unorm:   "BGRA8Unorm",
	FormatBGRA8Srgb:    "BGRA8Srgb",
	FormatRG16Float:    "RG16Float",
	FormatRGBA16Float:  "RGBA16Float",
	FormatRGBA32Float:  "RGBA32Float",
	FormatDepth32Float: "Depth32Float",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool { return f == FormatDepth32Float }

// Channels returns the number of components stored per texel.
func (f Format) Channels() int {
	switch f {
	case FormatDepth32Float:
		return 1
	case FormatRG16Float:
		return 2
	case FormatUndefined:
		return 0
	default:
		return 4
	}
}

// BytesPerTexel returns the size of one texel in bytes.
func (f Format) BytesPerTexel() int {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8Srgb, FormatBGRA8Unorm, FormatBGRA8Srgb:
		return 4
	case FormatRG16Float, FormatDepth32Float:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// Extent is a 2D size in texels.
type Extent struct {
	Width, Height int
}

// Mip returns the extent of the given mip level, never smaller than 1x1.
func (e Extent) Mip(level int) Extent {
	w, h := e.Width>>level, e.Height>>level
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Extent{w, h}
}

// MipLevels returns the length of a full mip chain for a square image of size.
func MipLevels(size int) int {
	n := 1
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// ImageUsage is a set of ways an image may be used.
type ImageUsage uint32

const (
	UsageSampled ImageUsage = 1 << iota
	UsageColorAttachment
	UsageDepthAttachment
	UsageTransferSrc
	UsageTransferDst
)

// BufferUsage is a set of ways a buffer may be used.
type BufferUsage uint32

const (
	BufferVertex BufferUsage = 1 << iota
	BufferIndex
	BufferUniform
	BufferStorage
	BufferTransferSrc
)

// ShaderStage is a set of programmable stages.
type ShaderStage uint32

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)

// StageAllGraphics covers the vertex and fragment stages.
const StageAllGraphics = StageVertex | StageFragment

// DescriptorKind is the resource type of a descriptor binding.
type DescriptorKind int

const (
	// KindTexture is a combined image and sampler.
	KindTexture DescriptorKind = iota
	KindUniformBuffer
	KindStorageBuffer
)

func (k DescriptorKind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindUniformBuffer:
		return "uniform"
	case KindStorageBuffer:
		return "storage"
	}
	return fmt.Sprintf("DescriptorKind(%d)", int(k))
}

type LoadOp int

const (
	LoadClear LoadOp = iota
	LoadLoad
	LoadDontCare
)

type StoreOp int

const (
	StoreStore StoreOp = iota
	StoreDontCare
)

type CullMode int

const (
	CullBack CullMode = iota
	CullFront
	CullNone
)

type FrontFace int

const (
	FrontCounterClockwise FrontFace = iota
	FrontClockwise
)

type CompareOp int

const (
	CompareLess CompareOp = iota
	CompareLessOrEqual
	CompareAlways
)

type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
)

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

type AddressMode int

const (
	AddressRepeat AddressMode = iota
	AddressClampToEdge
)

type IndexType int

const (
	IndexUint32 IndexType = iota
	IndexUint16
)

// ColorMask selects the channels written to a color attachment.
type ColorMask uint8

const (
	MaskR ColorMask = 1 << iota
	MaskG
	MaskB
	MaskA
	MaskAll = MaskR | MaskG | MaskB | MaskA
)

// ClearValue is the clear color for color attachments or the clear depth for
// depth attachments.
type ClearValue struct {
	Color [4]float32
	Depth float32
}
