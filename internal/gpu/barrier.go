package gpu

import (
	"errors"
	"fmt"
)

// ErrUnsupportedTransition is returned for layout pairs missing from the
// transition table.
var ErrUnsupportedTransition = errors.New("gpu: unsupported layout transition")

// Layout is the layout state of an image subresource.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutTransferDst
	LayoutTransferSrc
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutShaderReadOnly
	LayoutPresent
)

var layoutNames = [...]string{
	LayoutUndefined:       "Undefined",
	LayoutTransferDst:     "TransferDst",
	LayoutTransferSrc:     "TransferSrc",
	LayoutColorAttachment: "ColorAttachment",
	LayoutDepthAttachment: "DepthAttachment",
	LayoutShaderReadOnly:  "ShaderReadOnly",
	LayoutPresent:         "Present",
}

func (l Layout) String() string {
	if l >= 0 && int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Access is a set of memory access types.
type Access uint32

const AccessNone Access = 0

const (
	AccessTransferRead Access = 1 << iota
	AccessTransferWrite
	AccessShaderRead
	AccessColorRead
	AccessColorWrite
	AccessDepthRead
	AccessDepthWrite
)

// SyncStage is a set of pipeline stages.
type SyncStage uint32

const (
	SyncTopOfPipe SyncStage = 1 << iota
	SyncTransfer
	SyncVertexShader
	SyncFragmentShader
	SyncEarlyFragmentTests
	SyncLateFragmentTests
	SyncColorOutput
	SyncBottomOfPipe
)

// TransitionMasks are the access and stage masks on both sides of a barrier.
type TransitionMasks struct {
	SrcAccess Access
	SrcStage  SyncStage
	DstAccess Access
	DstStage  SyncStage
}

type layoutPair struct{ from, to Layout }

// transitions is the only place barrier masks are decided.
var transitions = map[layoutPair]TransitionMasks{
	{LayoutUndefined, LayoutTransferDst}: {
		AccessNone, SyncTopOfPipe, AccessTransferWrite, SyncTransfer},
	// Color output, not top of pipe: a semaphore wait at color output, such
	// as on the acquired swap image, must order the layout change too.
	{LayoutUndefined, LayoutColorAttachment}: {
		AccessNone, SyncColorOutput, AccessColorWrite, SyncColorOutput},
	{LayoutUndefined, LayoutDepthAttachment}: {
		AccessNone, SyncTopOfPipe, AccessDepthRead | AccessDepthWrite, SyncEarlyFragmentTests},
	{LayoutTransferDst, LayoutTransferSrc}: {
		AccessTransferWrite, SyncTransfer, AccessTransferRead, SyncTransfer},
	{LayoutTransferDst, LayoutShaderReadOnly}: {
		AccessTransferWrite, SyncTransfer, AccessShaderRead, SyncFragmentShader},
	{LayoutTransferSrc, LayoutShaderReadOnly}: {
		AccessTransferRead, SyncTransfer, AccessShaderRead, SyncFragmentShader},
	{LayoutColorAttachment, LayoutTransferSrc}: {
		AccessColorWrite, SyncColorOutput, AccessTransferRead, SyncTransfer},
	{LayoutColorAttachment, LayoutShaderReadOnly}: {
		AccessColorWrite, SyncColorOutput, AccessShaderRead, SyncFragmentShader},
	{LayoutColorAttachment, LayoutColorAttachment}: {
		AccessColorWrite, SyncColorOutput, AccessColorRead | AccessColorWrite, SyncColorOutput},
	{LayoutColorAttachment, LayoutPresent}: {
		AccessColorWrite, SyncColorOutput, AccessNone, SyncBottomOfPipe},
	{LayoutShaderReadOnly, LayoutColorAttachment}: {
		AccessShaderRead, SyncFragmentShader, AccessColorWrite, SyncColorOutput},
	{LayoutDepthAttachment, LayoutDepthAttachment}: {
		AccessDepthWrite, SyncLateFragmentTests, AccessDepthRead | AccessDepthWrite, SyncEarlyFragmentTests},
}

// LookupTransition returns the masks for moving a subresource from old to new.
func LookupTransition(old, new Layout) (TransitionMasks, error) {
	m, ok := transitions[layoutPair{old, new}]
	if !ok {
		return TransitionMasks{}, fmt.Errorf("%w: %s -> %s", ErrUnsupportedTransition, old, new)
	}
	return m, nil
}

// SubresourceRange selects mips and layers of an image. Zero counts mean
// "the rest of the image".
type SubresourceRange struct {
	BaseMip   int
	Mips      int
	BaseLayer int
	Layers    int
}

// Resolve fills zero counts from the image description.
func (r SubresourceRange) Resolve(desc ImageDesc) SubresourceRange {
	if r.Mips == 0 {
		r.Mips = desc.Mips - r.BaseMip
	}
	if r.Layers == 0 {
		r.Layers = desc.Layers - r.BaseLayer
	}
	return r
}

// MipRange selects count levels starting at mip across all layers.
func MipRange(mip, count int) SubresourceRange {
	return SubresourceRange{BaseMip: mip, Mips: count}
}

// ImageBarrier is a recorded layout transition.
type ImageBarrier struct {
	Image Image
	Range SubresourceRange
	Old   Layout
	New   Layout
	TransitionMasks
}

// Transition records a barrier moving every subresource of tex in rng to the
// layout to. All subresources in rng must currently share one layout.
func Transition(cmd CommandBuffer, tex *Texture, rng SubresourceRange, to Layout) error {
	rng = rng.Resolve(tex.Desc())
	old, err := tex.rangeLayout(rng)
	if err != nil {
		return err
	}
	masks, err := LookupTransition(old, to)
	if err != nil {
		return fmt.Errorf("%s: %w", tex.Label, err)
	}
	cmd.PipelineBarrier(ImageBarrier{
		Image:           tex.image,
		Range:           rng,
		Old:             old,
		New:             to,
		TransitionMasks: masks,
	})
	tex.setRangeLayout(rng, to)
	return nil
}

// TransitionAll moves the whole of tex to the layout to.
func TransitionAll(cmd CommandBuffer, tex *Texture, to Layout) error {
	return Transition(cmd, tex, SubresourceRange{}, to)
}
