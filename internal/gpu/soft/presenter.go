package soft

import (
	"fmt"

	"GopherPBR/internal/gpu"
)

// Presenter is an offscreen stand-in for a swapchain. Images are handed out
// round-robin; InvalidateNext makes the next Acquire report gpu.ErrOutOfDate.
type Presenter struct {
	dev       *Device
	format    gpu.Format
	extent    gpu.Extent
	count     int
	images    []*image
	next      int
	invalid   int
	presented []int
}

func NewPresenter(dev *Device, extent gpu.Extent, count int) (*Presenter, error) {
	p := &Presenter{dev: dev, format: gpu.FormatBGRA8Srgb, count: count}
	if err := p.create(extent); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Presenter) create(extent gpu.Extent) error {
	if extent.Width <= 0 || extent.Height <= 0 {
		return fmt.Errorf("soft: presenter extent %v", extent)
	}
	p.extent = extent
	p.images = p.images[:0]
	for i := 0; i < p.count; i++ {
		p.images = append(p.images, newImage(p.dev, gpu.ImageDesc{
			Label:  fmt.Sprintf("swap image %d", i),
			Format: p.format,
			Extent: extent,
			Mips:   1,
			Layers: 1,
			Usage:  gpu.UsageColorAttachment,
		}))
	}
	p.next = 0
	return nil
}

func (p *Presenter) Format() gpu.Format { return p.format }
func (p *Presenter) Extent() gpu.Extent { return p.extent }

func (p *Presenter) Images() []gpu.Image {
	out := make([]gpu.Image, len(p.images))
	for i, im := range p.images {
		out[i] = im
	}
	return out
}

// InvalidateNext makes the next Acquire fail as if the surface was resized.
func (p *Presenter) InvalidateNext() { p.invalid++ }

// Presented returns the indices passed to Present, in order.
func (p *Presenter) Presented() []int { return append([]int(nil), p.presented...) }

func (p *Presenter) Acquire(signal gpu.Semaphore) (int, error) {
	if p.invalid > 0 {
		p.invalid--
		return 0, gpu.ErrOutOfDate
	}
	i := p.next
	p.next = (p.next + 1) % len(p.images)
	p.dev.record(Event{Op: OpAcquire, Label: p.images[i].label, Count: i})
	return i, nil
}

func (p *Presenter) Present(index int, wait []gpu.Semaphore) error {
	im := p.images[index]
	if got := im.layout(0, 0); got != gpu.LayoutPresent {
		return fmt.Errorf("soft: present %s in layout %s", im.label, got)
	}
	p.presented = append(p.presented, index)
	p.dev.record(Event{Op: OpPresent, Label: im.label, Count: index})
	return nil
}

func (p *Presenter) Recreate(extent gpu.Extent) error {
	if p.dev.Pending() > 0 {
		return fmt.Errorf("soft: presenter recreated with %d submissions pending", p.dev.Pending())
	}
	for _, im := range p.images {
		im.Destroy()
	}
	p.dev.record(Event{Op: OpRecreate, Label: fmt.Sprintf("%dx%d", extent.Width, extent.Height)})
	return p.create(extent)
}

func (p *Presenter) Destroy() {
	for _, im := range p.images {
		im.Destroy()
	}
	p.images = nil
}
