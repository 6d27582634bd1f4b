package gpu

import (
	"fmt"
)

// FrameSlot is the per-frame-in-flight state: a command buffer and the
// synchronization objects guarding it.
type FrameSlot struct {
	Index          int
	Commands       CommandBuffer
	Fence          Fence
	ImageAvailable Semaphore
	RenderFinished Semaphore
}

func (s *FrameSlot) destroy() {
	for _, d := range []Destroyer{s.Commands, s.Fence, s.ImageAvailable, s.RenderFinished} {
		if d != nil {
			d.Destroy()
		}
	}
}

// FrameRing cycles through a fixed number of frame slots. A slot is handed
// out again only after the fence of its previous submission has signaled.
type FrameRing struct {
	slots          []*FrameSlot
	current        int
	frame          uint64
	imagesInFlight []Fence
}

func NewFrameRing(dev Device, count int) (*FrameRing, error) {
	if count < 1 {
		return nil, fmt.Errorf("frame ring: need at least one slot, got %d", count)
	}
	r := &FrameRing{}
	for i := 0; i < count; i++ {
		s := &FrameSlot{Index: i}
		r.slots = append(r.slots, s)
		var err error
		if s.Commands, err = dev.NewCommandBuffer(fmt.Sprintf("frame %d", i)); err != nil {
			r.Destroy()
			return nil, fmt.Errorf("frame ring: %w", err)
		}
		if s.Fence, err = dev.NewFence(true); err != nil {
			r.Destroy()
			return nil, fmt.Errorf("frame ring: %w", err)
		}
		if s.ImageAvailable, err = dev.NewSemaphore(); err != nil {
			r.Destroy()
			return nil, fmt.Errorf("frame ring: %w", err)
		}
		if s.RenderFinished, err = dev.NewSemaphore(); err != nil {
			r.Destroy()
			return nil, fmt.Errorf("frame ring: %w", err)
		}
	}
	return r, nil
}

// Count returns the number of frames in flight.
func (r *FrameRing) Count() int { return len(r.slots) }

// Frame returns the number of frames begun so far.
func (r *FrameRing) Frame() uint64 { return r.frame }

// SetImageCount resets presentable image ownership for n images.
func (r *FrameRing) SetImageCount(n int) {
	r.imagesInFlight = make([]Fence, n)
}

// Begin blocks until the current slot's previous submission has completed
// and returns the slot.
func (r *FrameRing) Begin() (*FrameSlot, error) {
	s := r.slots[r.current]
	if err := s.Fence.Wait(); err != nil {
		return nil, fmt.Errorf("frame slot %d: %w", s.Index, err)
	}
	return s, nil
}

// ClaimImage makes slot the user of presentable image index. If another slot
// still renders to that image its fence is waited on first. The slot's fence
// is then reset for the coming submission.
func (r *FrameRing) ClaimImage(s *FrameSlot, index int) error {
	if index < 0 || index >= len(r.imagesInFlight) {
		return fmt.Errorf("frame slot %d: image %d outside %d presentable images", s.Index, index, len(r.imagesInFlight))
	}
	if f := r.imagesInFlight[index]; f != nil && f != s.Fence {
		if err := f.Wait(); err != nil {
			return fmt.Errorf("frame slot %d: image %d: %w", s.Index, index, err)
		}
	}
	r.imagesInFlight[index] = s.Fence
	return s.Fence.Reset()
}

// Advance moves to the next slot.
func (r *FrameRing) Advance() {
	r.current = (r.current + 1) % len(r.slots)
	r.frame++
}

// Destroy releases all slots. The device must be idle.
func (r *FrameRing) Destroy() {
	for _, s := range r.slots {
		s.destroy()
	}
	r.slots = nil
	r.imagesInFlight = nil
}
