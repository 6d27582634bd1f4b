package gpu

import (
	"fmt"
)

// RenderTarget is a framebuffer over a set of views, optionally owning the
// render pass it was created for.
type RenderTarget struct {
	Label       string
	Pass        RenderPass
	Framebuffer Framebuffer
	ownsPass    bool
}

// NewRenderTarget creates a render pass from desc and a framebuffer for it.
func NewRenderTarget(dev Device, desc RenderPassDesc, views []View, extent Extent) (*RenderTarget, error) {
	pass, err := dev.NewRenderPass(desc)
	if err != nil {
		return nil, fmt.Errorf("render target %s: %w", desc.Label, err)
	}
	fb, err := pass.NewFramebuffer(views, extent)
	if err != nil {
		pass.Destroy()
		return nil, fmt.Errorf("render target %s: %w", desc.Label, err)
	}
	return &RenderTarget{Label: desc.Label, Pass: pass, Framebuffer: fb, ownsPass: true}, nil
}

// NewRenderTargetFor creates a framebuffer for an existing pass.
func NewRenderTargetFor(pass RenderPass, views []View, extent Extent) (*RenderTarget, error) {
	fb, err := pass.NewFramebuffer(views, extent)
	if err != nil {
		return nil, fmt.Errorf("render target %s: %w", pass.Desc().Label, err)
	}
	return &RenderTarget{Label: pass.Desc().Label, Pass: pass, Framebuffer: fb}, nil
}

func (t *RenderTarget) Extent() Extent { return t.Framebuffer.Extent() }

// Destroy releases the framebuffer, then the pass if owned.
func (t *RenderTarget) Destroy() {
	if t == nil {
		return
	}
	if t.Framebuffer != nil {
		t.Framebuffer.Destroy()
		t.Framebuffer = nil
	}
	if t.ownsPass && t.Pass != nil {
		t.Pass.Destroy()
		t.Pass = nil
	}
}
