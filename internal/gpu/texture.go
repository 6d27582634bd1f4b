package gpu

import (
	"fmt"
)

type subresource struct{ mip, layer int }

// Texture owns an image, its base view, an optional sampler and any
// single-subresource views created for rendering into it. It tracks the
// layout of every subresource so barriers are derived, never guessed.
type Texture struct {
	Label   string
	View    View
	Sampler Sampler

	image     Image
	owned     bool
	desc      ImageDesc
	subViews  map[subresource]View
	layouts   []Layout
	destroyed bool
}

// NewTexture creates an image with a base view covering every mip and layer.
// A cube image gets a cube view. When sampler is non-nil a sampler is created
// and owned as well.
func NewTexture(dev Device, desc ImageDesc, sampler *SamplerDesc) (*Texture, error) {
	if desc.Mips == 0 {
		desc.Mips = 1
	}
	if desc.Layers == 0 {
		desc.Layers = 1
		if desc.Cube {
			desc.Layers = 6
		}
	}
	if desc.Cube && desc.Layers != 6 {
		return nil, fmt.Errorf("texture %s: cube image needs 6 layers, got %d", desc.Label, desc.Layers)
	}
	img, err := dev.NewImage(desc)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", desc.Label, err)
	}
	t := newTexture(img, desc, true)
	t.View, err = img.NewView(ViewDesc{
		Label:  desc.Label,
		Cube:   desc.Cube,
		Mips:   desc.Mips,
		Layers: desc.Layers,
	})
	if err != nil {
		img.Destroy()
		return nil, fmt.Errorf("texture %s view: %w", desc.Label, err)
	}
	if sampler != nil {
		s := *sampler
		if s.Label == "" {
			s.Label = desc.Label
		}
		if s.MaxLod == 0 {
			s.MaxLod = float32(desc.Mips)
		}
		t.Sampler, err = dev.NewSampler(s)
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("texture %s sampler: %w", desc.Label, err)
		}
	}
	return t, nil
}

// WrapImage wraps an image owned elsewhere, such as a swapchain image. The
// wrapper owns only the views it creates.
func WrapImage(img Image, label string) (*Texture, error) {
	desc := img.Desc()
	t := newTexture(img, desc, false)
	t.Label = label
	v, err := img.NewView(ViewDesc{Label: label, Mips: desc.Mips, Layers: desc.Layers})
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", label, err)
	}
	t.View = v
	return t, nil
}

func newTexture(img Image, desc ImageDesc, owned bool) *Texture {
	return &Texture{
		Label:    desc.Label,
		image:    img,
		owned:    owned,
		desc:     desc,
		subViews: make(map[subresource]View),
		layouts:  make([]Layout, desc.Mips*desc.Layers),
	}
}

func (t *Texture) Image() Image    { return t.image }
func (t *Texture) Desc() ImageDesc { return t.desc }
func (t *Texture) Format() Format  { return t.desc.Format }

// Extent returns the size of mip level.
func (t *Texture) Extent(mip int) Extent { return t.desc.Extent.Mip(mip) }

// Layout returns the tracked layout of one subresource.
func (t *Texture) Layout(mip, layer int) Layout {
	return t.layouts[mip*t.desc.Layers+layer]
}

// Discard forgets the contents of every subresource. Used for images whose
// previous contents are not needed, such as a freshly acquired swap image.
func (t *Texture) Discard() {
	for i := range t.layouts {
		t.layouts[i] = LayoutUndefined
	}
}

// SubView returns a 2D view of exactly one mip level of one layer, creating
// it on first use. Sub-views are the render targets of cube faces and mips.
func (t *Texture) SubView(mip, layer int) (View, error) {
	if mip >= t.desc.Mips || layer >= t.desc.Layers || mip < 0 || layer < 0 {
		return nil, fmt.Errorf("texture %s: subresource mip %d layer %d out of range", t.Label, mip, layer)
	}
	key := subresource{mip, layer}
	if v, ok := t.subViews[key]; ok {
		return v, nil
	}
	v, err := t.image.NewView(ViewDesc{
		Label:     fmt.Sprintf("%s[mip %d, layer %d]", t.Label, mip, layer),
		BaseMip:   mip,
		Mips:      1,
		BaseLayer: layer,
		Layers:    1,
	})
	if err != nil {
		return nil, err
	}
	t.subViews[key] = v
	return v, nil
}

// Destroy releases sub-views, the base view and the sampler, then the image
// if the texture owns it.
func (t *Texture) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.destroyed = true
	for k, v := range t.subViews {
		v.Destroy()
		delete(t.subViews, k)
	}
	if t.View != nil {
		t.View.Destroy()
	}
	if t.Sampler != nil {
		t.Sampler.Destroy()
	}
	if t.owned {
		t.image.Destroy()
	}
}

func (t *Texture) rangeLayout(rng SubresourceRange) (Layout, error) {
	if rng.BaseMip < 0 || rng.BaseLayer < 0 || rng.Mips <= 0 || rng.Layers <= 0 ||
		rng.BaseMip+rng.Mips > t.desc.Mips || rng.BaseLayer+rng.Layers > t.desc.Layers {
		return 0, fmt.Errorf("texture %s: range %+v outside image", t.Label, rng)
	}
	first := t.Layout(rng.BaseMip, rng.BaseLayer)
	for m := rng.BaseMip; m < rng.BaseMip+rng.Mips; m++ {
		for l := rng.BaseLayer; l < rng.BaseLayer+rng.Layers; l++ {
			if cur := t.Layout(m, l); cur != first {
				return 0, fmt.Errorf("texture %s: mixed layouts in range (%s at mip %d layer %d, %s at base)",
					t.Label, cur, m, l, first)
			}
		}
	}
	return first, nil
}

func (t *Texture) setRangeLayout(rng SubresourceRange, l Layout) {
	for m := rng.BaseMip; m < rng.BaseMip+rng.Mips; m++ {
		for layer := rng.BaseLayer; layer < rng.BaseLayer+rng.Layers; layer++ {
			t.layouts[m*t.desc.Layers+layer] = l
		}
	}
}
