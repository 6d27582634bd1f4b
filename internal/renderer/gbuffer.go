package renderer

import (
	"fmt"

	"GopherPBR/internal/gpu"
)

// G-buffer attachment formats, in attachment order.
var gbufferFormats = [4]gpu.Format{
	gpu.FormatRGBA16Float, // world position
	gpu.FormatRGBA16Float, // normal, alpha 0 where nothing was drawn
	gpu.FormatRGBA8Unorm,  // albedo
	gpu.FormatRGBA8Unorm,  // ambient occlusion, roughness, metallic
}

var gbufferNames = [4]string{"position", "normal", "albedo", "arm"}

// GBuffer holds the geometry pass attachments and the pass that writes them.
type GBuffer struct {
	Colors [4]*gpu.Texture
	Depth  *gpu.Texture
	Target *gpu.RenderTarget
}

func gbufferPassDesc() gpu.RenderPassDesc {
	desc := gpu.RenderPassDesc{
		Label: "gbuffer",
		Depth: &gpu.AttachmentDesc{
			Format: gpu.FormatDepth32Float,
			Load:   gpu.LoadClear,
			Store:  gpu.StoreStore,
			Layout: gpu.LayoutDepthAttachment,
		},
	}
	for _, f := range gbufferFormats {
		desc.Colors = append(desc.Colors, gpu.AttachmentDesc{
			Format: f,
			Load:   gpu.LoadClear,
			Store:  gpu.StoreStore,
			Layout: gpu.LayoutColorAttachment,
		})
	}
	return desc
}

// NewGBuffer creates the attachments at extent. Colors are sampled by the
// lighting pass with nearest filtering.
func NewGBuffer(dev gpu.Device, extent gpu.Extent) (*GBuffer, error) {
	g := &GBuffer{}
	var u Unwind
	defer u.Unwind()

	sampler := gpu.SamplerDesc{
		MinFilter: gpu.FilterNearest,
		MagFilter: gpu.FilterNearest,
		MipFilter: gpu.FilterNearest,
		Address:   gpu.AddressClampToEdge,
	}
	views := make([]gpu.View, 0, 5)
	for i, f := range gbufferFormats {
		tex, err := gpu.NewTexture(dev, gpu.ImageDesc{
			Label:  "gbuffer " + gbufferNames[i],
			Format: f,
			Extent: extent,
			Usage:  gpu.UsageColorAttachment | gpu.UsageSampled,
		}, &sampler)
		if err != nil {
			return nil, fmt.Errorf("gbuffer: %w", err)
		}
		u.Add(tex.Destroy)
		g.Colors[i] = tex
		views = append(views, tex.View)
	}
	depth, err := gpu.NewTexture(dev, gpu.ImageDesc{
		Label:  "gbuffer depth",
		Format: gpu.FormatDepth32Float,
		Extent: extent,
		Usage:  gpu.UsageDepthAttachment,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gbuffer: %w", err)
	}
	u.Add(depth.Destroy)
	g.Depth = depth
	views = append(views, depth.View)

	g.Target, err = gpu.NewRenderTarget(dev, gbufferPassDesc(), views, extent)
	if err != nil {
		return nil, fmt.Errorf("gbuffer: %w", err)
	}
	u.Discard()
	return g, nil
}

func (g *GBuffer) Extent() gpu.Extent { return g.Target.Extent() }

// Clears returns the clear values of the geometry pass.
func (g *GBuffer) Clears() []gpu.ClearValue {
	return []gpu.ClearValue{{}, {}, {}, {}, {Depth: 1}}
}

// Register publishes the attachments under "gbuffer/<name>".
func (g *GBuffer) Register(inspector Inspector) {
	for i, tex := range g.Colors {
		inspector.Register("gbuffer/"+gbufferNames[i], tex)
	}
	inspector.Register("gbuffer/depth", g.Depth)
}

// Destroy releases the target before the attachments it references.
func (g *GBuffer) Destroy() {
	if g == nil {
		return
	}
	g.Target.Destroy()
	for _, tex := range g.Colors {
		tex.Destroy()
	}
	g.Depth.Destroy()
}
