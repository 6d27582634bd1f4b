package soft

import (
	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type kernelJob struct {
	kernel  gpu.Kernel
	target  *view
	depth   *view
	vp      rect
	push    []byte
	res     *drawResources
	blend   bool
	compare gpu.CompareOp
}

// Kernel fragments lie on the far plane (depth 1), which is where the
// full-target draws that use kernels (backgrounds, skyboxes, captures) sit.
const kernelDepth = 1.0

func (d *Device) runKernel(job *kernelJob) error {
	img := job.target.img
	mip, layer := job.target.desc.BaseMip, job.target.desc.BaseLayer
	ext := img.desc.Extent.Mip(mip)

	x0, y0 := max(job.vp.x, 0), max(job.vp.y, 0)
	x1, y1 := min(job.vp.x+job.vp.w, ext.Width), min(job.vp.y+job.vp.h, ext.Height)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	job.res.resolve()

	var depth []float32
	if job.depth != nil {
		depth = job.depth.img.sub(job.depth.desc.BaseMip, job.depth.desc.BaseLayer)
	}
	unorm := img.desc.Format != gpu.FormatRGBA16Float && img.desc.Format != gpu.FormatRGBA32Float &&
		img.desc.Format != gpu.FormatRG16Float

	img.mu.Lock()
	defer img.mu.Unlock()
	dst := img.sub(mip, layer)

	group := d.pool.NewGroup()
	for y := y0; y < y1; y++ {
		row := y
		group.Submit(func() {
			fc := gpu.FragmentContext{Push: job.push, Resources: job.res}
			for x := x0; x < x1; x++ {
				i := row*ext.Width + x
				if depth != nil && !depthPasses(job.compare, kernelDepth, depth[i*4]) {
					continue
				}
				fc.X, fc.Y = x, row
				fc.U = (float32(x-job.vp.x) + 0.5) / float32(job.vp.w)
				fc.V = (float32(row-job.vp.y) + 0.5) / float32(job.vp.h)
				out := job.kernel(&fc)
				if unorm {
					for c := range out {
						out[c] = mgl32.Clamp(out[c], 0, 1)
					}
				}
				px := dst[i*4 : i*4+4]
				if job.blend {
					a := out[3]
					for c := 0; c < 3; c++ {
						px[c] = out[c]*a + px[c]*(1-a)
					}
					px[3] = a + px[3]*(1-a)
				} else {
					copy(px, out[:])
				}
			}
		})
	}
	return group.Wait()
}

func depthPasses(op gpu.CompareOp, frag, stored float32) bool {
	switch op {
	case gpu.CompareLess:
		return frag < stored
	case gpu.CompareLessOrEqual:
		return frag <= stored
	default:
		return true
	}
}

type drawResources struct {
	textures map[[2]int]*textureReader
	uniforms map[[2]int]gpu.DescriptorWrite
	data     map[[2]int][]byte
}

func (r *drawResources) resolve() {
	r.data = make(map[[2]int][]byte, len(r.uniforms))
	for k, w := range r.uniforms {
		r.data[k] = w.Buffer.(*buffer).bytes(w.Offset, w.Range)
	}
}

func (r *drawResources) Texture(set, binding int) gpu.TextureReader {
	if t, ok := r.textures[[2]int{set, binding}]; ok {
		return t
	}
	return nil
}

func (r *drawResources) Uniform(set, binding int) []byte {
	return r.data[[2]int{set, binding}]
}

type textureReader struct {
	v *view
	s gpu.SamplerDesc
}

func (t *textureReader) Mips() int          { return t.v.desc.Mips }
func (t *textureReader) Extent() gpu.Extent { return t.v.extent() }

func (t *textureReader) Sample2D(u, v, lod float32) [4]float32 {
	return t.sample(t.v.desc.BaseLayer, u, v, lod, t.s.Address)
}

func (t *textureReader) SampleCube(dir mgl32.Vec3, lod float32) [4]float32 {
	face, s, tc := gpu.CubeFace(dir)
	return t.sample(t.v.desc.BaseLayer+face, s, tc, lod, gpu.AddressClampToEdge)
}

func (t *textureReader) sample(layer int, u, v, lod float32, addr gpu.AddressMode) [4]float32 {
	maxLod := float32(t.v.desc.Mips - 1)
	if t.s.MaxLod > 0 && t.s.MaxLod < maxLod {
		maxLod = t.s.MaxLod
	}
	lod = mgl32.Clamp(lod, 0, maxLod)
	img := t.v.img
	at := func(level int) [4]float32 {
		mip := t.v.desc.BaseMip + level
		return bilinear(img.sub(mip, layer), img.desc.Extent.Mip(mip), u, v, addr)
	}
	if t.s.MipFilter == gpu.FilterNearest {
		return at(int(math32.Round(lod)))
	}
	l0 := int(math32.Floor(lod))
	f := lod - float32(l0)
	a := at(l0)
	if f == 0 || l0+1 > int(maxLod) {
		return a
	}
	b := at(l0 + 1)
	for c := range a {
		a[c] += (b[c] - a[c]) * f
	}
	return a
}

func bilinear(data []float32, ext gpu.Extent, u, v float32, addr gpu.AddressMode) [4]float32 {
	x := u*float32(ext.Width) - 0.5
	y := v*float32(ext.Height) - 0.5
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	fetch := func(px, py int) [4]float32 {
		px = address(px, ext.Width, addr)
		py = address(py, ext.Height, addr)
		i := (py*ext.Width + px) * 4
		return [4]float32{data[i], data[i+1], data[i+2], data[i+3]}
	}
	a, b := fetch(ix, iy), fetch(ix+1, iy)
	c, d := fetch(ix, iy+1), fetch(ix+1, iy+1)
	var out [4]float32
	for k := range out {
		top := a[k] + (b[k]-a[k])*fx
		bottom := c[k] + (d[k]-c[k])*fx
		out[k] = top + (bottom-top)*fy
	}
	return out
}

func address(i, n int, mode gpu.AddressMode) int {
	if mode == gpu.AddressRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
