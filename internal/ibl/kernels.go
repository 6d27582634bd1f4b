package ibl

import (
	"math/bits"

	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Go renditions of the capture fragment shaders, evaluated by software
// devices. Capture kernels read the view-projection at push offset 0 and the
// roughness at offset 64, like the Capture push block.

const (
	pushRoughnessOffset = 64
	// CapturePushSize is the std430 size of the Capture push block.
	CapturePushSize = 68
)

// captureDirection reconstructs the cube direction a capture pixel looks
// along.
func captureDirection(fc *gpu.FragmentContext) mgl32.Vec3 {
	ndc := fc.NDC()
	inv := fc.PushMat4(0).Inv()
	p := inv.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], 1, 1})
	return p.Vec3().Mul(1 / p[3]).Normalize()
}

// EquirectKernel projects the panorama bound at set 0 binding 0 onto a cube
// face.
func EquirectKernel() gpu.Kernel {
	return func(fc *gpu.FragmentContext) [4]float32 {
		pano := fc.Resources.Texture(0, 0)
		u, v := SphericalUV(captureDirection(fc))
		c := pano.Sample2D(u, v, 0)
		return [4]float32{c[0], c[1], c[2], 1}
	}
}

// SphericalUV maps a unit direction to equirectangular coordinates with row 0
// at the zenith.
func SphericalUV(d mgl32.Vec3) (u, v float32) {
	y := mgl32.Clamp(d[1], -1, 1)
	return math32.Atan2(d[2], d[0])*0.1591 + 0.5, 0.5 - math32.Asin(y)*0.3183
}

// IrradianceKernel convolves the environment cube over the hemisphere around
// each direction, weighting by cos(theta)sin(theta) and normalizing by the
// total weight.
func IrradianceKernel(delta float32) gpu.Kernel {
	return func(fc *gpu.FragmentContext) [4]float32 {
		env := fc.Resources.Texture(0, 0)
		n := captureDirection(fc)
		up := mgl32.Vec3{0, 1, 0}
		if math32.Abs(n[1]) >= 0.999 {
			up = mgl32.Vec3{0, 0, 1}
		}
		right := up.Cross(n).Normalize()
		up = n.Cross(right).Normalize()

		var sum mgl32.Vec3
		var total float32
		for phi := float32(0); phi < 2*math32.Pi; phi += delta {
			sp, cp := math32.Sincos(phi)
			for theta := float32(0); theta < 0.5*math32.Pi; theta += delta {
				st, ct := math32.Sincos(theta)
				dir := right.Mul(st * cp).Add(up.Mul(st * sp)).Add(n.Mul(ct))
				w := ct * st
				c := env.SampleCube(dir, 0)
				sum = sum.Add(mgl32.Vec3{c[0], c[1], c[2]}.Mul(w))
				total += w
			}
		}
		if total == 0 {
			return [4]float32{0, 0, 0, 1}
		}
		sum = sum.Mul(1 / total)
		return [4]float32{sum[0], sum[1], sum[2], 1}
	}
}

// PrefilterKernel importance-samples the GGX lobe of the pushed roughness
// around each direction, assuming view = normal = reflection.
func PrefilterKernel(samples int) gpu.Kernel {
	return func(fc *gpu.FragmentContext) [4]float32 {
		env := fc.Resources.Texture(0, 0)
		roughness := fc.PushFloat(pushRoughnessOffset)
		n := captureDirection(fc)
		v := n

		var sum mgl32.Vec3
		var total float32
		for i := 0; i < samples; i++ {
			xi := hammersley(uint32(i), uint32(samples))
			h := importanceSampleGGX(xi, n, roughness)
			l := h.Mul(2 * v.Dot(h)).Sub(v).Normalize()
			ndotl := n.Dot(l)
			if ndotl <= 0 {
				continue
			}
			c := env.SampleCube(l, 0)
			sum = sum.Add(mgl32.Vec3{c[0], c[1], c[2]}.Mul(ndotl))
			total += ndotl
		}
		if total == 0 {
			return [4]float32{0, 0, 0, 1}
		}
		sum = sum.Mul(1 / total)
		return [4]float32{sum[0], sum[1], sum[2], 1}
	}
}

// BRDFKernel integrates the split-sum scale and bias of the specular BRDF
// for NdotV along U and roughness along V.
func BRDFKernel(samples int) gpu.Kernel {
	return func(fc *gpu.FragmentContext) [4]float32 {
		a, b := IntegrateBRDF(fc.U, fc.V, samples)
		return [4]float32{a, b, 0, 1}
	}
}

// IntegrateBRDF returns the Fresnel scale and bias for one LUT entry.
func IntegrateBRDF(ndotv, roughness float32, samples int) (float32, float32) {
	ndotv = max(ndotv, 1e-4)
	v := mgl32.Vec3{math32.Sqrt(1 - ndotv*ndotv), 0, ndotv}
	n := mgl32.Vec3{0, 0, 1}

	var a, b float32
	for i := 0; i < samples; i++ {
		xi := hammersley(uint32(i), uint32(samples))
		h := importanceSampleGGX(xi, n, roughness)
		l := h.Mul(2 * v.Dot(h)).Sub(v).Normalize()
		ndotl := max(l[2], 0)
		ndoth := max(h[2], 0)
		vdoth := max(v.Dot(h), 0)
		if ndotl <= 0 {
			continue
		}
		g := geometrySchlickGGX(ndotv, roughness) * geometrySchlickGGX(ndotl, roughness)
		gvis := g * vdoth / (ndoth * ndotv)
		fc := math32.Pow(1-vdoth, 5)
		a += (1 - fc) * gvis
		b += fc * gvis
	}
	return a / float32(samples), b / float32(samples)
}

func hammersley(i, n uint32) mgl32.Vec2 {
	return mgl32.Vec2{float32(i) / float32(n), float32(bits.Reverse32(i)) * 2.3283064365386963e-10}
}

func importanceSampleGGX(xi mgl32.Vec2, n mgl32.Vec3, roughness float32) mgl32.Vec3 {
	a := roughness * roughness
	phi := 2 * math32.Pi * xi[0]
	cosTheta := math32.Sqrt((1 - xi[1]) / (1 + (a*a-1)*xi[1]))
	sinTheta := math32.Sqrt(max(1-cosTheta*cosTheta, 0))
	sp, cp := math32.Sincos(phi)
	h := mgl32.Vec3{cp * sinTheta, sp * sinTheta, cosTheta}

	up := mgl32.Vec3{0, 0, 1}
	if math32.Abs(n[2]) >= 0.999 {
		up = mgl32.Vec3{1, 0, 0}
	}
	tangent := up.Cross(n).Normalize()
	bitangent := n.Cross(tangent)
	return tangent.Mul(h[0]).Add(bitangent.Mul(h[1])).Add(n.Mul(h[2])).Normalize()
}

func geometrySchlickGGX(ndotv, roughness float32) float32 {
	k := roughness * roughness / 2
	return ndotv / (ndotv*(1-k) + k)
}
