package renderer

import (
	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Go renditions of the lighting and skybox fragment shaders for software
// devices.

func toneMap(c mgl32.Vec3) [4]float32 {
	return [4]float32{c[0] / (c[0] + 1), c[1] / (c[1] + 1), c[2] / (c[2] + 1), 1}
}

func rgb(c [4]float32) mgl32.Vec3 { return mgl32.Vec3{c[0], c[1], c[2]} }

func mulVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func distributionGGX(n, h mgl32.Vec3, roughness float32) float32 {
	a := roughness * roughness
	a2 := a * a
	ndoth := max(n.Dot(h), 0)
	d := ndoth*ndoth*(a2-1) + 1
	return a2 / (math32.Pi * d * d)
}

func geometrySchlickGGX(ndotv, roughness float32) float32 {
	r := roughness + 1
	k := r * r / 8
	return ndotv / (ndotv*(1-k) + k)
}

func fresnelSchlick(cosTheta float32, f0 mgl32.Vec3) mgl32.Vec3 {
	f := math32.Pow(mgl32.Clamp(1-cosTheta, 0, 1), 5)
	return f0.Add(mgl32.Vec3{1, 1, 1}.Sub(f0).Mul(f))
}

func fresnelSchlickRoughness(cosTheta float32, f0 mgl32.Vec3, roughness float32) mgl32.Vec3 {
	f := math32.Pow(mgl32.Clamp(1-cosTheta, 0, 1), 5)
	r := 1 - roughness
	return f0.Add(mgl32.Vec3{max(r, f0[0]), max(r, f0[1]), max(r, f0[2])}.Sub(f0).Mul(f))
}

// LightingKernel shades one G-buffer texel with the directional light and
// the IBL maps. Background texels (normal alpha 0) are left black for the
// skybox.
func LightingKernel() gpu.Kernel {
	return func(fc *gpu.FragmentContext) [4]float32 {
		res := fc.Resources
		normal := res.Texture(1, 1).Sample2D(fc.U, fc.V, 0)
		if normal[3] == 0 {
			return [4]float32{0, 0, 0, 1}
		}
		camera, lightDir, lightColor, intensity, exposure, prefilterMips := decodeGlobals(res.Uniform(0, 0))

		p := rgb(res.Texture(1, 0).Sample2D(fc.U, fc.V, 0))
		n := rgb(normal).Normalize()
		albedo := rgb(res.Texture(1, 2).Sample2D(fc.U, fc.V, 0))
		arm := res.Texture(1, 3).Sample2D(fc.U, fc.V, 0)
		ao, roughness, metallic := arm[0], arm[1], arm[2]

		v := camera.Sub(p).Normalize()
		r := n.Mul(2 * v.Dot(n)).Sub(v)
		f0 := mgl32.Vec3{0.04, 0.04, 0.04}
		f0 = f0.Add(albedo.Sub(f0).Mul(metallic))
		ndotv := max(n.Dot(v), 0)

		l := lightDir.Mul(-1).Normalize()
		h := v.Add(l).Normalize()
		ndotl := max(n.Dot(l), 0)
		f := fresnelSchlick(max(h.Dot(v), 0), f0)
		ndf := distributionGGX(n, h, roughness)
		g := geometrySchlickGGX(ndotv, roughness) * geometrySchlickGGX(ndotl, roughness)
		specular := f.Mul(ndf * g / (4*ndotv*ndotl + 0.0001))
		kd := mgl32.Vec3{1, 1, 1}.Sub(f).Mul(1 - metallic)
		direct := mulVec(mulVec(kd, albedo).Mul(1/math32.Pi).Add(specular), lightColor).Mul(intensity * ndotl)

		fa := fresnelSchlickRoughness(ndotv, f0, roughness)
		kda := mgl32.Vec3{1, 1, 1}.Sub(fa).Mul(1 - metallic)
		diffuse := mulVec(rgb(res.Texture(1, 4).SampleCube(n, 0)), albedo)
		prefiltered := rgb(res.Texture(1, 5).SampleCube(r, roughness*(prefilterMips-1)))
		brdf := res.Texture(1, 6).Sample2D(ndotv, roughness, 0)
		ambient := mulVec(kda, diffuse).Add(mulVec(prefiltered, fa.Mul(brdf[0]).Add(mgl32.Vec3{brdf[1], brdf[1], brdf[1]}))).Mul(ao)

		return toneMap(ambient.Add(direct).Mul(exposure))
	}
}

// SkyboxKernel samples the environment cube along the view ray of each
// pixel, reconstructed from the pushed sky view-projection.
func SkyboxKernel() gpu.Kernel {
	return func(fc *gpu.FragmentContext) [4]float32 {
		ndc := fc.NDC()
		inv := fc.PushMat4(0).Inv()
		p := inv.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], 1, 1})
		dir := p.Vec3().Mul(1 / p[3]).Normalize()
		return toneMap(rgb(fc.Resources.Texture(0, 0).SampleCube(dir, 0)))
	}
}
