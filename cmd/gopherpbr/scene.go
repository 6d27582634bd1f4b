package main

import (
	"fmt"
	"image"
	"image/color"

	"GopherPBR/internal/behaviour"
	"GopherPBR/internal/engine"
	"GopherPBR/internal/loader"
	"GopherPBR/internal/logger"
	"GopherPBR/internal/procedural"
	"GopherPBR/internal/renderer"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// spinSpeed is the turn rate of animated items, in radians per second.
const spinSpeed = 0.6

// scene holds what the viewer created so it can release it.
type scene struct {
	meshes    []*renderer.Mesh
	materials []*renderer.Material
	spins     map[int]*behaviour.Spin
}

// toggleSpin starts or stops turning the item at index i. A stopped item
// keeps the angle it reached.
func (s *scene) toggleSpin(g *engine.Gopher, i int) {
	if spin, ok := s.spins[i]; ok {
		g.Behaviours.Remove(spin)
		delete(s.spins, i)
		return
	}
	if s.spins == nil {
		s.spins = map[int]*behaviour.Spin{}
	}
	spin := &behaviour.Spin{Scene: g.Scene, Index: i, Speed: spinSpeed}
	s.spins[i] = spin
	g.Behaviours.Add(spin)
}

func (s *scene) release(r *renderer.Renderer) {
	for _, m := range s.materials {
		r.Materials().Release(m)
	}
	for _, m := range s.meshes {
		m.Destroy()
	}
}

func (s *scene) upload(g *engine.Gopher, data *loader.MeshData) (*renderer.Mesh, error) {
	mesh, err := renderer.NewMesh(g.Renderer().Device(), data.Name, data.Vertices, data.Indices)
	if err != nil {
		return nil, err
	}
	s.meshes = append(s.meshes, mesh)
	return mesh, nil
}

func uniform(c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func gray(v float32) color.NRGBA {
	b := uint8(mgl32.Clamp(v, 0, 1) * 255)
	return color.NRGBA{R: b, G: b, B: b, A: 255}
}

// slotImage is a generated texture for one material slot. The name is the
// texture cache key the material description refers to.
type slotImage struct {
	name string
	img  image.Image
}

// imageMaterial uploads albedo, metallic, roughness and, when given, normal
// images and creates a material over them. Its own texture references are
// dropped once the material holds its own.
func (s *scene) imageMaterial(r *renderer.Renderer, name string, slots [3]slotImage, normal *slotImage, transparent bool) (*renderer.Material, error) {
	tm := r.Textures()
	var refs []*renderer.SharedTexture
	defer func() {
		for _, ref := range refs {
			tm.ReleaseTexture(ref)
		}
	}()
	for i, slot := range slots {
		ref, err := tm.CreateTextureFromImage(slot.name, slot.img, i == 0)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	desc := renderer.MaterialDesc{
		Albedo:      slots[0].name,
		Metallic:    slots[1].name,
		Roughness:   slots[2].name,
		Transparent: transparent,
	}
	if normal != nil {
		ref, err := tm.CreateTextureFromImage(normal.name, normal.img, false)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
		desc.Normal = normal.name
	}
	m, err := r.Materials().Create(name, desc)
	if err != nil {
		return nil, err
	}
	s.materials = append(s.materials, m)
	return m, nil
}

// solidMaterial creates a material from constant albedo, metallic and
// roughness values.
func (s *scene) solidMaterial(r *renderer.Renderer, name string, albedo color.NRGBA, metallic, roughness float32, transparent bool) (*renderer.Material, error) {
	return s.imageMaterial(r, name, [3]slotImage{
		{fmt.Sprintf("swatch:albedo:%02x%02x%02x%02x", albedo.R, albedo.G, albedo.B, albedo.A), uniform(albedo)},
		{fmt.Sprintf("swatch:gray:%.2f", metallic), uniform(gray(metallic))},
		{fmt.Sprintf("swatch:gray:%.2f", roughness), uniform(gray(roughness))},
	}, nil, transparent)
}

// marbleMaterial creates the floor: marble albedo with noisy roughness and
// a fine bump normal map.
func (s *scene) marbleMaterial(r *renderer.Renderer, seed int64) (*renderer.Material, error) {
	const size, period = 256, 4
	noise := procedural.NewPerlin(seed, period)
	return s.imageMaterial(r, "marble floor", [3]slotImage{
		{"procedural:marble", procedural.MarbleMap(noise, size,
			color.NRGBA{R: 225, G: 222, B: 215, A: 255}, color.NRGBA{R: 70, G: 72, B: 80, A: 255})},
		{"swatch:gray:0.00", uniform(gray(0))},
		{"procedural:roughness", procedural.RoughnessMap(noise, size, 0.35, 0.2)},
	}, &slotImage{"procedural:normal", procedural.NormalMap(procedural.NewDetail(seed, 24), size, 0.01)}, false)
}

// materialGrid lays out spheres sweeping metallic across columns and
// roughness across rows, over a floor, with a glass cube in front.
func materialGrid(g *engine.Gopher) (*scene, error) {
	r := g.Renderer()
	s := &scene{}

	sphereData, err := loader.Sphere(0.45, 48)
	if err != nil {
		return s, err
	}
	sphere, err := s.upload(g, sphereData)
	if err != nil {
		return s, err
	}
	planeData, err := loader.Plane(12, 8)
	if err != nil {
		return s, err
	}
	plane, err := s.upload(g, planeData)
	if err != nil {
		return s, err
	}
	cube, err := s.upload(g, loader.Cube(0.8))
	if err != nil {
		return s, err
	}

	const rows, cols = 5, 5
	gold := color.NRGBA{R: 255, G: 196, B: 120, A: 255}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			metallic := float32(col) / (cols - 1)
			roughness := mgl32.Clamp(float32(row)/(rows-1), 0.05, 1)
			m, err := s.solidMaterial(r, fmt.Sprintf("sphere %d,%d", row, col), gold, metallic, roughness, false)
			if err != nil {
				return s, err
			}
			x := (float32(col) - (cols-1)/2.0) * 1.2
			y := 0.6 + float32(rows-1-row)*1.2
			g.Scene.Add(renderer.DrawItem{Mesh: sphere, Material: m, Transform: mgl32.Translate3D(x, y, 0)})
		}
	}

	floor, err := s.marbleMaterial(r, 1)
	if err != nil {
		return s, err
	}
	g.Scene.Add(renderer.DrawItem{Mesh: plane, Material: floor, Transform: mgl32.Ident4()})

	glass, err := s.solidMaterial(r, "glass", color.NRGBA{R: 120, G: 200, B: 255, A: 110}, 0, 0.1, true)
	if err != nil {
		return s, err
	}
	i := g.Scene.Add(renderer.DrawItem{Mesh: cube, Material: glass, Transform: mgl32.Translate3D(0, 0.6, 2.5)})
	s.toggleSpin(g, i)

	g.Camera.Position = mgl32.Vec3{0, 3, 9}
	g.Camera.LookAt(mgl32.Vec3{0, 2.5, 0})
	logger.Log.Info("Material grid ready", zap.Int("items", g.Scene.Len()))
	return s, nil
}

// loadModelScene shows an OBJ model, one draw item per material group.
// Parsed geometry is cached next to the OBJ. Groups whose material has no
// albedo map fall back to a neutral gray.
// Like materialGrid it returns what it created even on error, for release.
func loadModelScene(g *engine.Gopher, path string) (*scene, error) {
	r := g.Renderer()
	s := &scene{}

	model, err := loader.LoadOBJCached(path)
	if err != nil {
		return s, err
	}
	mesh, err := s.upload(g, model.Mesh)
	if err != nil {
		return s, err
	}

	materials := map[string]*renderer.Material{}
	for _, group := range model.Mesh.Groups {
		m, ok := materials[group.Material]
		if !ok {
			desc, found := model.Materials[group.Material]
			if found && desc.Albedo != "" {
				m, err = r.Materials().Create(group.Material, desc)
				if err == nil {
					s.materials = append(s.materials, m)
				} else {
					logger.Log.Warn("Material not created, using fallback",
						zap.String("material", group.Material), zap.Error(err))
				}
			}
			if m == nil {
				m, err = s.solidMaterial(r, group.Material, gray(0.7), 0, 0.5, desc.Transparent)
				if err != nil {
					return s, err
				}
			}
			materials[group.Material] = m
		}
		part := *mesh
		part.FirstIndex = group.First
		part.IndexCount = group.Count
		i := g.Scene.Add(renderer.DrawItem{Mesh: &part, Material: m, Transform: mgl32.Ident4()})
		s.toggleSpin(g, i)
	}

	g.Camera.Position = mgl32.Vec3{0, 1.5, 5}
	g.Camera.LookAt(mgl32.Vec3{0, 0.5, 0})
	return s, nil
}

// orbitCamera circles the camera around the point it looks at, taken at
// the camera's distance from the origin.
func orbitCamera(g *engine.Gopher, speed float32) *behaviour.Orbit {
	cam := g.Camera
	target := cam.Position.Add(cam.Front.Mul(cam.Position.Len()))
	d := cam.Position.Sub(target)
	return &behaviour.Orbit{
		Camera: cam,
		Target: target,
		Radius: mgl32.Vec2{d.X(), d.Z()}.Len(),
		Height: d.Y(),
		Speed:  speed,
	}
}
