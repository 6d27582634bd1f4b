package loader

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane creates a square grid of size x size centered on the origin, facing
// +Y, with segments quads per side.
func Plane(size float32, segments int) (*MeshData, error) {
	if segments < 1 {
		return nil, errors.New("plane: segments must be at least 1")
	}
	m := &MeshData{Name: "plane"}
	half := size / 2
	step := size / float32(segments)
	up := mgl32.Vec3{0, 1, 0}
	for i := 0; i <= segments; i++ {
		for j := 0; j <= segments; j++ {
			p := mgl32.Vec3{-half + float32(i)*step, 0, -half + float32(j)*step}
			m.addVertex(p, up, mgl32.Vec2{float32(i) / float32(segments), float32(j) / float32(segments)})
		}
	}
	row := uint32(segments + 1)
	for i := uint32(0); i < uint32(segments); i++ {
		for j := uint32(0); j < uint32(segments); j++ {
			a := i*row + j
			b := a + 1
			c := a + row
			d := c + 1
			m.Indices = append(m.Indices, a, b, c, c, b, d)
		}
	}
	m.ComputeTangents()
	return m, nil
}

// Sphere creates a UV sphere. Triangles collapsed at the poles are left out.
func Sphere(radius float32, segments int) (*MeshData, error) {
	if segments < 3 {
		return nil, errors.New("sphere: segments must be at least 3")
	}
	m := &MeshData{Name: "sphere"}
	for i := 0; i <= segments; i++ {
		lat := float32(i) * math32.Pi / float32(segments)
		sl, cl := math32.Sincos(lat)
		for j := 0; j <= segments; j++ {
			lon := float32(j) * 2 * math32.Pi / float32(segments)
			so, co := math32.Sincos(lon)
			n := mgl32.Vec3{sl * co, cl, sl * so}
			m.addVertex(n.Mul(radius), n, mgl32.Vec2{float32(j) / float32(segments), float32(i) / float32(segments)})
		}
	}
	row := uint32(segments + 1)
	for i := uint32(0); i < uint32(segments); i++ {
		for j := uint32(0); j < uint32(segments); j++ {
			first := i*row + j
			second := first + row
			if i != 0 {
				m.Indices = append(m.Indices, first, first+1, second)
			}
			if i != uint32(segments)-1 {
				m.Indices = append(m.Indices, second, first+1, second+1)
			}
		}
	}
	m.ComputeTangents()
	return m, nil
}

// cubeFaces lists each face normal with the right and up axes of its uv
// square; right x up = normal keeps the winding counter-clockwise.
var cubeFaces = [6][3]mgl32.Vec3{
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
}

// Cube creates an axis aligned cube with 24 vertices so each face has its
// own normals and uv square.
func Cube(size float32) *MeshData {
	m := &MeshData{Name: "cube"}
	h := size / 2
	corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range cubeFaces {
		n, right, up := f[0], f[1], f[2]
		base := uint32(m.VertexCount())
		for _, c := range corners {
			p := n.Add(right.Mul(c[0])).Add(up.Mul(c[1])).Mul(h)
			m.addVertex(p, n, mgl32.Vec2{(c[0] + 1) / 2, (c[1] + 1) / 2})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	m.ComputeTangents()
	return m
}
