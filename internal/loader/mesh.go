// Package loader builds mesh data in the renderer's standard vertex layout,
// either from Wavefront OBJ files or from generated primitives.
package loader

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Stride is the number of floats per vertex: position, normal, uv and
// tangent with handedness in w.
const Stride = 12

// Group is a run of indices drawn with one material.
type Group struct {
	Material string
	First    int
	Count    int
}

// MeshData is interleaved vertex data plus 32-bit triangle indices.
type MeshData struct {
	Name     string
	Vertices []float32
	Indices  []uint32
	Groups   []Group
}

func (m *MeshData) VertexCount() int { return len(m.Vertices) / Stride }

func (m *MeshData) Position(i int) mgl32.Vec3 {
	v := m.Vertices[i*Stride:]
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func (m *MeshData) Normal(i int) mgl32.Vec3 {
	v := m.Vertices[i*Stride+3:]
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func (m *MeshData) UV(i int) mgl32.Vec2 {
	v := m.Vertices[i*Stride+6:]
	return mgl32.Vec2{v[0], v[1]}
}

func (m *MeshData) Tangent(i int) mgl32.Vec4 {
	v := m.Vertices[i*Stride+8:]
	return mgl32.Vec4{v[0], v[1], v[2], v[3]}
}

// addVertex appends a vertex with a zero tangent and returns its index.
func (m *MeshData) addVertex(p, n mgl32.Vec3, uv mgl32.Vec2) uint32 {
	i := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices,
		p[0], p[1], p[2],
		n[0], n[1], n[2],
		uv[0], uv[1],
		0, 0, 0, 1)
	return i
}

func (m *MeshData) setNormal(i int, n mgl32.Vec3) {
	copy(m.Vertices[i*Stride+3:i*Stride+6], n[:])
}

// RecalculateNormals replaces every normal with the area weighted average
// of the faces around the vertex.
func (m *MeshData) RecalculateNormals() {
	sums := make([]mgl32.Vec3, m.VertexCount())
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		p0, p1, p2 := m.Position(int(a)), m.Position(int(b)), m.Position(int(c))
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		sums[a] = sums[a].Add(n)
		sums[b] = sums[b].Add(n)
		sums[c] = sums[c].Add(n)
	}
	for i, n := range sums {
		if n.Len() < 1e-12 {
			n = mgl32.Vec3{0, 1, 0}
		}
		m.setNormal(i, n.Normalize())
	}
}

// ComputeTangents derives per-vertex tangents from the uv layout. The
// tangent is orthogonalized against the normal and w holds the bitangent
// sign. Vertices without usable uv gradients get an arbitrary tangent
// perpendicular to the normal.
func (m *MeshData) ComputeTangents() {
	n := m.VertexCount()
	tan := make([]mgl32.Vec3, n)
	bitan := make([]mgl32.Vec3, n)
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := int(m.Indices[t]), int(m.Indices[t+1]), int(m.Indices[t+2])
		e1 := m.Position(b).Sub(m.Position(a))
		e2 := m.Position(c).Sub(m.Position(a))
		d1 := m.UV(b).Sub(m.UV(a))
		d2 := m.UV(c).Sub(m.UV(a))
		det := d1[0]*d2[1] - d2[0]*d1[1]
		if math32.Abs(det) < 1e-12 {
			continue
		}
		r := 1 / det
		td := e1.Mul(d2[1]).Sub(e2.Mul(d1[1])).Mul(r)
		bd := e2.Mul(d1[0]).Sub(e1.Mul(d2[0])).Mul(r)
		for _, v := range [3]int{a, b, c} {
			tan[v] = tan[v].Add(td)
			bitan[v] = bitan[v].Add(bd)
		}
	}
	for i := 0; i < n; i++ {
		nrm := m.Normal(i)
		t := tan[i].Sub(nrm.Mul(nrm.Dot(tan[i])))
		if t.Len() < 1e-6 {
			t = perpendicular(nrm)
		}
		t = t.Normalize()
		w := float32(1)
		if nrm.Cross(t).Dot(bitan[i]) < 0 {
			w = -1
		}
		copy(m.Vertices[i*Stride+8:i*Stride+12], []float32{t[0], t[1], t[2], w})
	}
}

func perpendicular(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if math32.Abs(n[0]) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return axis.Sub(n.Mul(n.Dot(axis)))
}
