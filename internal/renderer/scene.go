package renderer

import (
	"encoding/binary"
	"fmt"
	"math"

	"GopherPBR/internal/gpu"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh owns the vertex and index buffers of an indexed triangle list in the
// standard vertex layout.
type Mesh struct {
	Label      string
	Vertices   gpu.Buffer
	Indices    gpu.Buffer
	IndexCount int
	FirstIndex int
	// Center and Radius bound every vertex, in model space.
	Center mgl32.Vec3
	Radius float32
}

// NewMesh uploads interleaved VertexStandard data and 32-bit indices.
func NewMesh(dev gpu.Device, label string, vertices []float32, indices []uint32) (*Mesh, error) {
	stride := gpu.VertexStandard.Stride / 4
	if len(vertices) == 0 || len(vertices)%stride != 0 {
		return nil, fmt.Errorf("mesh %s: %d floats is not a whole number of %d-float vertices", label, len(vertices), stride)
	}
	count := uint32(len(vertices) / stride)
	for _, i := range indices {
		if i >= count {
			return nil, fmt.Errorf("mesh %s: index %d outside %d vertices", label, i, count)
		}
	}

	vb := make([]byte, 0, len(vertices)*4)
	for _, v := range vertices {
		vb = binary.LittleEndian.AppendUint32(vb, math.Float32bits(v))
	}
	ib := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		ib = binary.LittleEndian.AppendUint32(ib, i)
	}

	m := &Mesh{Label: label, IndexCount: len(indices)}
	m.Center, m.Radius = boundingSphere(vertices, stride)
	var err error
	if m.Vertices, err = gpu.NewBufferWithData(dev, label+" vertices", gpu.BufferVertex, vb); err != nil {
		return nil, err
	}
	if m.Indices, err = gpu.NewBufferWithData(dev, label+" indices", gpu.BufferIndex, ib); err != nil {
		m.Vertices.Destroy()
		return nil, err
	}
	return m, nil
}

// boundingSphere centers the sphere on the box around the positions.
func boundingSphere(vertices []float32, stride int) (mgl32.Vec3, float32) {
	lo := mgl32.Vec3{vertices[0], vertices[1], vertices[2]}
	hi := lo
	for i := stride; i < len(vertices); i += stride {
		for k := 0; k < 3; k++ {
			lo[k] = math32.Min(lo[k], vertices[i+k])
			hi[k] = math32.Max(hi[k], vertices[i+k])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	var radius float32
	for i := 0; i < len(vertices); i += stride {
		p := mgl32.Vec3{vertices[i], vertices[i+1], vertices[i+2]}
		radius = math32.Max(radius, p.Sub(center).Len())
	}
	return center, radius
}

func (m *Mesh) Destroy() {
	if m.Vertices != nil {
		m.Vertices.Destroy()
	}
	if m.Indices != nil {
		m.Indices.Destroy()
	}
}

// DrawFunc records the draw of one item in place of the default indexed
// draw. The item's pipeline and descriptor sets are already bound.
type DrawFunc func(cmd gpu.CommandBuffer, item *DrawItem, pipeline *gpu.GraphicsPipeline)

// DrawItem is one mesh drawn with one material.
type DrawItem struct {
	Mesh      *Mesh
	Material  *Material
	Transform mgl32.Mat4
	Draw      DrawFunc
}

// Scene supplies the items of a frame, already split into the opaque and
// transparent buckets. Items are drawn in the order returned.
type Scene interface {
	Collect() (opaque, transparent []DrawItem)
}

// StaticScene is a Scene over a fixed list of items, bucketed by material.
type StaticScene struct {
	items []DrawItem
}

func NewStaticScene() *StaticScene {
	return &StaticScene{}
}

// Add appends an item and returns its index.
func (s *StaticScene) Add(item DrawItem) int {
	s.items = append(s.items, item)
	return len(s.items) - 1
}

// Item returns the item at index i for in-place edits.
func (s *StaticScene) Item(i int) *DrawItem { return &s.items[i] }

func (s *StaticScene) Len() int { return len(s.items) }

func (s *StaticScene) Collect() (opaque, transparent []DrawItem) {
	for _, item := range s.items {
		if item.Material.Transparent {
			transparent = append(transparent, item)
		} else {
			opaque = append(opaque, item)
		}
	}
	return opaque, transparent
}
