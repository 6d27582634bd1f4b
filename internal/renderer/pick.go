package renderer

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Ray is a half line from Origin along a unit Direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Direction.Mul(t)) }

// RayIntersectSphere returns the distance to the nearest intersection in
// front of the origin. An origin inside the sphere hits the far side.
func RayIntersectSphere(ray Ray, center mgl32.Vec3, radius float32) (float32, bool) {
	oc := ray.Origin.Sub(center)
	a := ray.Direction.Dot(ray.Direction)
	b := 2 * oc.Dot(ray.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := math32.Sqrt(disc)
	if t := (-b - sq) / (2 * a); t > 0 {
		return t, true
	}
	if t := (-b + sq) / (2 * a); t > 0 {
		return t, true
	}
	return 0, false
}

// ScreenRay returns the world space ray through the window point (x, y),
// measured in pixels from the top left of a width x height window.
func (c *Camera) ScreenRay(x, y float32, width, height int) Ray {
	ndcX := 2*x/float32(width) - 1
	// Vulkan clip space has Y pointing down, like window coordinates.
	ndcY := 2*y/float32(height) - 1
	inv := c.GetViewProjection().Inv()
	near := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, 0}, inv)
	far := mgl32.TransformCoordinate(mgl32.Vec3{ndcX, ndcY, 1}, inv)
	return Ray{Origin: c.Position, Direction: far.Sub(near).Normalize()}
}

// bounds returns the item's bounding sphere in world space.
func (item *DrawItem) bounds() (mgl32.Vec3, float32) {
	center := mgl32.TransformCoordinate(item.Mesh.Center, item.Transform)
	var scale float32
	for col := 0; col < 3; col++ {
		scale = math32.Max(scale, item.Transform.Col(col).Vec3().Len())
	}
	return center, item.Mesh.Radius * scale
}

// Pick returns the index of the nearest item whose bounding sphere the ray
// hits, and the distance to it. Items without a mesh are skipped.
func (s *StaticScene) Pick(ray Ray) (index int, dist float32, ok bool) {
	index = -1
	for i := range s.items {
		item := &s.items[i]
		if item.Mesh == nil {
			continue
		}
		center, radius := item.bounds()
		t, hit := RayIntersectSphere(ray, center, radius)
		if hit && (!ok || t < dist) {
			index, dist, ok = i, t, true
		}
	}
	return index, dist, ok
}
