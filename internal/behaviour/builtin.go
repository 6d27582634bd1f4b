package behaviour

import (
	"GopherPBR/internal/renderer"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Spin turns one scene item about its local Y axis, keeping the
// translation and scale it had when started.
type Spin struct {
	Scene *renderer.StaticScene
	Index int
	// Radians per second.
	Speed float32

	base  mgl32.Mat4
	angle float32
}

func (s *Spin) Start() {
	s.base = s.Scene.Item(s.Index).Transform
}

func (s *Spin) Update(deltaTime float64) {
	s.angle += s.Speed * float32(deltaTime)
	s.Scene.Item(s.Index).Transform = s.base.Mul4(mgl32.HomogRotate3DY(s.angle))
}

// Orbit circles the camera around Target at a fixed radius and height,
// always looking at the target.
type Orbit struct {
	Camera *renderer.Camera
	Target mgl32.Vec3
	Radius float32
	Height float32
	// Radians per second.
	Speed float32

	angle float32
}

// Start picks up the orbit where the camera currently is.
func (o *Orbit) Start() {
	d := o.Camera.Position.Sub(o.Target)
	o.angle = math32.Atan2(d.Z(), d.X())
	o.place()
}

func (o *Orbit) Update(deltaTime float64) {
	o.angle += o.Speed * float32(deltaTime)
	o.place()
}

func (o *Orbit) place() {
	s, c := math32.Sincos(o.angle)
	o.Camera.Position = o.Target.Add(mgl32.Vec3{c * o.Radius, o.Height, s * o.Radius})
	o.Camera.LookAt(o.Target)
}
