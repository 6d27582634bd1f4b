package renderer

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func TestNewDefaultCamera(t *testing.T) {
	cam := NewDefaultCamera(800, 600)

	if cam.Position == (mgl32.Vec3{0, 0, 0}) {
		t.Error("Camera position should not be at origin")
	}
	if !nearVec3(cam.Front, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("Camera should look down -Z, got %v", cam.Front)
	}
	if math32.Abs(cam.AspectRatio-800.0/600.0) > 1e-6 {
		t.Errorf("Expected aspect ratio 4/3, got %v", cam.AspectRatio)
	}
}

func TestCameraProjectionTargetsVulkanClipSpace(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	proj := cam.GetProjectionMatrix()

	if proj.At(1, 1) >= 0 {
		t.Errorf("Projection should flip Y, got P11 = %v", proj.At(1, 1))
	}
	if proj.At(3, 3) != 0.0 {
		t.Error("Perspective projection should have w=0 at (3,3)")
	}

	depth := func(z float32) float32 {
		clip := proj.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip[2] / clip[3]
	}
	if d := depth(-cam.Near); math32.Abs(d) > 1e-4 {
		t.Errorf("Near plane should map to depth 0, got %v", d)
	}
	if d := depth(-cam.Far); math32.Abs(d-1) > 1e-4 {
		t.Errorf("Far plane should map to depth 1, got %v", d)
	}

	up := proj.Mul4x1(mgl32.Vec4{0, 1, -5, 1})
	if up[1]/up[3] >= 0 {
		t.Error("Points above the eye should land in the top half (negative Y)")
	}
}

func TestCameraResize(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	cam.Resize(1000, 500)
	if cam.AspectRatio != 2 {
		t.Errorf("Expected aspect ratio 2, got %v", cam.AspectRatio)
	}
	cam.Resize(0, 500)
	if cam.AspectRatio != 2 {
		t.Errorf("Zero size should keep the aspect ratio, got %v", cam.AspectRatio)
	}
}

func TestCameraMouseMovement(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	initialYaw := cam.Yaw

	cam.ProcessMouseMovement(10, 0, true)
	if cam.Yaw == initialYaw {
		t.Error("Yaw should change after horizontal mouse movement")
	}

	cam.ProcessMouseMovement(0, 10000, true)
	if cam.Pitch > 89.0 {
		t.Errorf("Pitch should be constrained to 89 degrees, got %f", cam.Pitch)
	}
}

func TestCameraMousePositionSkipsFirstEvent(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	yaw := cam.Yaw
	cam.ProcessMousePosition(10, 10)
	if cam.Yaw != yaw {
		t.Error("First cursor event should only record the position")
	}
	cam.ProcessMousePosition(20, 10)
	if cam.Yaw == yaw {
		t.Error("Second cursor event should rotate the camera")
	}
}

func TestCameraLookAt(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	cam.Position = mgl32.Vec3{0, 0, 0}
	cam.LookAt(mgl32.Vec3{3, 0, 0})
	if !nearVec3(cam.Front, mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("Expected front +X, got %v", cam.Front)
	}
	if !nearVec3(cam.Up, mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Errorf("Expected up +Y, got %v", cam.Up)
	}
}

func TestSkyViewProjectionIgnoresTranslation(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	before := cam.GetSkyViewProjection()
	cam.Position = mgl32.Vec3{100, -20, 7}
	if !nearMat4(cam.GetSkyViewProjection(), before, 1e-5) {
		t.Error("Sky view-projection should not depend on the camera position")
	}
	if nearMat4(cam.GetViewProjection(), before, 1e-5) {
		t.Error("Full view-projection should depend on the camera position")
	}
}

func TestLinmathMatchesMathgl(t *testing.T) {
	cam := NewDefaultCamera(800, 600)
	cam.Position = mgl32.Vec3{1, 2, 3}
	view := cam.GetViewMatrix()
	lv := cam.ViewVulkan()
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			if lv[col][row] != view.At(row, col) {
				t.Fatalf("element (%d,%d): linmath %v, mathgl %v", row, col, lv[col][row], view.At(row, col))
			}
		}
	}
}

// nearVec3 compares per component with an absolute tolerance, so zero
// components do not need exact float equality.
func nearVec3(a, b mgl32.Vec3, tol float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func nearMat4(a, b mgl32.Mat4, tol float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
