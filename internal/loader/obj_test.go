package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const quadOBJ = `# two materials
mtllib quad.mtl
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
usemtl floor
f 1/1/1 4/4/1 3/3/1 2/2/1
usemtl glass
f -4/-4/-1 -2/-2/-1 -3/-3/-1
`

const quadMTL = `newmtl floor
map_Kd floor_albedo.png
map_Bump -bm 0.5 floor_normal.png
map_Pr floor_rough.png
newmtl glass
map_Kd glass.png
d 0.4
`

func TestParseOBJ(t *testing.T) {
	m, libs, err := ParseOBJ(strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatal(err)
	}
	if len(libs) != 1 || libs[0] != "quad.mtl" {
		t.Errorf("unexpected mtllibs %v", libs)
	}
	if m.VertexCount() != 4 {
		t.Errorf("expected shared vertices to be unified into 4, got %d", m.VertexCount())
	}
	if len(m.Indices) != 9 {
		t.Fatalf("expected 3 triangles, got %d indices", len(m.Indices))
	}
	want := []Group{{Material: "floor", First: 0, Count: 6}, {Material: "glass", First: 6, Count: 3}}
	if len(m.Groups) != len(want) {
		t.Fatalf("expected groups %v, got %v", want, m.Groups)
	}
	for i := range want {
		if m.Groups[i] != want[i] {
			t.Errorf("group %d: expected %v, got %v", i, want[i], m.Groups[i])
		}
	}
	if uv := m.UV(0); uv != (mgl32.Vec2{0, 1}) {
		t.Errorf("expected flipped v coordinate, got %v", uv)
	}
	if n := m.Normal(0); n != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("expected file normal, got %v", n)
	}
}

func TestParseOBJWithoutNormals(t *testing.T) {
	src := "v 0 0 0\nv 0 0 1\nv 1 0 0\nf 1 2 3\n"
	m, _, err := ParseOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Groups) != 1 || m.Groups[0].Material != DefaultMaterial {
		t.Errorf("expected one default group, got %v", m.Groups)
	}
	if n := m.Normal(0); !nearVec3(n, mgl32.Vec3{0, 1, 0}, 1e-6) {
		t.Errorf("expected computed normal +Y, got %v", n)
	}
}

func TestParseOBJErrors(t *testing.T) {
	cases := map[string]string{
		"index out of range": "v 0 0 0\nv 1 0 0\nf 1 2 3\n",
		"bad number":         "v 0 zero 0\n",
		"short face":         "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"no faces":           "v 0 0 0\n",
	}
	for name, src := range cases {
		if _, _, err := ParseOBJ(strings.NewReader(src)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLoadOBJResolvesMaterials(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMTL), 0o644); err != nil {
		t.Fatal(err)
	}
	model, err := LoadOBJ(filepath.Join(dir, "quad.obj"), false)
	if err != nil {
		t.Fatal(err)
	}
	if model.Mesh.Name != "quad" {
		t.Errorf("expected mesh name quad, got %q", model.Mesh.Name)
	}
	floor, ok := model.Materials["floor"]
	if !ok {
		t.Fatal("floor material missing")
	}
	if floor.Albedo != filepath.Join(dir, "floor_albedo.png") {
		t.Errorf("unexpected albedo path %q", floor.Albedo)
	}
	if floor.Normal != filepath.Join(dir, "floor_normal.png") {
		t.Errorf("expected map options to be skipped, got %q", floor.Normal)
	}
	if floor.Transparent {
		t.Error("floor should be opaque")
	}
	if !model.Materials["glass"].Transparent {
		t.Error("glass should be transparent")
	}
}
