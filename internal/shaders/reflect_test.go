package shaders

import (
	"testing"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/gpu/soft"
)

func TestReflectLightingSchema(t *testing.T) {
	lib := NewLibrary("")
	r, err := lib.Reflect("lighting.frag")
	if err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	textures := 0
	for _, b := range r.Bindings {
		switch b.Set {
		case 0:
			if b.Index != 0 || b.Kind != gpu.KindUniformBuffer {
				t.Errorf("set 0 should hold only the globals block, got %+v", b)
			}
		case 1:
			if b.Kind != gpu.KindTexture {
				t.Errorf("set 1 binding %d should be a texture, got %s", b.Index, b.Kind)
			}
			textures++
		}
	}
	if textures != 7 {
		t.Errorf("expected 7 lighting inputs, got %d", textures)
	}
}

func TestReflectPushConstantSizes(t *testing.T) {
	lib := NewLibrary("")
	tests := map[string]int{
		"cube.vert":       68,
		"prefilter.frag":  68,
		"skybox.vert":     64,
		"gbuffer.vert":    64,
		"forward.vert":    64,
		"lighting.frag":   0,
		"fullscreen.vert": 0,
	}
	for file, want := range tests {
		r, err := lib.Reflect(file)
		if err != nil {
			t.Errorf("%s: %v", file, err)
			continue
		}
		if r.PushConstantSize != want {
			t.Errorf("%s: expected %d push constant bytes, got %d", file, want, r.PushConstantSize)
		}
	}
}

func TestReflectIgnoresComments(t *testing.T) {
	src := `
// layout(set = 2, binding = 0) uniform sampler2D commented;
/* layout(set = 3, binding = 1) uniform sampler2D alsoCommented; */
layout(set = 1, binding = 2) uniform sampler2D real;
layout(std140, set = 0, binding = 1) uniform Params { vec4 a; } params;
layout(push_constant) uniform Push { vec3 a; float b; mat3 c; } push;
`
	r, err := Reflect(gpu.StageFragment, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %+v", r.Bindings)
	}
	if b := r.Bindings[0]; b.Name != "real" || b.Set != 1 || b.Index != 2 {
		t.Errorf("unexpected texture binding %+v", b)
	}
	if b := r.Bindings[1]; b.Name != "Params" || b.Kind != gpu.KindUniformBuffer || b.Index != 1 {
		t.Errorf("unexpected block binding %+v", b)
	}
	// vec3 at 0, float packs at 12, mat3 aligned to 16: 16 + 48.
	if r.PushConstantSize != 64 {
		t.Errorf("expected 64 push bytes, got %d", r.PushConstantSize)
	}
}

func TestMergeUnionsStagesAndRejectsConflicts(t *testing.T) {
	vert := &Reflection{Stage: gpu.StageVertex, Bindings: []gpu.ShaderBinding{
		{Set: 0, Index: 0, Kind: gpu.KindUniformBuffer, Name: "Globals", Stage: gpu.StageVertex},
	}, PushConstantSize: 64}
	frag := &Reflection{Stage: gpu.StageFragment, Bindings: []gpu.ShaderBinding{
		{Set: 0, Index: 0, Kind: gpu.KindUniformBuffer, Name: "Globals", Stage: gpu.StageFragment},
		{Set: 1, Index: 0, Kind: gpu.KindTexture, Name: "albedoMap", Stage: gpu.StageFragment},
	}}
	bindings, push, err := Merge(vert, frag)
	if err != nil {
		t.Fatal(err)
	}
	if len(bindings) != 2 || bindings[0].Stage != gpu.StageAllGraphics {
		t.Errorf("expected the globals visible to both stages, got %+v", bindings)
	}
	if push != 64 {
		t.Errorf("expected 64 push bytes, got %d", push)
	}

	frag.Bindings[0].Kind = gpu.KindTexture
	if _, _, err := Merge(vert, frag); err == nil {
		t.Error("a binding declared with two kinds should be rejected")
	}
}

func TestLibraryProgramsLoad(t *testing.T) {
	dev := soft.New(soft.WithWorkers(1))
	defer dev.Destroy()
	lib := NewLibrary("")
	for _, name := range Programs() {
		p, err := lib.Program(dev, name, nil)
		if err != nil {
			t.Errorf("program %s: %v", name, err)
			continue
		}
		if p.Vertex.Source().Stage != gpu.StageVertex || p.Fragment.Source().Stage != gpu.StageFragment {
			t.Errorf("program %s has stages out of order", name)
		}
		p.Destroy()
	}
	if _, err := lib.Program(dev, "missing", nil); err == nil {
		t.Error("an unknown program should be an error")
	}
}

func TestLibraryAttachesKernelToFragment(t *testing.T) {
	dev := soft.New(soft.WithWorkers(1))
	defer dev.Destroy()
	kernel := func(*gpu.FragmentContext) [4]float32 { return [4]float32{1, 1, 1, 1} }
	p, err := NewLibrary("").Program(dev, "brdf", kernel)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Destroy()
	if p.Fragment.Source().Kernel == nil {
		t.Error("the fragment stage should carry the kernel")
	}
	if p.Vertex.Source().Kernel != nil {
		t.Error("the vertex stage should not carry a kernel")
	}
}

func TestLibraryReadsBinaries(t *testing.T) {
	dev := soft.New(soft.WithWorkers(1))
	defer dev.Destroy()
	if _, err := NewLibrary(t.TempDir()).Program(dev, "brdf", nil); err == nil {
		t.Error("a missing SPIR-V binary should be an error")
	}
}
