// Package shaders provides the GLSL sources of every pass, their binding
// schema and the compiled SPIR-V loaded from disk.
//
// The SPIR-V binaries are produced from the sources in glsl/ with glslc:
//
//go:generate sh -c "for f in glsl/*.vert glsl/*.frag; do glslc $f -o ../../shaders/spv/$(basename $f).spv; done"
package shaders

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	"go.uber.org/zap"
)

//go:embed glsl/*.vert glsl/*.frag
var sources embed.FS

type programSpec struct {
	vertex, fragment string
}

var programs = map[string]programSpec{
	"gbuffer":    {"gbuffer.vert", "gbuffer.frag"},
	"lighting":   {"fullscreen.vert", "lighting.frag"},
	"skybox":     {"skybox.vert", "skybox.frag"},
	"forward":    {"forward.vert", "forward.frag"},
	"equirect":   {"cube.vert", "equirect.frag"},
	"irradiance": {"cube.vert", "irradiance.frag"},
	"prefilter":  {"cube.vert", "prefilter.frag"},
	"brdf":       {"fullscreen.vert", "brdf.frag"},
}

// Programs returns the names of all known programs, sorted.
func Programs() []string {
	names := make([]string, 0, len(programs))
	for n := range programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Library loads programs. Binaries are read from Dir as <stage file>.spv;
// an empty Dir loads no binaries, which suits devices that run kernels.
type Library struct {
	Dir string
}

func NewLibrary(dir string) *Library {
	return &Library{Dir: dir}
}

// Source returns the GLSL source of a stage file such as "lighting.frag".
func (l *Library) Source(file string) (string, error) {
	b, err := sources.ReadFile("glsl/" + file)
	if err != nil {
		return "", fmt.Errorf("shader %s: %w", file, err)
	}
	return string(b), nil
}

// Reflect returns the declared interface of a stage file.
func (l *Library) Reflect(file string) (*Reflection, error) {
	stage, err := StageOf(file)
	if err != nil {
		return nil, err
	}
	src, err := l.Source(file)
	if err != nil {
		return nil, err
	}
	r, err := Reflect(stage, src)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", file, err)
	}
	return r, nil
}

func (l *Library) module(dev gpu.Device, file string, kernel gpu.Kernel) (gpu.ShaderModule, error) {
	stage, err := StageOf(file)
	if err != nil {
		return nil, err
	}
	src := gpu.ShaderSource{Label: file, Stage: stage, Entry: "main"}
	if stage == gpu.StageFragment {
		src.Kernel = kernel
	}
	if l.Dir != "" {
		path := filepath.Join(l.Dir, file+".spv")
		src.SPIRV, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("shader %s: %w", file, err)
		}
		if len(src.SPIRV)%4 != 0 {
			return nil, fmt.Errorf("shader %s: SPIR-V size %d is not a multiple of 4", path, len(src.SPIRV))
		}
	}
	return dev.NewShaderModule(src)
}

// Program creates the shader modules of a named program. kernel is attached
// to the fragment stage for software devices and may be nil.
func (l *Library) Program(dev gpu.Device, name string, kernel gpu.Kernel) (*gpu.Program, error) {
	spec, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("unknown shader program %q", name)
	}
	vr, err := l.Reflect(spec.vertex)
	if err != nil {
		return nil, err
	}
	fr, err := l.Reflect(spec.fragment)
	if err != nil {
		return nil, err
	}
	bindings, push, err := Merge(vr, fr)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", name, err)
	}

	p := &gpu.Program{Label: name, Bindings: bindings, PushConstantSize: push}
	if p.Vertex, err = l.module(dev, spec.vertex, nil); err != nil {
		return nil, err
	}
	if p.Fragment, err = l.module(dev, spec.fragment, kernel); err != nil {
		p.Destroy()
		return nil, err
	}
	logger.Log.Debug("Shader program loaded",
		zap.String("program", name),
		zap.Int("bindings", len(bindings)),
		zap.Int("pushConstantBytes", push))
	return p, nil
}
