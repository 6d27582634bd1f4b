package shaders

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"GopherPBR/internal/gpu"
)

// Reflection is the resource interface a GLSL stage declares.
type Reflection struct {
	Stage            gpu.ShaderStage
	Bindings         []gpu.ShaderBinding
	PushConstantSize int
}

var (
	commentRe = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/`)
	samplerRe = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*uniform\s+(sampler\w+)\s+(\w+)\s*;`)
	blockRe   = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*(?:readonly\s+|writeonly\s+)*(uniform|buffer)\s+(\w+)\s*\{`)
	pushRe    = regexp.MustCompile(`layout\s*\(\s*push_constant\s*\)\s*uniform\s+\w+\s*\{([^}]*)\}`)
	memberRe  = regexp.MustCompile(`(\w+)\s+(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*;`)
	qualRe    = regexp.MustCompile(`(set|binding)\s*=\s*(\d+)`)
)

// StageOf returns the stage of a shader file name by extension.
func StageOf(name string) (gpu.ShaderStage, error) {
	switch {
	case strings.HasSuffix(name, ".vert"):
		return gpu.StageVertex, nil
	case strings.HasSuffix(name, ".frag"):
		return gpu.StageFragment, nil
	}
	return 0, fmt.Errorf("shader %s: unknown stage", name)
}

// Reflect extracts descriptor bindings and the push constant block size from
// GLSL source. Sets default to 0 when the layout qualifier omits them.
func Reflect(stage gpu.ShaderStage, src string) (*Reflection, error) {
	src = commentRe.ReplaceAllString(src, "")
	r := &Reflection{Stage: stage}

	for _, m := range samplerRe.FindAllStringSubmatch(src, -1) {
		set, binding, err := qualifiers(m[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m[3], err)
		}
		r.Bindings = append(r.Bindings, gpu.ShaderBinding{
			Set: set, Index: binding, Kind: gpu.KindTexture, Name: m[3], Stage: stage,
		})
	}
	for _, m := range blockRe.FindAllStringSubmatch(src, -1) {
		if strings.Contains(m[1], "push_constant") {
			continue
		}
		set, binding, err := qualifiers(m[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m[3], err)
		}
		kind := gpu.KindUniformBuffer
		if m[2] == "buffer" {
			kind = gpu.KindStorageBuffer
		}
		r.Bindings = append(r.Bindings, gpu.ShaderBinding{
			Set: set, Index: binding, Kind: kind, Name: m[3], Stage: stage,
		})
	}
	if m := pushRe.FindStringSubmatch(src); m != nil {
		size, err := blockSize(m[1])
		if err != nil {
			return nil, fmt.Errorf("push constant block: %w", err)
		}
		r.PushConstantSize = size
	}
	return r, nil
}

func qualifiers(s string) (set, binding int, err error) {
	binding = -1
	for _, q := range qualRe.FindAllStringSubmatch(s, -1) {
		v, _ := strconv.Atoi(q[2])
		if q[1] == "set" {
			set = v
		} else {
			binding = v
		}
	}
	if binding < 0 {
		return 0, 0, fmt.Errorf("layout(%s) has no binding", strings.TrimSpace(s))
	}
	return set, binding, nil
}

type glslType struct{ size, align int }

// std430 sizes and alignments, which push constant blocks use.
var glslTypes = map[string]glslType{
	"float": {4, 4}, "int": {4, 4}, "uint": {4, 4},
	"vec2": {8, 8}, "ivec2": {8, 8}, "uvec2": {8, 8},
	"vec3": {12, 16}, "ivec3": {12, 16}, "uvec3": {12, 16},
	"vec4": {16, 16}, "ivec4": {16, 16}, "uvec4": {16, 16},
	"mat3": {48, 16}, "mat4": {64, 16},
}

func blockSize(body string) (int, error) {
	offset := 0
	for _, m := range memberRe.FindAllStringSubmatch(body, -1) {
		t, ok := glslTypes[m[1]]
		if !ok {
			return 0, fmt.Errorf("member %s has unsupported type %s", m[2], m[1])
		}
		count := 1
		if m[3] != "" {
			count, _ = strconv.Atoi(m[3])
		}
		offset = (offset + t.align - 1) / t.align * t.align
		stride := t.size
		if count > 1 {
			stride = (t.size + t.align - 1) / t.align * t.align
		}
		offset += stride * count
	}
	return offset, nil
}

// Merge combines the reflections of the stages of one program. A resource
// declared by several stages is listed once with the union of their stages.
func Merge(stages ...*Reflection) ([]gpu.ShaderBinding, int, error) {
	type key struct{ set, index int }
	var out []gpu.ShaderBinding
	seen := make(map[key]int)
	push := 0
	for _, r := range stages {
		for _, b := range r.Bindings {
			k := key{b.Set, b.Index}
			if i, ok := seen[k]; ok {
				if out[i].Kind != b.Kind {
					return nil, 0, fmt.Errorf("set %d binding %d declared as %s and %s", b.Set, b.Index, out[i].Kind, b.Kind)
				}
				out[i].Stage |= b.Stage
				continue
			}
			seen[k] = len(out)
			out = append(out, b)
		}
		if r.PushConstantSize > push {
			push = r.PushConstantSize
		}
	}
	return out, push, nil
}
