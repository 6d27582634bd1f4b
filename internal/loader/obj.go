package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"GopherPBR/internal/logger"
	"GopherPBR/internal/renderer"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// DefaultMaterial names faces that appear before any usemtl statement.
const DefaultMaterial = "default"

// Model is a parsed OBJ file: one mesh whose index groups reference the
// materials declared by its mtllib files.
type Model struct {
	Mesh      *MeshData
	Materials map[string]renderer.MaterialDesc
}

type faceVertex struct {
	v, vt, vn int
}

type objParser struct {
	positions []mgl32.Vec3
	uvs       []mgl32.Vec2
	normals   []mgl32.Vec3

	mesh     *MeshData
	unified  map[faceVertex]uint32
	material string
	libs     []string
	// missingNormals is set when a face vertex has no vn reference.
	missingNormals bool
}

// LoadOBJ reads an OBJ file and the MTL libraries it references. Texture
// paths in the materials are resolved against the MTL file's directory.
func LoadOBJ(path string, recalculateNormals bool) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mesh, libs, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	mesh.Name = meshName(path)
	if recalculateNormals {
		mesh.RecalculateNormals()
		mesh.ComputeTangents()
	}
	return newModel(path, mesh, libs), nil
}

func meshName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// newModel resolves the material libraries of an OBJ at path. Libraries
// that fail to load are logged and skipped.
func newModel(path string, mesh *MeshData, libs []string) *Model {
	model := &Model{Mesh: mesh, Materials: map[string]renderer.MaterialDesc{}}
	for _, lib := range libs {
		mtlPath := filepath.Join(filepath.Dir(path), lib)
		mats, err := LoadMaterials(mtlPath)
		if err != nil {
			logger.Log.Warn("Material library not loaded", zap.String("path", mtlPath), zap.Error(err))
			continue
		}
		for name, desc := range mats {
			model.Materials[name] = desc
		}
	}
	logger.Log.Info("Model loaded",
		zap.String("path", path),
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", len(mesh.Indices)/3),
		zap.Int("groups", len(mesh.Groups)),
		zap.Int("materials", len(model.Materials)))
	return model
}

// ParseOBJ reads OBJ geometry. Distinct v/vt/vn triplets become distinct
// vertices, polygons are fan triangulated and usemtl statements split the
// index buffer into groups. It also returns the mtllib names in order.
func ParseOBJ(r io.Reader) (*MeshData, []string, error) {
	p := &objParser{
		mesh:     &MeshData{},
		unified:  map[faceVertex]uint32{},
		material: DefaultMaterial,
	}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := p.statement(fields); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if len(p.mesh.Indices) == 0 {
		return nil, nil, fmt.Errorf("obj: no faces")
	}
	p.closeGroup()
	if p.missingNormals {
		p.mesh.RecalculateNormals()
	}
	p.mesh.ComputeTangents()
	return p.mesh, p.libs, nil
}

func (p *objParser) statement(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		p.positions = append(p.positions, mgl32.Vec3{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(fields[1:], 2)
		if err != nil {
			return fmt.Errorf("texture coordinate: %w", err)
		}
		// OBJ texture space has its origin at the bottom left.
		p.uvs = append(p.uvs, mgl32.Vec2{v[0], 1 - v[1]})
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		p.normals = append(p.normals, mgl32.Vec3{v[0], v[1], v[2]})
	case "f":
		return p.face(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			return fmt.Errorf("usemtl: missing name")
		}
		if fields[1] != p.material {
			p.closeGroup()
			p.material = fields[1]
		}
	case "mtllib":
		p.libs = append(p.libs, fields[1:]...)
	}
	return nil
}

// closeGroup ends the group of the current material at the current index.
func (p *objParser) closeGroup() {
	first := 0
	if n := len(p.mesh.Groups); n > 0 {
		last := p.mesh.Groups[n-1]
		first = last.First + last.Count
	}
	if count := len(p.mesh.Indices) - first; count > 0 {
		p.mesh.Groups = append(p.mesh.Groups, Group{Material: p.material, First: first, Count: count})
	}
}

func (p *objParser) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face: %d vertices", len(refs))
	}
	if len(refs) > 4 {
		logger.Log.Debug("Fan triangulating polygon", zap.Int("vertices", len(refs)))
	}
	indices := make([]uint32, len(refs))
	for i, ref := range refs {
		fv, err := p.parseRef(ref)
		if err != nil {
			return err
		}
		indices[i] = p.vertex(fv)
	}
	for i := 1; i+1 < len(indices); i++ {
		p.mesh.Indices = append(p.mesh.Indices, indices[0], indices[i], indices[i+1])
	}
	return nil
}

func (p *objParser) vertex(fv faceVertex) uint32 {
	if i, ok := p.unified[fv]; ok {
		return i
	}
	var uv mgl32.Vec2
	if fv.vt >= 0 {
		uv = p.uvs[fv.vt]
	}
	n := mgl32.Vec3{0, 1, 0}
	if fv.vn >= 0 {
		n = p.normals[fv.vn]
	} else {
		p.missingNormals = true
	}
	i := p.mesh.addVertex(p.positions[fv.v], n, uv)
	p.unified[fv] = i
	return i
}

// parseRef parses v, v/vt, v//vn or v/vt/vn. Negative references count back
// from the last element read so far.
func (p *objParser) parseRef(ref string) (faceVertex, error) {
	parts := strings.Split(ref, "/")
	fv := faceVertex{v: -1, vt: -1, vn: -1}
	var err error
	if fv.v, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return fv, fmt.Errorf("face vertex %q: %w", ref, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if fv.vt, err = resolveIndex(parts[1], len(p.uvs)); err != nil {
			return fv, fmt.Errorf("face texture coordinate %q: %w", ref, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if fv.vn, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return fv, fmt.Errorf("face normal %q: %w", ref, err)
		}
	}
	return fv, nil
}

func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, fmt.Errorf("index %d out of range (%d defined)", i, count)
}

func parseFloats(fields []string, want int) ([]float32, error) {
	if len(fields) < want {
		return nil, fmt.Errorf("expected %d values, got %d", want, len(fields))
	}
	out := make([]float32, want)
	for i := range out {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", fields[i], err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// LoadMaterials reads an MTL file into material descriptions. Texture maps
// map onto the PBR slots: map_Kd albedo, map_Bump or norm normal, map_Pm
// metallic, map_Pr roughness and map_Ka ambient occlusion. A dissolve below
// one marks the material transparent.
func LoadMaterials(path string) (map[string]renderer.MaterialDesc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mats, err := ParseMTL(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mats, nil
}

// ParseMTL parses MTL statements; relative texture paths are joined to dir.
func ParseMTL(r io.Reader, dir string) (map[string]renderer.MaterialDesc, error) {
	mats := map[string]renderer.MaterialDesc{}
	var name string
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: newmtl: missing name", line)
			}
			name = fields[1]
			mats[name] = renderer.MaterialDesc{}
			continue
		}
		if name == "" || len(fields) < 2 {
			continue
		}
		desc := mats[name]
		// Map options precede the file name, so the path is the last field.
		texture := fields[len(fields)-1]
		if !filepath.IsAbs(texture) {
			texture = filepath.Join(dir, texture)
		}
		switch fields[0] {
		case "map_Kd":
			desc.Albedo = texture
		case "map_Bump", "map_bump", "bump", "norm":
			desc.Normal = texture
		case "map_Pm":
			desc.Metallic = texture
		case "map_Pr":
			desc.Roughness = texture
		case "map_Ka":
			desc.AO = texture
		case "d":
			v, err := strconv.ParseFloat(fields[1], 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: dissolve: %w", line, err)
			}
			desc.Transparent = v < 1
		case "Tr":
			v, err := strconv.ParseFloat(fields[1], 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: transparency: %w", line, err)
			}
			desc.Transparent = v > 0
		}
		mats[name] = desc
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mats, nil
}
