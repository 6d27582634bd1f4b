package loader

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"GopherPBR/internal/logger"

	"go.uber.org/zap"
)

const (
	cacheMagic   = 0x4D425047 // "GPBM"
	cacheVersion = 1
	// CacheSuffix is appended to an OBJ path to name its mesh cache.
	CacheSuffix = ".meshcache"
	// maxCacheLen bounds every length read back, so corrupt files fail
	// instead of allocating.
	maxCacheLen = 1 << 28
)

var errBadCache = errors.New("mesh cache: corrupt or foreign file")

// EncodeMesh writes m and its mtllib names as gzip-compressed little-endian
// binary.
func EncodeMesh(w io.Writer, m *MeshData, libs []string) error {
	gz := gzip.NewWriter(w)
	le := binary.LittleEndian
	put := func(v any) error { return binary.Write(gz, le, v) }

	if err := put([2]uint32{cacheMagic, cacheVersion}); err != nil {
		return err
	}
	if err := writeString(gz, m.Name); err != nil {
		return err
	}
	if err := put(uint32(len(m.Vertices))); err != nil {
		return err
	}
	if err := put(m.Vertices); err != nil {
		return err
	}
	if err := put(uint32(len(m.Indices))); err != nil {
		return err
	}
	if err := put(m.Indices); err != nil {
		return err
	}
	if err := put(uint32(len(m.Groups))); err != nil {
		return err
	}
	for _, g := range m.Groups {
		if err := writeString(gz, g.Material); err != nil {
			return err
		}
		if err := put([2]uint32{uint32(g.First), uint32(g.Count)}); err != nil {
			return err
		}
	}
	if err := put(uint32(len(libs))); err != nil {
		return err
	}
	for _, lib := range libs {
		if err := writeString(gz, lib); err != nil {
			return err
		}
	}
	return gz.Close()
}

// DecodeMesh reads data written by EncodeMesh.
func DecodeMesh(r io.Reader) (*MeshData, []string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadCache, err)
	}
	defer gz.Close()
	le := binary.LittleEndian
	get := func(v any) error { return binary.Read(gz, le, v) }

	var header [2]uint32
	if err := get(&header); err != nil {
		return nil, nil, err
	}
	if header[0] != cacheMagic {
		return nil, nil, fmt.Errorf("%w: magic %#x", errBadCache, header[0])
	}
	if header[1] != cacheVersion {
		return nil, nil, fmt.Errorf("mesh cache: unsupported version %d", header[1])
	}

	m := &MeshData{}
	if m.Name, err = readString(gz); err != nil {
		return nil, nil, err
	}
	n, err := readLen(gz)
	if err != nil {
		return nil, nil, err
	}
	m.Vertices = make([]float32, n)
	if err := get(m.Vertices); err != nil {
		return nil, nil, err
	}
	if n, err = readLen(gz); err != nil {
		return nil, nil, err
	}
	m.Indices = make([]uint32, n)
	if err := get(m.Indices); err != nil {
		return nil, nil, err
	}
	if n, err = readLen(gz); err != nil {
		return nil, nil, err
	}
	for i := 0; i < n; i++ {
		var g Group
		if g.Material, err = readString(gz); err != nil {
			return nil, nil, err
		}
		var span [2]uint32
		if err := get(&span); err != nil {
			return nil, nil, err
		}
		g.First, g.Count = int(span[0]), int(span[1])
		m.Groups = append(m.Groups, g)
	}
	if n, err = readLen(gz); err != nil {
		return nil, nil, err
	}
	libs := make([]string, n)
	for i := range libs {
		if libs[i], err = readString(gz); err != nil {
			return nil, nil, err
		}
	}
	return m, libs, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLen(r io.Reader) (int, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, err
	}
	if n > maxCacheLen {
		return 0, fmt.Errorf("%w: length %d", errBadCache, n)
	}
	return int(n), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readLen(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadOBJCached is LoadOBJ backed by a mesh cache next to the OBJ file. A
// cache at least as new as the OBJ skips parsing; otherwise the OBJ is
// parsed and the cache rewritten. Cache failures fall back to parsing.
func LoadOBJCached(path string) (*Model, error) {
	cachePath := path + CacheSuffix
	if mesh, libs, ok := readCache(path, cachePath); ok {
		logger.Log.Info("Mesh cache hit", zap.String("path", cachePath))
		return newModel(path, mesh, libs), nil
	}

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
	if err := writeCache(cachePath, mesh, libs); err != nil {
		logger.Log.Warn("Mesh cache not written", zap.String("path", cachePath), zap.Error(err))
	}
	return newModel(path, mesh, libs), nil
}

func readCache(objPath, cachePath string) (*MeshData, []string, bool) {
	obj, err := os.Stat(objPath)
	if err != nil {
		return nil, nil, false
	}
	cache, err := os.Stat(cachePath)
	if err != nil || cache.ModTime().Before(obj.ModTime()) {
		return nil, nil, false
	}
	f, err := os.Open(cachePath)
	if err != nil {
		return nil, nil, false
	}
	defer f.Close()
	mesh, libs, err := DecodeMesh(f)
	if err != nil {
		logger.Log.Warn("Mesh cache ignored", zap.String("path", cachePath), zap.Error(err))
		return nil, nil, false
	}
	return mesh, libs, true
}

func writeCache(path string, mesh *MeshData, libs []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeMesh(f, mesh, libs); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
