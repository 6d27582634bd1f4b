package renderer

import (
	"sort"
	"sync"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/ibl"
	"GopherPBR/internal/logger"

	"go.uber.org/zap"
)

// Inspector receives textures worth displaying in a debug view.
type Inspector = ibl.Inspector

// TextureRegistry records named textures for a debug inspector. A later
// registration under the same name replaces the earlier one.
type TextureRegistry struct {
	mu       sync.RWMutex
	textures map[string]*gpu.Texture
}

func NewTextureRegistry() *TextureRegistry {
	return &TextureRegistry{textures: make(map[string]*gpu.Texture)}
}

func (r *TextureRegistry) Register(name string, tex *gpu.Texture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures[name] = tex
	desc := tex.Desc()
	logger.Log.Debug("Texture registered for inspection",
		zap.String("name", name),
		zap.String("format", desc.Format.String()),
		zap.Int("width", desc.Extent.Width),
		zap.Int("height", desc.Extent.Height),
		zap.Int("mips", desc.Mips),
		zap.Int("layers", desc.Layers))
}

func (r *TextureRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.textures, name)
}

func (r *TextureRegistry) Get(name string) (*gpu.Texture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tex, ok := r.textures[name]
	return tex, ok
}

// Names returns the registered names, sorted.
func (r *TextureRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.textures))
	for n := range r.textures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
