package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SharedTexture is a reference-counted texture handed out by the manager.
type SharedTexture = gpu.Shared[*gpu.Texture]

// TextureStats provides debugging and profiling information
type TextureStats struct {
	TotalTextures  int
	CacheHits      int
	CacheMisses    int
	ActiveTextures int
}

type textureKey struct {
	path string
	srgb bool
}

// TextureManager loads, caches and shares textures. The last release of a
// texture hands it to the reclaim queue, so frames still in flight can keep
// sampling it.
type TextureManager struct {
	dev   gpu.Device
	queue *gpu.ReclaimQueue

	mu    sync.Mutex
	cache map[textureKey]*SharedTexture
	stats TextureStats
	white *SharedTexture
}

// NewTextureManager creates a manager and its default 1x1 white texture.
func NewTextureManager(dev gpu.Device, queue *gpu.ReclaimQueue) (*TextureManager, error) {
	tm := &TextureManager{
		dev:   dev,
		queue: queue,
		cache: make(map[textureKey]*SharedTexture),
	}
	white := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	white.Set(0, 0, color.White)
	var err error
	tm.white, err = tm.CreateTextureFromImage("default white", white, false)
	if err != nil {
		return nil, err
	}
	return tm, nil
}

// Default returns a new reference to the 1x1 white texture bound to unset
// material slots.
func (tm *TextureManager) Default() *SharedTexture {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.white.Retain()
}

// LoadTexture loads a texture from file or returns a new reference to the
// cached one. srgb selects sRGB decoding for color data.
func (tm *TextureManager) LoadTexture(filePath string, srgb bool) (*SharedTexture, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	key := textureKey{filePath, srgb}
	if s, ok := tm.cache[key]; ok {
		tm.stats.CacheHits++
		s.Retain()
		logger.Log.Debug("Texture cache hit",
			zap.String("path", filePath),
			zap.Int("refCount", s.Refs()))
		return s, nil
	}
	tm.stats.CacheMisses++

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", filePath, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", filePath, err)
	}
	return tm.create(key, img)
}

// CreateTextureFromImage uploads img and caches it under name.
func (tm *TextureManager) CreateTextureFromImage(name string, img image.Image, srgb bool) (*SharedTexture, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	key := textureKey{name, srgb}
	if s, ok := tm.cache[key]; ok {
		tm.stats.CacheHits++
		return s.Retain(), nil
	}
	return tm.create(key, img)
}

func (tm *TextureManager) create(key textureKey, img image.Image) (*SharedTexture, error) {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	format := gpu.FormatRGBA8Unorm
	if key.srgb {
		format = gpu.FormatRGBA8Srgb
	}
	tex, err := gpu.NewTexture(tm.dev, gpu.ImageDesc{
		Label:  key.path,
		Format: format,
		Extent: gpu.Extent{Width: b.Dx(), Height: b.Dy()},
		Usage:  gpu.UsageSampled | gpu.UsageTransferDst,
	}, &gpu.SamplerDesc{Address: gpu.AddressRepeat})
	if err != nil {
		return nil, err
	}
	if err := gpu.UploadTexture(tm.dev, tex, nrgba.Pix); err != nil {
		tex.Destroy()
		return nil, err
	}

	s := gpu.NewShared(tex, func(d gpu.Destroyer) {
		// Runs under tm.mu: every release goes through ReleaseTexture.
		delete(tm.cache, key)
		tm.stats.ActiveTextures--
		tm.queue.Push(d)
		logger.Log.Debug("Texture released", zap.String("path", key.path))
	})
	tm.cache[key] = s
	tm.stats.TotalTextures++
	tm.stats.ActiveTextures++

	logger.Log.Info("Texture loaded and cached",
		zap.String("path", key.path),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()))
	return s, nil
}

// ReleaseTexture drops one reference. The texture is scheduled for
// destruction when it was the last.
func (tm *TextureManager) ReleaseTexture(s *SharedTexture) {
	if s == nil {
		return
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	s.Release()
}

// GetStats returns current texture manager statistics
func (tm *TextureManager) GetStats() TextureStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.stats
}

// LogStats logs current texture statistics
func (tm *TextureManager) LogStats() {
	stats := tm.GetStats()
	hitRate := 0.0
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		hitRate = float64(stats.CacheHits) / float64(lookups)
	}
	logger.Log.Info("Texture Manager Stats",
		zap.Int("totalTextures", stats.TotalTextures),
		zap.Int("activeTextures", stats.ActiveTextures),
		zap.Int("cacheHits", stats.CacheHits),
		zap.Int("cacheMisses", stats.CacheMisses),
		zap.Float64("hitRate", hitRate))
}

// Close drops the manager's reference to the default texture. Textures
// still referenced elsewhere are reported and scheduled for destruction.
func (tm *TextureManager) Close() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.white != nil {
		tm.white.Release()
		tm.white = nil
	}
	for key, s := range tm.cache {
		logger.Log.Warn("Texture still referenced at shutdown",
			zap.String("path", key.path),
			zap.Int("refCount", s.Refs()))
		delete(tm.cache, key)
		tm.queue.Push(s.Get())
	}
}
