package renderer

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/gpu/soft"
)

func newTestTextureManager(t *testing.T) (*soft.Device, *TextureManager, *gpu.ReclaimQueue) {
	t.Helper()
	dev := soft.New(soft.WithWorkers(1))
	queue := gpu.NewReclaimQueue(2)
	tm, err := NewTextureManager(dev, queue)
	if err != nil {
		t.Fatalf("NewTextureManager failed: %v", err)
	}
	t.Cleanup(func() {
		tm.Close()
		queue.Flush()
		dev.Destroy()
	})
	return dev, tm, queue
}

func TestTextureManagerCachesByPath(t *testing.T) {
	_, tm, queue := newTestTextureManager(t)
	path := writePNG(t, t.TempDir(), "brick.png", color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	a, err := tm.LoadTexture(path, true)
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	b, err := tm.LoadTexture(path, true)
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if a != b || a.Refs() != 2 {
		t.Fatalf("expected one shared texture with 2 refs, got %p/%p refs %d", a, b, a.Refs())
	}
	if a.Get().Format() != gpu.FormatRGBA8Srgb {
		t.Errorf("expected an sRGB texture, got %s", a.Get().Format())
	}

	linear, err := tm.LoadTexture(path, false)
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if linear == a || linear.Get().Format() != gpu.FormatRGBA8Unorm {
		t.Errorf("linear load should be cached separately as unorm")
	}

	stats := tm.GetStats()
	if stats.CacheHits != 1 || stats.CacheMisses != 2 || stats.ActiveTextures != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	tm.ReleaseTexture(a)
	if queue.Pending() != 0 {
		t.Fatal("texture retired while still referenced")
	}
	tm.ReleaseTexture(b)
	if queue.Pending() != 1 {
		t.Fatalf("expected the last release to retire the texture, %d pending", queue.Pending())
	}
	tm.ReleaseTexture(linear)

	c, err := tm.LoadTexture(path, true)
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if c == a {
		t.Error("a released texture should be loaded again")
	}
	tm.ReleaseTexture(c)
}

func TestTextureManagerDefaultWhite(t *testing.T) {
	dev, tm, queue := newTestTextureManager(t)
	white := tm.Default()
	if err := dev.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	px, ext, err := dev.ReadPixels(white.Get().Image(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ext.Width != 1 || ext.Height != 1 || px[0] != 1 || px[1] != 1 || px[2] != 1 || px[3] != 1 {
		t.Errorf("expected a 1x1 white texel, got %v %v", ext, px)
	}
	tm.ReleaseTexture(white)
	if queue.Pending() != 0 {
		t.Error("default texture must stay alive while the manager holds it")
	}
}

func TestTextureManagerLoadErrors(t *testing.T) {
	_, tm, _ := newTestTextureManager(t)
	dir := t.TempDir()
	if _, err := tm.LoadTexture(filepath.Join(dir, "absent.png"), false); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
	bogus := filepath.Join(dir, "bogus.png")
	if err := os.WriteFile(bogus, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := tm.LoadTexture(bogus, false); err == nil {
		t.Error("expected a decode error")
	}
}

func TestMaterialFactory(t *testing.T) {
	dev, tm, queue := newTestTextureManager(t)
	var opaque, transparent PipelineRef
	f, err := NewMaterialFactory(dev, tm, queue, &opaque, &transparent)
	if err != nil {
		t.Fatalf("NewMaterialFactory failed: %v", err)
	}
	defer f.Destroy()

	if _, err := f.Create("empty", MaterialDesc{Normal: "n.png"}); !errors.Is(err, ErrMissingAlbedo) {
		t.Fatalf("expected ErrMissingAlbedo, got %v", err)
	}

	albedo := writePNG(t, t.TempDir(), "albedo.png", color.White)
	m, err := f.Create("solid", MaterialDesc{Albedo: albedo})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if m.Pipeline != &opaque {
		t.Error("opaque material should use the geometry pipeline")
	}
	if got := m.textures[0].Get().Format(); got != gpu.FormatRGBA8Srgb {
		t.Errorf("albedo should be sRGB, got %s", got)
	}
	white := tm.Default()
	for i := 1; i < len(m.textures); i++ {
		if m.textures[i] != white {
			t.Errorf("slot %s should fall back to the default texture", materialSlots[i])
		}
	}
	tm.ReleaseTexture(white)

	g, err := f.Create("glass", MaterialDesc{Albedo: albedo, Transparent: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if g.Pipeline != &transparent {
		t.Error("transparent material should use the forward pipeline")
	}

	if got := f.Replace(m, g); got != g {
		t.Error("Replace should return the new material")
	}
	if m.Set() != nil || queue.Pending() != 1 {
		t.Errorf("replaced material should retire its set only, %d pending", queue.Pending())
	}
	f.Release(g)
	if queue.Pending() != 3 {
		t.Errorf("last reference to the albedo should retire it, %d pending", queue.Pending())
	}
	queue.Flush()
}

func TestTextureRegistry(t *testing.T) {
	dev := soft.New(soft.WithWorkers(1))
	defer dev.Destroy()
	reg := NewTextureRegistry()
	g, err := NewGBuffer(dev, gpu.Extent{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("NewGBuffer failed: %v", err)
	}
	defer g.Destroy()
	g.Register(reg)

	want := []string{"gbuffer/albedo", "gbuffer/arm", "gbuffer/depth", "gbuffer/normal", "gbuffer/position"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if tex, ok := reg.Get("gbuffer/depth"); !ok || tex != g.Depth {
		t.Error("depth not registered")
	}
	reg.Unregister("gbuffer/depth")
	if _, ok := reg.Get("gbuffer/depth"); ok {
		t.Error("Unregister left the entry")
	}
}

func TestUnwindRunsInReverse(t *testing.T) {
	var order []int
	var u Unwind
	u.Add(func() { order = append(order, 1) })
	u.Add(func() { order = append(order, 2) })
	u.Unwind()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("expected [2 1], got %v", order)
	}
	u.Unwind()
	if len(order) != 2 {
		t.Error("Unwind should run each cleanup once")
	}

	u.Add(func() { order = append(order, 3) })
	u.Discard()
	u.Unwind()
	if len(order) != 2 {
		t.Error("Discard should drop pending cleanups")
	}
}
