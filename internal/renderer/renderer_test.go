package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/gpu/soft"
	"GopherPBR/internal/ibl"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ShaderDir = ""
	cfg.Width, cfg.Height = 8, 6
	cfg.IBL = ibl.Config{
		EnvironmentSize:       8,
		IrradianceSize:        4,
		PrefilterSize:         8,
		PrefilterMips:         4,
		BRDFSize:              4,
		IrradianceSampleDelta: 0.25,
		PrefilterSamples:      16,
		BRDFSamples:           16,
	}
	return cfg
}

type fixture struct {
	dev       *soft.Device
	presenter *soft.Presenter
	scene     *StaticScene
	r         *Renderer
	meshes    []*Mesh
	materials []*Material
}

func newFixture(t *testing.T, cfg Config, withEnvironment bool) *fixture {
	t.Helper()
	f := &fixture{dev: soft.New(soft.WithWorkers(2)), scene: NewStaticScene()}
	var err error
	f.presenter, err = soft.NewPresenter(f.dev, gpu.Extent{Width: cfg.Width, Height: cfg.Height}, 3)
	if err != nil {
		t.Fatalf("NewPresenter failed: %v", err)
	}
	f.r, err = New(f.dev, f.presenter, cfg, f.scene, NewDefaultCamera(cfg.Width, cfg.Height))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		for _, m := range f.materials {
			f.r.Materials().Release(m)
		}
		for _, m := range f.meshes {
			f.r.queue.Push(m)
		}
		if err := f.r.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if v := f.dev.Violations(); len(v) > 0 {
			t.Errorf("device violations: %v", v)
		}
		f.presenter.Destroy()
		f.dev.Destroy()
	})
	if withEnvironment {
		if err := f.r.SetEnvironment(ibl.ConstantPanorama(16, 8, [3]float32{1, 1, 1})); err != nil {
			t.Fatalf("SetEnvironment failed: %v", err)
		}
	}
	return f
}

func writePNG(t *testing.T, dir, name string, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func quadMesh(t *testing.T, f *fixture, label string) *Mesh {
	t.Helper()
	// position, normal, uv, tangent
	verts := []float32{
		-1, -1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 1,
		1, -1, 0, 0, 0, 1, 1, 0, 1, 0, 0, 1,
		1, 1, 0, 0, 0, 1, 1, 1, 1, 0, 0, 1,
		-1, 1, 0, 0, 0, 1, 0, 1, 1, 0, 0, 1,
	}
	m, err := NewMesh(f.dev, label, verts, []uint32{0, 1, 2, 0, 2, 3})
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}
	f.meshes = append(f.meshes, m)
	return m
}

func (f *fixture) material(t *testing.T, name string, desc MaterialDesc) *Material {
	t.Helper()
	m, err := f.r.Materials().Create(name, desc)
	if err != nil {
		t.Fatalf("Create %s failed: %v", name, err)
	}
	f.materials = append(f.materials, m)
	return m
}

func (f *fixture) frame(t *testing.T) {
	t.Helper()
	if err := f.r.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
}

// trace renders barrier and pass events as readable lines.
func trace(events []soft.Event) []string {
	var out []string
	for _, e := range events {
		switch e.Op {
		case soft.OpBarrier:
			out = append(out, fmt.Sprintf("%s %s->%s", e.Label, e.Barrier.Old, e.Barrier.New))
		case soft.OpBeginPass:
			out = append(out, "pass "+e.Label)
		}
	}
	return out
}

func labels(events []soft.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Label
	}
	return out
}

func TestRenderFrameRequiresEnvironment(t *testing.T) {
	f := newFixture(t, testConfig(), false)
	if err := f.r.RenderFrame(); !errors.Is(err, ErrNoEnvironment) {
		t.Fatalf("expected ErrNoEnvironment, got %v", err)
	}
}

func TestRenderFramePassAndBarrierOrder(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	dir := t.TempDir()
	albedo := writePNG(t, dir, "albedo.png", color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	mesh := quadMesh(t, f, "quad")
	f.scene.Add(DrawItem{Mesh: mesh, Material: f.material(t, "solid", MaterialDesc{Albedo: albedo}), Transform: mgl32.Ident4()})
	f.scene.Add(DrawItem{Mesh: mesh, Material: f.material(t, "glass", MaterialDesc{Albedo: albedo, Transparent: true}), Transform: mgl32.Ident4()})
	f.dev.ClearEvents()

	f.frame(t)
	expected := []string{
		"gbuffer position Undefined->ColorAttachment",
		"gbuffer normal Undefined->ColorAttachment",
		"gbuffer albedo Undefined->ColorAttachment",
		"gbuffer arm Undefined->ColorAttachment",
		"gbuffer depth Undefined->DepthAttachment",
		"pass gbuffer",
		"gbuffer position ColorAttachment->ShaderReadOnly",
		"gbuffer normal ColorAttachment->ShaderReadOnly",
		"gbuffer albedo ColorAttachment->ShaderReadOnly",
		"gbuffer arm ColorAttachment->ShaderReadOnly",
		"swap image 0 Undefined->ColorAttachment",
		"pass lighting",
		"swap image 0 ColorAttachment->ColorAttachment",
		"gbuffer depth DepthAttachment->DepthAttachment",
		"pass forward",
		"swap image 0 ColorAttachment->Present",
	}
	if got := trace(f.dev.Events()); !reflect.DeepEqual(got, expected) {
		t.Fatalf("first frame:\nexpected %q\ngot      %q", expected, got)
	}

	f.dev.ClearEvents()
	f.frame(t)
	got := trace(f.dev.Events())
	if got[0] != "gbuffer position ShaderReadOnly->ColorAttachment" {
		t.Errorf("second frame starts with %q", got[0])
	}
	if got[4] != "gbuffer depth DepthAttachment->DepthAttachment" {
		t.Errorf("second frame depth barrier is %q", got[4])
	}
	if got[10] != "swap image 1 Undefined->ColorAttachment" {
		t.Errorf("second frame swap barrier is %q", got[10])
	}
	if f.r.State() != StateIdle {
		t.Errorf("expected idle between frames, got %s", f.r.State())
	}
}

func TestRenderFrameDrawOrder(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	dir := t.TempDir()
	albedo := writePNG(t, dir, "albedo.png", color.White)
	mesh := quadMesh(t, f, "quad")
	solid := f.material(t, "solid", MaterialDesc{Albedo: albedo})
	glass := f.material(t, "glass", MaterialDesc{Albedo: albedo, Transparent: true})
	moved := mgl32.Translate3D(1, 2, 3)
	f.scene.Add(DrawItem{Mesh: mesh, Material: glass, Transform: mgl32.Ident4()})
	f.scene.Add(DrawItem{Mesh: mesh, Material: solid, Transform: moved})
	f.scene.Add(DrawItem{Mesh: mesh, Material: solid, Transform: mgl32.Ident4()})
	f.dev.ClearEvents()

	f.frame(t)
	var draws []string
	for _, e := range f.dev.Events() {
		if e.Op == soft.OpDraw || e.Op == soft.OpDrawIndexed {
			draws = append(draws, fmt.Sprintf("%s %s %d", e.Op, e.Label, e.Count))
		}
	}
	expected := []string{
		"draw-indexed gbuffer 6",
		"draw-indexed gbuffer 6",
		"draw lighting 3",
		"draw skybox 36",
		"draw-indexed transparent 6",
	}
	if !reflect.DeepEqual(draws, expected) {
		t.Fatalf("expected draws %q, got %q", expected, draws)
	}

	binds := labels(f.dev.EventsOf(soft.OpBindPipeline))
	if want := []string{"gbuffer", "lighting", "skybox", "transparent"}; !reflect.DeepEqual(binds, want) {
		t.Errorf("expected pipeline binds %q, got %q", want, binds)
	}

	pushes := f.dev.EventsOf(soft.OpPushConstants)
	if len(pushes) != 4 {
		t.Fatalf("expected 4 push constant updates, got %d", len(pushes))
	}
	if got := gpu.DecodeMat4(pushes[0].Data); !nearMat4(got, moved, 1e-6) {
		t.Errorf("first opaque item pushed %v, expected its transform", got)
	}
}

func TestRenderFrameDrawFuncReplacesIndexedDraw(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	albedo := writePNG(t, t.TempDir(), "albedo.png", color.White)
	mesh := quadMesh(t, f, "quad")
	var seen *gpu.GraphicsPipeline
	f.scene.Add(DrawItem{
		Mesh:     mesh,
		Material: f.material(t, "solid", MaterialDesc{Albedo: albedo}),
		Draw: func(cmd gpu.CommandBuffer, item *DrawItem, p *gpu.GraphicsPipeline) {
			seen = p
			cmd.PushConstants(p.Handle(), gpu.StageVertex, 0, gpu.EncodeMat4(nil, item.Transform))
			cmd.BindVertexBuffer(item.Mesh.Vertices, 0)
			cmd.BindIndexBuffer(item.Mesh.Indices, 0, gpu.IndexUint32)
			cmd.DrawIndexed(3, 1, 0, 0, 0)
		},
	})
	f.dev.ClearEvents()

	f.frame(t)
	if seen != f.r.opaque.Get() {
		t.Errorf("draw func did not receive the geometry pipeline")
	}
	draws := f.dev.EventsOf(soft.OpDrawIndexed)
	if len(draws) != 1 || draws[0].Count != 3 {
		t.Errorf("expected one custom draw of 3 indices, got %+v", draws)
	}
}

func TestRenderFrameFillsBackgroundWithSkybox(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	f.frame(t)
	if err := f.dev.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}

	presented := f.presenter.Presented()
	if len(presented) != 1 {
		t.Fatalf("expected one presented image, got %v", presented)
	}
	px, ext, err := f.dev.ReadPixels(f.presenter.Images()[presented[0]], 0, 0)
	if err != nil {
		t.Fatalf("ReadPixels failed: %v", err)
	}
	// A constant white environment tone-maps to one half.
	for i := 0; i < ext.Width*ext.Height; i++ {
		for c := 0; c < 3; c++ {
			if v := px[i*4+c]; math32.Abs(v-0.5) > 0.02 {
				t.Fatalf("pixel %d channel %d: expected 0.5, got %v", i, c, v)
			}
		}
	}
}

func TestRenderFrameOutOfDateRebuilds(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	f.frame(t)
	f.r.SurfaceExtent = func() gpu.Extent { return gpu.Extent{Width: 16, Height: 12} }
	f.presenter.InvalidateNext()
	f.dev.ClearEvents()

	if err := f.r.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	events := f.dev.Events()
	waitIdle, recreate := -1, -1
	for i, e := range events {
		switch e.Op {
		case soft.OpWaitIdle:
			if recreate < 0 {
				waitIdle = i
			}
		case soft.OpRecreate:
			recreate = i
		case soft.OpSubmit, soft.OpPresent:
			t.Errorf("frame was not skipped: %s at %d", e.Op, i)
		}
	}
	if waitIdle < 0 || recreate < waitIdle {
		t.Fatalf("expected wait-idle before recreate, got wait-idle at %d and recreate at %d", waitIdle, recreate)
	}
	if got := f.presenter.Extent(); got != (gpu.Extent{Width: 16, Height: 12}) {
		t.Errorf("presenter extent is %v", got)
	}
	if got := f.r.gbuffer.Extent(); got != (gpu.Extent{Width: 16, Height: 12}) {
		t.Errorf("G-buffer extent is %v", got)
	}
	if got := f.r.Camera().AspectRatio; math32.Abs(got-16.0/12.0) > 1e-6 {
		t.Errorf("camera aspect ratio is %v", got)
	}

	f.frame(t)
	if got := len(f.presenter.Presented()); got != 2 {
		t.Errorf("expected 2 presented frames, got %d", got)
	}
}

func TestResizeDefersZeroExtent(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	extent := gpu.Extent{}
	f.r.SurfaceExtent = func() gpu.Extent { return extent }
	if err := f.r.Resize(extent); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	f.dev.ClearEvents()

	if err := f.r.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	if n := len(f.dev.EventsOf(soft.OpSubmit)); n != 0 {
		t.Fatalf("expected no submission while minimized, got %d", n)
	}

	extent = gpu.Extent{Width: 10, Height: 10}
	f.frame(t)
	if len(f.dev.EventsOf(soft.OpRecreate)) != 1 {
		t.Errorf("expected one recreate")
	}
	if len(f.presenter.Presented()) != 1 {
		t.Errorf("expected the frame after restore to present")
	}
}

func TestReplacedMaterialOutlivesFramesInFlight(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	dir := t.TempDir()
	mesh := quadMesh(t, f, "quad")
	red, err := f.r.Materials().Create("red", MaterialDesc{Albedo: writePNG(t, dir, "red.png", color.NRGBA{R: 255, G: 0, B: 0, A: 255})})
	if err != nil {
		t.Fatal(err)
	}
	blue := f.material(t, "blue", MaterialDesc{Albedo: writePNG(t, dir, "blue.png", color.NRGBA{R: 0, G: 0, B: 255, A: 255})})
	i := f.scene.Add(DrawItem{Mesh: mesh, Material: red, Transform: mgl32.Ident4()})
	f.frame(t)
	f.frame(t)

	f.scene.Item(i).Material = f.r.Materials().Replace(red, blue)
	queue := f.r.ReclaimQueue()
	// The material set and the red texture.
	if got := queue.Pending(); got != 2 {
		t.Fatalf("expected 2 retired objects, got %d", got)
	}
	for n := 1; n <= 2; n++ {
		f.frame(t)
		if got := queue.Pending(); got != 2 {
			t.Fatalf("after %d frames: expected the retired objects to survive, %d pending", n, got)
		}
	}
	f.frame(t)
	if got := queue.Pending(); got != 0 {
		t.Fatalf("expected retired objects destroyed after %d frames, %d pending", testConfig().FramesInFlight+1, got)
	}
	if v := f.dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func TestShaderReloadSwapsPipelines(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	albedo := writePNG(t, t.TempDir(), "albedo.png", color.White)
	f.scene.Add(DrawItem{Mesh: quadMesh(t, f, "quad"), Material: f.material(t, "solid", MaterialDesc{Albedo: albedo}), Transform: mgl32.Ident4()})
	f.frame(t)

	lighting, opaque := f.r.lighting.Get(), f.r.opaque.Get()
	f.r.RequestShaderReload()
	f.dev.ClearEvents()
	f.frame(t)

	if f.r.lighting.Get() == lighting || f.r.opaque.Get() == opaque {
		t.Fatal("pipelines were not rebuilt")
	}
	events := f.dev.Events()
	if events[0].Op != soft.OpWaitIdle {
		t.Errorf("expected reload to wait for the device first, got %s", events[0].Op)
	}
	if n := len(f.dev.EventsOf(soft.OpDrawIndexed)); n != 1 {
		t.Errorf("expected the material to draw with the rebuilt pipeline, got %d draws", n)
	}
}

func TestRenderFramesInFlight(t *testing.T) {
	for fif := 1; fif <= 3; fif++ {
		t.Run(fmt.Sprintf("%d frames", fif), func(t *testing.T) {
			cfg := testConfig()
			cfg.FramesInFlight = fif
			f := newFixture(t, cfg, true)
			for i := 0; i < 6; i++ {
				f.frame(t)
			}
			if got := f.dev.MaxPending(); got > fif {
				t.Errorf("expected at most %d pending submissions, saw %d", fif, got)
			}
			if got := f.presenter.Presented(); !reflect.DeepEqual(got, []int{0, 1, 2, 0, 1, 2}) {
				t.Errorf("unexpected presentation order %v", got)
			}
		})
	}
}

func TestSetEnvironmentRetiresPrevious(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	f.frame(t)
	old := f.r.env
	if err := f.r.SetEnvironment(ibl.ConstantPanorama(16, 8, [3]float32{0.5, 0.5, 0.5})); err != nil {
		t.Fatalf("SetEnvironment failed: %v", err)
	}
	if f.r.env == old {
		t.Fatal("environment was not replaced")
	}
	if f.r.ReclaimQueue().Pending() != 1 {
		t.Errorf("expected the previous maps to be retired")
	}
	f.frame(t)
}

func TestFrameStateString(t *testing.T) {
	if StateGeometryPass.String() != "geometry pass" {
		t.Errorf("unexpected name %q", StateGeometryPass.String())
	}
	if FrameState(42).String() != "FrameState(42)" {
		t.Errorf("unexpected name %q", FrameState(42).String())
	}
}

func TestSwapImageTransitionFollowsAcquireWait(t *testing.T) {
	f := newFixture(t, testConfig(), true)
	f.dev.ClearEvents()
	f.frame(t)

	found := false
	for _, e := range f.dev.EventsOf(soft.OpBarrier) {
		if !strings.HasPrefix(e.Label, "swap image") || e.Barrier.Old != gpu.LayoutUndefined {
			continue
		}
		found = true
		// The frame waits for the acquired image at color output.
		if e.Barrier.SrcStage&gpu.SyncColorOutput == 0 {
			t.Errorf("%s: source stages %v do not include color output", e.Label, e.Barrier.SrcStage)
		}
	}
	if !found {
		t.Fatal("no swap image transition recorded")
	}
}
