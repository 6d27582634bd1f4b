// Package engine owns the window and the frame loop around the renderer.
package engine

import (
	"runtime"
	"time"

	"GopherPBR/internal/behaviour"
	"GopherPBR/internal/gpu"
	"GopherPBR/internal/gpu/vulkan"
	"GopherPBR/internal/ibl"
	"GopherPBR/internal/logger"
	"GopherPBR/internal/renderer"
	"GopherPBR/internal/shaders"

	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"
)

// shaderReloadDelay coalesces the burst of writes a shader compiler makes.
const shaderReloadDelay = 150 * time.Millisecond

// Gopher opens a window, creates the Vulkan device and the renderer, and
// runs the frame loop until the window closes.
type Gopher struct {
	Config renderer.Config
	// Debug enables the validation layers.
	Debug bool
	// Panorama is an equirectangular HDR image for the environment. Empty
	// uses a uniform gray sky.
	Panorama string
	Scene    *renderer.StaticScene
	Camera   *renderer.Camera
	// Behaviours are updated once per frame, before the frame is recorded.
	Behaviours *behaviour.Manager
	// EnableCameraInput lets WASD and right-drag move the camera.
	EnableCameraInput bool

	window    *glfw.Window
	dev       *vulkan.Device
	presenter *vulkan.Presenter
	rend      *renderer.Renderer
	watcher   *shaders.Watcher

	onSetup          func(g *Gopher) error
	onRenderCallback func(deltaTime float64)
	onClose          func(g *Gopher)
	onPick           func(index int)

	resized      bool
	dragging     bool
	lastX, lastY float64
}

func NewGopher(cfg renderer.Config) *Gopher {
	logger.Log.Info("GopherPBR initializing...")
	return &Gopher{
		Config:            cfg,
		Scene:             renderer.NewStaticScene(),
		Camera:            renderer.NewDefaultCamera(cfg.Width, cfg.Height),
		Behaviours:        behaviour.NewManager(),
		EnableCameraInput: true,
	}
}

// SetOnSetup registers fn to populate the scene once the renderer exists.
func (g *Gopher) SetOnSetup(fn func(g *Gopher) error) { g.onSetup = fn }

// SetOnRenderCallback registers fn to run before every frame.
func (g *Gopher) SetOnRenderCallback(fn func(deltaTime float64)) { g.onRenderCallback = fn }

// SetOnClose registers fn to release scene resources. It runs with the
// device idle, before the renderer closes.
func (g *Gopher) SetOnClose(fn func(g *Gopher)) { g.onClose = fn }

// SetOnPick registers fn to receive the scene index of left-clicked items.
func (g *Gopher) SetOnPick(fn func(index int)) { g.onPick = fn }

func (g *Gopher) Renderer() *renderer.Renderer { return g.rend }
func (g *Gopher) Window() *glfw.Window         { return g.window }

func (g *Gopher) framebufferExtent() gpu.Extent {
	w, h := g.window.GetFramebufferSize()
	return gpu.Extent{Width: w, Height: h}
}

// Run blocks on the calling goroutine, which it locks to the main thread.
func (g *Gopher) Run() (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	g.window, err = glfw.CreateWindow(g.Config.Width, g.Config.Height, g.Config.Title, nil, nil)
	if err != nil {
		return err
	}
	defer g.window.Destroy()
	styleTitleBar(g.window, g.Config.ClearColor)

	g.dev, g.presenter, err = vulkan.New(g.window,
		vulkan.WithValidation(g.Debug),
		vulkan.WithAppName(g.Config.Title),
		vulkan.WithImageCount(g.Config.FramesInFlight+1))
	if err != nil {
		return err
	}
	defer g.dev.Destroy()
	defer g.presenter.Destroy()

	ext := g.presenter.Extent()
	g.Camera.Resize(ext.Width, ext.Height)
	g.rend, err = renderer.New(g.dev, g.presenter, g.Config, g.Scene, g.Camera)
	if err != nil {
		return err
	}
	g.rend.SurfaceExtent = g.framebufferExtent
	defer func() {
		if cerr := g.rend.Close(); err == nil {
			err = cerr
		}
	}()

	if err := g.loadEnvironment(); err != nil {
		return err
	}
	// Scene resources go before the renderer, with the device idle.
	defer func() {
		if g.onClose != nil {
			if werr := g.dev.WaitIdle(); werr != nil {
				logger.Log.Error("Wait idle failed", zap.Error(werr))
			}
			g.onClose(g)
		}
	}()
	if g.onSetup != nil {
		if err := g.onSetup(g); err != nil {
			return err
		}
	}
	if g.Config.HotReload {
		g.watcher, err = shaders.Watch(g.Config.ShaderDir, shaderReloadDelay, func(files []string) {
			logger.Log.Info("Shader binaries changed", zap.Strings("files", files))
			g.rend.RequestShaderReload()
		})
		if err != nil {
			return err
		}
		defer g.watcher.Close()
	}

	g.installCallbacks()
	return g.renderLoop()
}

func (g *Gopher) loadEnvironment() error {
	var pano *ibl.Panorama
	if g.Panorama == "" {
		pano = ibl.ConstantPanorama(64, 32, [3]float32{0.5, 0.5, 0.5})
	} else {
		var err error
		if pano, err = ibl.LoadPanorama(g.Panorama); err != nil {
			return err
		}
	}
	return g.rend.SetEnvironment(pano)
}

func (g *Gopher) installCallbacks() {
	g.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		g.resized = true
	})
	g.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})
	g.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft && action == glfw.Press {
			g.pick(w)
			return
		}
		if button != glfw.MouseButtonRight {
			return
		}
		g.dragging = action == glfw.Press
		if g.dragging {
			g.lastX, g.lastY = w.GetCursorPos()
		}
	})
	g.window.SetCursorPosCallback(g.mouseCallback)
}

// pick logs the item under the cursor and passes its index to the pick
// callback.
func (g *Gopher) pick(w *glfw.Window) {
	x, y := w.GetCursorPos()
	width, height := w.GetSize()
	if width == 0 || height == 0 {
		return
	}
	i, dist, ok := g.Scene.Pick(g.Camera.ScreenRay(float32(x), float32(y), width, height))
	if !ok {
		return
	}
	item := g.Scene.Item(i)
	logger.Log.Info("Item picked",
		zap.Int("index", i),
		zap.String("mesh", item.Mesh.Label),
		zap.String("material", item.Material.Name),
		zap.Float32("distance", dist))
	if g.onPick != nil {
		g.onPick(i)
	}
}

// mouseCallback rotates the camera while the right button is held.
func (g *Gopher) mouseCallback(_ *glfw.Window, xpos, ypos float64) {
	if !g.EnableCameraInput || !g.dragging {
		return
	}
	xoffset := xpos - g.lastX
	yoffset := g.lastY - ypos
	g.lastX, g.lastY = xpos, ypos
	g.Camera.ProcessMouseMovement(float32(xoffset), float32(yoffset), true)
}

func (g *Gopher) renderLoop() error {
	last := time.Now()
	frames := 0
	for !g.window.ShouldClose() {
		glfw.PollEvents()
		now := time.Now()
		deltaTime := now.Sub(last).Seconds()
		last = now

		if g.resized {
			g.resized = false
			if err := g.rend.Resize(g.framebufferExtent()); err != nil {
				return err
			}
		}
		if ext := g.framebufferExtent(); ext.Width == 0 || ext.Height == 0 {
			// Minimized: nothing to present until the size comes back.
			glfw.WaitEvents()
			continue
		}
		if g.EnableCameraInput {
			g.Camera.ProcessKeyboard(g.window, float32(deltaTime))
		}
		g.Behaviours.UpdateAll(deltaTime)
		if g.onRenderCallback != nil {
			g.onRenderCallback(deltaTime)
		}
		if err := g.rend.RenderFrame(); err != nil {
			return err
		}
		frames++
	}
	logger.Log.Info("Window closed", zap.Int("frames", frames))
	return nil
}
