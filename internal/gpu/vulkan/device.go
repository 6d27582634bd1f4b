// Package vulkan implements gpu.Device and gpu.Presenter on vulkan-go, with
// a GLFW window surface. It maps the device abstraction one to one onto
// Vulkan objects and keeps no layout state of its own: every transition is
// recorded by the caller through gpu.Transition.
package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	"GopherPBR/internal/gpu"
	"GopherPBR/internal/logger"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
	"go.uber.org/zap"
)

const swapchainExtension = "VK_KHR_swapchain\x00"

var validationLayers = []string{"VK_LAYER_KHRONOS_validation\x00"}

var (
	_ gpu.Device    = (*Device)(nil)
	_ gpu.Presenter = (*Presenter)(nil)
)

// vkError turns a failed result into an error naming the call.
func vkError(res vk.Result, call string) error {
	if res == vk.Success {
		return nil
	}
	return fmt.Errorf("vulkan: %s: %w", call, vk.Error(res))
}

type Option func(*options)

type options struct {
	appName    string
	validation bool
	images     int
	maxSets    int
}

// WithValidation enables the Khronos validation layer.
func WithValidation(on bool) Option {
	return func(o *options) { o.validation = on }
}

// WithAppName sets the application name reported to the driver.
func WithAppName(name string) Option {
	return func(o *options) { o.appName = name }
}

// WithImageCount requests a number of swapchain images.
func WithImageCount(n int) Option {
	return func(o *options) { o.images = n }
}

// WithMaxSets sizes the descriptor pool.
func WithMaxSets(n int) Option {
	return func(o *options) { o.maxSets = n }
}

// Device is a logical Vulkan device with one graphics queue that can also
// present to the window surface.
type Device struct {
	window    *glfw.Window
	instance  vk.Instance
	surface   vk.Surface
	physical  vk.PhysicalDevice
	device    vk.Device
	queue     vk.Queue
	family    uint32
	cmdPool   vk.CommandPool
	descPool  vk.DescriptorPool
	memory    vk.PhysicalDeviceMemoryProperties
	name      string
	destroyed bool
}

// New opens a device for the window and creates the swapchain presenter.
// The window must have been created with the NoAPI client hint.
func New(window *glfw.Window, opts ...Option) (*Device, *Presenter, error) {
	o := options{appName: "GopherPBR", images: 3, maxSets: 256}
	for _, fn := range opts {
		fn(&o)
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, nil, fmt.Errorf("vulkan: init loader: %w", err)
	}

	d := &Device{window: window}
	steps := []func(options) error{
		d.createInstance,
		d.createSurface,
		d.pickPhysicalDevice,
		d.createLogicalDevice,
		d.createPools,
	}
	for _, step := range steps {
		if err := step(o); err != nil {
			d.Destroy()
			return nil, nil, err
		}
	}

	w, h := window.GetFramebufferSize()
	p, err := newPresenter(d, gpu.Extent{Width: w, Height: h}, o.images)
	if err != nil {
		d.Destroy()
		return nil, nil, err
	}
	logger.Log.Info("Vulkan device opened",
		zap.String("gpu", d.name),
		zap.Uint32("queueFamily", d.family),
		zap.Int("swapImages", len(p.images)),
		zap.Bool("validation", o.validation))
	return d, p, nil
}

func (d *Device) createInstance(o options) error {
	exts := d.window.GetRequiredInstanceExtensions()
	info := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   o.appName + "\x00",
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        "GopherPBR\x00",
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         vk.ApiVersion10,
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	if o.validation {
		info.EnabledLayerCount = uint32(len(validationLayers))
		info.PpEnabledLayerNames = validationLayers
	}
	var instance vk.Instance
	if err := vkError(vk.CreateInstance(&info, nil, &instance), "create instance"); err != nil {
		return err
	}
	d.instance = instance
	return vk.InitInstance(instance)
}

func (d *Device) createSurface(options) error {
	addr, err := d.window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return fmt.Errorf("vulkan: create window surface: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(addr)
	return nil
}

// pickPhysicalDevice takes the first device with a queue family that both
// draws and presents, preferring discrete GPUs.
func (d *Device) pickPhysicalDevice(options) error {
	var count uint32
	vk.EnumeratePhysicalDevices(d.instance, &count, nil)
	if count == 0 {
		return errors.New("vulkan: no GPU with Vulkan support")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(d.instance, &count, devices)

	found := false
	for _, pd := range devices {
		family, ok := d.graphicsPresentFamily(pd)
		if !ok || !supportsSwapchain(pd) {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		discrete := props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
		if !found || discrete {
			d.physical, d.family = pd, family
			d.name = vk.ToString(props.DeviceName[:])
			found = true
		}
		props.Free()
		if discrete {
			break
		}
	}
	if !found {
		return errors.New("vulkan: no GPU can draw and present to the window surface")
	}
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()
	return nil
}

func (d *Device) graphicsPresentFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i, f := range families {
		f.Deref()
		graphics := f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		f.Free()
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &present)
		if graphics && present.B() {
			return uint32(i), true
		}
	}
	return 0, false
}

func supportsSwapchain(pd vk.PhysicalDevice) bool {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil)
	exts := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(pd, "", &count, exts)
	for _, e := range exts {
		e.Deref()
		name := vk.ToString(e.ExtensionName[:])
		e.Free()
		if name+"\x00" == swapchainExtension {
			return true
		}
	}
	return false
}

func (d *Device) createLogicalDevice(o options) error {
	info := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.family,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		}},
		EnabledExtensionCount:   1,
		PpEnabledExtensionNames: []string{swapchainExtension},
	}
	if o.validation {
		info.EnabledLayerCount = uint32(len(validationLayers))
		info.PpEnabledLayerNames = validationLayers
	}
	var device vk.Device
	if err := vkError(vk.CreateDevice(d.physical, &info, nil, &device), "create device"); err != nil {
		return err
	}
	d.device = device
	var queue vk.Queue
	vk.GetDeviceQueue(device, d.family, 0, &queue)
	d.queue = queue
	return nil
}

func (d *Device) createPools(o options) error {
	var cmdPool vk.CommandPool
	res := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}, nil, &cmdPool)
	if err := vkError(res, "create command pool"); err != nil {
		return err
	}
	d.cmdPool = cmdPool

	n := uint32(o.maxSets)
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 8 * n},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: n},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: n},
	}
	var descPool vk.DescriptorPool
	res = vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       n,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &descPool)
	if err := vkError(res, "create descriptor pool"); err != nil {
		return err
	}
	d.descPool = descPool
	return nil
}

func (d *Device) Name() string { return d.name }

// memoryType returns the first memory type allowed by bits that has all of
// the requested properties.
func (d *Device) memoryType(bits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	want := vk.MemoryPropertyFlags(props)
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		t := d.memory.MemoryTypes[i]
		t.Deref()
		if bits&(1<<i) != 0 && t.PropertyFlags&want == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vulkan: no memory type with properties %#x", uint32(props))
}

func (d *Device) allocate(req vk.MemoryRequirements, props vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	req.Deref()
	index, err := d.memoryType(req.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	var mem vk.DeviceMemory
	res := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: index,
	}, nil, &mem)
	if err := vkError(res, "allocate memory"); err != nil {
		return nil, err
	}
	return mem, nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	cmds := make([]vk.CommandBuffer, len(info.Commands))
	for i, c := range info.Commands {
		cmds[i] = c.(*commandBuffer).handle
	}
	wait := semaphores(info.Wait)
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = stageFlags(s)
	}
	signal := semaphores(info.Signal)
	fence := vk.NullFence
	if info.Fence != nil {
		fence = info.Fence.(*fenceObj).handle
	}
	res := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}, fence)
	return vkError(res, "queue submit")
}

func (d *Device) WaitIdle() error {
	return vkError(vk.DeviceWaitIdle(d.device), "device wait idle")
}

// Destroy waits for the queue and releases the device. Objects created from
// the device must have been destroyed first.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		if d.descPool != nil {
			vk.DestroyDescriptorPool(d.device, d.descPool, nil)
		}
		if d.cmdPool != nil {
			vk.DestroyCommandPool(d.device, d.cmdPool, nil)
		}
		vk.DestroyDevice(d.device, nil)
	}
	if d.instance != nil {
		if d.surface != nil {
			vk.DestroySurface(d.instance, d.surface, nil)
		}
		vk.DestroyInstance(d.instance, nil)
	}
	logger.Log.Info("Vulkan device closed", zap.String("gpu", d.name))
}

func semaphores(s []gpu.Semaphore) []vk.Semaphore {
	out := make([]vk.Semaphore, len(s))
	for i, sem := range s {
		out[i] = sem.(*semaphore).handle
	}
	return out
}

// mapped copies data into host-visible memory at offset.
func (d *Device) mapped(mem vk.DeviceMemory, offset int, data []byte) error {
	var ptr unsafe.Pointer
	res := vk.MapMemory(d.device, mem, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr)
	if err := vkError(res, "map memory"); err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.device, mem)
	return nil
}
