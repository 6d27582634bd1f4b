package vulkan

import (
	"GopherPBR/internal/gpu"

	vk "github.com/vulkan-go/vulkan"
)

type fenceObj struct {
	dev       *Device
	handle    vk.Fence
	destroyed bool
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if err := vkError(vk.CreateFence(d.device, &info, nil, &handle), "create fence"); err != nil {
		return nil, err
	}
	return &fenceObj{dev: d, handle: handle}, nil
}

func (f *fenceObj) Wait() error {
	return vkError(vk.WaitForFences(f.dev.device, 1, []vk.Fence{f.handle}, vk.True, vk.MaxUint64), "wait fence")
}

func (f *fenceObj) Reset() error {
	return vkError(vk.ResetFences(f.dev.device, 1, []vk.Fence{f.handle}), "reset fence")
}

func (f *fenceObj) Signaled() bool {
	return vk.GetFenceStatus(f.dev.device, f.handle) == vk.Success
}

func (f *fenceObj) Destroy() {
	if f.destroyed {
		return
	}
	f.destroyed = true
	vk.DestroyFence(f.dev.device, f.handle, nil)
}

type semaphore struct {
	dev       *Device
	handle    vk.Semaphore
	destroyed bool
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	var handle vk.Semaphore
	res := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &handle)
	if err := vkError(res, "create semaphore"); err != nil {
		return nil, err
	}
	return &semaphore{dev: d, handle: handle}, nil
}

func (s *semaphore) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	vk.DestroySemaphore(s.dev.device, s.handle, nil)
}
