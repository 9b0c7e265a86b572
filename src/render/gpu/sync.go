package gpu

import (
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

func (d *Device) CreateSemaphore() (vulkan.Semaphore, error) {
	info := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
	var sem vulkan.Semaphore
	if err := render.NewError("create semaphore", vulkan.CreateSemaphore(d.handle, &info, nil, &sem)); err != nil {
		return vulkan.Semaphore(vulkan.NullHandle), err
	}
	return sem, nil
}

func (d *Device) DestroySemaphore(sem vulkan.Semaphore) {
	vulkan.DestroySemaphore(d.handle, sem, nil)
}

func (d *Device) CreateFence(signaled bool) (vulkan.Fence, error) {
	info := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var fence vulkan.Fence
	if err := render.NewError("create fence", vulkan.CreateFence(d.handle, &info, nil, &fence)); err != nil {
		return vulkan.Fence(vulkan.NullHandle), err
	}
	return fence, nil
}

func (d *Device) DestroyFence(fence vulkan.Fence) {
	vulkan.DestroyFence(d.handle, fence, nil)
}

func (d *Device) WaitForFence(fence vulkan.Fence) error {
	return render.NewError("wait for fence",
		vulkan.WaitForFences(d.handle, 1, []vulkan.Fence{fence}, vulkan.True, vulkan.MaxUint64))
}

func (d *Device) ResetFence(fence vulkan.Fence) error {
	return render.NewError("reset fence", vulkan.ResetFences(d.handle, 1, []vulkan.Fence{fence}))
}
