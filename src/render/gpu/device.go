package gpu

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

// Device is the logical device with its queues and command pool. It
// implements render.Device against a single surface.
type Device struct {
	physical *PhysicalDevice
	handle   vulkan.Device
	surface  vulkan.Surface
	graphics vulkan.Queue
	present  vulkan.Queue
	pool     vulkan.CommandPool
	memProps vulkan.PhysicalDeviceMemoryProperties
}

var _ render.Device = (*Device)(nil)

// NewDevice creates the logical device on pd with one queue per distinct
// family and a resettable command pool on the graphics family.
func NewDevice(pd *PhysicalDevice, surface vulkan.Surface, validation bool) (*Device, error) {
	unique := []uint32{pd.Families.Graphics}
	if pd.Families.Present != pd.Families.Graphics {
		unique = append(unique, pd.Families.Present)
	}
	queueInfos := make([]vulkan.DeviceQueueCreateInfo, 0, len(unique))
	for _, family := range unique {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	features := vulkan.PhysicalDeviceFeatures{}
	if pd.Anisotropy {
		features.SamplerAnisotropy = vulkan.True
	}
	exts := safeStrings(deviceExtensions)
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	if validation {
		layers := safeStrings([]string{validationLayer})
		createInfo.EnabledLayerCount = uint32(len(layers))
		createInfo.PpEnabledLayerNames = layers
	}

	var handle vulkan.Device
	if err := render.NewError("create logical device", vulkan.CreateDevice(pd.Handle, &createInfo, nil, &handle)); err != nil {
		return nil, err
	}

	d := &Device{physical: pd, handle: handle, surface: surface}
	vulkan.GetDeviceQueue(handle, pd.Families.Graphics, 0, &d.graphics)
	vulkan.GetDeviceQueue(handle, pd.Families.Present, 0, &d.present)

	vulkan.GetPhysicalDeviceMemoryProperties(pd.Handle, &d.memProps)
	d.memProps.Deref()
	for i := range d.memProps.MemoryTypes {
		d.memProps.MemoryTypes[i].Deref()
	}

	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: pd.Families.Graphics,
	}
	if err := render.NewError("create command pool", vulkan.CreateCommandPool(handle, &poolInfo, nil, &d.pool)); err != nil {
		vulkan.DestroyDevice(handle, nil)
		return nil, err
	}
	return d, nil
}

func (d *Device) QueueFamilies() render.QueueFamilies {
	return d.physical.Families
}

func (d *Device) SurfaceSupport() (render.SurfaceSupport, error) {
	return querySurfaceSupport(d.physical.Handle, d.surface), nil
}

func (d *Device) WaitIdle() error {
	return render.NewError("wait for device idle", vulkan.DeviceWaitIdle(d.handle))
}

// Destroy releases the command pool and the device. Everything allocated
// from the device must already be released.
func (d *Device) Destroy() {
	vulkan.DestroyCommandPool(d.handle, d.pool, nil)
	vulkan.DestroyDevice(d.handle, nil)
}

// findMemoryType returns the first memory type allowed by typeBits that has
// every flag in props.
func (d *Device) findMemoryType(typeBits uint32, props vulkan.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if d.memProps.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, errors.Wrapf(render.ErrResourceCreation, "no memory type for bits %#x with properties %#x", typeBits, props)
}
