package gpu

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

func (d *Device) CreateBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlags) (render.Buffer, error) {
	info := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var buf vulkan.Buffer
	if err := render.NewError("create buffer", vulkan.CreateBuffer(d.handle, &info, nil, &buf)); err != nil {
		return render.Buffer{}, err
	}

	var req vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(d.handle, buf, &req)
	req.Deref()

	mem, err := d.allocate(req, props)
	if err != nil {
		vulkan.DestroyBuffer(d.handle, buf, nil)
		return render.Buffer{}, errors.Wrap(err, "allocate buffer memory")
	}
	if err := render.NewError("bind buffer memory", vulkan.BindBufferMemory(d.handle, buf, mem, 0)); err != nil {
		vulkan.DestroyBuffer(d.handle, buf, nil)
		vulkan.FreeMemory(d.handle, mem, nil)
		return render.Buffer{}, err
	}
	return render.Buffer{Handle: buf, Memory: mem, Size: size, Usage: usage}, nil
}

func (d *Device) DestroyBuffer(buf render.Buffer) {
	vulkan.DestroyBuffer(d.handle, buf.Handle, nil)
	vulkan.FreeMemory(d.handle, buf.Memory, nil)
}

func (d *Device) MapMemory(mem vulkan.DeviceMemory, size vulkan.DeviceSize) ([]byte, error) {
	var data unsafe.Pointer
	if err := render.NewError("map memory", vulkan.MapMemory(d.handle, mem, 0, size, 0, &data)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), int(size)), nil
}

func (d *Device) UnmapMemory(mem vulkan.DeviceMemory) {
	vulkan.UnmapMemory(d.handle, mem)
}

// CreateImage creates a device-local optimally tiled image with a view
// over all of its mip levels.
func (d *Device) CreateImage(spec render.ImageSpec) (render.Image, error) {
	info := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  spec.Width,
			Height: spec.Height,
			Depth:  1,
		},
		MipLevels:     spec.MipLevels,
		ArrayLayers:   1,
		Format:        spec.Format,
		Tiling:        vulkan.ImageTilingOptimal,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         spec.Usage,
		Samples:       spec.Samples,
		SharingMode:   vulkan.SharingModeExclusive,
	}
	var img vulkan.Image
	if err := render.NewError("create image", vulkan.CreateImage(d.handle, &info, nil, &img)); err != nil {
		return render.Image{}, err
	}

	var req vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(d.handle, img, &req)
	req.Deref()

	mem, err := d.allocate(req, vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vulkan.DestroyImage(d.handle, img, nil)
		return render.Image{}, errors.Wrap(err, "allocate image memory")
	}
	if err := render.NewError("bind image memory", vulkan.BindImageMemory(d.handle, img, mem, 0)); err != nil {
		vulkan.DestroyImage(d.handle, img, nil)
		vulkan.FreeMemory(d.handle, mem, nil)
		return render.Image{}, err
	}

	view, err := d.CreateImageView(img, spec.Format, spec.Aspect, spec.MipLevels)
	if err != nil {
		vulkan.DestroyImage(d.handle, img, nil)
		vulkan.FreeMemory(d.handle, mem, nil)
		return render.Image{}, err
	}
	return render.Image{Handle: img, Memory: mem, View: view, Spec: spec}, nil
}

func (d *Device) DestroyImage(img render.Image) {
	vulkan.DestroyImageView(d.handle, img.View, nil)
	vulkan.DestroyImage(d.handle, img.Handle, nil)
	vulkan.FreeMemory(d.handle, img.Memory, nil)
}

// SupportsLinearBlit reports whether optimally tiled images of format can
// be the source of a linearly filtered blit.
func (d *Device) SupportsLinearBlit(format vulkan.Format) bool {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(d.physical.Handle, format, &props)
	props.Deref()
	return props.OptimalTilingFeatures&vulkan.FormatFeatureFlags(vulkan.FormatFeatureSampledImageFilterLinearBit) != 0
}

func (d *Device) allocate(req vulkan.MemoryRequirements, props vulkan.MemoryPropertyFlags) (vulkan.DeviceMemory, error) {
	typeIndex, err := d.findMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		return vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	info := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}
	var mem vulkan.DeviceMemory
	if err := render.NewError("allocate memory", vulkan.AllocateMemory(d.handle, &info, nil, &mem)); err != nil {
		return vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	return mem, nil
}
