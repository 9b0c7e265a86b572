package gpu

import (
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

func (d *Device) CreateSwapchain(cfg render.SwapchainConfig) (vulkan.Swapchain, []vulkan.Image, error) {
	info := vulkan.SwapchainCreateInfo{
		SType:                 vulkan.StructureTypeSwapchainCreateInfo,
		Surface:               d.surface,
		MinImageCount:         cfg.ImageCount,
		ImageFormat:           cfg.Format.Format,
		ImageColorSpace:       cfg.Format.ColorSpace,
		ImageExtent:           cfg.Extent,
		ImageArrayLayers:      1,
		ImageUsage:            vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		ImageSharingMode:      cfg.Sharing.Mode,
		QueueFamilyIndexCount: uint32(len(cfg.Sharing.Families)),
		PQueueFamilyIndices:   cfg.Sharing.Families,
		PreTransform:          cfg.Transform,
		CompositeAlpha:        vulkan.CompositeAlphaOpaqueBit,
		PresentMode:           cfg.PresentMode,
		Clipped:               vulkan.True,
		OldSwapchain:          vulkan.NullSwapchain,
	}
	var sc vulkan.Swapchain
	if err := render.NewError("create swapchain", vulkan.CreateSwapchain(d.handle, &info, nil, &sc)); err != nil {
		return vulkan.NullSwapchain, nil, err
	}

	var count uint32
	if err := render.NewError("get swapchain images", vulkan.GetSwapchainImages(d.handle, sc, &count, nil)); err != nil {
		vulkan.DestroySwapchain(d.handle, sc, nil)
		return vulkan.NullSwapchain, nil, err
	}
	images := make([]vulkan.Image, count)
	if err := render.NewError("get swapchain images", vulkan.GetSwapchainImages(d.handle, sc, &count, images)); err != nil {
		vulkan.DestroySwapchain(d.handle, sc, nil)
		return vulkan.NullSwapchain, nil, err
	}
	return sc, images, nil
}

func (d *Device) DestroySwapchain(sc vulkan.Swapchain) {
	vulkan.DestroySwapchain(d.handle, sc, nil)
}

func (d *Device) CreateImageView(img vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags, mipLevels uint32) (vulkan.ImageView, error) {
	info := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: mipLevels,
			LayerCount: 1,
		},
	}
	var view vulkan.ImageView
	if err := render.NewError("create image view", vulkan.CreateImageView(d.handle, &info, nil, &view)); err != nil {
		return vulkan.ImageView(vulkan.NullHandle), err
	}
	return view, nil
}

func (d *Device) DestroyImageView(view vulkan.ImageView) {
	vulkan.DestroyImageView(d.handle, view, nil)
}

func (d *Device) CreateFramebuffer(pass vulkan.RenderPass, attachments []vulkan.ImageView, extent vulkan.Extent2D) (vulkan.Framebuffer, error) {
	info := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vulkan.Framebuffer
	if err := render.NewError("create framebuffer", vulkan.CreateFramebuffer(d.handle, &info, nil, &fb)); err != nil {
		return vulkan.Framebuffer(vulkan.NullHandle), err
	}
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb vulkan.Framebuffer) {
	vulkan.DestroyFramebuffer(d.handle, fb, nil)
}

func (d *Device) AcquireNextImage(sc vulkan.Swapchain, signal vulkan.Semaphore) (uint32, vulkan.Result) {
	var index uint32
	res := vulkan.AcquireNextImage(d.handle, sc, vulkan.MaxUint64, signal, vulkan.Fence(vulkan.NullHandle), &index)
	return index, res
}

func (d *Device) QueuePresent(sc vulkan.Swapchain, imageIndex uint32, wait vulkan.Semaphore) vulkan.Result {
	info := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{sc},
		PImageIndices:      []uint32{imageIndex},
	}
	return vulkan.QueuePresent(d.present, &info)
}
