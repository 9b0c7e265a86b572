package render

import (
	"github.com/vulkan-go/vulkan"
)

// Buffer is a buffer handle together with the memory bound to it. The
// handle is destroyed before the memory is freed.
type Buffer struct {
	Handle vulkan.Buffer
	Memory vulkan.DeviceMemory
	Size   vulkan.DeviceSize
	Usage  vulkan.BufferUsageFlags
}

// ImageSpec describes an optimally tiled, device-local 2D image.
type ImageSpec struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Samples   vulkan.SampleCountFlagBits
	Format    vulkan.Format
	Usage     vulkan.ImageUsageFlags
	Aspect    vulkan.ImageAspectFlags
}

// Image is an image, its memory and a view over every mip level.
type Image struct {
	Handle vulkan.Image
	Memory vulkan.DeviceMemory
	View   vulkan.ImageView
	Spec   ImageSpec
}

// Texture is a sampled image.
type Texture struct {
	Image   Image
	Sampler vulkan.Sampler
}

// ImageBarrier is a layout transition over a range of mip levels.
type ImageBarrier struct {
	Image      vulkan.Image
	Aspect     vulkan.ImageAspectFlags
	BaseLevel  uint32
	LevelCount uint32
	OldLayout  vulkan.ImageLayout
	NewLayout  vulkan.ImageLayout
	SrcAccess  vulkan.AccessFlags
	DstAccess  vulkan.AccessFlags
	SrcStage   vulkan.PipelineStageFlags
	DstStage   vulkan.PipelineStageFlags
}

// MipBlit downsamples level SrcLevel into SrcLevel+1 of the same image with
// a linear filter.
type MipBlit struct {
	SrcLevel uint32
	Src      MipLevel
	Dst      MipLevel
}

// RenderPassBegin is everything needed to open the render pass for one
// frame.
type RenderPassBegin struct {
	RenderPass  vulkan.RenderPass
	Framebuffer vulkan.Framebuffer
	Extent      vulkan.Extent2D
	ClearColor  [4]float32
	ClearDepth  float32
}

// SubmitSync lists the semaphores and fence attached to a queue submission.
// Zero handles are skipped.
type SubmitSync struct {
	Wait      vulkan.Semaphore
	WaitStage vulkan.PipelineStageFlags
	Signal    vulkan.Semaphore
	Fence     vulkan.Fence
}

// QueueFamilies holds the queue family indices chosen for the device.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
}

// SurfaceSupport is what the surface reports for the selected device.
type SurfaceSupport struct {
	Capabilities vulkan.SurfaceCapabilities
	Formats      []vulkan.SurfaceFormat
	PresentModes []vulkan.PresentMode
}

// Sharing is the image sharing mode of the swapchain images.
type Sharing struct {
	Mode     vulkan.SharingMode
	Families []uint32
}

// SwapchainConfig is the fully resolved set of swapchain parameters.
type SwapchainConfig struct {
	Format      vulkan.SurfaceFormat
	PresentMode vulkan.PresentMode
	Extent      vulkan.Extent2D
	ImageCount  uint32
	Sharing     Sharing
	Transform   vulkan.SurfaceTransformFlagBits
}

// MemoryDevice creates and maps buffers and images.
type MemoryDevice interface {
	CreateBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlags) (Buffer, error)
	DestroyBuffer(buf Buffer)
	// MapMemory returns a host window over the first size bytes of mem. The
	// window stays valid until UnmapMemory.
	MapMemory(mem vulkan.DeviceMemory, size vulkan.DeviceSize) ([]byte, error)
	UnmapMemory(mem vulkan.DeviceMemory)
	CreateImage(spec ImageSpec) (Image, error)
	DestroyImage(img Image)
	SupportsLinearBlit(format vulkan.Format) bool
}

// CommandDevice allocates command buffers and submits them to the graphics
// queue.
type CommandDevice interface {
	AllocateCommandBuffers(count int) ([]vulkan.CommandBuffer, error)
	FreeCommandBuffers(cbs []vulkan.CommandBuffer)
	BeginCommandBuffer(cb vulkan.CommandBuffer, oneTime bool) error
	EndCommandBuffer(cb vulkan.CommandBuffer) error
	ResetCommandBuffer(cb vulkan.CommandBuffer) error
	Submit(cb vulkan.CommandBuffer, sync SubmitSync) error
	WaitQueueIdle() error
}

// Recorder records commands into a command buffer in the recording state.
type Recorder interface {
	CmdCopyBuffer(cb vulkan.CommandBuffer, src, dst vulkan.Buffer, size vulkan.DeviceSize)
	CmdCopyBufferToImage(cb vulkan.CommandBuffer, src vulkan.Buffer, dst Image)
	CmdImageBarrier(cb vulkan.CommandBuffer, barrier ImageBarrier)
	CmdBlitMip(cb vulkan.CommandBuffer, img Image, blit MipBlit)
	CmdBeginRenderPass(cb vulkan.CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb vulkan.CommandBuffer)
	CmdBindPipeline(cb vulkan.CommandBuffer, pipeline vulkan.Pipeline)
	CmdBindGeometry(cb vulkan.CommandBuffer, vertices, indices vulkan.Buffer)
	CmdBindDescriptorSet(cb vulkan.CommandBuffer, layout vulkan.PipelineLayout, set vulkan.DescriptorSet)
	CmdSetViewportScissor(cb vulkan.CommandBuffer, extent vulkan.Extent2D)
	CmdDrawIndexed(cb vulkan.CommandBuffer, indexCount uint32)
}

// SyncDevice owns semaphores and fences. Fence waits are unbounded.
type SyncDevice interface {
	CreateSemaphore() (vulkan.Semaphore, error)
	DestroySemaphore(sem vulkan.Semaphore)
	CreateFence(signaled bool) (vulkan.Fence, error)
	DestroyFence(fence vulkan.Fence)
	WaitForFence(fence vulkan.Fence) error
	ResetFence(fence vulkan.Fence) error
	WaitIdle() error
}

// SwapchainDevice wraps the surface and presentation engine.
type SwapchainDevice interface {
	SurfaceSupport() (SurfaceSupport, error)
	QueueFamilies() QueueFamilies
	CreateSwapchain(cfg SwapchainConfig) (vulkan.Swapchain, []vulkan.Image, error)
	DestroySwapchain(sc vulkan.Swapchain)
	CreateImageView(img vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags, mipLevels uint32) (vulkan.ImageView, error)
	DestroyImageView(view vulkan.ImageView)
	CreateFramebuffer(pass vulkan.RenderPass, attachments []vulkan.ImageView, extent vulkan.Extent2D) (vulkan.Framebuffer, error)
	DestroyFramebuffer(fb vulkan.Framebuffer)
	// AcquireNextImage and QueuePresent hand back the raw result so callers
	// can tell out-of-date and suboptimal apart from real failures.
	AcquireNextImage(sc vulkan.Swapchain, signal vulkan.Semaphore) (uint32, vulkan.Result)
	QueuePresent(sc vulkan.Swapchain, imageIndex uint32, wait vulkan.Semaphore) vulkan.Result
}

// DescriptorDevice allocates and writes the per-frame descriptor sets.
type DescriptorDevice interface {
	CreateDescriptorPool(sets int) (vulkan.DescriptorPool, error)
	DestroyDescriptorPool(pool vulkan.DescriptorPool)
	AllocateDescriptorSets(pool vulkan.DescriptorPool, layout vulkan.DescriptorSetLayout, count int) ([]vulkan.DescriptorSet, error)
	WriteDescriptorSet(set vulkan.DescriptorSet, uniform Buffer, texture Texture)
}

// Device is the full set of operations the renderer needs.
type Device interface {
	MemoryDevice
	CommandDevice
	Recorder
	SyncDevice
	SwapchainDevice
	DescriptorDevice
}
