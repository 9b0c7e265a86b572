package render

import (
	"math"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// Window is the part of the platform window the swapchain depends on.
type Window interface {
	// FramebufferSize is the drawable size in pixels. It is zero while the
	// window is minimised.
	FramebufferSize() (width, height int)
	WaitEvents()
}

// Status classifies a non-fatal acquire or present result.
type Status int

const (
	StatusOK Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	default:
		return "ok"
	}
}

func classify(op string, res vulkan.Result) (Status, error) {
	switch res {
	case vulkan.Success:
		return StatusOK, nil
	case vulkan.Suboptimal:
		return StatusSuboptimal, nil
	case vulkan.ErrorOutOfDate:
		return StatusOutOfDate, nil
	default:
		return StatusOK, NewError(op, res)
	}
}

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB in the sRGB non-linear color
// space and otherwise takes the first reported format.
func ChooseSurfaceFormat(formats []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// ChoosePresentMode picks mailbox when available. FIFO is always supported.
func ChoosePresentMode(modes []vulkan.PresentMode) vulkan.PresentMode {
	for _, m := range modes {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	return vulkan.PresentModeFifo
}

// ChooseExtent returns the surface's current extent unless the surface lets
// the swapchain decide, in which case the framebuffer size is clamped to
// the supported range.
func ChooseExtent(caps vulkan.SurfaceCapabilities, fbWidth, fbHeight int) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vulkan.Extent2D{
		Width:  clamp(uint32(max(fbWidth, 0)), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(uint32(max(fbHeight, 0)), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum. A maximum of
// zero means unbounded.
func ChooseImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChooseSharing shares images between the graphics and present families
// only when they differ.
func ChooseSharing(families QueueFamilies) Sharing {
	if families.Graphics != families.Present {
		return Sharing{
			Mode:     vulkan.SharingModeConcurrent,
			Families: []uint32{families.Graphics, families.Present},
		}
	}
	return Sharing{Mode: vulkan.SharingModeExclusive}
}

func clamp(v, lo, hi uint32) uint32 {
	return min(max(v, lo), hi)
}

// TargetConfig describes the attachments built on top of every swapchain.
type TargetConfig struct {
	RenderPass  vulkan.RenderPass
	DepthFormat vulkan.Format
	Samples     vulkan.SampleCountFlagBits
}

// SwapchainState is one generation of the swapchain and everything sized to
// it. It is never modified after creation; recreation replaces it.
type SwapchainState struct {
	Handle       vulkan.Swapchain
	Images       []vulkan.Image
	Views        []vulkan.ImageView
	Format       vulkan.SurfaceFormat
	PresentMode  vulkan.PresentMode
	Extent       vulkan.Extent2D
	Color        Image
	Depth        Image
	Framebuffers []vulkan.Framebuffer
}

// Multisampled reports whether rendering goes through a separate
// multisampled color attachment.
func (s *SwapchainState) Multisampled() bool {
	return s.Color.Handle != vulkan.Image(vulkan.NullHandle)
}

// SwapchainOwner is the device surface a swapchain needs.
type SwapchainOwner interface {
	SwapchainDevice
	MemoryDevice
	WaitIdle() error
}

// Swapchain owns the presentable images and the render targets sized to
// them, and rebuilds both when the surface changes.
type Swapchain struct {
	dev     SwapchainOwner
	window  Window
	targets TargetConfig
	state   *SwapchainState
}

func NewSwapchain(dev SwapchainOwner, window Window) *Swapchain {
	return &Swapchain{dev: dev, window: window}
}

// State returns the current generation. It is nil before Create.
func (s *Swapchain) State() *SwapchainState {
	return s.state
}

// Create builds the swapchain and one view per image. Targets are added by
// BuildTargets once a render pass exists.
func (s *Swapchain) Create() error {
	support, err := s.dev.SurfaceSupport()
	if err != nil {
		return errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return errors.Wrap(ErrDeviceSelection, "surface reports no formats or present modes")
	}

	fbWidth, fbHeight := s.window.FramebufferSize()
	cfg := SwapchainConfig{
		Format:      ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(support.Capabilities, fbWidth, fbHeight),
		ImageCount:  ChooseImageCount(support.Capabilities),
		Sharing:     ChooseSharing(s.dev.QueueFamilies()),
		Transform:   support.Capabilities.CurrentTransform,
	}

	handle, images, err := s.dev.CreateSwapchain(cfg)
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	state := &SwapchainState{
		Handle:      handle,
		Images:      images,
		Format:      cfg.Format,
		PresentMode: cfg.PresentMode,
		Extent:      cfg.Extent,
	}
	s.state = state

	for _, img := range images {
		view, err := s.dev.CreateImageView(img, cfg.Format.Format, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), 1)
		if err != nil {
			s.destroyState()
			return errors.Wrap(err, "create swapchain image view")
		}
		state.Views = append(state.Views, view)
	}

	Logger().Info("swapchain created",
		"width", cfg.Extent.Width, "height", cfg.Extent.Height,
		"images", len(images), "present_mode", cfg.PresentMode)
	return nil
}

// BuildTargets creates the depth attachment, the multisampled color
// attachment when samples > 1, and one framebuffer per swapchain image. The
// config is remembered for Recreate.
func (s *Swapchain) BuildTargets(cfg TargetConfig) error {
	s.targets = cfg
	state := s.state
	if state == nil {
		return errors.New("swapchain not created")
	}

	if cfg.Samples > vulkan.SampleCount1Bit {
		color, err := s.dev.CreateImage(ImageSpec{
			Width:     state.Extent.Width,
			Height:    state.Extent.Height,
			MipLevels: 1,
			Samples:   cfg.Samples,
			Format:    state.Format.Format,
			Usage: vulkan.ImageUsageFlags(vulkan.ImageUsageTransientAttachmentBit |
				vulkan.ImageUsageColorAttachmentBit),
			Aspect: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
		})
		if err != nil {
			return errors.Wrap(err, "create color attachment")
		}
		state.Color = color
	}

	depth, err := s.dev.CreateImage(ImageSpec{
		Width:     state.Extent.Width,
		Height:    state.Extent.Height,
		MipLevels: 1,
		Samples:   max(cfg.Samples, vulkan.SampleCount1Bit),
		Format:    cfg.DepthFormat,
		Usage:     vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit),
		Aspect:    vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit),
	})
	if err != nil {
		return errors.Wrap(err, "create depth attachment")
	}
	state.Depth = depth

	for _, view := range state.Views {
		fb, err := s.dev.CreateFramebuffer(cfg.RenderPass, s.attachments(view), state.Extent)
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}
		state.Framebuffers = append(state.Framebuffers, fb)
	}
	return nil
}

// attachments orders views the way the render pass declares them.
func (s *Swapchain) attachments(present vulkan.ImageView) []vulkan.ImageView {
	if s.state.Multisampled() {
		return []vulkan.ImageView{s.state.Color.View, s.state.Depth.View, present}
	}
	return []vulkan.ImageView{present, s.state.Depth.View}
}

// Recreate waits until the window has a drawable area, drains the device
// and replaces the whole swapchain generation.
func (s *Swapchain) Recreate() error {
	w, h := s.window.FramebufferSize()
	for w == 0 || h == 0 {
		s.window.WaitEvents()
		w, h = s.window.FramebufferSize()
	}
	if err := s.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device before swapchain recreation")
	}

	s.destroyState()
	if err := s.Create(); err != nil {
		return err
	}
	return s.BuildTargets(s.targets)
}

// Acquire requests the next presentable image, signalling signal when it is
// ready.
func (s *Swapchain) Acquire(signal vulkan.Semaphore) (uint32, Status, error) {
	index, res := s.dev.AcquireNextImage(s.state.Handle, signal)
	status, err := classify("acquire next image", res)
	return index, status, err
}

// Present queues imageIndex for display once wait is signalled.
func (s *Swapchain) Present(imageIndex uint32, wait vulkan.Semaphore) (Status, error) {
	return classify("present", s.dev.QueuePresent(s.state.Handle, imageIndex, wait))
}

// Destroy releases the current generation. The device must be idle.
func (s *Swapchain) Destroy() {
	s.destroyState()
}

func (s *Swapchain) destroyState() {
	state := s.state
	if state == nil {
		return
	}
	for i := len(state.Framebuffers) - 1; i >= 0; i-- {
		s.dev.DestroyFramebuffer(state.Framebuffers[i])
	}
	if state.Depth.Handle != vulkan.Image(vulkan.NullHandle) {
		s.dev.DestroyImage(state.Depth)
	}
	if state.Multisampled() {
		s.dev.DestroyImage(state.Color)
	}
	for i := len(state.Views) - 1; i >= 0; i-- {
		s.dev.DestroyImageView(state.Views[i])
	}
	s.dev.DestroySwapchain(state.Handle)
	s.state = nil
}
