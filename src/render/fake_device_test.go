package render

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// lastHandle numbers fake handles from an address range the Go heap never
// uses. Handles must be compared with ==; reflect sees every handle as the
// same empty struct.
var lastHandle uintptr = 1 << 44

func newHandle() unsafe.Pointer {
	return unsafe.Pointer(atomic.AddUintptr(&lastHandle, 8))
}

type fakeCall struct {
	Op    string
	Fence vulkan.Fence
	CB    vulkan.CommandBuffer
}

type fakeFence struct {
	signaled bool
	pending  bool
}

type fakeCommandBuffer struct {
	recording bool
	oneTime   bool
	fence     vulkan.Fence
	ops       []func()
}

type fakeImage struct {
	spec    ImageSpec
	layouts []vulkan.ImageLayout
	blits   []MipBlit
}

// fakeDevice executes recorded commands at submit time and tracks enough
// state to flag synchronisation mistakes: resetting or re-recording work
// the GPU has not finished, or using images in the wrong layout.
type fakeDevice struct {
	calls      []fakeCall
	violations []string

	fences       map[vulkan.Fence]*fakeFence
	semaphores   map[vulkan.Semaphore]bool
	buffers      map[vulkan.Buffer]Buffer
	memory       map[vulkan.DeviceMemory][]byte
	mapped       map[vulkan.DeviceMemory]bool
	images       map[vulkan.Image]*fakeImage
	views        map[vulkan.ImageView]bool
	framebuffers map[vulkan.Framebuffer][]vulkan.ImageView
	swapchains   map[vulkan.Swapchain][]vulkan.Image
	cbs          map[vulkan.CommandBuffer]*fakeCommandBuffer
	pools        map[vulkan.DescriptorPool]bool
	writes       map[vulkan.DescriptorSet]Buffer

	support        SurfaceSupport
	families       QueueFamilies
	linearBlit     bool
	acquireResults []vulkan.Result
	presentResults []vulkan.Result
	nextImage      uint32
	swapchainCfgs  []SwapchainConfig
	failOn         map[string]error
	draws          int
	submits        int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		fences:       make(map[vulkan.Fence]*fakeFence),
		semaphores:   make(map[vulkan.Semaphore]bool),
		buffers:      make(map[vulkan.Buffer]Buffer),
		memory:       make(map[vulkan.DeviceMemory][]byte),
		mapped:       make(map[vulkan.DeviceMemory]bool),
		images:       make(map[vulkan.Image]*fakeImage),
		views:        make(map[vulkan.ImageView]bool),
		framebuffers: make(map[vulkan.Framebuffer][]vulkan.ImageView),
		swapchains:   make(map[vulkan.Swapchain][]vulkan.Image),
		cbs:          make(map[vulkan.CommandBuffer]*fakeCommandBuffer),
		pools:        make(map[vulkan.DescriptorPool]bool),
		writes:       make(map[vulkan.DescriptorSet]Buffer),
		support: SurfaceSupport{
			Capabilities: vulkan.SurfaceCapabilities{
				MinImageCount:    2,
				MaxImageCount:    0,
				CurrentExtent:    vulkan.Extent2D{Width: 800, Height: 600},
				MinImageExtent:   vulkan.Extent2D{Width: 1, Height: 1},
				MaxImageExtent:   vulkan.Extent2D{Width: 4096, Height: 4096},
				CurrentTransform: vulkan.SurfaceTransformIdentityBit,
			},
			Formats: []vulkan.SurfaceFormat{
				{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
				{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox},
		},
		families:   QueueFamilies{Graphics: 0, Present: 0},
		linearBlit: true,
		failOn:     make(map[string]error),
	}
}

func (d *fakeDevice) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) log(op string, fence vulkan.Fence, cb vulkan.CommandBuffer) {
	d.calls = append(d.calls, fakeCall{Op: op, Fence: fence, CB: cb})
}

func (d *fakeDevice) fail(op string) error {
	if err, ok := d.failOn[op]; ok {
		return err
	}
	return nil
}

// live counts every object that has not been destroyed.
func (d *fakeDevice) live() int {
	return len(d.fences) + len(d.semaphores) + len(d.buffers) + len(d.memory) +
		len(d.mapped) + len(d.images) + len(d.views) + len(d.framebuffers) +
		len(d.swapchains) + len(d.cbs) + len(d.pools)
}

func (d *fakeDevice) opsFor(op string) []fakeCall {
	var out []fakeCall
	for _, c := range d.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *fakeDevice) completeAll() {
	for _, f := range d.fences {
		if f.pending {
			f.pending = false
			f.signaled = true
		}
	}
}

// MemoryDevice

func (d *fakeDevice) CreateBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlags) (Buffer, error) {
	if err := d.fail("CreateBuffer"); err != nil {
		return Buffer{}, err
	}
	buf := Buffer{
		Handle: vulkan.Buffer(newHandle()),
		Memory: vulkan.DeviceMemory(newHandle()),
		Size:   size,
		Usage:  usage,
	}
	d.buffers[buf.Handle] = buf
	d.memory[buf.Memory] = make([]byte, size)
	return buf, nil
}

func (d *fakeDevice) DestroyBuffer(buf Buffer) {
	if _, ok := d.buffers[buf.Handle]; !ok {
		d.violate("destroy unknown buffer")
	}
	if d.mapped[buf.Memory] {
		d.violate("buffer destroyed while mapped")
	}
	delete(d.buffers, buf.Handle)
	delete(d.memory, buf.Memory)
}

func (d *fakeDevice) MapMemory(mem vulkan.DeviceMemory, size vulkan.DeviceSize) ([]byte, error) {
	if err := d.fail("MapMemory"); err != nil {
		return nil, err
	}
	backing, ok := d.memory[mem]
	if !ok {
		return nil, errors.New("map unknown memory")
	}
	d.mapped[mem] = true
	return backing[:size], nil
}

func (d *fakeDevice) UnmapMemory(mem vulkan.DeviceMemory) {
	if !d.mapped[mem] {
		d.violate("unmap of unmapped memory")
	}
	delete(d.mapped, mem)
}

func (d *fakeDevice) CreateImage(spec ImageSpec) (Image, error) {
	if err := d.fail("CreateImage"); err != nil {
		return Image{}, err
	}
	img := Image{
		Handle: vulkan.Image(newHandle()),
		Memory: vulkan.DeviceMemory(newHandle()),
		View:   vulkan.ImageView(newHandle()),
		Spec:   spec,
	}
	layouts := make([]vulkan.ImageLayout, max(spec.MipLevels, 1))
	for i := range layouts {
		layouts[i] = vulkan.ImageLayoutUndefined
	}
	d.images[img.Handle] = &fakeImage{spec: spec, layouts: layouts}
	d.views[img.View] = true
	return img, nil
}

func (d *fakeDevice) DestroyImage(img Image) {
	if _, ok := d.images[img.Handle]; !ok {
		d.violate("destroy unknown image")
	}
	delete(d.views, img.View)
	delete(d.images, img.Handle)
}

func (d *fakeDevice) SupportsLinearBlit(vulkan.Format) bool {
	return d.linearBlit
}

// CommandDevice

func (d *fakeDevice) AllocateCommandBuffers(count int) ([]vulkan.CommandBuffer, error) {
	if err := d.fail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]vulkan.CommandBuffer, count)
	for i := range out {
		out[i] = vulkan.CommandBuffer(newHandle())
		d.cbs[out[i]] = &fakeCommandBuffer{}
	}
	return out, nil
}

func (d *fakeDevice) FreeCommandBuffers(cbs []vulkan.CommandBuffer) {
	for _, cb := range cbs {
		if d.cbPending(cb) {
			d.violate("command buffer freed while in flight")
		}
		delete(d.cbs, cb)
	}
}

func (d *fakeDevice) cbPending(cb vulkan.CommandBuffer) bool {
	state, ok := d.cbs[cb]
	if !ok || state.fence == vulkan.Fence(vulkan.NullHandle) {
		return false
	}
	f, ok := d.fences[state.fence]
	return ok && f.pending
}

func (d *fakeDevice) BeginCommandBuffer(cb vulkan.CommandBuffer, oneTime bool) error {
	state, ok := d.cbs[cb]
	if !ok {
		return errors.New("begin unknown command buffer")
	}
	if d.cbPending(cb) {
		d.violate("command buffer re-recorded while in flight")
	}
	d.log("BeginCommandBuffer", vulkan.Fence(vulkan.NullHandle), cb)
	state.recording = true
	state.oneTime = oneTime
	state.ops = nil
	return nil
}

func (d *fakeDevice) EndCommandBuffer(cb vulkan.CommandBuffer) error {
	state, ok := d.cbs[cb]
	if !ok || !state.recording {
		return errors.New("end of command buffer that is not recording")
	}
	state.recording = false
	return nil
}

func (d *fakeDevice) ResetCommandBuffer(cb vulkan.CommandBuffer) error {
	if d.cbPending(cb) {
		d.violate("command buffer reset while in flight")
	}
	d.log("ResetCommandBuffer", vulkan.Fence(vulkan.NullHandle), cb)
	d.cbs[cb].ops = nil
	return nil
}

func (d *fakeDevice) Submit(cb vulkan.CommandBuffer, sync SubmitSync) error {
	if err := d.fail("Submit"); err != nil {
		return err
	}
	state, ok := d.cbs[cb]
	if !ok || state.recording {
		return errors.New("submit of command buffer that is not executable")
	}
	d.submits++
	d.log("Submit", sync.Fence, cb)
	if sync.Fence != vulkan.Fence(vulkan.NullHandle) {
		f := d.fences[sync.Fence]
		if f.signaled || f.pending {
			d.violate("submit with a fence that was not reset")
		}
		f.pending = true
	}
	state.fence = sync.Fence
	for _, op := range state.ops {
		op()
	}
	return nil
}

func (d *fakeDevice) WaitQueueIdle() error {
	d.log("WaitQueueIdle", vulkan.Fence(vulkan.NullHandle), nil)
	d.completeAll()
	return nil
}

// Recorder

func (d *fakeDevice) record(cb vulkan.CommandBuffer, op func()) {
	state, ok := d.cbs[cb]
	if !ok || !state.recording {
		d.violate("command recorded outside of recording state")
		return
	}
	state.ops = append(state.ops, op)
}

func (d *fakeDevice) CmdCopyBuffer(cb vulkan.CommandBuffer, src, dst vulkan.Buffer, size vulkan.DeviceSize) {
	d.record(cb, func() {
		s, ok1 := d.buffers[src]
		t, ok2 := d.buffers[dst]
		if !ok1 || !ok2 {
			d.violate("copy between unknown buffers")
			return
		}
		copy(d.memory[t.Memory][:size], d.memory[s.Memory][:size])
	})
}

func (d *fakeDevice) CmdCopyBufferToImage(cb vulkan.CommandBuffer, src vulkan.Buffer, dst Image) {
	d.record(cb, func() {
		img := d.images[dst.Handle]
		if img.layouts[0] != vulkan.ImageLayoutTransferDstOptimal {
			d.violate("buffer copied into level 0 in layout %d", img.layouts[0])
		}
	})
}

func (d *fakeDevice) CmdImageBarrier(cb vulkan.CommandBuffer, b ImageBarrier) {
	d.record(cb, func() {
		img, ok := d.images[b.Image]
		if !ok {
			d.violate("barrier on unknown image")
			return
		}
		for l := b.BaseLevel; l < b.BaseLevel+b.LevelCount; l++ {
			if b.OldLayout != vulkan.ImageLayoutUndefined && img.layouts[l] != b.OldLayout {
				d.violate("level %d is in layout %d, barrier expects %d", l, img.layouts[l], b.OldLayout)
			}
			img.layouts[l] = b.NewLayout
		}
	})
}

func (d *fakeDevice) CmdBlitMip(cb vulkan.CommandBuffer, img Image, blit MipBlit) {
	d.record(cb, func() {
		state := d.images[img.Handle]
		if state.layouts[blit.SrcLevel] != vulkan.ImageLayoutTransferSrcOptimal {
			d.violate("blit source level %d not in transfer-src", blit.SrcLevel)
		}
		if state.layouts[blit.SrcLevel+1] != vulkan.ImageLayoutTransferDstOptimal {
			d.violate("blit destination level %d not in transfer-dst", blit.SrcLevel+1)
		}
		state.blits = append(state.blits, blit)
	})
}

func (d *fakeDevice) CmdBeginRenderPass(cb vulkan.CommandBuffer, begin RenderPassBegin) {
	d.record(cb, func() {
		if _, ok := d.framebuffers[begin.Framebuffer]; !ok {
			d.violate("render pass begun on unknown framebuffer")
		}
	})
}

func (d *fakeDevice) CmdEndRenderPass(cb vulkan.CommandBuffer)                         { d.record(cb, func() {}) }
func (d *fakeDevice) CmdBindPipeline(cb vulkan.CommandBuffer, _ vulkan.Pipeline)       { d.record(cb, func() {}) }
func (d *fakeDevice) CmdBindGeometry(cb vulkan.CommandBuffer, _, _ vulkan.Buffer)      { d.record(cb, func() {}) }
func (d *fakeDevice) CmdSetViewportScissor(cb vulkan.CommandBuffer, _ vulkan.Extent2D) { d.record(cb, func() {}) }

func (d *fakeDevice) CmdBindDescriptorSet(cb vulkan.CommandBuffer, _ vulkan.PipelineLayout, set vulkan.DescriptorSet) {
	d.record(cb, func() {
		if _, ok := d.writes[set]; !ok {
			d.violate("bound descriptor set that was never written")
		}
	})
}

func (d *fakeDevice) CmdDrawIndexed(cb vulkan.CommandBuffer, _ uint32) {
	d.record(cb, func() { d.draws++ })
}

// SyncDevice

func (d *fakeDevice) CreateSemaphore() (vulkan.Semaphore, error) {
	if err := d.fail("CreateSemaphore"); err != nil {
		return vulkan.Semaphore(vulkan.NullHandle), err
	}
	s := vulkan.Semaphore(newHandle())
	d.semaphores[s] = true
	return s, nil
}

func (d *fakeDevice) DestroySemaphore(sem vulkan.Semaphore) {
	delete(d.semaphores, sem)
}

func (d *fakeDevice) CreateFence(signaled bool) (vulkan.Fence, error) {
	if err := d.fail("CreateFence"); err != nil {
		return vulkan.Fence(vulkan.NullHandle), err
	}
	f := vulkan.Fence(newHandle())
	d.fences[f] = &fakeFence{signaled: signaled}
	return f, nil
}

func (d *fakeDevice) DestroyFence(fence vulkan.Fence) {
	if f, ok := d.fences[fence]; ok && f.pending {
		d.violate("fence destroyed while pending")
	}
	delete(d.fences, fence)
}

// WaitForFence completes the GPU work guarded by fence.
func (d *fakeDevice) WaitForFence(fence vulkan.Fence) error {
	d.log("WaitForFence", fence, nil)
	f, ok := d.fences[fence]
	if !ok {
		return errors.New("wait on unknown fence")
	}
	switch {
	case f.pending:
		f.pending = false
		f.signaled = true
	case !f.signaled:
		d.violate("wait on a fence that will never signal")
	}
	return nil
}

func (d *fakeDevice) ResetFence(fence vulkan.Fence) error {
	d.log("ResetFence", fence, nil)
	f := d.fences[fence]
	if f.pending {
		d.violate("fence reset while its work is in flight")
	}
	f.signaled = false
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.log("WaitIdle", vulkan.Fence(vulkan.NullHandle), nil)
	d.completeAll()
	return nil
}

// SwapchainDevice

func (d *fakeDevice) SurfaceSupport() (SurfaceSupport, error) {
	return d.support, nil
}

func (d *fakeDevice) QueueFamilies() QueueFamilies {
	return d.families
}

func (d *fakeDevice) CreateSwapchain(cfg SwapchainConfig) (vulkan.Swapchain, []vulkan.Image, error) {
	if err := d.fail("CreateSwapchain"); err != nil {
		return vulkan.NullSwapchain, nil, err
	}
	d.log("CreateSwapchain", vulkan.Fence(vulkan.NullHandle), nil)
	d.swapchainCfgs = append(d.swapchainCfgs, cfg)
	sc := vulkan.Swapchain(newHandle())
	images := make([]vulkan.Image, cfg.ImageCount)
	for i := range images {
		images[i] = vulkan.Image(newHandle())
	}
	d.swapchains[sc] = images
	d.nextImage = 0
	return sc, images, nil
}

func (d *fakeDevice) DestroySwapchain(sc vulkan.Swapchain) {
	if _, ok := d.swapchains[sc]; !ok {
		d.violate("destroy unknown swapchain")
	}
	delete(d.swapchains, sc)
}

func (d *fakeDevice) CreateImageView(vulkan.Image, vulkan.Format, vulkan.ImageAspectFlags, uint32) (vulkan.ImageView, error) {
	v := vulkan.ImageView(newHandle())
	d.views[v] = true
	return v, nil
}

func (d *fakeDevice) DestroyImageView(view vulkan.ImageView) {
	delete(d.views, view)
}

func (d *fakeDevice) CreateFramebuffer(_ vulkan.RenderPass, attachments []vulkan.ImageView, _ vulkan.Extent2D) (vulkan.Framebuffer, error) {
	for _, a := range attachments {
		if !d.views[a] {
			d.violate("framebuffer attachment is not a live view")
		}
	}
	fb := vulkan.Framebuffer(newHandle())
	d.framebuffers[fb] = attachments
	return fb, nil
}

func (d *fakeDevice) DestroyFramebuffer(fb vulkan.Framebuffer) {
	delete(d.framebuffers, fb)
}

func (d *fakeDevice) AcquireNextImage(sc vulkan.Swapchain, _ vulkan.Semaphore) (uint32, vulkan.Result) {
	d.log("AcquireNextImage", vulkan.Fence(vulkan.NullHandle), nil)
	res := vulkan.Success
	if len(d.acquireResults) > 0 {
		res, d.acquireResults = d.acquireResults[0], d.acquireResults[1:]
	}
	images, ok := d.swapchains[sc]
	if !ok {
		d.violate("acquire from destroyed swapchain")
		return 0, vulkan.ErrorOutOfDate
	}
	index := d.nextImage % uint32(len(images))
	if res == vulkan.Success || res == vulkan.Suboptimal {
		d.nextImage++
	}
	return index, res
}

func (d *fakeDevice) QueuePresent(sc vulkan.Swapchain, imageIndex uint32, _ vulkan.Semaphore) vulkan.Result {
	d.log("QueuePresent", vulkan.Fence(vulkan.NullHandle), nil)
	if images, ok := d.swapchains[sc]; !ok || imageIndex >= uint32(len(images)) {
		d.violate("present of an image that does not exist")
	}
	if len(d.presentResults) > 0 {
		var res vulkan.Result
		res, d.presentResults = d.presentResults[0], d.presentResults[1:]
		return res
	}
	return vulkan.Success
}

// DescriptorDevice

func (d *fakeDevice) CreateDescriptorPool(int) (vulkan.DescriptorPool, error) {
	if err := d.fail("CreateDescriptorPool"); err != nil {
		return vulkan.DescriptorPool(vulkan.NullHandle), err
	}
	p := vulkan.DescriptorPool(newHandle())
	d.pools[p] = true
	return p, nil
}

func (d *fakeDevice) DestroyDescriptorPool(pool vulkan.DescriptorPool) {
	delete(d.pools, pool)
}

func (d *fakeDevice) AllocateDescriptorSets(pool vulkan.DescriptorPool, _ vulkan.DescriptorSetLayout, count int) ([]vulkan.DescriptorSet, error) {
	if !d.pools[pool] {
		return nil, errors.New("allocate from unknown pool")
	}
	sets := make([]vulkan.DescriptorSet, count)
	for i := range sets {
		sets[i] = vulkan.DescriptorSet(newHandle())
	}
	return sets, nil
}

func (d *fakeDevice) WriteDescriptorSet(set vulkan.DescriptorSet, uniform Buffer, _ Texture) {
	d.writes[set] = uniform
}

var _ Device = (*fakeDevice)(nil)

// fakeWindow reports queued framebuffer sizes, repeating the last one.
type fakeWindow struct {
	sizes [][2]int
	waits int
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	s := w.sizes[0]
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
	return s[0], s[1]
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
}
