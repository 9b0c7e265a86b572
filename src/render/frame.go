package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// FramesInFlight is how many frames the CPU may record ahead of the GPU.
const FramesInFlight = 2

// FrameSlot is the set of resources used by one frame in flight. Its command
// buffer is only re-recorded after InFlight has been observed signalled.
type FrameSlot struct {
	CommandBuffer  vulkan.CommandBuffer
	ImageAcquired  vulkan.Semaphore
	RenderComplete vulkan.Semaphore
	InFlight       vulkan.Fence
	Uniform        Buffer
	// UniformWindow stays mapped until the slot is destroyed.
	UniformWindow []byte
	DescriptorSet vulkan.DescriptorSet
}

// FrameDevice is the device surface a FrameSet allocates from.
type FrameDevice interface {
	SyncDevice
	MemoryDevice
	CommandDevice
	DescriptorDevice
}

type FrameSetConfig struct {
	Frames      int
	UniformSize vulkan.DeviceSize
	Layout      vulkan.DescriptorSetLayout
	Texture     Texture
}

// FrameSet is the fixed ring of frame slots.
type FrameSet struct {
	dev   FrameDevice
	pool  vulkan.DescriptorPool
	cbs   []vulkan.CommandBuffer
	slots []*FrameSlot
	index int
}

// NewFrameSet allocates every slot up front. Fences start signalled so the
// first wait on each slot returns immediately.
func NewFrameSet(dev FrameDevice, cfg FrameSetConfig) (_ *FrameSet, err error) {
	if cfg.Frames <= 0 {
		cfg.Frames = FramesInFlight
	}
	f := &FrameSet{dev: dev}
	defer func() {
		if err != nil {
			f.Destroy()
		}
	}()

	if f.pool, err = dev.CreateDescriptorPool(cfg.Frames); err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	if f.cbs, err = dev.AllocateCommandBuffers(cfg.Frames); err != nil {
		return nil, errors.Wrap(err, "allocate frame command buffers")
	}
	sets, err := dev.AllocateDescriptorSets(f.pool, cfg.Layout, cfg.Frames)
	if err != nil {
		return nil, errors.Wrap(err, "allocate descriptor sets")
	}

	for i := 0; i < cfg.Frames; i++ {
		slot := &FrameSlot{CommandBuffer: f.cbs[i], DescriptorSet: sets[i]}
		f.slots = append(f.slots, slot)

		if slot.ImageAcquired, err = dev.CreateSemaphore(); err != nil {
			return nil, errors.Wrapf(err, "frame %d: create semaphore", i)
		}
		if slot.RenderComplete, err = dev.CreateSemaphore(); err != nil {
			return nil, errors.Wrapf(err, "frame %d: create semaphore", i)
		}
		if slot.InFlight, err = dev.CreateFence(true); err != nil {
			return nil, errors.Wrapf(err, "frame %d: create fence", i)
		}
		slot.Uniform, err = dev.CreateBuffer(cfg.UniformSize,
			vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit), hostVisible)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d: create uniform buffer", i)
		}
		if slot.UniformWindow, err = dev.MapMemory(slot.Uniform.Memory, cfg.UniformSize); err != nil {
			return nil, errors.Wrapf(err, "frame %d: map uniform buffer", i)
		}
		dev.WriteDescriptorSet(slot.DescriptorSet, slot.Uniform, cfg.Texture)
	}
	return f, nil
}

// Len is the number of slots.
func (f *FrameSet) Len() int {
	return len(f.slots)
}

// Index is the current frame index.
func (f *FrameSet) Index() int {
	return f.index
}

// Slot returns the slot used for frame index i.
func (f *FrameSet) Slot(i int) *FrameSlot {
	return f.slots[i%len(f.slots)]
}

func (f *FrameSet) Current() *FrameSlot {
	return f.Slot(f.index)
}

// Advance moves to the next slot.
func (f *FrameSet) Advance() {
	f.index = (f.index + 1) % len(f.slots)
}

// Destroy releases every slot in reverse creation order. The device must be
// idle. It tolerates a partially constructed set.
func (f *FrameSet) Destroy() {
	null := vulkan.NullHandle
	for i := len(f.slots) - 1; i >= 0; i-- {
		slot := f.slots[i]
		if slot.UniformWindow != nil {
			f.dev.UnmapMemory(slot.Uniform.Memory)
			slot.UniformWindow = nil
		}
		if slot.Uniform.Handle != vulkan.Buffer(null) {
			f.dev.DestroyBuffer(slot.Uniform)
		}
		if slot.InFlight != vulkan.Fence(null) {
			f.dev.DestroyFence(slot.InFlight)
		}
		if slot.RenderComplete != vulkan.Semaphore(null) {
			f.dev.DestroySemaphore(slot.RenderComplete)
		}
		if slot.ImageAcquired != vulkan.Semaphore(null) {
			f.dev.DestroySemaphore(slot.ImageAcquired)
		}
	}
	f.slots = nil
	if len(f.cbs) > 0 {
		f.dev.FreeCommandBuffers(f.cbs)
		f.cbs = nil
	}
	if f.pool != vulkan.DescriptorPool(null) {
		f.dev.DestroyDescriptorPool(f.pool)
		f.pool = vulkan.DescriptorPool(null)
	}
}
