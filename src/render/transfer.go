package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// BufferKind selects the usage of a device-local geometry buffer.
type BufferKind int

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
)

func (k BufferKind) usage() vulkan.BufferUsageFlags {
	switch k {
	case IndexBuffer:
		return vulkan.BufferUsageFlags(vulkan.BufferUsageIndexBufferBit)
	default:
		return vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit)
	}
}

func (k BufferKind) String() string {
	switch k {
	case IndexBuffer:
		return "index"
	default:
		return "vertex"
	}
}

// TextureFormat is the format of every uploaded texture. Pixels are tightly
// packed 8-bit RGBA.
const TextureFormat = vulkan.FormatR8g8b8a8Srgb

var hostVisible = vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit)

// Transfer moves data from host memory into device-local buffers and images
// through short-lived staging buffers. Every call blocks until the GPU copy
// has finished, so it is meant for load time only.
type Transfer struct {
	mem MemoryDevice
	cmd CommandDevice
	rec Recorder
}

func NewTransfer(mem MemoryDevice, cmd CommandDevice, rec Recorder) *Transfer {
	return &Transfer{mem: mem, cmd: cmd, rec: rec}
}

// OneShot records a single-use command buffer, submits it and waits for the
// queue to drain. The command buffer is freed on every path.
func (t *Transfer) OneShot(record func(cb vulkan.CommandBuffer) error) error {
	cbs, err := t.cmd.AllocateCommandBuffers(1)
	if err != nil {
		return errors.Wrap(err, "allocate one-shot command buffer")
	}
	defer t.cmd.FreeCommandBuffers(cbs)
	cb := cbs[0]

	if err := t.cmd.BeginCommandBuffer(cb, true); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		// Close the buffer anyway so it can be freed from a valid state.
		_ = t.cmd.EndCommandBuffer(cb)
		return err
	}
	if err := t.cmd.EndCommandBuffer(cb); err != nil {
		return err
	}
	if err := t.cmd.Submit(cb, SubmitSync{}); err != nil {
		return err
	}
	return t.cmd.WaitQueueIdle()
}

func (t *Transfer) stage(data []byte) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, errors.Wrap(ErrResourceCreation, "empty upload")
	}
	size := vulkan.DeviceSize(len(data))
	staging, err := t.mem.CreateBuffer(size, vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit), hostVisible)
	if err != nil {
		return Buffer{}, errors.Wrap(err, "create staging buffer")
	}
	window, err := t.mem.MapMemory(staging.Memory, size)
	if err != nil {
		t.mem.DestroyBuffer(staging)
		return Buffer{}, errors.Wrap(err, "map staging buffer")
	}
	copy(window, data)
	t.mem.UnmapMemory(staging.Memory)
	return staging, nil
}

// UploadBuffer copies data into a new buffer with the given usage and memory
// properties. TRANSFER_DST is added to usage.
func (t *Transfer) UploadBuffer(data []byte, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlags) (Buffer, error) {
	staging, err := t.stage(data)
	if err != nil {
		return Buffer{}, err
	}
	defer t.mem.DestroyBuffer(staging)

	dst, err := t.mem.CreateBuffer(staging.Size, usage|vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit), props)
	if err != nil {
		return Buffer{}, errors.Wrap(err, "create destination buffer")
	}
	err = t.OneShot(func(cb vulkan.CommandBuffer) error {
		t.rec.CmdCopyBuffer(cb, staging.Handle, dst.Handle, staging.Size)
		return nil
	})
	if err != nil {
		t.mem.DestroyBuffer(dst)
		return Buffer{}, errors.Wrap(err, "copy staging buffer")
	}
	return dst, nil
}

// Upload places vertex or index data in device-local memory.
func (t *Transfer) Upload(kind BufferKind, data []byte) (Buffer, error) {
	buf, err := t.UploadBuffer(data, kind.usage(), vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return Buffer{}, errors.Wrapf(err, "upload %s buffer", kind)
	}
	Logger().Debug("uploaded buffer", "kind", kind.String(), "bytes", len(data))
	return buf, nil
}

// Transition moves every level of img between two layouts and waits for it.
func (t *Transfer) Transition(img Image, from, to vulkan.ImageLayout) error {
	barrier, err := TransitionBarrier(img, from, to)
	if err != nil {
		return err
	}
	return t.OneShot(func(cb vulkan.CommandBuffer) error {
		t.rec.CmdImageBarrier(cb, barrier)
		return nil
	})
}

// UploadTexture creates a mipmapped, sampled image from RGBA pixels. The
// returned image is in shader-read-only layout on every level.
func (t *Transfer) UploadTexture(pixels []byte, width, height uint32) (Image, error) {
	if width == 0 || height == 0 || len(pixels) != int(width)*int(height)*4 {
		return Image{}, errors.Wrapf(ErrResourceCreation, "texture %dx%d with %d bytes", width, height, len(pixels))
	}
	if !t.mem.SupportsLinearBlit(TextureFormat) {
		return Image{}, errors.Wrap(ErrUnsupportedFormat, "texture format does not support linear blitting")
	}

	staging, err := t.stage(pixels)
	if err != nil {
		return Image{}, err
	}
	defer t.mem.DestroyBuffer(staging)

	img, err := t.mem.CreateImage(ImageSpec{
		Width:     width,
		Height:    height,
		MipLevels: MipLevels(width, height),
		Samples:   vulkan.SampleCount1Bit,
		Format:    TextureFormat,
		Usage: vulkan.ImageUsageFlags(vulkan.ImageUsageTransferSrcBit |
			vulkan.ImageUsageTransferDstBit | vulkan.ImageUsageSampledBit),
		Aspect: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
	})
	if err != nil {
		return Image{}, errors.Wrap(err, "create texture image")
	}

	if err := t.fillTexture(img, staging); err != nil {
		t.mem.DestroyImage(img)
		return Image{}, err
	}
	Logger().Debug("uploaded texture", "width", width, "height", height, "levels", img.Spec.MipLevels)
	return img, nil
}

func (t *Transfer) fillTexture(img Image, staging Buffer) error {
	if err := t.Transition(img, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal); err != nil {
		return errors.Wrap(err, "prepare texture for copy")
	}
	err := t.OneShot(func(cb vulkan.CommandBuffer) error {
		t.rec.CmdCopyBufferToImage(cb, staging.Handle, img)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "copy texture pixels")
	}
	return errors.Wrap(t.GenerateMipmaps(img), "generate mipmaps")
}
