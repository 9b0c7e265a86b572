package render

import (
	"math/bits"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// MipLevel is the pixel size of one level of a mip chain.
type MipLevel struct {
	Level  uint32
	Width  int32
	Height int32
}

// MipLevels returns floor(log2(max(width, height))) + 1, or 1 for an empty
// image.
func MipLevels(width, height uint32) uint32 {
	n := uint32(bits.Len32(max(width, height)))
	if n == 0 {
		return 1
	}
	return n
}

// MipChain lists every level of a full mip chain, halving each axis per
// level and never going below one pixel.
func MipChain(width, height uint32) []MipLevel {
	levels := MipLevels(width, height)
	chain := make([]MipLevel, 0, levels)
	w, h := int32(max(width, 1)), int32(max(height, 1))
	for i := uint32(0); i < levels; i++ {
		chain = append(chain, MipLevel{Level: i, Width: w, Height: h})
		w, h = max(w/2, 1), max(h/2, 1)
	}
	return chain
}

// recordMipmaps fills levels 1..L-1 of img from level 0 and leaves every
// level in shader-read-only layout. All levels must be in transfer-dst on
// entry.
func recordMipmaps(rec Recorder, cb vulkan.CommandBuffer, img Image) {
	chain := MipChain(img.Spec.Width, img.Spec.Height)
	levelBarrier := func(level uint32, from, to vulkan.ImageLayout, scope accessScope) {
		rec.CmdImageBarrier(cb, ImageBarrier{
			Image:      img.Handle,
			Aspect:     img.Spec.Aspect,
			BaseLevel:  level,
			LevelCount: 1,
			OldLayout:  from,
			NewLayout:  to,
			SrcAccess:  scope.srcAccess,
			DstAccess:  scope.dstAccess,
			SrcStage:   scope.srcStage,
			DstStage:   scope.dstStage,
		})
	}
	transfer := vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
	fragment := vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit)
	write := vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
	read := vulkan.AccessFlags(vulkan.AccessTransferReadBit)
	shaderRead := vulkan.AccessFlags(vulkan.AccessShaderReadBit)

	for i := 1; i < len(chain); i++ {
		src, dst := chain[i-1], chain[i]
		levelBarrier(src.Level, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutTransferSrcOptimal,
			accessScope{write, read, transfer, transfer})
		rec.CmdBlitMip(cb, img, MipBlit{SrcLevel: src.Level, Src: src, Dst: dst})
		levelBarrier(src.Level, vulkan.ImageLayoutTransferSrcOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal,
			accessScope{read, shaderRead, transfer, fragment})
	}
	last := chain[len(chain)-1]
	levelBarrier(last.Level, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal,
		accessScope{write, shaderRead, transfer, fragment})
}

// GenerateMipmaps fills the mip chain of img on the GPU and waits for it.
func (t *Transfer) GenerateMipmaps(img Image) error {
	if !t.mem.SupportsLinearBlit(img.Spec.Format) {
		return errors.Wrapf(ErrUnsupportedFormat, "format %d has no linear blit support", img.Spec.Format)
	}
	return t.OneShot(func(cb vulkan.CommandBuffer) error {
		recordMipmaps(t.rec, cb, img)
		return nil
	})
}
