package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

type layoutEdge struct {
	from, to vulkan.ImageLayout
}

type accessScope struct {
	srcAccess vulkan.AccessFlags
	dstAccess vulkan.AccessFlags
	srcStage  vulkan.PipelineStageFlags
	dstStage  vulkan.PipelineStageFlags
}

var layoutEdges = map[layoutEdge]accessScope{
	{vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal}: {
		srcAccess: 0,
		dstAccess: vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
		srcStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit),
		dstStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
	},
	{vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: vulkan.AccessFlags(vulkan.AccessTransferWriteBit),
		dstAccess: vulkan.AccessFlags(vulkan.AccessShaderReadBit),
		srcStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
		dstStage:  vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit),
	},
}

// TransitionBarrier builds the barrier moving every mip level of img from
// one layout to another. Only undefined to transfer-dst and transfer-dst to
// shader-read-only are known; anything else is ErrUnsupportedTransition.
func TransitionBarrier(img Image, from, to vulkan.ImageLayout) (ImageBarrier, error) {
	scope, ok := layoutEdges[layoutEdge{from, to}]
	if !ok {
		return ImageBarrier{}, errors.Wrapf(ErrUnsupportedTransition, "layout %d to %d", from, to)
	}
	return ImageBarrier{
		Image:      img.Handle,
		Aspect:     img.Spec.Aspect,
		BaseLevel:  0,
		LevelCount: levelCount(img),
		OldLayout:  from,
		NewLayout:  to,
		SrcAccess:  scope.srcAccess,
		DstAccess:  scope.dstAccess,
		SrcStage:   scope.srcStage,
		DstStage:   scope.dstStage,
	}, nil
}

func levelCount(img Image) uint32 {
	if img.Spec.MipLevels == 0 {
		return 1
	}
	return img.Spec.MipLevels
}
