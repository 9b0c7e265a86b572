package gpu

import (
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

func (d *Device) AllocateCommandBuffers(count int) ([]vulkan.CommandBuffer, error) {
	info := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	cbs := make([]vulkan.CommandBuffer, count)
	if err := render.NewError("allocate command buffers", vulkan.AllocateCommandBuffers(d.handle, &info, cbs)); err != nil {
		return nil, err
	}
	return cbs, nil
}

func (d *Device) FreeCommandBuffers(cbs []vulkan.CommandBuffer) {
	if len(cbs) == 0 {
		return
	}
	vulkan.FreeCommandBuffers(d.handle, d.pool, uint32(len(cbs)), cbs)
}

func (d *Device) BeginCommandBuffer(cb vulkan.CommandBuffer, oneTime bool) error {
	info := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	if oneTime {
		info.Flags = vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit)
	}
	return render.NewError("begin command buffer", vulkan.BeginCommandBuffer(cb, &info))
}

func (d *Device) EndCommandBuffer(cb vulkan.CommandBuffer) error {
	return render.NewError("end command buffer", vulkan.EndCommandBuffer(cb))
}

func (d *Device) ResetCommandBuffer(cb vulkan.CommandBuffer) error {
	return render.NewError("reset command buffer", vulkan.ResetCommandBuffer(cb, 0))
}

func (d *Device) Submit(cb vulkan.CommandBuffer, sync render.SubmitSync) error {
	info := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vulkan.CommandBuffer{cb},
	}
	if sync.Wait != vulkan.Semaphore(vulkan.NullHandle) {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vulkan.Semaphore{sync.Wait}
		info.PWaitDstStageMask = []vulkan.PipelineStageFlags{sync.WaitStage}
	}
	if sync.Signal != vulkan.Semaphore(vulkan.NullHandle) {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vulkan.Semaphore{sync.Signal}
	}
	return render.NewError("queue submit", vulkan.QueueSubmit(d.graphics, 1, []vulkan.SubmitInfo{info}, sync.Fence))
}

func (d *Device) WaitQueueIdle() error {
	return render.NewError("wait for queue idle", vulkan.QueueWaitIdle(d.graphics))
}

func (d *Device) CmdCopyBuffer(cb vulkan.CommandBuffer, src, dst vulkan.Buffer, size vulkan.DeviceSize) {
	vulkan.CmdCopyBuffer(cb, src, dst, 1, []vulkan.BufferCopy{{Size: size}})
}

func (d *Device) CmdCopyBufferToImage(cb vulkan.CommandBuffer, src vulkan.Buffer, dst render.Image) {
	region := vulkan.BufferImageCopy{
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask: dst.Spec.Aspect,
			LayerCount: 1,
		},
		ImageExtent: vulkan.Extent3D{
			Width:  dst.Spec.Width,
			Height: dst.Spec.Height,
			Depth:  1,
		},
	}
	vulkan.CmdCopyBufferToImage(cb, src, dst.Handle, vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{region})
}

func (d *Device) CmdImageBarrier(cb vulkan.CommandBuffer, b render.ImageBarrier) {
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		OldLayout:           b.OldLayout,
		NewLayout:           b.NewLayout,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               b.Image,
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:   b.Aspect,
			BaseMipLevel: b.BaseLevel,
			LevelCount:   b.LevelCount,
			LayerCount:   1,
		},
	}
	vulkan.CmdPipelineBarrier(cb, b.SrcStage, b.DstStage, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
}

func (d *Device) CmdBlitMip(cb vulkan.CommandBuffer, img render.Image, blit render.MipBlit) {
	region := vulkan.ImageBlit{
		SrcSubresource: vulkan.ImageSubresourceLayers{
			AspectMask: img.Spec.Aspect,
			MipLevel:   blit.SrcLevel,
			LayerCount: 1,
		},
		SrcOffsets: [2]vulkan.Offset3D{{}, {X: blit.Src.Width, Y: blit.Src.Height, Z: 1}},
		DstSubresource: vulkan.ImageSubresourceLayers{
			AspectMask: img.Spec.Aspect,
			MipLevel:   blit.SrcLevel + 1,
			LayerCount: 1,
		},
		DstOffsets: [2]vulkan.Offset3D{{}, {X: blit.Dst.Width, Y: blit.Dst.Height, Z: 1}},
	}
	vulkan.CmdBlitImage(cb,
		img.Handle, vulkan.ImageLayoutTransferSrcOptimal,
		img.Handle, vulkan.ImageLayoutTransferDstOptimal,
		1, []vulkan.ImageBlit{region}, vulkan.FilterLinear)
}

func (d *Device) CmdBeginRenderPass(cb vulkan.CommandBuffer, begin render.RenderPassBegin) {
	clears := []vulkan.ClearValue{
		vulkan.NewClearValue(begin.ClearColor[:]),
		vulkan.NewClearDepthStencil(begin.ClearDepth, 0),
	}
	info := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  begin.RenderPass,
		Framebuffer: begin.Framebuffer,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{},
			Extent: begin.Extent,
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vulkan.CmdBeginRenderPass(cb, &info, vulkan.SubpassContentsInline)
}

func (d *Device) CmdEndRenderPass(cb vulkan.CommandBuffer) {
	vulkan.CmdEndRenderPass(cb)
}

func (d *Device) CmdBindPipeline(cb vulkan.CommandBuffer, pipeline vulkan.Pipeline) {
	vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, pipeline)
}

func (d *Device) CmdBindGeometry(cb vulkan.CommandBuffer, vertices, indices vulkan.Buffer) {
	vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{vertices}, []vulkan.DeviceSize{0})
	vulkan.CmdBindIndexBuffer(cb, indices, 0, vulkan.IndexTypeUint32)
}

func (d *Device) CmdBindDescriptorSet(cb vulkan.CommandBuffer, layout vulkan.PipelineLayout, set vulkan.DescriptorSet) {
	vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointGraphics, layout, 0, 1, []vulkan.DescriptorSet{set}, 0, nil)
}

func (d *Device) CmdSetViewportScissor(cb vulkan.CommandBuffer, extent vulkan.Extent2D) {
	vulkan.CmdSetViewport(cb, 0, 1, []vulkan.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vulkan.CmdSetScissor(cb, 0, 1, []vulkan.Rect2D{{Extent: extent}})
}

func (d *Device) CmdDrawIndexed(cb vulkan.CommandBuffer, indexCount uint32) {
	vulkan.CmdDrawIndexed(cb, indexCount, 1, 0, 0, 0)
}
