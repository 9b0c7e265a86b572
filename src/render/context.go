package render

import (
	"github.com/vulkan-go/vulkan"
)

// Context is the frame being recorded, handed to a Drawer between the begin
// and end of its command buffer.
type Context interface {
	CommandBuffer() vulkan.CommandBuffer
	Framebuffer() vulkan.Framebuffer
	Extent() vulkan.Extent2D
	DescriptorSet() vulkan.DescriptorSet
}

type frameContext struct {
	slot       *FrameSlot
	state      *SwapchainState
	imageIndex int
}

func (c *frameContext) CommandBuffer() vulkan.CommandBuffer { return c.slot.CommandBuffer }
func (c *frameContext) Framebuffer() vulkan.Framebuffer     { return c.state.Framebuffers[c.imageIndex] }
func (c *frameContext) Extent() vulkan.Extent2D             { return c.state.Extent }
func (c *frameContext) DescriptorSet() vulkan.DescriptorSet { return c.slot.DescriptorSet }
