package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// Drawer records the draw commands of one frame.
type Drawer interface {
	Draw(rec Recorder, ctx Context) error
}

// UniformWriter fills a frame's uniform window just before submission.
type UniformWriter interface {
	WriteUniforms(dst []byte, extent vulkan.Extent2D)
}

// PipelineDevice is what the frame loop drives directly.
type PipelineDevice interface {
	SyncDevice
	CommandDevice
	Recorder
}

// FramePipeline runs the per-frame acquire, record, submit and present
// protocol over a ring of frame slots.
type FramePipeline struct {
	dev       PipelineDevice
	swapchain *Swapchain
	frames    *FrameSet
	drawer    Drawer
	uniforms  UniformWriter
}

func NewFramePipeline(dev PipelineDevice, swapchain *Swapchain, frames *FrameSet, drawer Drawer, uniforms UniformWriter) *FramePipeline {
	return &FramePipeline{
		dev:       dev,
		swapchain: swapchain,
		frames:    frames,
		drawer:    drawer,
		uniforms:  uniforms,
	}
}

// DrawFrame renders and presents one frame. resized reports that the window
// framebuffer changed since the last call. Out-of-date and suboptimal
// swapchains are handled here by recreation and never returned as errors.
// A panic while recording is returned as an error.
func (p *FramePipeline) DrawFrame(resized bool) (err error) {
	defer CheckError(&err)
	slot := p.frames.Current()

	if err := p.dev.WaitForFence(slot.InFlight); err != nil {
		return errors.Wrap(err, "wait for frame fence")
	}

	imageIndex, acquired, err := p.swapchain.Acquire(slot.ImageAcquired)
	if err != nil {
		return err
	}
	if acquired == StatusOutOfDate {
		// The fence is still signalled, so the slot can be reused next call.
		Logger().Debug("swapchain out of date on acquire")
		return p.swapchain.Recreate()
	}

	state := p.swapchain.State()
	p.uniforms.WriteUniforms(slot.UniformWindow, state.Extent)

	if err := p.dev.ResetFence(slot.InFlight); err != nil {
		return errors.Wrap(err, "reset frame fence")
	}
	if err := p.record(slot, state, int(imageIndex)); err != nil {
		return errors.Wrap(err, "record frame")
	}

	err = p.dev.Submit(slot.CommandBuffer, SubmitSync{
		Wait:      slot.ImageAcquired,
		WaitStage: vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		Signal:    slot.RenderComplete,
		Fence:     slot.InFlight,
	})
	if err != nil {
		return errors.Wrap(err, "submit frame")
	}

	presented, err := p.swapchain.Present(imageIndex, slot.RenderComplete)
	if err != nil {
		return err
	}
	p.frames.Advance()

	if presented != StatusOK || acquired == StatusSuboptimal || resized {
		Logger().Debug("recreating swapchain after present",
			"present", presented.String(), "acquire", acquired.String(), "resized", resized)
		return p.swapchain.Recreate()
	}
	return nil
}

func (p *FramePipeline) record(slot *FrameSlot, state *SwapchainState, imageIndex int) error {
	cb := slot.CommandBuffer
	if err := p.dev.ResetCommandBuffer(cb); err != nil {
		return err
	}
	if err := p.dev.BeginCommandBuffer(cb, false); err != nil {
		return err
	}
	ctx := &frameContext{
		slot:       slot,
		state:      state,
		imageIndex: imageIndex,
	}
	if err := p.drawer.Draw(p.dev, ctx); err != nil {
		_ = p.dev.EndCommandBuffer(cb)
		return err
	}
	return p.dev.EndCommandBuffer(cb)
}

// Shutdown drains the device. Nothing may be destroyed before it returns.
func (p *FramePipeline) Shutdown() error {
	return errors.Wrap(p.dev.WaitIdle(), "wait for device idle")
}

// Model draws one indexed mesh with a single descriptor set.
type Model struct {
	RenderPass vulkan.RenderPass
	Pipeline   vulkan.Pipeline
	Layout     vulkan.PipelineLayout
	Vertices   Buffer
	Indices    Buffer
	IndexCount uint32
	ClearColor [4]float32
}

func (m *Model) Draw(rec Recorder, ctx Context) error {
	cb := ctx.CommandBuffer()
	rec.CmdBeginRenderPass(cb, RenderPassBegin{
		RenderPass:  m.RenderPass,
		Framebuffer: ctx.Framebuffer(),
		Extent:      ctx.Extent(),
		ClearColor:  m.ClearColor,
		ClearDepth:  1,
	})
	rec.CmdBindPipeline(cb, m.Pipeline)
	rec.CmdBindGeometry(cb, m.Vertices.Handle, m.Indices.Handle)
	rec.CmdBindDescriptorSet(cb, m.Layout, ctx.DescriptorSet())
	rec.CmdSetViewportScissor(cb, ctx.Extent())
	rec.CmdDrawIndexed(cb, m.IndexCount)
	rec.CmdEndRenderPass(cb)
	return nil
}
