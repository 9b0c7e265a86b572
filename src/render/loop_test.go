package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

type countingUniforms struct {
	writes int
	last   vulkan.Extent2D
}

func (u *countingUniforms) WriteUniforms(dst []byte, extent vulkan.Extent2D) {
	u.writes++
	u.last = extent
	dst[0] = byte(u.writes)
}

type testPipeline struct {
	dev       *fakeDevice
	window    *fakeWindow
	swapchain *Swapchain
	frames    *FrameSet
	uniforms  *countingUniforms
	pipeline  *FramePipeline
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	dev := newFakeDevice()
	win := &fakeWindow{sizes: [][2]int{{800, 600}}}
	sc := newTestSwapchain(t, dev, win, vulkan.SampleCount4Bit)
	frames := newTestFrameSet(t, dev, FramesInFlight)
	uniforms := &countingUniforms{}
	model := &Model{
		RenderPass: vulkan.RenderPass(newHandle()),
		Pipeline:   vulkan.Pipeline(newHandle()),
		Layout:     vulkan.PipelineLayout(newHandle()),
		IndexCount: 6,
	}
	return &testPipeline{
		dev:       dev,
		window:    win,
		swapchain: sc,
		frames:    frames,
		uniforms:  uniforms,
		pipeline:  NewFramePipeline(dev, sc, frames, model, uniforms),
	}
}

func (p *testPipeline) swapchainsCreated() int {
	return len(p.dev.opsFor("CreateSwapchain"))
}

func TestDrawFrameFenceOrdering(t *testing.T) {
	p := newTestPipeline(t)
	const frames = 7
	for i := 0; i < frames; i++ {
		require.NoError(t, p.pipeline.DrawFrame(false))
	}
	require.Equal(t, frames, p.dev.draws)
	require.Equal(t, frames, p.uniforms.writes)
	require.Empty(t, p.dev.violations)

	// For each frame the slot fence is waited on, then reset, then the
	// command buffer is reset, then the fence is handed to the submit.
	var seq []fakeCall
	for _, c := range p.dev.calls {
		switch c.Op {
		case "WaitForFence", "ResetFence", "ResetCommandBuffer", "Submit":
			seq = append(seq, c)
		}
	}
	require.Len(t, seq, 4*frames)
	for i := 0; i < frames; i++ {
		slot := p.frames.Slot(i)
		step := seq[4*i : 4*i+4]
		require.Equal(t, "WaitForFence", step[0].Op)
		require.True(t, slot.InFlight == step[0].Fence, "frame %d waits on its slot fence", i)
		require.Equal(t, "ResetFence", step[1].Op)
		require.True(t, slot.InFlight == step[1].Fence, "frame %d resets its slot fence", i)
		require.Equal(t, "ResetCommandBuffer", step[2].Op)
		require.True(t, slot.CommandBuffer == step[2].CB, "frame %d resets its slot command buffer", i)
		require.Equal(t, "Submit", step[3].Op)
		require.True(t, slot.InFlight == step[3].Fence, "frame %d submits with its slot fence", i)
		require.True(t, slot.CommandBuffer == step[3].CB, "frame %d submits its slot command buffer", i)
		require.False(t, p.frames.Slot(i+1).InFlight == step[0].Fence, "frame %d waits on another slot's fence", i)
	}
}

func TestDrawFrameRotatesSlots(t *testing.T) {
	p := newTestPipeline(t)
	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < FramesInFlight; i++ {
			require.Equal(t, i, p.frames.Index())
			require.NoError(t, p.pipeline.DrawFrame(false))
		}
		require.Equal(t, 0, p.frames.Index())
	}
	require.Empty(t, p.dev.violations)
}

func TestDrawFrameWritesCurrentSlotUniforms(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.pipeline.DrawFrame(false))
	require.NoError(t, p.pipeline.DrawFrame(false))
	require.Equal(t, byte(1), p.frames.Slot(0).UniformWindow[0])
	require.Equal(t, byte(2), p.frames.Slot(1).UniformWindow[0])
	require.Equal(t, vulkan.Extent2D{Width: 800, Height: 600}, p.uniforms.last)
}

func TestDrawFrameAcquireOutOfDate(t *testing.T) {
	p := newTestPipeline(t)
	p.dev.acquireResults = []vulkan.Result{vulkan.ErrorOutOfDate}
	slot := p.frames.Current()

	require.NoError(t, p.pipeline.DrawFrame(false))
	require.Equal(t, 2, p.swapchainsCreated())
	require.Zero(t, p.dev.submits)
	require.Empty(t, p.dev.opsFor("ResetFence"))
	require.Empty(t, p.dev.opsFor("QueuePresent"))
	require.Equal(t, 0, p.frames.Index())
	require.True(t, p.dev.fences[slot.InFlight].signaled)

	// The next frame reuses the same slot without deadlocking on its fence.
	require.NoError(t, p.pipeline.DrawFrame(false))
	require.Equal(t, 1, p.dev.submits)
	require.Empty(t, p.dev.violations)
}

func TestDrawFrameAcquireSuboptimal(t *testing.T) {
	p := newTestPipeline(t)
	p.dev.acquireResults = []vulkan.Result{vulkan.Suboptimal}

	require.NoError(t, p.pipeline.DrawFrame(false))
	require.Equal(t, 1, p.dev.submits)
	require.Len(t, p.dev.opsFor("QueuePresent"), 1)
	require.Equal(t, 2, p.swapchainsCreated())
	require.Equal(t, 1, p.frames.Index())

	present, created := -1, -1
	for i, c := range p.dev.calls {
		switch c.Op {
		case "QueuePresent":
			present = i
		case "CreateSwapchain":
			created = i
		}
	}
	require.Less(t, present, created)
	require.Empty(t, p.dev.violations)
}

func TestDrawFramePresentResults(t *testing.T) {
	for _, tc := range []struct {
		name     string
		result   vulkan.Result
		resized  bool
		recreate bool
	}{
		{"success", vulkan.Success, false, false},
		{"out of date", vulkan.ErrorOutOfDate, false, true},
		{"suboptimal", vulkan.Suboptimal, false, true},
		{"resized", vulkan.Success, true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t)
			p.dev.presentResults = []vulkan.Result{tc.result}

			require.NoError(t, p.pipeline.DrawFrame(tc.resized))
			want := 1
			if tc.recreate {
				want = 2
			}
			require.Equal(t, want, p.swapchainsCreated())
			require.Equal(t, 1, p.frames.Index())

			for i := 0; i < 2*FramesInFlight; i++ {
				require.NoError(t, p.pipeline.DrawFrame(false))
			}
			require.Empty(t, p.dev.violations)
		})
	}
}

func TestDrawFrameHardErrors(t *testing.T) {
	p := newTestPipeline(t)
	p.dev.acquireResults = []vulkan.Result{vulkan.ErrorDeviceLost}
	err := p.pipeline.DrawFrame(false)
	var res *ResultError
	require.True(t, errors.As(err, &res))
	require.Equal(t, vulkan.ErrorDeviceLost, res.Result)
	require.Zero(t, p.dev.submits)

	p.dev.presentResults = []vulkan.Result{vulkan.ErrorSurfaceLost}
	err = p.pipeline.DrawFrame(false)
	require.True(t, errors.As(err, &res))
	require.Equal(t, vulkan.ErrorSurfaceLost, res.Result)
	require.Equal(t, 0, p.frames.Index())
}

type panickingDrawer struct{}

func (panickingDrawer) Draw(Recorder, Context) error {
	panic("drawer blew up")
}

func TestDrawFrameRecoversDrawerPanic(t *testing.T) {
	p := newTestPipeline(t)
	p.pipeline.drawer = panickingDrawer{}

	var err error
	require.NotPanics(t, func() { err = p.pipeline.DrawFrame(false) })
	require.Error(t, err)
	require.Contains(t, err.Error(), "drawer blew up")
	require.Zero(t, p.dev.submits)
}

func TestShutdownDrainsBeforeTeardown(t *testing.T) {
	p := newTestPipeline(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.pipeline.DrawFrame(false))
	}
	require.NoError(t, p.pipeline.Shutdown())
	p.frames.Destroy()
	p.swapchain.Destroy()
	require.Zero(t, p.dev.live())
	require.Empty(t, p.dev.violations)
}
