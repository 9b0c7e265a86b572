// Package viewer assembles the window, the device and the frame pipeline
// into a model viewer.
package viewer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/asset"
	"vkmodel/src/platform"
	"vkmodel/src/render"
	"vkmodel/src/render/gpu"
)

// releaser runs teardown steps in the reverse of the order they were
// added.
type releaser []func()

func (r *releaser) add(f func()) {
	*r = append(*r, f)
}

func (r *releaser) release() {
	for i := len(*r) - 1; i >= 0; i-- {
		(*r)[i]()
	}
	*r = nil
}

// Viewer owns every object needed to draw the model.
type Viewer struct {
	cfg       Config
	window    *platform.Window
	device    *gpu.Device
	swapchain *render.Swapchain
	frames    *render.FrameSet
	pipeline  *render.FramePipeline
	teardown  releaser
}

// New opens the window and builds the device, the swapchain with its
// targets, the graphics pipeline, the uploaded assets and the per-frame
// resources. On failure everything already created is released.
func New(cfg Config) (_ *Viewer, err error) {
	v := &Viewer{cfg: cfg}
	defer func() {
		if err != nil {
			v.teardown.release()
		}
	}()
	// Runs first, so a panic during setup still releases what was built.
	defer render.CheckError(&err)
	log := render.Logger()

	v.window, err = platform.NewWindow(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	v.teardown.add(v.window.Close)

	if err := gpu.Init(platform.ProcAddr()); err != nil {
		return nil, err
	}
	inst, err := gpu.NewInstance(cfg.Title, v.window.RequiredExtensions(), cfg.Validation)
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}
	v.teardown.add(inst.Destroy)

	surface, err := v.window.CreateSurface(inst.Handle)
	if err != nil {
		return nil, err
	}
	v.teardown.add(func() { inst.DestroySurface(surface) })

	pd, err := gpu.SelectPhysicalDevice(inst, surface, cfg.RequireAnisotropy)
	if err != nil {
		return nil, err
	}
	dev, err := gpu.NewDevice(pd, surface, inst.Validation)
	if err != nil {
		return nil, errors.Wrap(err, "create device")
	}
	v.device = dev
	v.teardown.add(dev.Destroy)

	v.swapchain = render.NewSwapchain(dev, v.window)
	if err := v.swapchain.Create(); err != nil {
		return nil, err
	}
	v.teardown.add(v.swapchain.Destroy)

	depthFormat, err := dev.FindDepthFormat()
	if err != nil {
		return nil, err
	}
	samples := sampleCount(pd.Samples, cfg.MaxSamples)
	pass, err := dev.NewRenderPass(v.swapchain.State().Format.Format, depthFormat, samples)
	if err != nil {
		return nil, err
	}
	v.teardown.add(func() { dev.DestroyRenderPass(pass) })
	if err := v.swapchain.BuildTargets(render.TargetConfig{
		RenderPass:  pass,
		DepthFormat: depthFormat,
		Samples:     samples,
	}); err != nil {
		return nil, err
	}
	// Framebuffers reference the pass, so the generation goes first. The
	// earlier Destroy is then a no-op.
	v.teardown.add(v.swapchain.Destroy)
	log.Info("render targets ready", "depth_format", depthFormat, "samples", samples)

	setLayout, err := dev.NewDescriptorSetLayout()
	if err != nil {
		return nil, err
	}
	v.teardown.add(func() { dev.DestroyDescriptorSetLayout(setLayout) })

	pipeline, err := v.buildPipeline(pass, setLayout, samples)
	if err != nil {
		return nil, err
	}
	v.teardown.add(func() { dev.DestroyPipeline(pipeline) })

	transfer := render.NewTransfer(dev, dev, dev)
	model, err := v.uploadMesh(transfer)
	if err != nil {
		return nil, err
	}
	model.RenderPass = pass
	model.Pipeline = pipeline.Handle
	model.Layout = pipeline.Layout
	model.ClearColor = cfg.ClearColor

	texture, err := v.uploadTexture(transfer, pd.MaxTextureSize)
	if err != nil {
		return nil, err
	}

	v.frames, err = render.NewFrameSet(dev, render.FrameSetConfig{
		Frames:      cfg.FramesInFlight,
		UniformSize: render.UniformSize,
		Layout:      setLayout,
		Texture:     texture,
	})
	if err != nil {
		return nil, err
	}
	v.teardown.add(v.frames.Destroy)

	v.pipeline = render.NewFramePipeline(dev, v.swapchain, v.frames, model, render.NewSpinner())
	return v, nil
}

func (v *Viewer) buildPipeline(pass vulkan.RenderPass, setLayout vulkan.DescriptorSetLayout, samples vulkan.SampleCountFlagBits) (*gpu.Pipeline, error) {
	vert, err := asset.LoadShader(v.cfg.VertexShader)
	if err != nil {
		return nil, err
	}
	frag, err := asset.LoadShader(v.cfg.FragmentShader)
	if err != nil {
		return nil, err
	}
	return v.device.NewPipeline(gpu.PipelineConfig{
		RenderPass:     pass,
		SetLayout:      setLayout,
		Samples:        samples,
		VertexShader:   vert,
		FragmentShader: frag,
		Binding:        asset.VertexBinding(),
		Attributes:     asset.VertexAttributes(),
	})
}

func (v *Viewer) uploadMesh(transfer *render.Transfer) (*render.Model, error) {
	mesh := asset.Quads()
	if v.cfg.ModelPath != "" {
		var err error
		if mesh, err = asset.LoadOBJ(v.cfg.ModelPath); err != nil {
			return nil, err
		}
	}
	render.Logger().Info("mesh loaded", "vertices", len(mesh.Vertices), "indices", len(mesh.Indices))

	vertices, err := transfer.Upload(render.VertexBuffer, mesh.VertexBytes())
	if err != nil {
		return nil, err
	}
	v.teardown.add(func() { v.device.DestroyBuffer(vertices) })
	indices, err := transfer.Upload(render.IndexBuffer, mesh.IndexBytes())
	if err != nil {
		return nil, err
	}
	v.teardown.add(func() { v.device.DestroyBuffer(indices) })

	return &render.Model{
		Vertices:   vertices,
		Indices:    indices,
		IndexCount: uint32(len(mesh.Indices)),
	}, nil
}

func (v *Viewer) uploadTexture(transfer *render.Transfer, maxSize uint32) (render.Texture, error) {
	pixels := asset.Checkerboard(256, 32)
	if v.cfg.TexturePath != "" {
		var err error
		if pixels, err = asset.LoadTexture(v.cfg.TexturePath, maxSize); err != nil {
			return render.Texture{}, err
		}
	}

	img, err := transfer.UploadTexture(pixels.Data, pixels.Width, pixels.Height)
	if err != nil {
		return render.Texture{}, err
	}
	v.teardown.add(func() { v.device.DestroyImage(img) })

	sampler, err := v.device.NewSampler(img.Spec.MipLevels)
	if err != nil {
		return render.Texture{}, err
	}
	v.teardown.add(func() { v.device.DestroySampler(sampler) })

	render.Logger().Info("texture uploaded",
		"width", pixels.Width, "height", pixels.Height, "mip_levels", img.Spec.MipLevels)
	return render.Texture{Image: img, Sampler: sampler}, nil
}

const statsInterval = 5 * time.Second

// Run draws frames until the window is closed or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	log := render.Logger()
	frames, since := 0, time.Now()
	for !v.window.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		v.window.PollEvents()
		if err := v.pipeline.DrawFrame(v.window.TakeResized()); err != nil {
			return errors.Wrap(err, "draw frame")
		}

		frames++
		if elapsed := time.Since(since); elapsed >= statsInterval {
			log.Debug("frame rate", "fps", float64(frames)/elapsed.Seconds())
			frames, since = 0, time.Now()
		}
	}
	return nil
}

// Close drains the GPU and releases everything New created.
func (v *Viewer) Close() error {
	var err error
	if v.pipeline != nil {
		err = v.pipeline.Shutdown()
	}
	v.teardown.release()
	return err
}
