package gpu

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

var depthCandidates = []vulkan.Format{
	vulkan.FormatD32Sfloat,
	vulkan.FormatD32SfloatS8Uint,
	vulkan.FormatD24UnormS8Uint,
}

// FindDepthFormat returns the first depth format usable as an optimally
// tiled depth attachment.
func (d *Device) FindDepthFormat() (vulkan.Format, error) {
	return d.findSupportedFormat(depthCandidates, vulkan.ImageTilingOptimal,
		vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit))
}

func (d *Device) findSupportedFormat(candidates []vulkan.Format, tiling vulkan.ImageTiling, features vulkan.FormatFeatureFlags) (vulkan.Format, error) {
	for _, format := range candidates {
		var props vulkan.FormatProperties
		vulkan.GetPhysicalDeviceFormatProperties(d.physical.Handle, format, &props)
		props.Deref()
		if tiling == vulkan.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		}
		if tiling == vulkan.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return vulkan.FormatUndefined, errors.Wrap(render.ErrUnsupportedFormat, "no depth format")
}

// renderPassAttachments lays out the attachments in framebuffer order. A
// multisampled pass renders into a transient color target and resolves into
// the presentable image.
func renderPassAttachments(color, depth vulkan.Format, samples vulkan.SampleCountFlagBits) []vulkan.AttachmentDescription {
	msaa := samples > vulkan.SampleCount1Bit
	colorAttachment := vulkan.AttachmentDescription{
		Format:         color,
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	depthAttachment := vulkan.AttachmentDescription{
		Format:         depth,
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpDontCare,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	if !msaa {
		return []vulkan.AttachmentDescription{colorAttachment, depthAttachment}
	}

	colorAttachment.StoreOp = vulkan.AttachmentStoreOpDontCare
	colorAttachment.FinalLayout = vulkan.ImageLayoutColorAttachmentOptimal
	resolve := vulkan.AttachmentDescription{
		Format:         color,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpDontCare,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	return []vulkan.AttachmentDescription{colorAttachment, depthAttachment, resolve}
}

func subpassDescription(msaa bool) vulkan.SubpassDescription {
	colorRef := vulkan.AttachmentReference{Attachment: 0, Layout: vulkan.ImageLayoutColorAttachmentOptimal}
	depthRef := vulkan.AttachmentReference{Attachment: 1, Layout: vulkan.ImageLayoutDepthStencilAttachmentOptimal}
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:       vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vulkan.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
	}
	if msaa {
		subpass.PResolveAttachments = []vulkan.AttachmentReference{
			{Attachment: 2, Layout: vulkan.ImageLayoutColorAttachmentOptimal},
		}
	}
	return subpass
}

// NewRenderPass creates the single-subpass pass every framebuffer is built
// against. It does not depend on the swapchain extent and survives
// recreation.
func (d *Device) NewRenderPass(color, depth vulkan.Format, samples vulkan.SampleCountFlagBits) (vulkan.RenderPass, error) {
	attachments := renderPassAttachments(color, depth, samples)
	dependency := vulkan.SubpassDependency{
		SrcSubpass: vulkan.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit |
			vulkan.PipelineStageEarlyFragmentTestsBit),
		DstStageMask: vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit |
			vulkan.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit |
			vulkan.AccessDepthStencilAttachmentWriteBit),
	}
	info := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpassDescription(samples > vulkan.SampleCount1Bit)},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}
	var pass vulkan.RenderPass
	if err := render.NewError("create render pass", vulkan.CreateRenderPass(d.handle, &info, nil, &pass)); err != nil {
		return vulkan.RenderPass(vulkan.NullHandle), err
	}
	return pass, nil
}

func (d *Device) DestroyRenderPass(pass vulkan.RenderPass) {
	vulkan.DestroyRenderPass(d.handle, pass, nil)
}

// NewDescriptorSetLayout declares the uniform buffer for the vertex stage
// and the combined image sampler for the fragment stage.
func (d *Device) NewDescriptorSetLayout() (vulkan.DescriptorSetLayout, error) {
	bindings := []vulkan.DescriptorSetLayoutBinding{
		{
			Binding:         uniformBinding,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
		},
		{
			Binding:         samplerBinding,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit),
		},
	}
	info := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vulkan.DescriptorSetLayout
	if err := render.NewError("create descriptor set layout", vulkan.CreateDescriptorSetLayout(d.handle, &info, nil, &layout)); err != nil {
		return vulkan.DescriptorSetLayout(vulkan.NullHandle), err
	}
	return layout, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout vulkan.DescriptorSetLayout) {
	vulkan.DestroyDescriptorSetLayout(d.handle, layout, nil)
}

// PipelineConfig is everything needed to build the graphics pipeline.
type PipelineConfig struct {
	RenderPass     vulkan.RenderPass
	SetLayout      vulkan.DescriptorSetLayout
	Samples        vulkan.SampleCountFlagBits
	VertexShader   []uint32
	FragmentShader []uint32
	Binding        vulkan.VertexInputBindingDescription
	Attributes     []vulkan.VertexInputAttributeDescription
}

// Pipeline is a graphics pipeline and its layout.
type Pipeline struct {
	Handle vulkan.Pipeline
	Layout vulkan.PipelineLayout
}

// NewPipeline builds a triangle-list pipeline with dynamic viewport and
// scissor, back-face culling and a less-than depth test.
func (d *Device) NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	vert, err := d.shaderModule(cfg.VertexShader)
	if err != nil {
		return nil, errors.Wrap(err, "vertex shader")
	}
	defer vulkan.DestroyShaderModule(d.handle, vert, nil)
	frag, err := d.shaderModule(cfg.FragmentShader)
	if err != nil {
		return nil, errors.Wrap(err, "fragment shader")
	}
	defer vulkan.DestroyShaderModule(d.handle, frag, nil)

	stages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vert,
			PName:  "main\x00",
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		},
	}

	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vulkan.VertexInputBindingDescription{cfg.Binding},
		VertexAttributeDescriptionCount: uint32(len(cfg.Attributes)),
		PVertexAttributeDescriptions:    cfg.Attributes,
	}
	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vulkan.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vulkan.False,
	}
	viewport := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:       vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vulkan.PolygonModeFill,
		CullMode:    vulkan.CullModeFlags(vulkan.CullModeBackBit),
		FrontFace:   vulkan.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: max(cfg.Samples, vulkan.SampleCount1Bit),
		MinSampleShading:     1.0,
	}
	depthStencil := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:            vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vulkan.True,
		DepthWriteEnable: vulkan.True,
		DepthCompareOp:   vulkan.CompareOpLess,
		MaxDepthBounds:   1,
	}
	colorBlend := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vulkan.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vulkan.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit |
				vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		}},
	}
	dynamicStates := []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor}
	dynamic := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	layoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:          vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vulkan.DescriptorSetLayout{cfg.SetLayout},
	}
	var layout vulkan.PipelineLayout
	if err := render.NewError("create pipeline layout", vulkan.CreatePipelineLayout(d.handle, &layoutInfo, nil, &layout)); err != nil {
		return nil, err
	}

	infos := []vulkan.GraphicsPipelineCreateInfo{{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          cfg.RenderPass,
		BasePipelineHandle:  vulkan.Pipeline(vulkan.NullHandle),
		BasePipelineIndex:   -1,
	}}
	pipelines := make([]vulkan.Pipeline, 1)
	if err := render.NewError("create graphics pipeline",
		vulkan.CreateGraphicsPipelines(d.handle, vulkan.PipelineCache(vulkan.NullHandle), 1, infos, nil, pipelines)); err != nil {
		vulkan.DestroyPipelineLayout(d.handle, layout, nil)
		return nil, err
	}
	return &Pipeline{Handle: pipelines[0], Layout: layout}, nil
}

func (d *Device) DestroyPipeline(p *Pipeline) {
	vulkan.DestroyPipeline(d.handle, p.Handle, nil)
	vulkan.DestroyPipelineLayout(d.handle, p.Layout, nil)
}

func (d *Device) shaderModule(code []uint32) (vulkan.ShaderModule, error) {
	info := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vulkan.ShaderModule
	if err := render.NewError("create shader module", vulkan.CreateShaderModule(d.handle, &info, nil, &module)); err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), err
	}
	return module, nil
}

// samplerInfo samples linearly across mipLevels levels with repeat
// addressing. maxAnisotropy of zero disables anisotropic filtering.
func samplerInfo(mipLevels uint32, maxAnisotropy float32) vulkan.SamplerCreateInfo {
	info := vulkan.SamplerCreateInfo{
		SType:            vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:        vulkan.FilterLinear,
		MinFilter:        vulkan.FilterLinear,
		MipmapMode:       vulkan.SamplerMipmapModeLinear,
		AddressModeU:     vulkan.SamplerAddressModeRepeat,
		AddressModeV:     vulkan.SamplerAddressModeRepeat,
		AddressModeW:     vulkan.SamplerAddressModeRepeat,
		AnisotropyEnable: vulkan.False,
		MaxAnisotropy:    1,
		CompareEnable:    vulkan.False,
		CompareOp:        vulkan.CompareOpAlways,
		MinLod:           0,
		MaxLod:           float32(mipLevels),
		BorderColor:      vulkan.BorderColorIntOpaqueBlack,
	}
	if maxAnisotropy > 0 {
		info.AnisotropyEnable = vulkan.True
		info.MaxAnisotropy = maxAnisotropy
	}
	return info
}

// NewSampler creates the texture sampler for an image with mipLevels
// levels, using the adapter's anisotropy limit when the feature is enabled.
func (d *Device) NewSampler(mipLevels uint32) (vulkan.Sampler, error) {
	var aniso float32
	if d.physical.Anisotropy {
		aniso = d.physical.MaxAnisotropy
	}
	info := samplerInfo(mipLevels, aniso)
	var sampler vulkan.Sampler
	if err := render.NewError("create sampler", vulkan.CreateSampler(d.handle, &info, nil, &sampler)); err != nil {
		return vulkan.Sampler(vulkan.NullHandle), err
	}
	return sampler, nil
}

func (d *Device) DestroySampler(sampler vulkan.Sampler) {
	vulkan.DestroySampler(d.handle, sampler, nil)
}
