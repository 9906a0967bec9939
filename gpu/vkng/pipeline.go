package vkng

import (
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	attachments := []core1_0.AttachmentDescription{
		{
			Format:         core1_0.Format(info.ColorFormat),
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		},
	}
	subpass := core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments: []core1_0.AttachmentReference{
			{
				Attachment: 0,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
	}
	dependency := core1_0.SubpassDependency{
		SrcSubpass: core1_0.SubpassExternal,
		DstSubpass: 0,

		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		SrcAccessMask: 0,

		DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstAccessMask: core1_0.AccessColorAttachmentWrite,
	}

	if info.DepthFormat != gpu.FormatUndefined {
		attachments = append(attachments, core1_0.AttachmentDescription{
			Format:         core1_0.Format(info.DepthFormat),
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpDontCare,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.DepthStencilAttachment = &core1_0.AttachmentReference{
			Attachment: 1,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}
		dependency.SrcStageMask |= core1_0.PipelineStageEarlyFragmentTests
		dependency.DstStageMask |= core1_0.PipelineStageEarlyFragmentTests
		dependency.DstAccessMask |= core1_0.AccessDepthStencilAttachmentWrite
	}

	renderPass, _, err := d.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments:         attachments,
		Subpasses:           []core1_0.SubpassDescription{subpass},
		SubpassDependencies: []core1_0.SubpassDependency{dependency},
	})
	if err != nil {
		return 0, err
	}
	return gpu.RenderPass(d.renderPasses.put(renderPass)), nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.RenderPass) {
	if rp, ok := d.renderPasses.take(uint64(renderPass)); ok {
		d.deviceDriver.DestroyRenderPass(rp, nil)
	}
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	renderPass, err := d.renderPasses.get(uint64(info.RenderPass))
	if err != nil {
		return 0, err
	}

	var attachments []core1_0.ImageView
	for _, handle := range info.Attachments {
		view, err := d.views.get(uint64(handle))
		if err != nil {
			return 0, err
		}
		attachments = append(attachments, view)
	}

	framebuffer, _, err := d.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  renderPass,
		Layers:      1,
		Attachments: attachments,
		Width:       info.Extent.Width,
		Height:      info.Extent.Height,
	})
	if err != nil {
		return 0, err
	}
	return gpu.Framebuffer(d.framebuffers.put(framebuffer)), nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	if fb, ok := d.framebuffers.take(uint64(framebuffer)); ok {
		d.deviceDriver.DestroyFramebuffer(fb, nil)
	}
}

// bytesToBytecode reinterprets little-endian SPIR-V bytes as 32-bit words.
func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteIndex := i * 4
		byteCode[i] = uint32(b[byteIndex]) |
			uint32(b[byteIndex+1])<<8 |
			uint32(b[byteIndex+2])<<16 |
			uint32(b[byteIndex+3])<<24
	}
	return byteCode
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Newf("shader bytecode length %d is not a positive multiple of 4", len(code))
	}

	module, _, err := d.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(code),
	})
	if err != nil {
		return 0, err
	}
	return gpu.ShaderModule(d.shaders.put(module)), nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	if m, ok := d.shaders.take(uint64(module)); ok {
		d.deviceDriver.DestroyShaderModule(m, nil)
	}
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	var layouts []core1_0.DescriptorSetLayout
	for _, handle := range setLayouts {
		layout, err := d.setLayouts.get(uint64(handle))
		if err != nil {
			return 0, err
		}
		layouts = append(layouts, layout)
	}

	layout, _, err := d.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: layouts,
	})
	if err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(d.pipelineLayouts.put(layout)), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	if l, ok := d.pipelineLayouts.take(uint64(layout)); ok {
		d.deviceDriver.DestroyPipelineLayout(l, nil)
	}
}

func vertexInput(stride int, attributes []gpu.VertexAttribute) *core1_0.PipelineVertexInputStateCreateInfo {
	input := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    stride,
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
	}
	for _, attr := range attributes {
		input.VertexAttributeDescriptions = append(input.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
			Binding:  0,
			Location: attr.Location,
			Format:   core1_0.Format(attr.Format),
			Offset:   attr.Offset,
		})
	}
	return input
}

// CreateGraphicsPipeline builds a triangle-list pipeline with dynamic
// viewport and scissor, so it survives swapchain resizes unchanged in shape.
func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	layout, err := d.pipelineLayouts.get(uint64(info.Layout))
	if err != nil {
		return 0, err
	}
	renderPass, err := d.renderPasses.get(uint64(info.RenderPass))
	if err != nil {
		return 0, err
	}

	var stages []core1_0.PipelineShaderStageCreateInfo
	for _, stage := range info.Stages {
		module, err := d.shaders.get(uint64(stage.Module))
		if err != nil {
			return 0, err
		}
		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  core1_0.ShaderStageFlags(stage.Stage),
			Module: module,
			Name:   "main",
		})
	}

	createInfo := core1_0.GraphicsPipelineCreateInfo{
		Stages:           stages,
		VertexInputState: vertexInput(info.VertexStride, info.VertexAttributes),
		InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
			Topology: core1_0.PrimitiveTopologyTriangleList,
		},
		ViewportState: &core1_0.PipelineViewportStateCreateInfo{
			Viewports: []core1_0.Viewport{{Width: 1, Height: 1, MaxDepth: 1}},
			Scissors:  []core1_0.Rect2D{{Extent: core1_0.Extent2D{Width: 1, Height: 1}}},
		},
		RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
			PolygonMode: core1_0.PolygonModeFill,
			CullMode:    core1_0.CullModeBack,
			FrontFace:   core1_0.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
			RasterizationSamples: core1_0.Samples1,
			MinSampleShading:     1.0,
		},
		ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
			LogicOp: core1_0.LogicOpCopy,
			Attachments: []core1_0.PipelineColorBlendAttachmentState{
				{
					ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
				},
			},
		},
		DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
		},
		Layout:            layout,
		RenderPass:        renderPass,
		Subpass:           0,
		BasePipelineIndex: -1,
	}

	if info.DepthTest {
		createInfo.DepthStencilState = &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:  true,
			DepthWriteEnable: true,
			DepthCompareOp:   core1_0.CompareOpLess,
		}
	}
	if info.AllowDerivatives {
		createInfo.Flags |= core1_0.PipelineCreateAllowDerivatives
	}
	if info.Base != 0 {
		base, err := d.pipelines.get(uint64(info.Base))
		if err != nil {
			return 0, err
		}
		createInfo.Flags |= core1_0.PipelineCreateDerivative
		createInfo.BasePipeline = base
	}

	var cache *core1_0.PipelineCache
	if info.Cache != 0 {
		c, err := d.pipelineCaches.get(uint64(info.Cache))
		if err != nil {
			return 0, err
		}
		cache = &c
	}

	pipelines, _, err := d.deviceDriver.CreateGraphicsPipelines(cache, nil, createInfo)
	if err != nil {
		return 0, err
	}
	return gpu.Pipeline(d.pipelines.put(pipelines[0])), nil
}

// CreatePipelineCache creates an empty in-memory cache. Pipelines built
// through it after a swapchain recreation reuse the compiled state.
func (d *Device) CreatePipelineCache() (gpu.PipelineCache, error) {
	cache, _, err := d.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{})
	if err != nil {
		return 0, err
	}
	return gpu.PipelineCache(d.pipelineCaches.put(cache)), nil
}

func (d *Device) DestroyPipelineCache(cache gpu.PipelineCache) {
	if c, ok := d.pipelineCaches.take(uint64(cache)); ok {
		d.deviceDriver.DestroyPipelineCache(c, nil)
	}
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	if p, ok := d.pipelines.take(uint64(pipeline)); ok {
		d.deviceDriver.DestroyPipeline(p, nil)
	}
}
