// Package vkng implements gpu.Device on top of vkngwrapper and an SDL2 window.
//
// A Device owns the Vulkan instance, the optional debug messenger, the window
// surface and one logical device with a graphics and a present queue. Every
// object created through it is tracked in a handle arena; Close releases
// whatever the caller left behind before destroying the device itself.
package vkng

import (
	"context"
	"log/slog"

	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Config selects instance-level options.
type Config struct {
	AppName    string
	Validation bool
	// DeviceExtensions are required on top of VK_KHR_swapchain.
	DeviceExtensions []string
}

func DefaultConfig() Config {
	return Config{
		AppName:    "ash",
		Validation: false,
	}
}

type queueFamilies struct {
	graphics *int
	present  *int
}

func (q queueFamilies) complete() bool {
	return q.graphics != nil && q.present != nil
}

type Device struct {
	cfg    Config
	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
	swapchainExt     khr_swapchain.ExtensionDriver

	physicalDevice core1_0.PhysicalDevice
	families       queueFamilies
	graphicsQueue  core1_0.Queue
	presentQueue   core1_0.Queue
	maxAnisotropy  float32

	depthFormat gpu.Format

	handles         uint64
	buffers         *arena[allocation[core1_0.Buffer]]
	images          *arena[allocation[core1_0.Image]]
	views           *arena[core1_0.ImageView]
	samplers        *arena[core1_0.Sampler]
	swapchains      *arena[swapchainEntry]
	swapchainImages *arena[core1_0.Image]
	renderPasses    *arena[core1_0.RenderPass]
	framebuffers    *arena[core1_0.Framebuffer]
	shaders         *arena[core1_0.ShaderModule]
	pipelineLayouts *arena[core1_0.PipelineLayout]
	pipelines       *arena[core1_0.Pipeline]
	pipelineCaches  *arena[core1_0.PipelineCache]
	setLayouts      *arena[core1_0.DescriptorSetLayout]
	descriptorPools *arena[core1_0.DescriptorPool]
	descriptorSets  *arena[descriptorSet]
	commandPools    *arena[core1_0.CommandPool]
	commandBuffers  *arena[commandBuffer]
	semaphores      *arena[core1_0.Semaphore]
	fences          *arena[core1_0.Fence]
}

var _ gpu.Device = (*Device)(nil)

func newDevice(cfg Config, window *sdl.Window) *Device {
	d := &Device{cfg: cfg, window: window}
	d.buffers = newArena[allocation[core1_0.Buffer]]("buffer", &d.handles)
	d.images = newArena[allocation[core1_0.Image]]("image", &d.handles)
	d.views = newArena[core1_0.ImageView]("image view", &d.handles)
	d.samplers = newArena[core1_0.Sampler]("sampler", &d.handles)
	d.swapchains = newArena[swapchainEntry]("swapchain", &d.handles)
	d.renderPasses = newArena[core1_0.RenderPass]("render pass", &d.handles)
	d.framebuffers = newArena[core1_0.Framebuffer]("framebuffer", &d.handles)
	d.shaders = newArena[core1_0.ShaderModule]("shader module", &d.handles)
	d.pipelineLayouts = newArena[core1_0.PipelineLayout]("pipeline layout", &d.handles)
	d.pipelines = newArena[core1_0.Pipeline]("pipeline", &d.handles)
	d.pipelineCaches = newArena[core1_0.PipelineCache]("pipeline cache", &d.handles)
	d.setLayouts = newArena[core1_0.DescriptorSetLayout]("descriptor set layout", &d.handles)
	d.descriptorPools = newArena[core1_0.DescriptorPool]("descriptor pool", &d.handles)
	d.descriptorSets = newArena[descriptorSet]("descriptor set", &d.handles)
	d.commandPools = newArena[core1_0.CommandPool]("command pool", &d.handles)
	d.commandBuffers = newArena[commandBuffer]("command buffer", &d.handles)
	d.semaphores = newArena[core1_0.Semaphore]("semaphore", &d.handles)
	d.fences = newArena[core1_0.Fence]("fence", &d.handles)
	d.swapchainImages = newArena[core1_0.Image]("swapchain image", &d.handles)
	return d
}

// Open creates the instance, surface and logical device for window. On
// failure everything created so far is released.
func Open(window *sdl.Window, cfg Config) (*Device, error) {
	d := newDevice(cfg, window)

	var err error
	d.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan loader")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"create instance", d.createInstance},
		{"setup debug messenger", d.setupDebugMessenger},
		{"create surface", d.createSurface},
		{"pick physical device", d.pickPhysicalDevice},
		{"create logical device", d.createLogicalDevice},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			d.Close()
			return nil, errors.Wrap(err, step.name)
		}
	}

	return d, nil
}

func (d *Device) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    d.cfg.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "ash",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := d.window.VulkanGetInstanceExtensions()
	extensions, _, err := d.globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range sdlExtensions {
		if _, ok := extensions[ext]; !ok {
			return errors.Errorf("missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if _, ok := extensions[khr_portability_enumeration.ExtensionName]; ok {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if d.cfg.Validation {
		layers, _, err := d.globalDriver.AvailableLayers()
		if err != nil {
			return err
		}
		if _, ok := layers[validationLayer]; !ok {
			return errors.Errorf("validation layer %s not available, install the LunarG Vulkan SDK", validationLayer)
		}
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayer)
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		instanceOptions.Next = d.debugMessengerOptions()
	}

	d.instanceDriver, _, err = d.globalDriver.CreateInstance(nil, instanceOptions)
	return err
}

func (d *Device) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}
	logging.Logger().Log(context.Background(), level, "vulkan", "type", msgType, "severity", severity, "message", data.Message)
	return false
}

func (d *Device) setupDebugMessenger() error {
	if !d.cfg.Validation {
		return nil
	}

	var err error
	d.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(d.instanceDriver)
	d.debugMessenger, _, err = d.debugDriver.CreateDebugUtilsMessenger(nil, d.debugMessengerOptions())
	return err
}

func (d *Device) createSurface() error {
	d.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(d.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(d.instanceDriver.Instance(), d.surfaceExtension, d.window)
	if err != nil {
		return err
	}
	d.surface = surface
	return nil
}

func (d *Device) requiredExtensions() []string {
	return append([]string{khr_swapchain.ExtensionName}, d.cfg.DeviceExtensions...)
}

func (d *Device) pickPhysicalDevice() error {
	physicalDevices, _, err := d.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	best := -1
	for _, candidate := range physicalDevices {
		families, ok := d.suitable(candidate)
		if !ok {
			continue
		}

		props, err := d.instanceDriver.GetPhysicalDeviceProperties(candidate)
		if err != nil {
			return err
		}
		score := rateDevice(props.Type == core1_0.PhysicalDeviceTypeDiscreteGPU, props.Limits.MaxImageDimension2D)
		logging.Logger().Debug("physical device candidate", "name", props.DeviceName, "score", score)
		if score > best {
			best = score
			d.physicalDevice = candidate
			d.families = families
			d.maxAnisotropy = props.Limits.MaxSamplerAnisotropy
		}
	}

	if !d.physicalDevice.Initialized() {
		return errors.AssertionFailedf("no physical device supports graphics, presentation and %v", d.requiredExtensions())
	}

	props, err := d.instanceDriver.GetPhysicalDeviceProperties(d.physicalDevice)
	if err != nil {
		return err
	}
	logging.Logger().Info("physical device selected", "name", props.DeviceName, "score", best)
	return nil
}

// rateDevice prefers discrete GPUs, then larger maximum texture size.
func rateDevice(discrete bool, maxImageDimension2D int) int {
	score := maxImageDimension2D
	if discrete {
		score += 1000
	}
	return score
}

func (d *Device) suitable(candidate core1_0.PhysicalDevice) (queueFamilies, bool) {
	families, err := d.findQueueFamilies(candidate)
	if err != nil || !families.complete() {
		return families, false
	}

	extensions, _, err := d.instanceDriver.EnumerateDeviceExtensionProperties(candidate)
	if err != nil {
		return families, false
	}
	for _, name := range d.requiredExtensions() {
		if _, ok := extensions[name]; !ok {
			return families, false
		}
	}

	formats, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceFormats(d.surface, candidate)
	if err != nil || len(formats) == 0 {
		return families, false
	}
	modes, _, err := d.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(d.surface, candidate)
	if err != nil || len(modes) == 0 {
		return families, false
	}

	features := d.instanceDriver.GetPhysicalDeviceFeatures(candidate)
	return families, features.SamplerAnisotropy
}

func (d *Device) findQueueFamilies(candidate core1_0.PhysicalDevice) (queueFamilies, error) {
	var families queueFamilies
	for idx, family := range d.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(candidate) {
		if family.QueueFlags&core1_0.QueueGraphics != 0 && families.graphics == nil {
			families.graphics = new(int)
			*families.graphics = idx
		}

		supported, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceSupport(d.surface, candidate, idx)
		if err != nil {
			return families, err
		}
		if supported && families.present == nil {
			families.present = new(int)
			*families.present = idx
		}

		if families.complete() {
			break
		}
	}
	return families, nil
}

func (d *Device) createLogicalDevice() error {
	uniqueFamilies := []int{*d.families.graphics}
	if *d.families.present != *d.families.graphics {
		uniqueFamilies = append(uniqueFamilies, *d.families.present)
	}

	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range uniqueFamilies {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := d.requiredExtensions()
	extensions, _, err := d.instanceDriver.EnumerateDeviceExtensionProperties(d.physicalDevice)
	if err != nil {
		return err
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	d.deviceDriver, _, err = d.instanceDriver.CreateDevice(d.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueInfos,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	d.graphicsQueue = d.deviceDriver.GetQueue(*d.families.graphics, 0)
	d.presentQueue = d.deviceDriver.GetQueue(*d.families.present, 0)
	d.swapchainExt = khr_swapchain.CreateExtensionDriverFromCoreDriver(d.deviceDriver)
	return nil
}

func (d *Device) WaitIdle() error {
	res, err := d.deviceDriver.DeviceWaitIdle()
	return checkResult(res, err)
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	var support gpu.SurfaceSupport

	caps, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(d.surface, d.physicalDevice)
	if err != nil {
		return support, err
	}
	support.Capabilities = gpu.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  gpu.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: gpu.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: gpu.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}

	formats, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceFormats(d.surface, d.physicalDevice)
	if err != nil {
		return support, err
	}
	for _, f := range formats {
		support.Formats = append(support.Formats, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}

	modes, _, err := d.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(d.surface, d.physicalDevice)
	if err != nil {
		return support, err
	}
	for _, m := range modes {
		support.PresentModes = append(support.PresentModes, gpu.PresentMode(m))
	}
	return support, nil
}

var depthCandidates = []gpu.Format{gpu.FormatD32Float, gpu.FormatD32FloatS8UInt, gpu.FormatD24UNormS8UInt}

func (d *Device) DepthFormat() (gpu.Format, error) {
	if d.depthFormat != gpu.FormatUndefined {
		return d.depthFormat, nil
	}
	for _, format := range depthCandidates {
		props := d.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, core1_0.Format(format))
		if props.OptimalTilingFeatures&core1_0.FormatFeatureDepthStencilAttachment != 0 {
			d.depthFormat = format
			return format, nil
		}
	}
	return gpu.FormatUndefined, errors.AssertionFailedf("no supported depth format among %v", depthCandidates)
}

// Live returns the number of objects created through d that have not been
// destroyed yet, swapchain images excluded.
func (d *Device) Live() int {
	return d.buffers.len() + d.images.len() + d.views.len() + d.samplers.len() +
		d.swapchains.len() + d.renderPasses.len() + d.framebuffers.len() + d.shaders.len() +
		d.pipelineLayouts.len() + d.pipelines.len() + d.pipelineCaches.len() + d.setLayouts.len() + d.descriptorPools.len() +
		d.commandPools.len() + d.semaphores.len() + d.fences.len()
}

// Close waits for the device to go idle, destroys anything still live and
// then the device, surface, messenger and instance. The window is left to
// its owner.
func (d *Device) Close() {
	if d.deviceDriver != nil {
		_, _ = d.deviceDriver.DeviceWaitIdle()
		if live := d.Live(); live > 0 {
			logging.Logger().Warn("device closed with live objects", "count", live)
		}
		d.releaseAll()
		d.deviceDriver.DestroyDevice(nil)
		d.deviceDriver = nil
	}

	if d.debugMessenger.Initialized() {
		d.debugDriver.DestroyDebugUtilsMessenger(d.debugMessenger, nil)
		d.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if d.surface.Initialized() {
		d.surfaceExtension.DestroySurface(d.surface, nil)
		d.surface = khr_surface.Surface{}
	}

	if d.instanceDriver != nil {
		d.instanceDriver.DestroyInstance(nil)
		d.instanceDriver = nil
	}
}

func (d *Device) releaseAll() {
	d.framebuffers.each(func(fb core1_0.Framebuffer) { d.deviceDriver.DestroyFramebuffer(fb, nil) })
	d.pipelines.each(func(p core1_0.Pipeline) { d.deviceDriver.DestroyPipeline(p, nil) })
	d.pipelineCaches.each(func(c core1_0.PipelineCache) { d.deviceDriver.DestroyPipelineCache(c, nil) })
	d.pipelineLayouts.each(func(l core1_0.PipelineLayout) { d.deviceDriver.DestroyPipelineLayout(l, nil) })
	d.renderPasses.each(func(rp core1_0.RenderPass) { d.deviceDriver.DestroyRenderPass(rp, nil) })
	d.shaders.each(func(m core1_0.ShaderModule) { d.deviceDriver.DestroyShaderModule(m, nil) })
	d.views.each(func(v core1_0.ImageView) { d.deviceDriver.DestroyImageView(v, nil) })
	d.swapchains.each(func(sc swapchainEntry) { d.swapchainExt.DestroySwapchain(sc.swapchain, nil) })
	d.images.each(func(img allocation[core1_0.Image]) { d.freeImage(img) })
	d.samplers.each(func(s core1_0.Sampler) { d.deviceDriver.DestroySampler(s, nil) })
	d.buffers.each(func(b allocation[core1_0.Buffer]) { d.freeBuffer(b) })
	d.descriptorPools.each(func(p core1_0.DescriptorPool) { d.deviceDriver.DestroyDescriptorPool(p, nil) })
	d.setLayouts.each(func(l core1_0.DescriptorSetLayout) { d.deviceDriver.DestroyDescriptorSetLayout(l, nil) })
	d.commandPools.each(func(p core1_0.CommandPool) { d.deviceDriver.DestroyCommandPool(p, nil) })
	d.semaphores.each(func(s core1_0.Semaphore) { d.deviceDriver.DestroySemaphore(s, nil) })
	d.fences.each(func(f core1_0.Fence) { d.deviceDriver.DestroyFence(f, nil) })
}
