// Package render drives a forward renderer over a gpu.Device: swapchain
// lifecycle, frames in flight, command recording, descriptor bindings and
// resource uploads.
package render

import (
	"github.com/ashengine/ash/descriptor"
	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// WhiteTexture is the 1x1 fallback texture created by Init.
const WhiteTexture TextureID = 0

// Stats counts frame outcomes since Init.
type Stats struct {
	FramesSubmitted int
	FramesSkipped   int
	Recreations     int
	RecordPasses    int
}

type Renderer struct {
	device gpu.Device
	window Window
	cfg    Config

	res       *resourceManager
	layouts   *descriptor.LayoutCache
	alloc     *descriptor.Allocator
	swapchain *swapchainManager
	frames    *frameSync
	rec       *recorder
	pipelines *pipelineRegistry

	sampler   gpu.Sampler
	global    globalBindings
	meshes    []IndexedVertexBuffer
	textures  []texture
	materials []material
	bindings  []renderableBinding

	scene      Scene
	camera     Camera
	light      Light
	clearColor mgl32.Vec4
	selected   PipelineID
	loader     TextureLoader

	minimized bool
	stats     Stats
}

func New(device gpu.Device, window Window, cfg Config) *Renderer {
	r := &Renderer{
		device:     device,
		window:     window,
		cfg:        cfg,
		res:        newResourceManager(device),
		layouts:    descriptor.NewLayoutCache(device),
		alloc:      descriptor.NewAllocator(device, cfg.PoolSizes, cfg.SetsPerPool),
		frames:     newFrameSync(device),
		rec:        newRecorder(device),
		pipelines:  newPipelineRegistry(device, cfg.ShaderFS, cfg.Depth),
		scene:      emptyScene{},
		camera:     DefaultCamera(),
		light:      DefaultLight(),
		clearColor: cfg.ClearColor,
		selected:   MainPipeline,
	}
	r.swapchain = newSwapchainManager(device, window, r.res, &r.cfg)
	return r
}

// SetTextureLoader sets the decoder used by CreateTextureImage.
func (r *Renderer) SetTextureLoader(loader TextureLoader) {
	r.loader = loader
}

// Init creates the swapchain, the main pipeline from the configured shader
// pair plus the given derivatives, and everything needed to draw a frame.
func (r *Renderer) Init(pipelines []PipelineDesc) error {
	if r.swapchain.state != SwapchainUninitialized {
		return errors.AssertionFailedf("renderer initialized twice")
	}
	if r.cfg.ShaderFS == nil {
		return errors.New("render config has no shader filesystem")
	}

	if _, err := r.pipelines.register(NewPipelineDesc(MainPipelineName, r.cfg.MainVertexShader, r.cfg.MainFragmentShader)); err != nil {
		return err
	}
	for _, desc := range pipelines {
		if _, err := r.pipelines.register(desc); err != nil {
			return err
		}
	}

	if err := r.res.init(); err != nil {
		return err
	}
	if err := r.swapchain.createSwapchain(); err != nil {
		return err
	}
	if err := r.swapchain.createViews(); err != nil {
		return err
	}
	if err := r.swapchain.createRenderPass(); err != nil {
		return err
	}

	setLayouts, err := r.createSetLayouts()
	if err != nil {
		return err
	}
	if err := r.pipelines.createLayout(setLayouts); err != nil {
		return err
	}
	if err := r.pipelines.build(r.swapchain.renderPass); err != nil {
		return err
	}

	if err := r.rec.createPool(); err != nil {
		return err
	}
	if err := r.swapchain.createDepth(); err != nil {
		return err
	}
	if err := r.swapchain.createFramebuffers(); err != nil {
		return err
	}
	if err := r.rec.allocate(r.swapchain.imageCount()); err != nil {
		return err
	}

	if r.sampler, err = r.device.CreateSampler(); err != nil {
		return errors.Wrap(err, "create texture sampler")
	}
	white, err := r.CreateTexture(Pixels{Width: 1, Height: 1, RGBA: []byte{255, 255, 255, 255}})
	if err != nil {
		return errors.Wrap(err, "create fallback texture")
	}
	if white != WhiteTexture {
		return errors.AssertionFailedf("fallback texture got id %d", white)
	}
	if err := r.buildGlobalSets(r.swapchain.imageCount()); err != nil {
		return err
	}

	if err := r.frames.create(r.cfg.FramesInFlight); err != nil {
		return err
	}
	r.frames.resizeImages(r.swapchain.imageCount())

	r.swapchain.state = SwapchainReady
	logging.Logger().Info("renderer initialized", "pipelines", len(r.pipelines.descs), "framesInFlight", r.cfg.FramesInFlight)
	return nil
}

func (r *Renderer) checkReady() error {
	switch r.swapchain.state {
	case SwapchainUninitialized:
		return errors.New("renderer not initialized")
	case SwapchainDestroyed:
		return errors.New("renderer already cleaned up")
	}
	return nil
}

// Render draws and presents one frame. A minimized window skips the frame
// and returns nil; swapchain invalidation is handled internally.
func (r *Renderer) Render() error {
	if err := r.checkReady(); err != nil {
		return err
	}

	width, height := r.window.FramebufferSize()
	if width <= 0 || height <= 0 {
		r.skipMinimized()
		return nil
	}
	r.minimized = false

	if r.swapchain.state == SwapchainStale {
		if err := r.recreate(); err != nil {
			return err
		}
		if r.swapchain.state != SwapchainReady {
			return nil
		}
	}

	if err := r.frames.waitCurrent(); err != nil {
		return err
	}
	slot := r.frames.slot()

	image, result, err := r.device.AcquireNextImage(r.swapchain.swapchain, slot.imageAvailable)
	if err != nil {
		return errors.Wrap(err, "acquire swapchain image")
	}
	if result == gpu.ResultOutOfDate {
		r.stats.FramesSkipped++
		r.swapchain.markStale("acquire out of date")
		return r.recreate()
	}
	suboptimal := result == gpu.ResultSuboptimal

	if err := r.frames.claimImage(image); err != nil {
		return err
	}
	if r.rec.dirty() {
		if err := r.recordCommandBuffers(); err != nil {
			return err
		}
	}
	if err := r.updateUniforms(image); err != nil {
		return err
	}

	if err := r.frames.resetCurrent(); err != nil {
		return err
	}
	err = r.device.Submit(gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.imageAvailable},
		WaitStages:       []gpu.PipelineStage{gpu.StageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{r.rec.buffers[image]},
		SignalSemaphores: []gpu.Semaphore{slot.renderFinished},
	}, slot.inFlight)
	if err != nil {
		return errors.Wrap(err, "submit frame")
	}
	r.frames.markSubmitted()
	r.stats.FramesSubmitted++

	result, err = r.device.Present(r.swapchain.swapchain, image, slot.renderFinished)
	if err != nil {
		return errors.Wrap(err, "present frame")
	}
	r.frames.advance()

	switch {
	case result != gpu.ResultSuccess:
		r.swapchain.markStale("present " + result.String())
	case suboptimal:
		r.swapchain.markStale("acquire Suboptimal")
	case r.window.ResizeRequested():
		r.swapchain.markStale("window resized")
	default:
		return nil
	}
	return r.recreate()
}

func (r *Renderer) skipMinimized() {
	if !r.minimized {
		logging.Logger().Debug("framebuffer has zero area, skipping frames")
	}
	r.minimized = true
	r.swapchain.markStale("zero-area framebuffer")
	r.stats.FramesSkipped++
}

// Minimized reports whether the last Render skipped its frame because the
// framebuffer had zero area. Callers should block on window events until
// it is restored.
func (r *Renderer) Minimized() bool {
	return r.minimized
}

// recreate rebuilds the swapchain and everything sized by it. Pipelines keep
// their IDs. A zero-area surface leaves the swapchain stale.
func (r *Renderer) recreate() error {
	width, height := r.window.FramebufferSize()
	if width <= 0 || height <= 0 {
		r.skipMinimized()
		return nil
	}

	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	r.window.ResizeRequested()

	r.swapchain.destroyFramebuffers()
	r.swapchain.destroyDepth()
	r.rec.free()
	r.pipelines.destroyPipelines()
	r.swapchain.destroyRenderPass()
	r.swapchain.destroyViews()
	r.swapchain.destroySwapchain()

	if err := r.swapchain.createSwapchain(); err != nil {
		if errors.Is(err, errZeroArea) {
			r.skipMinimized()
			return nil
		}
		return err
	}
	if err := r.swapchain.createViews(); err != nil {
		return err
	}
	if err := r.swapchain.createRenderPass(); err != nil {
		return err
	}
	if err := r.swapchain.createDepth(); err != nil {
		return err
	}
	if err := r.swapchain.createFramebuffers(); err != nil {
		return err
	}
	if err := r.pipelines.build(r.swapchain.renderPass); err != nil {
		return err
	}
	if err := r.rec.allocate(r.swapchain.imageCount()); err != nil {
		return err
	}
	r.frames.resizeImages(r.swapchain.imageCount())
	if err := r.rebuildDescriptorSets(); err != nil {
		return err
	}

	if !r.swapchain.consistent() {
		return errors.AssertionFailedf("swapchain objects inconsistent after recreation")
	}
	r.swapchain.state = SwapchainReady
	r.stats.Recreations++
	return nil
}

func (r *Renderer) resolvePipeline(id PipelineID) (gpu.Pipeline, error) {
	if id == SelectedPipeline {
		id = r.selected
	}
	pipeline, ok := r.pipelines.handle(id)
	if !ok {
		return 0, errors.AssertionFailedf("pipeline %d has not been built", id)
	}
	return pipeline, nil
}

func (r *Renderer) checkDrawItem(item DrawItem) error {
	switch {
	case item.Pipeline != SelectedPipeline && !r.pipelines.valid(item.Pipeline):
		return errors.AssertionFailedf("draw item references unknown pipeline %d", item.Pipeline)
	case item.Mesh < 0 || int(item.Mesh) >= len(r.meshes):
		return errors.AssertionFailedf("draw item references unknown mesh %d", item.Mesh)
	case item.Material < 0 || int(item.Material) >= len(r.materials):
		return errors.AssertionFailedf("draw item references unknown material %d", item.Material)
	case item.Binding < 0 || int(item.Binding) >= len(r.bindings):
		return errors.AssertionFailedf("draw item references unknown binding %d", item.Binding)
	}
	return nil
}

// recordCommandBuffers waits for the queue to drain, then records one
// buffer per swapchain image from the current scene.
func (r *Renderer) recordCommandBuffers() error {
	if err := r.device.QueueWaitIdle(); err != nil {
		return errors.Wrap(err, "wait for queue idle")
	}
	err := r.rec.record(func(image int, cmd gpu.CommandBuffer) error {
		return r.recordImage(image, cmd)
	})
	if err != nil {
		return err
	}
	r.stats.RecordPasses = r.rec.passes
	return nil
}

func (r *Renderer) recordImage(image int, cmd gpu.CommandBuffer) error {
	extent := r.swapchain.extent
	r.device.CmdBeginRenderPass(cmd, gpu.RenderPassBeginInfo{
		RenderPass:  r.swapchain.renderPass,
		Framebuffer: r.swapchain.framebuffers[image],
		Extent:      extent,
		ClearColor:  r.clearColor,
		ClearDepth:  1,
		Depth:       r.cfg.Depth,
	})
	r.device.CmdSetViewport(cmd, extent)
	r.device.CmdSetScissor(cmd, extent)
	r.device.CmdBindDescriptorSets(cmd, r.pipelines.layout, globalSet, []gpu.DescriptorSet{r.global.sets[image]})

	var err error
	for item := range r.scene.Renderables() {
		if err = r.checkDrawItem(item); err != nil {
			break
		}
		var pipeline gpu.Pipeline
		if pipeline, err = r.resolvePipeline(item.Pipeline); err != nil {
			break
		}
		mesh := r.meshes[item.Mesh]
		r.device.CmdBindPipeline(cmd, pipeline)
		r.device.CmdBindVertexBuffer(cmd, mesh.Buffer, 0)
		r.device.CmdBindIndexBuffer(cmd, mesh.Buffer, mesh.IndexOffset)
		r.device.CmdBindDescriptorSets(cmd, r.pipelines.layout, materialSet, []gpu.DescriptorSet{
			r.materials[item.Material].sets[image],
			r.bindings[item.Binding].sets[image],
		})
		r.device.CmdDrawIndexed(cmd, mesh.IndexCount)
	}
	r.device.CmdEndRenderPass(cmd)
	return err
}

func (r *Renderer) updateUniforms(image int) error {
	extent := mgl32.Vec2{float32(r.swapchain.extent.Width), float32(r.swapchain.extent.Height)}
	global, err := encode(GlobalUniforms{
		View: r.camera.View(),
		Proj: r.camera.Projection(extent),
	})
	if err != nil {
		return err
	}
	if err := r.device.WriteBuffer(r.global.globalUBOs[image], 0, global); err != nil {
		return errors.Wrap(err, "write global uniforms")
	}

	light, err := encode(LightUniforms(r.light))
	if err != nil {
		return err
	}
	if err := r.device.WriteBuffer(r.global.lightUBOs[image], 0, light); err != nil {
		return errors.Wrap(err, "write light uniforms")
	}

	for item := range r.scene.Renderables() {
		if item.Binding < 0 || int(item.Binding) >= len(r.bindings) {
			return errors.AssertionFailedf("draw item references unknown binding %d", item.Binding)
		}
		data, err := encode(ObjectUniforms{Model: item.Transform})
		if err != nil {
			return err
		}
		if err := r.device.WriteBuffer(r.bindings[item.Binding].ubos[image], 0, data); err != nil {
			return errors.Wrap(err, "write object uniforms")
		}
	}
	return nil
}

// Cleanup waits for the device to go idle and destroys everything the
// renderer created. The device itself is left to the caller.
func (r *Renderer) Cleanup() error {
	if r.swapchain.state == SwapchainDestroyed {
		return nil
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}

	r.swapchain.destroyFramebuffers()
	r.swapchain.destroyDepth()
	r.rec.destroy()
	r.pipelines.destroy()
	r.swapchain.destroyRenderPass()
	r.swapchain.destroyViews()
	r.swapchain.destroySwapchain()

	if r.sampler != 0 {
		r.device.DestroySampler(r.sampler)
		r.sampler = 0
	}
	r.alloc.Cleanup()
	r.layouts.Cleanup()
	r.res.releaseAll()
	r.frames.destroy()

	r.swapchain.state = SwapchainDestroyed
	logging.Logger().Info("renderer cleaned up", "frames", r.stats.FramesSubmitted, "recreations", r.stats.Recreations)
	return nil
}
