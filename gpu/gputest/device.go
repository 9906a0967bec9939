// Package gputest provides an in-memory gpu.Device for tests. It records
// every call in order, executes transfer commands on submit so buffer
// contents can be read back, and reports synchronization misuse as
// violations instead of hanging.
package gputest

import (
	"fmt"
	"slices"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

// Call is one entry of the device call log.
type Call struct {
	Name   string
	Handle uint64
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%d)", c.Name, c.Handle)
}

// Command is one recorded command buffer operation.
type Command struct {
	Op   string
	Args []uint64
}

type Submission struct {
	Fence          gpu.Fence
	CommandBuffers []gpu.CommandBuffer
	Wait           []gpu.Semaphore
	Signal         []gpu.Semaphore
}

type fenceState int

const (
	fenceUnsignaled fenceState = iota
	fenceSignaled
	fencePending
)

type object struct {
	kind  string
	alive bool
}

type buffer struct {
	data   []byte
	memory gpu.MemoryProperty
}

type descriptorPool struct {
	maxSets   int
	allocated int
}

type swapchain struct {
	info   gpu.SwapchainCreateInfo
	images []gpu.Image
	next   int
}

type commandBuffer struct {
	pool      gpu.CommandPool
	recording bool
	pending   bool
	commands  []Command
}

// Device is a fake gpu.Device. The exported configuration fields may be
// changed between calls to simulate surface changes.
type Device struct {
	Support gpu.SurfaceSupport
	// ImageCount overrides the number of swapchain images. Zero means the
	// requested minimum.
	ImageCount int
	Depth      gpu.Format
	// AcquireResults and PresentResults are consumed front first. Once
	// empty every call succeeds.
	AcquireResults []gpu.Result
	PresentResults []gpu.Result
	// AcquireIndices scripts the images returned by successful acquires,
	// front first. Once empty images are handed out round-robin after the
	// last one returned.
	AcquireIndices []int

	Calls       []Call
	Submissions []Submission
	Presented   []int
	Violations  []string

	next       uint64
	objects    map[uint64]*object
	buffers    map[gpu.Buffer]*buffer
	layouts    map[gpu.Image]gpu.ImageLayout
	fences     map[gpu.Fence]fenceState
	semaphores map[gpu.Semaphore]bool
	pools      map[gpu.DescriptorPool]*descriptorPool
	setPools   map[gpu.DescriptorSet]gpu.DescriptorPool
	writes     map[gpu.DescriptorSet][]gpu.WriteDescriptorSet
	setLayouts map[gpu.DescriptorSetLayout][]gpu.DescriptorSetLayoutBinding
	swapchains map[gpu.Swapchain]*swapchain
	cmds       map[gpu.CommandBuffer]*commandBuffer
	pipelines  map[gpu.Pipeline]gpu.GraphicsPipelineCreateInfo
}

var _ gpu.Device = (*Device)(nil)

// NewDevice returns a device whose surface is 800x600 and accepts two to
// three swapchain images.
func NewDevice() *Device {
	return &Device{
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
				MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatB8G8R8A8UNorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
				{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
		},
		Depth:      gpu.FormatD32Float,
		objects:    make(map[uint64]*object),
		buffers:    make(map[gpu.Buffer]*buffer),
		layouts:    make(map[gpu.Image]gpu.ImageLayout),
		fences:     make(map[gpu.Fence]fenceState),
		semaphores: make(map[gpu.Semaphore]bool),
		pools:      make(map[gpu.DescriptorPool]*descriptorPool),
		setPools:   make(map[gpu.DescriptorSet]gpu.DescriptorPool),
		writes:     make(map[gpu.DescriptorSet][]gpu.WriteDescriptorSet),
		setLayouts: make(map[gpu.DescriptorSetLayout][]gpu.DescriptorSetLayoutBinding),
		swapchains: make(map[gpu.Swapchain]*swapchain),
		cmds:       make(map[gpu.CommandBuffer]*commandBuffer),
		pipelines:  make(map[gpu.Pipeline]gpu.GraphicsPipelineCreateInfo),
	}
}

// SetExtent changes the surface's current extent.
func (d *Device) SetExtent(width, height int) {
	d.Support.Capabilities.CurrentExtent = gpu.Extent2D{Width: width, Height: height}
}

// Count returns how many logged calls have the given name.
func (d *Device) Count(name string) int {
	n := 0
	for _, c := range d.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Index returns the position of the first logged call with the given name
// and handle, or -1.
func (d *Device) Index(name string, handle uint64) int {
	return slices.Index(d.Calls, Call{Name: name, Handle: handle})
}

// LastIndex is like Index but searches from the end of the log.
func (d *Device) LastIndex(name string, handle uint64) int {
	for i := len(d.Calls) - 1; i >= 0; i-- {
		if d.Calls[i] == (Call{Name: name, Handle: handle}) {
			return i
		}
	}
	return -1
}

// Live returns how many objects of the given kind have been created and not
// yet released. An empty kind counts every kind.
func (d *Device) Live(kind string) int {
	n := 0
	for _, o := range d.objects {
		if o.alive && (kind == "" || o.kind == kind) {
			n++
		}
	}
	return n
}

// Alive reports whether handle refers to a created, unreleased object.
func (d *Device) Alive(handle uint64) bool {
	o, ok := d.objects[handle]
	return ok && o.alive
}

func (d *Device) Commands(cmd gpu.CommandBuffer) []Command {
	if cb, ok := d.cmds[cmd]; ok {
		return cb.commands
	}
	return nil
}

func (d *Device) Writes(set gpu.DescriptorSet) []gpu.WriteDescriptorSet {
	return d.writes[set]
}

func (d *Device) LayoutBindings(layout gpu.DescriptorSetLayout) []gpu.DescriptorSetLayoutBinding {
	return d.setLayouts[layout]
}

func (d *Device) ImageLayout(image gpu.Image) gpu.ImageLayout {
	return d.layouts[image]
}

func (d *Device) BufferData(buf gpu.Buffer) []byte {
	if b, ok := d.buffers[buf]; ok {
		return b.data
	}
	return nil
}

func (d *Device) Pipeline(p gpu.Pipeline) (gpu.GraphicsPipelineCreateInfo, bool) {
	info, ok := d.pipelines[p]
	return info, ok
}

// PoolAllocated returns the number of sets currently allocated from pool.
func (d *Device) PoolAllocated(pool gpu.DescriptorPool) int {
	if p, ok := d.pools[pool]; ok {
		return p.allocated
	}
	return 0
}

// ResetLog clears the call, submission and present logs.
func (d *Device) ResetLog() {
	d.Calls = nil
	d.Submissions = nil
	d.Presented = nil
}

func (d *Device) violatef(format string, args ...any) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) log(name string, handle uint64) {
	d.Calls = append(d.Calls, Call{Name: name, Handle: handle})
}

func (d *Device) create(kind string) uint64 {
	d.next++
	d.objects[d.next] = &object{kind: kind, alive: true}
	d.log("Create"+kind, d.next)
	return d.next
}

func (d *Device) release(kind string, handle uint64) bool {
	d.log("Destroy"+kind, handle)
	o, ok := d.objects[handle]
	if !ok || o.kind != kind {
		d.violatef("destroy of unknown %s %d", kind, handle)
		return false
	}
	if !o.alive {
		d.violatef("double destroy of %s %d", kind, handle)
		return false
	}
	o.alive = false
	return true
}

func (d *Device) check(kind string, handle uint64) error {
	o, ok := d.objects[handle]
	if !ok || o.kind != kind || !o.alive {
		d.violatef("use of invalid %s %d", kind, handle)
		return errors.AssertionFailedf("invalid %s handle %d", kind, handle)
	}
	return nil
}

func (d *Device) WaitIdle() error {
	d.log("WaitIdle", 0)
	d.completeAll()
	return nil
}

func (d *Device) QueueWaitIdle() error {
	d.log("QueueWaitIdle", 0)
	d.completeAll()
	return nil
}

func (d *Device) completeAll() {
	for f, state := range d.fences {
		if state == fencePending {
			d.fences[f] = fenceSignaled
		}
	}
	for _, cb := range d.cmds {
		cb.pending = false
	}
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	d.log("SurfaceSupport", 0)
	support := d.Support
	support.Formats = slices.Clone(d.Support.Formats)
	support.PresentModes = slices.Clone(d.Support.PresentModes)
	return support, nil
}

func (d *Device) DepthFormat() (gpu.Format, error) {
	if d.Depth == gpu.FormatUndefined {
		return gpu.FormatUndefined, errors.New("no supported depth format")
	}
	return d.Depth, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, []gpu.Image, error) {
	if info.Extent.Width <= 0 || info.Extent.Height <= 0 {
		d.violatef("swapchain created with extent %dx%d", info.Extent.Width, info.Extent.Height)
		return 0, nil, errors.Newf("invalid swapchain extent %dx%d", info.Extent.Width, info.Extent.Height)
	}
	handle := gpu.Swapchain(d.create("Swapchain"))
	count := d.ImageCount
	if count == 0 {
		count = info.MinImageCount
	}
	sc := &swapchain{info: info}
	for i := 0; i < count; i++ {
		img := gpu.Image(d.create("SwapchainImage"))
		d.layouts[img] = gpu.ImageLayoutUndefined
		sc.images = append(sc.images, img)
	}
	d.swapchains[handle] = sc
	return handle, slices.Clone(sc.images), nil
}

func (d *Device) DestroySwapchain(handle gpu.Swapchain) {
	if !d.release("Swapchain", uint64(handle)) {
		return
	}
	for _, img := range d.swapchains[handle].images {
		d.objects[uint64(img)].alive = false
	}
	delete(d.swapchains, handle)
}

// SwapchainInfo returns the create info of a live swapchain.
func (d *Device) SwapchainInfo(handle gpu.Swapchain) (gpu.SwapchainCreateInfo, bool) {
	sc, ok := d.swapchains[handle]
	if !ok {
		return gpu.SwapchainCreateInfo{}, false
	}
	return sc.info, true
}

func (d *Device) AcquireNextImage(handle gpu.Swapchain, signal gpu.Semaphore) (int, gpu.Result, error) {
	if err := d.check("Swapchain", uint64(handle)); err != nil {
		return 0, gpu.ResultSuccess, err
	}
	result := gpu.ResultSuccess
	if len(d.AcquireResults) > 0 {
		result, d.AcquireResults = d.AcquireResults[0], d.AcquireResults[1:]
	}
	if result == gpu.ResultOutOfDate {
		d.log("AcquireNextImage", ^uint64(0))
		return 0, result, nil
	}
	if d.semaphores[signal] {
		d.violatef("acquire signals semaphore %d that is already signaled", signal)
	}
	d.semaphores[signal] = true
	sc := d.swapchains[handle]
	idx := sc.next % len(sc.images)
	if len(d.AcquireIndices) > 0 {
		idx, d.AcquireIndices = d.AcquireIndices[0]%len(sc.images), d.AcquireIndices[1:]
	}
	sc.next = idx + 1
	d.log("AcquireNextImage", uint64(idx))
	return idx, result, nil
}

func (d *Device) Present(handle gpu.Swapchain, imageIndex int, wait gpu.Semaphore) (gpu.Result, error) {
	d.log("Present", uint64(imageIndex))
	if err := d.check("Swapchain", uint64(handle)); err != nil {
		return gpu.ResultSuccess, err
	}
	if !d.semaphores[wait] {
		d.violatef("present waits on unsignaled semaphore %d", wait)
	}
	d.semaphores[wait] = false
	d.Presented = append(d.Presented, imageIndex)
	result := gpu.ResultSuccess
	if len(d.PresentResults) > 0 {
		result, d.PresentResults = d.PresentResults[0], d.PresentResults[1:]
	}
	return result, nil
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return 0, errors.Newf("invalid image extent %dx%d", info.Width, info.Height)
	}
	img := gpu.Image(d.create("Image"))
	d.layouts[img] = gpu.ImageLayoutUndefined
	return img, nil
}

func (d *Device) DestroyImage(image gpu.Image) {
	d.release("Image", uint64(image))
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format, aspect gpu.ImageAspect) (gpu.ImageView, error) {
	o, ok := d.objects[uint64(image)]
	if !ok || !o.alive || (o.kind != "Image" && o.kind != "SwapchainImage") {
		d.violatef("image view of invalid image %d", image)
		return 0, errors.AssertionFailedf("invalid image handle %d", image)
	}
	return gpu.ImageView(d.create("ImageView")), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.release("ImageView", uint64(view))
}

func (d *Device) CreateSampler() (gpu.Sampler, error) {
	return gpu.Sampler(d.create("Sampler")), nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	d.release("Sampler", uint64(sampler))
}

func (d *Device) CreateBuffer(size int, usage gpu.BufferUsage, memory gpu.MemoryProperty) (gpu.Buffer, error) {
	if size <= 0 {
		return 0, errors.Newf("invalid buffer size %d", size)
	}
	buf := gpu.Buffer(d.create("Buffer"))
	d.buffers[buf] = &buffer{data: make([]byte, size), memory: memory}
	return buf, nil
}

func (d *Device) DestroyBuffer(buf gpu.Buffer) {
	if d.release("Buffer", uint64(buf)) {
		delete(d.buffers, buf)
	}
}

func (d *Device) hostBuffer(buf gpu.Buffer, offset, size int) (*buffer, error) {
	if err := d.check("Buffer", uint64(buf)); err != nil {
		return nil, err
	}
	b := d.buffers[buf]
	if b.memory&gpu.MemoryHostVisible == 0 {
		d.violatef("map of device-local buffer %d", buf)
		return nil, errors.Newf("buffer %d is not host visible", buf)
	}
	if offset < 0 || offset+size > len(b.data) {
		return nil, errors.Newf("range [%d, %d) outside buffer %d of size %d", offset, offset+size, buf, len(b.data))
	}
	return b, nil
}

// pendingUse returns a pending command buffer that reads buf, either bound
// directly or through a bound descriptor set.
func (d *Device) pendingUse(buf gpu.Buffer) (gpu.CommandBuffer, bool) {
	for handle, cb := range d.cmds {
		if !cb.pending {
			continue
		}
		for _, c := range cb.commands {
			switch c.Op {
			case "BindVertexBuffer", "BindIndexBuffer":
				if gpu.Buffer(c.Args[0]) == buf {
					return handle, true
				}
			case "BindDescriptorSets":
				for _, set := range c.Args[2:] {
					for _, w := range d.writes[gpu.DescriptorSet(set)] {
						if w.Buffer != nil && w.Buffer.Buffer == buf {
							return handle, true
						}
					}
				}
			}
		}
	}
	return 0, false
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset int, data []byte) error {
	b, err := d.hostBuffer(buf, offset, len(data))
	if err != nil {
		return err
	}
	if cmd, ok := d.pendingUse(buf); ok {
		d.violatef("write to buffer %d read by pending command buffer %d", buf, cmd)
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) ReadBuffer(buf gpu.Buffer, offset, size int) ([]byte, error) {
	b, err := d.hostBuffer(buf, offset, size)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b.data[offset : offset+size]), nil
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	return gpu.RenderPass(d.create("RenderPass")), nil
}

func (d *Device) DestroyRenderPass(renderPass gpu.RenderPass) {
	d.release("RenderPass", uint64(renderPass))
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	if err := d.check("RenderPass", uint64(info.RenderPass)); err != nil {
		return 0, err
	}
	for _, view := range info.Attachments {
		if err := d.check("ImageView", uint64(view)); err != nil {
			return 0, err
		}
	}
	return gpu.Framebuffer(d.create("Framebuffer")), nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	d.release("Framebuffer", uint64(framebuffer))
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Newf("shader bytecode length %d is not a positive multiple of 4", len(code))
	}
	return gpu.ShaderModule(d.create("ShaderModule")), nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	d.release("ShaderModule", uint64(module))
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	for _, l := range setLayouts {
		if err := d.check("DescriptorSetLayout", uint64(l)); err != nil {
			return 0, err
		}
	}
	return gpu.PipelineLayout(d.create("PipelineLayout")), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.release("PipelineLayout", uint64(layout))
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	for _, stage := range info.Stages {
		if err := d.check("ShaderModule", uint64(stage.Module)); err != nil {
			return 0, err
		}
	}
	if err := d.check("RenderPass", uint64(info.RenderPass)); err != nil {
		return 0, err
	}
	if info.Cache != 0 {
		if err := d.check("PipelineCache", uint64(info.Cache)); err != nil {
			return 0, err
		}
	}
	if info.Base != 0 {
		base, ok := d.pipelines[info.Base]
		if !ok || !d.Alive(uint64(info.Base)) {
			d.violatef("derivative of invalid pipeline %d", info.Base)
		} else if !base.AllowDerivatives {
			d.violatef("derivative of pipeline %d that does not allow derivatives", info.Base)
		}
	}
	p := gpu.Pipeline(d.create("Pipeline"))
	d.pipelines[p] = info
	return p, nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	d.release("Pipeline", uint64(pipeline))
}

func (d *Device) CreatePipelineCache() (gpu.PipelineCache, error) {
	return gpu.PipelineCache(d.create("PipelineCache")), nil
}

func (d *Device) DestroyPipelineCache(cache gpu.PipelineCache) {
	d.release("PipelineCache", uint64(cache))
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	layout := gpu.DescriptorSetLayout(d.create("DescriptorSetLayout"))
	d.setLayouts[layout] = slices.Clone(bindings)
	return layout, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	d.release("DescriptorSetLayout", uint64(layout))
}

func (d *Device) CreateDescriptorPool(maxSets int, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	pool := gpu.DescriptorPool(d.create("DescriptorPool"))
	d.pools[pool] = &descriptorPool{maxSets: maxSets}
	return pool, nil
}

func (d *Device) ResetDescriptorPool(pool gpu.DescriptorPool) error {
	d.log("ResetDescriptorPool", uint64(pool))
	if err := d.check("DescriptorPool", uint64(pool)); err != nil {
		return err
	}
	d.pools[pool].allocated = 0
	for set, owner := range d.setPools {
		if owner == pool {
			delete(d.setPools, set)
			delete(d.writes, set)
		}
	}
	return nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	if !d.release("DescriptorPool", uint64(pool)) {
		return
	}
	for set, owner := range d.setPools {
		if owner == pool {
			delete(d.setPools, set)
			delete(d.writes, set)
		}
	}
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	if err := d.check("DescriptorPool", uint64(pool)); err != nil {
		return 0, err
	}
	if err := d.check("DescriptorSetLayout", uint64(layout)); err != nil {
		return 0, err
	}
	p := d.pools[pool]
	if p.allocated >= p.maxSets {
		d.log("AllocateDescriptorSetFailed", uint64(pool))
		return 0, gpu.ErrOutOfPoolMemory
	}
	p.allocated++
	d.next++
	set := gpu.DescriptorSet(d.next)
	d.setPools[set] = pool
	d.log("AllocateDescriptorSet", uint64(set))
	return set, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.WriteDescriptorSet) {
	for _, w := range writes {
		d.log("UpdateDescriptorSet", uint64(w.Set))
		if _, ok := d.setPools[w.Set]; !ok {
			d.violatef("write to invalid descriptor set %d", w.Set)
			continue
		}
		if (w.Buffer == nil) == (w.Image == nil) {
			d.violatef("descriptor write to set %d binding %d needs exactly one of buffer or image", w.Set, w.Binding)
		}
		d.writes[w.Set] = append(d.writes[w.Set], w)
	}
}

func (d *Device) CreateCommandPool(transient bool) (gpu.CommandPool, error) {
	return gpu.CommandPool(d.create("CommandPool")), nil
}

func (d *Device) ResetCommandPool(pool gpu.CommandPool) error {
	d.log("ResetCommandPool", uint64(pool))
	if err := d.check("CommandPool", uint64(pool)); err != nil {
		return err
	}
	for handle, cb := range d.cmds {
		if cb.pool != pool || !d.Alive(uint64(handle)) {
			continue
		}
		if cb.pending {
			d.violatef("reset of command pool %d while command buffer %d is pending", pool, handle)
		}
		cb.commands = nil
		cb.recording = false
	}
	return nil
}

func (d *Device) DestroyCommandPool(pool gpu.CommandPool) {
	if !d.release("CommandPool", uint64(pool)) {
		return
	}
	for handle, cb := range d.cmds {
		if cb.pool == pool {
			d.objects[uint64(handle)].alive = false
		}
	}
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	if err := d.check("CommandPool", uint64(pool)); err != nil {
		return nil, err
	}
	buffers := make([]gpu.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = gpu.CommandBuffer(d.create("CommandBuffer"))
		d.cmds[buffers[i]] = &commandBuffer{pool: pool}
	}
	return buffers, nil
}

func (d *Device) FreeCommandBuffers(pool gpu.CommandPool, buffers []gpu.CommandBuffer) {
	for _, handle := range buffers {
		cb, ok := d.cmds[handle]
		if ok && cb.pending {
			d.violatef("free of pending command buffer %d", handle)
		}
		if ok && cb.pool != pool {
			d.violatef("command buffer %d freed to foreign pool %d", handle, pool)
		}
		d.release("CommandBuffer", uint64(handle))
	}
}

func (d *Device) BeginCommandBuffer(cmd gpu.CommandBuffer, oneTime bool) error {
	if err := d.check("CommandBuffer", uint64(cmd)); err != nil {
		return err
	}
	cb := d.cmds[cmd]
	if cb.pending {
		d.violatef("begin of pending command buffer %d", cmd)
	}
	cb.recording = true
	cb.commands = nil
	return nil
}

func (d *Device) EndCommandBuffer(cmd gpu.CommandBuffer) error {
	if err := d.check("CommandBuffer", uint64(cmd)); err != nil {
		return err
	}
	cb := d.cmds[cmd]
	if !cb.recording {
		d.violatef("end of command buffer %d that is not recording", cmd)
	}
	cb.recording = false
	return nil
}

func (d *Device) record(cmd gpu.CommandBuffer, op string, args ...uint64) {
	cb, ok := d.cmds[cmd]
	if !ok || !d.Alive(uint64(cmd)) {
		d.violatef("%s recorded into invalid command buffer %d", op, cmd)
		return
	}
	if !cb.recording {
		d.violatef("%s recorded into command buffer %d outside begin/end", op, cmd)
		return
	}
	cb.commands = append(cb.commands, Command{Op: op, Args: args})
}

func (d *Device) CmdBeginRenderPass(cmd gpu.CommandBuffer, info gpu.RenderPassBeginInfo) {
	d.record(cmd, "BeginRenderPass", uint64(info.RenderPass), uint64(info.Framebuffer))
}

func (d *Device) CmdEndRenderPass(cmd gpu.CommandBuffer) {
	d.record(cmd, "EndRenderPass")
}

func (d *Device) CmdSetViewport(cmd gpu.CommandBuffer, extent gpu.Extent2D) {
	d.record(cmd, "SetViewport", uint64(extent.Width), uint64(extent.Height))
}

func (d *Device) CmdSetScissor(cmd gpu.CommandBuffer, extent gpu.Extent2D) {
	d.record(cmd, "SetScissor", uint64(extent.Width), uint64(extent.Height))
}

func (d *Device) CmdBindPipeline(cmd gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.record(cmd, "BindPipeline", uint64(pipeline))
}

func (d *Device) CmdBindVertexBuffer(cmd gpu.CommandBuffer, buf gpu.Buffer, offset int) {
	d.record(cmd, "BindVertexBuffer", uint64(buf), uint64(offset))
}

func (d *Device) CmdBindIndexBuffer(cmd gpu.CommandBuffer, buf gpu.Buffer, offset int) {
	d.record(cmd, "BindIndexBuffer", uint64(buf), uint64(offset))
}

func (d *Device) CmdBindDescriptorSets(cmd gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet) {
	args := []uint64{uint64(layout), uint64(firstSet)}
	for _, s := range sets {
		args = append(args, uint64(s))
	}
	d.record(cmd, "BindDescriptorSets", args...)
}

func (d *Device) CmdDrawIndexed(cmd gpu.CommandBuffer, indexCount int) {
	d.record(cmd, "DrawIndexed", uint64(indexCount))
}

func (d *Device) CmdCopyBuffer(cmd gpu.CommandBuffer, src, dst gpu.Buffer, size int) {
	d.record(cmd, "CopyBuffer", uint64(src), uint64(dst), uint64(size))
}

func (d *Device) CmdCopyBufferToImage(cmd gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D) {
	d.record(cmd, "CopyBufferToImage", uint64(src), uint64(dst))
}

func (d *Device) CmdPipelineBarrier(cmd gpu.CommandBuffer, barrier gpu.ImageBarrier) {
	d.record(cmd, "PipelineBarrier", uint64(barrier.Image), uint64(barrier.OldLayout), uint64(barrier.NewLayout))
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	sem := gpu.Semaphore(d.create("Semaphore"))
	d.semaphores[sem] = false
	return sem, nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Semaphore) {
	d.release("Semaphore", uint64(semaphore))
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	fence := gpu.Fence(d.create("Fence"))
	d.fences[fence] = fenceUnsignaled
	if signaled {
		d.fences[fence] = fenceSignaled
	}
	return fence, nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	if d.fences[fence] == fencePending {
		d.violatef("destroy of pending fence %d", fence)
	}
	d.release("Fence", uint64(fence))
}

func (d *Device) WaitForFence(fence gpu.Fence) error {
	d.log("WaitForFence", uint64(fence))
	if err := d.check("Fence", uint64(fence)); err != nil {
		return err
	}
	switch d.fences[fence] {
	case fenceUnsignaled:
		d.violatef("wait on fence %d that was never submitted", fence)
		return gpu.ErrDeviceLost
	case fencePending:
		d.fences[fence] = fenceSignaled
		for _, s := range d.Submissions {
			if s.Fence != fence {
				continue
			}
			for _, cmd := range s.CommandBuffers {
				d.cmds[cmd].pending = false
			}
		}
	}
	return nil
}

// FenceSignaled reports whether fence has been observed as signaled.
func (d *Device) FenceSignaled(fence gpu.Fence) bool {
	return d.fences[fence] == fenceSignaled
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	d.log("ResetFence", uint64(fence))
	if err := d.check("Fence", uint64(fence)); err != nil {
		return err
	}
	if d.fences[fence] == fencePending {
		d.violatef("reset of in-flight fence %d", fence)
	}
	d.fences[fence] = fenceUnsignaled
	return nil
}

func (d *Device) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	d.log("Submit", uint64(fence))
	if fence != 0 {
		if err := d.check("Fence", uint64(fence)); err != nil {
			return err
		}
		if d.fences[fence] != fenceUnsignaled {
			d.violatef("submit with fence %d that was not reset", fence)
		}
		d.fences[fence] = fencePending
	}
	for _, sem := range info.WaitSemaphores {
		if !d.semaphores[sem] {
			d.violatef("submit waits on unsignaled semaphore %d", sem)
		}
		d.semaphores[sem] = false
	}
	for _, handle := range info.CommandBuffers {
		if err := d.check("CommandBuffer", uint64(handle)); err != nil {
			return err
		}
		cb := d.cmds[handle]
		if cb.recording {
			d.violatef("submit of command buffer %d that is still recording", handle)
		}
		if cb.pending {
			d.violatef("submit of command buffer %d that is already pending", handle)
		}
		cb.pending = true
		d.execute(cb.commands)
	}
	for _, sem := range info.SignalSemaphores {
		d.semaphores[sem] = true
	}
	d.Submissions = append(d.Submissions, Submission{
		Fence:          fence,
		CommandBuffers: slices.Clone(info.CommandBuffers),
		Wait:           slices.Clone(info.WaitSemaphores),
		Signal:         slices.Clone(info.SignalSemaphores),
	})
	return nil
}

// execute applies the transfer side effects of recorded commands.
func (d *Device) execute(commands []Command) {
	for _, c := range commands {
		switch c.Op {
		case "CopyBuffer":
			src, dst := d.buffers[gpu.Buffer(c.Args[0])], d.buffers[gpu.Buffer(c.Args[1])]
			if src == nil || dst == nil {
				d.violatef("copy between invalid buffers %d and %d", c.Args[0], c.Args[1])
				continue
			}
			copy(dst.data[:c.Args[2]], src.data[:c.Args[2]])
		case "CopyBufferToImage":
			img := gpu.Image(c.Args[1])
			if d.layouts[img] != gpu.ImageLayoutTransferDstOptimal {
				d.violatef("copy to image %d in layout %s", img, d.layouts[img])
			}
		case "PipelineBarrier":
			img := gpu.Image(c.Args[0])
			oldLayout, newLayout := gpu.ImageLayout(c.Args[1]), gpu.ImageLayout(c.Args[2])
			if oldLayout != gpu.ImageLayoutUndefined && d.layouts[img] != oldLayout {
				d.violatef("barrier on image %d expects %s but image is %s", img, oldLayout, d.layouts[img])
			}
			d.layouts[img] = newLayout
		}
	}
}
