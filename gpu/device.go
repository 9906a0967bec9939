package gpu

// Device is a logical GPU device bound to one presentation surface. All calls
// are made from the render thread.
//
// Create calls return a non-zero handle on success. Destroy calls accept only
// handles the same device produced and release them exactly once.
type Device interface {
	// WaitIdle blocks until every queue on the device has drained.
	WaitIdle() error

	SurfaceSupport() (SurfaceSupport, error)
	// DepthFormat returns the first of D32, D32S8 and D24S8 the device can
	// use as an optimal-tiling depth attachment.
	DepthFormat() (Format, error)

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, []Image, error)
	DestroySwapchain(swapchain Swapchain)
	// AcquireNextImage blocks until an image is available and arranges for
	// signal to be signaled once it may be written. An OutOfDate result
	// leaves signal untouched.
	AcquireNextImage(swapchain Swapchain, signal Semaphore) (int, Result, error)
	Present(swapchain Swapchain, imageIndex int, wait Semaphore) (Result, error)

	CreateImage(info ImageCreateInfo) (Image, error)
	DestroyImage(image Image)
	CreateImageView(image Image, format Format, aspect ImageAspect) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler() (Sampler, error)
	DestroySampler(sampler Sampler)

	// CreateBuffer allocates and binds backing memory with the requested
	// properties in one step.
	CreateBuffer(size int, usage BufferUsage, memory MemoryProperty) (Buffer, error)
	DestroyBuffer(buffer Buffer)
	// WriteBuffer and ReadBuffer map host-visible memory.
	WriteBuffer(buffer Buffer, offset int, data []byte) error
	ReadBuffer(buffer Buffer, offset, size int) ([]byte, error)

	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(renderPass RenderPass)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreatePipelineCache() (PipelineCache, error)
	DestroyPipelineCache(cache PipelineCache)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)

	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(maxSets int, sizes []DescriptorPoolSize) (DescriptorPool, error)
	// ResetDescriptorPool returns every set allocated from pool to it.
	ResetDescriptorPool(pool DescriptorPool) error
	DestroyDescriptorPool(pool DescriptorPool)
	// AllocateDescriptorSet fails with ErrOutOfPoolMemory or ErrFragmentedPool
	// when pool cannot hold another set of the given layout.
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []WriteDescriptorSet)

	CreateCommandPool(transient bool) (CommandPool, error)
	ResetCommandPool(pool CommandPool) error
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, buffers []CommandBuffer)
	BeginCommandBuffer(cmd CommandBuffer, oneTime bool) error
	EndCommandBuffer(cmd CommandBuffer) error

	CmdBeginRenderPass(cmd CommandBuffer, info RenderPassBeginInfo)
	CmdEndRenderPass(cmd CommandBuffer)
	CmdSetViewport(cmd CommandBuffer, extent Extent2D)
	CmdSetScissor(cmd CommandBuffer, extent Extent2D)
	CmdBindPipeline(cmd CommandBuffer, pipeline Pipeline)
	CmdBindVertexBuffer(cmd CommandBuffer, buffer Buffer, offset int)
	CmdBindIndexBuffer(cmd CommandBuffer, buffer Buffer, offset int)
	CmdBindDescriptorSets(cmd CommandBuffer, layout PipelineLayout, firstSet int, sets []DescriptorSet)
	CmdDrawIndexed(cmd CommandBuffer, indexCount int)
	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, size int)
	CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, extent Extent2D)
	CmdPipelineBarrier(cmd CommandBuffer, barrier ImageBarrier)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	// WaitForFence blocks without a timeout.
	WaitForFence(fence Fence) error
	ResetFence(fence Fence) error

	// Submit queues work on the graphics queue. fence may be zero.
	Submit(info SubmitInfo, fence Fence) error
	QueueWaitIdle() error
}
