package vkng

import (
	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type commandBuffer struct {
	buffer core1_0.CommandBuffer
	pool   gpu.CommandPool
}

func (d *Device) CreateCommandPool(transient bool) (gpu.CommandPool, error) {
	var flags core1_0.CommandPoolCreateFlags
	if transient {
		flags |= core1_0.CommandPoolCreateTransient
	}

	pool, _, err := d.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            flags,
		QueueFamilyIndex: *d.families.graphics,
	})
	if err != nil {
		return 0, err
	}
	return gpu.CommandPool(d.commandPools.put(pool)), nil
}

func (d *Device) ResetCommandPool(pool gpu.CommandPool) error {
	p, err := d.commandPools.get(uint64(pool))
	if err != nil {
		return err
	}
	return checkResult(d.deviceDriver.ResetCommandPool(p, 0))
}

// DestroyCommandPool implicitly frees every buffer allocated from pool.
func (d *Device) DestroyCommandPool(pool gpu.CommandPool) {
	p, ok := d.commandPools.take(uint64(pool))
	if !ok {
		return
	}
	for handle, cb := range d.commandBuffers.objects {
		if cb.pool == pool {
			delete(d.commandBuffers.objects, handle)
		}
	}
	d.deviceDriver.DestroyCommandPool(p, nil)
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	p, err := d.commandPools.get(uint64(pool))
	if err != nil {
		return nil, err
	}

	buffers, _, err := d.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, err
	}

	handles := make([]gpu.CommandBuffer, len(buffers))
	for i, buffer := range buffers {
		handles[i] = gpu.CommandBuffer(d.commandBuffers.put(commandBuffer{buffer: buffer, pool: pool}))
	}
	return handles, nil
}

func (d *Device) FreeCommandBuffers(pool gpu.CommandPool, buffers []gpu.CommandBuffer) {
	var vkBuffers []core1_0.CommandBuffer
	for _, handle := range buffers {
		if cb, ok := d.commandBuffers.take(uint64(handle)); ok && cb.pool == pool {
			vkBuffers = append(vkBuffers, cb.buffer)
		}
	}
	if len(vkBuffers) > 0 {
		d.deviceDriver.FreeCommandBuffers(vkBuffers...)
	}
}

func (d *Device) cmd(handle gpu.CommandBuffer) core1_0.CommandBuffer {
	return d.commandBuffers.must(uint64(handle)).buffer
}

// cmdFailed logs recording errors from calls the contract treats as
// infallible. They only occur when the driver wrapper rejects its input.
func cmdFailed(op string, err error) {
	if err != nil {
		logging.Logger().Error("command recording failed", "op", op, "error", err)
	}
}

func (d *Device) BeginCommandBuffer(cmd gpu.CommandBuffer, oneTime bool) error {
	var flags core1_0.CommandBufferUsageFlags
	if oneTime {
		flags |= core1_0.CommandBufferUsageOneTimeSubmit
	}
	cb, err := d.commandBuffers.get(uint64(cmd))
	if err != nil {
		return err
	}
	return checkResult(d.deviceDriver.BeginCommandBuffer(cb.buffer, core1_0.CommandBufferBeginInfo{
		Flags: flags,
	}))
}

func (d *Device) EndCommandBuffer(cmd gpu.CommandBuffer) error {
	cb, err := d.commandBuffers.get(uint64(cmd))
	if err != nil {
		return err
	}
	return checkResult(d.deviceDriver.EndCommandBuffer(cb.buffer))
}

func fullRect(extent gpu.Extent2D) core1_0.Rect2D {
	return core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: core1_0.Extent2D{Width: extent.Width, Height: extent.Height},
	}
}

func (d *Device) CmdBeginRenderPass(cmd gpu.CommandBuffer, info gpu.RenderPassBeginInfo) {
	c := info.ClearColor
	clearValues := []core1_0.ClearValue{
		core1_0.ClearValueFloat{c[0], c[1], c[2], c[3]},
	}
	if info.Depth {
		clearValues = append(clearValues, core1_0.ClearValueDepthStencil{Depth: info.ClearDepth, Stencil: 0})
	}

	err := d.deviceDriver.CmdBeginRenderPass(d.cmd(cmd), core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  d.renderPasses.must(uint64(info.RenderPass)),
			Framebuffer: d.framebuffers.must(uint64(info.Framebuffer)),
			RenderArea:  fullRect(info.Extent),
			ClearValues: clearValues,
		})
	cmdFailed("BeginRenderPass", err)
}

func (d *Device) CmdEndRenderPass(cmd gpu.CommandBuffer) {
	d.deviceDriver.CmdEndRenderPass(d.cmd(cmd))
}

func (d *Device) CmdSetViewport(cmd gpu.CommandBuffer, extent gpu.Extent2D) {
	d.deviceDriver.CmdSetViewport(d.cmd(cmd), core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
}

func (d *Device) CmdSetScissor(cmd gpu.CommandBuffer, extent gpu.Extent2D) {
	d.deviceDriver.CmdSetScissor(d.cmd(cmd), fullRect(extent))
}

func (d *Device) CmdBindPipeline(cmd gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.deviceDriver.CmdBindPipeline(d.cmd(cmd), core1_0.PipelineBindPointGraphics, d.pipelines.must(uint64(pipeline)))
}

func (d *Device) CmdBindVertexBuffer(cmd gpu.CommandBuffer, buffer gpu.Buffer, offset int) {
	d.deviceDriver.CmdBindVertexBuffers(d.cmd(cmd), 0, []core1_0.Buffer{d.buffers.must(uint64(buffer)).object}, []int{offset})
}

func (d *Device) CmdBindIndexBuffer(cmd gpu.CommandBuffer, buffer gpu.Buffer, offset int) {
	d.deviceDriver.CmdBindIndexBuffer(d.cmd(cmd), d.buffers.must(uint64(buffer)).object, offset, core1_0.IndexTypeUInt32)
}

func (d *Device) CmdBindDescriptorSets(cmd gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet) {
	vkSets := make([]core1_0.DescriptorSet, len(sets))
	for i, set := range sets {
		vkSets[i] = d.descriptorSets.must(uint64(set)).set
	}
	d.deviceDriver.CmdBindDescriptorSets(d.cmd(cmd), core1_0.PipelineBindPointGraphics, d.pipelineLayouts.must(uint64(layout)), firstSet, vkSets, nil)
}

func (d *Device) CmdDrawIndexed(cmd gpu.CommandBuffer, indexCount int) {
	d.deviceDriver.CmdDrawIndexed(d.cmd(cmd), indexCount, 1, 0, 0, 0)
}

func (d *Device) CmdCopyBuffer(cmd gpu.CommandBuffer, src, dst gpu.Buffer, size int) {
	err := d.deviceDriver.CmdCopyBuffer(d.cmd(cmd), d.buffers.must(uint64(src)).object, d.buffers.must(uint64(dst)).object,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	cmdFailed("CopyBuffer", err)
}

func (d *Device) CmdCopyBufferToImage(cmd gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D) {
	img, err := d.image(dst)
	if err != nil {
		cmdFailed("CopyBufferToImage", err)
		return
	}

	err = d.deviceDriver.CmdCopyBufferToImage(d.cmd(cmd), d.buffers.must(uint64(src)).object, img, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		},
	)
	cmdFailed("CopyBufferToImage", err)
}

func (d *Device) CmdPipelineBarrier(cmd gpu.CommandBuffer, barrier gpu.ImageBarrier) {
	img, err := d.image(barrier.Image)
	if err != nil {
		cmdFailed("PipelineBarrier", err)
		return
	}

	err = d.deviceDriver.CmdPipelineBarrier(d.cmd(cmd),
		core1_0.PipelineStageFlags(barrier.SrcStage),
		core1_0.PipelineStageFlags(barrier.DstStage),
		0, nil, nil,
		[]core1_0.ImageMemoryBarrier{
			{
				OldLayout:           core1_0.ImageLayout(barrier.OldLayout),
				NewLayout:           core1_0.ImageLayout(barrier.NewLayout),
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               img,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     core1_0.ImageAspectFlags(barrier.Aspect),
					BaseMipLevel:   0,
					LevelCount:     1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcAccessMask: core1_0.AccessFlags(barrier.SrcAccess),
				DstAccessMask: core1_0.AccessFlags(barrier.DstAccess),
			},
		})
	cmdFailed("PipelineBarrier", err)
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semaphore, _, err := d.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return 0, err
	}
	return gpu.Semaphore(d.semaphores.put(semaphore)), nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Semaphore) {
	if s, ok := d.semaphores.take(uint64(semaphore)); ok {
		d.deviceDriver.DestroySemaphore(s, nil)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags |= core1_0.FenceCreateSignaled
	}

	fence, _, err := d.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: flags,
	})
	if err != nil {
		return 0, err
	}
	return gpu.Fence(d.fences.put(fence)), nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	if f, ok := d.fences.take(uint64(fence)); ok {
		d.deviceDriver.DestroyFence(f, nil)
	}
}

func (d *Device) WaitForFence(fence gpu.Fence) error {
	f, err := d.fences.get(uint64(fence))
	if err != nil {
		return err
	}
	return checkResult(d.deviceDriver.WaitForFences(true, common.NoTimeout, f))
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	f, err := d.fences.get(uint64(fence))
	if err != nil {
		return err
	}
	return checkResult(d.deviceDriver.ResetFences(f))
}

func (d *Device) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	submit := core1_0.SubmitInfo{}
	for _, handle := range info.WaitSemaphores {
		s, err := d.semaphores.get(uint64(handle))
		if err != nil {
			return err
		}
		submit.WaitSemaphores = append(submit.WaitSemaphores, s)
	}
	for _, stage := range info.WaitStages {
		submit.WaitDstStageMask = append(submit.WaitDstStageMask, core1_0.PipelineStageFlags(stage))
	}
	for _, handle := range info.CommandBuffers {
		cb, err := d.commandBuffers.get(uint64(handle))
		if err != nil {
			return err
		}
		submit.CommandBuffers = append(submit.CommandBuffers, cb.buffer)
	}
	for _, handle := range info.SignalSemaphores {
		s, err := d.semaphores.get(uint64(handle))
		if err != nil {
			return err
		}
		submit.SignalSemaphores = append(submit.SignalSemaphores, s)
	}

	var vkFence *core1_0.Fence
	if fence != 0 {
		f, err := d.fences.get(uint64(fence))
		if err != nil {
			return err
		}
		vkFence = &f
	}

	return checkResult(d.deviceDriver.QueueSubmit(d.graphicsQueue, vkFence, submit))
}

func (d *Device) QueueWaitIdle() error {
	return checkResult(d.deviceDriver.QueueWaitIdle(d.graphicsQueue))
}
