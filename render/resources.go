package render

import (
	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/cockroachdb/errors"
)

// IndexedVertexBuffer is one device-local buffer holding vertex data
// followed by 32-bit indices.
type IndexedVertexBuffer struct {
	Buffer      gpu.Buffer
	Size        int
	IndexOffset int
	IndexCount  int
}

// Pixels is a tightly packed RGBA8 image.
type Pixels struct {
	Width  int
	Height int
	RGBA   []byte
}

type texture struct {
	image gpu.Image
	view  gpu.ImageView
}

type ownedKind int

const (
	ownedBuffer ownedKind = iota
	ownedImage
	ownedImageView
)

type owned struct {
	kind   ownedKind
	handle uint64
}

// resourceManager creates long-lived buffers and images, performs staging
// uploads on a transient command pool and releases everything it owns once,
// newest first.
type resourceManager struct {
	device       gpu.Device
	transferPool gpu.CommandPool
	copyFence    gpu.Fence
	owned        []owned
}

func newResourceManager(device gpu.Device) *resourceManager {
	return &resourceManager{device: device}
}

func (m *resourceManager) init() error {
	pool, err := m.device.CreateCommandPool(true)
	if err != nil {
		return errors.Wrap(err, "create transfer command pool")
	}
	m.transferPool = pool

	fence, err := m.device.CreateFence(false)
	if err != nil {
		return errors.Wrap(err, "create copy fence")
	}
	m.copyFence = fence
	return nil
}

func (m *resourceManager) track(kind ownedKind, handle uint64) {
	m.owned = append(m.owned, owned{kind: kind, handle: handle})
}

func (m *resourceManager) createBuffer(size int, usage gpu.BufferUsage, memory gpu.MemoryProperty) (gpu.Buffer, error) {
	buf, err := m.device.CreateBuffer(size, usage, memory)
	if err != nil {
		return 0, err
	}
	m.track(ownedBuffer, uint64(buf))
	return buf, nil
}

func (m *resourceManager) createUniformBuffer(size int) (gpu.Buffer, error) {
	return m.createBuffer(size, gpu.BufferUsageUniformBuffer, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
}

// runOneTime records fn into a fresh one-time command buffer, submits it and
// waits for completion on the copy fence.
func (m *resourceManager) runOneTime(fn func(cmd gpu.CommandBuffer)) error {
	buffers, err := m.device.AllocateCommandBuffers(m.transferPool, 1)
	if err != nil {
		return errors.Wrap(err, "allocate transfer command buffer")
	}
	defer m.device.FreeCommandBuffers(m.transferPool, buffers)
	cmd := buffers[0]

	if err := m.device.BeginCommandBuffer(cmd, true); err != nil {
		return errors.Wrap(err, "begin transfer command buffer")
	}
	fn(cmd)
	if err := m.device.EndCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "end transfer command buffer")
	}

	if err := m.device.Submit(gpu.SubmitInfo{CommandBuffers: buffers}, m.copyFence); err != nil {
		return errors.Wrap(err, "submit transfer")
	}
	if err := m.device.WaitForFence(m.copyFence); err != nil {
		return errors.Wrap(err, "wait for transfer")
	}
	return m.device.ResetFence(m.copyFence)
}

func (m *resourceManager) stage(data []byte) (gpu.Buffer, error) {
	staging, err := m.device.CreateBuffer(len(data), gpu.BufferUsageTransferSrc, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	if err != nil {
		return 0, errors.Wrap(err, "create staging buffer")
	}
	if err := m.device.WriteBuffer(staging, 0, data); err != nil {
		m.device.DestroyBuffer(staging)
		return 0, errors.Wrap(err, "fill staging buffer")
	}
	return staging, nil
}

// upload copies data into a new device-local buffer through a staging
// buffer that is destroyed before returning.
func (m *resourceManager) upload(data []byte, usage gpu.BufferUsage) (gpu.Buffer, error) {
	staging, err := m.stage(data)
	if err != nil {
		return 0, err
	}
	defer m.device.DestroyBuffer(staging)

	buf, err := m.createBuffer(len(data), usage|gpu.BufferUsageTransferDst, gpu.MemoryDeviceLocal)
	if err != nil {
		return 0, errors.Wrap(err, "create device buffer")
	}
	err = m.runOneTime(func(cmd gpu.CommandBuffer) {
		m.device.CmdCopyBuffer(cmd, staging, buf, len(data))
	})
	if err != nil {
		return 0, err
	}
	return buf, nil
}

func (m *resourceManager) createIndexedVertexBuffer(vertices []Vertex, indices []uint32) (IndexedVertexBuffer, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return IndexedVertexBuffer{}, errors.New("mesh needs at least one vertex and one index")
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return IndexedVertexBuffer{}, errors.Newf("index %d out of range for %d vertices", idx, len(vertices))
		}
	}

	data, offset, err := encodeMesh(vertices, indices)
	if err != nil {
		return IndexedVertexBuffer{}, err
	}
	buf, err := m.upload(data, gpu.BufferUsageVertexBuffer|gpu.BufferUsageIndexBuffer|gpu.BufferUsageTransferSrc)
	if err != nil {
		return IndexedVertexBuffer{}, errors.Wrap(err, "upload mesh")
	}
	logging.Logger().Debug("mesh uploaded", "vertices", len(vertices), "indices", len(indices), "bytes", len(data))
	return IndexedVertexBuffer{
		Buffer:      buf,
		Size:        len(data),
		IndexOffset: offset,
		IndexCount:  len(indices),
	}, nil
}

// readback copies size bytes of a device-local buffer back to the host.
func (m *resourceManager) readback(buf gpu.Buffer, size int) ([]byte, error) {
	staging, err := m.device.CreateBuffer(size, gpu.BufferUsageTransferDst, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}
	defer m.device.DestroyBuffer(staging)

	err = m.runOneTime(func(cmd gpu.CommandBuffer) {
		m.device.CmdCopyBuffer(cmd, buf, staging, size)
	})
	if err != nil {
		return nil, err
	}
	return m.device.ReadBuffer(staging, 0, size)
}

type layoutTransition struct {
	srcAccess, dstAccess gpu.Access
	srcStage, dstStage   gpu.PipelineStage
}

var layoutTransitions = map[[2]gpu.ImageLayout]layoutTransition{
	{gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDstOptimal}: {
		dstAccess: gpu.AccessTransferWrite,
		srcStage:  gpu.StageTopOfPipe,
		dstStage:  gpu.StageTransfer,
	},
	{gpu.ImageLayoutTransferDstOptimal, gpu.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: gpu.AccessTransferWrite,
		dstAccess: gpu.AccessShaderRead,
		srcStage:  gpu.StageTransfer,
		dstStage:  gpu.StageFragmentShader,
	},
	{gpu.ImageLayoutUndefined, gpu.ImageLayoutDepthStencilAttachmentOptimal}: {
		dstAccess: gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite,
		srcStage:  gpu.StageTopOfPipe,
		dstStage:  gpu.StageEarlyFragmentTests,
	},
}

func imageBarrier(image gpu.Image, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) (gpu.ImageBarrier, error) {
	t, ok := layoutTransitions[[2]gpu.ImageLayout{oldLayout, newLayout}]
	if !ok {
		return gpu.ImageBarrier{}, errors.AssertionFailedf("unsupported layout transition: %s -> %s", oldLayout, newLayout)
	}

	aspect := gpu.AspectColor
	if newLayout == gpu.ImageLayoutDepthStencilAttachmentOptimal {
		aspect = gpu.AspectDepth
		if format.HasStencil() {
			aspect |= gpu.AspectStencil
		}
	}
	return gpu.ImageBarrier{
		Image:     image,
		Aspect:    aspect,
		OldLayout: oldLayout,
		NewLayout: newLayout,
		SrcAccess: t.srcAccess,
		DstAccess: t.dstAccess,
		SrcStage:  t.srcStage,
		DstStage:  t.dstStage,
	}, nil
}

func (m *resourceManager) transitionImageLayout(image gpu.Image, format gpu.Format, oldLayout, newLayout gpu.ImageLayout) error {
	barrier, err := imageBarrier(image, format, oldLayout, newLayout)
	if err != nil {
		return err
	}
	return m.runOneTime(func(cmd gpu.CommandBuffer) {
		m.device.CmdPipelineBarrier(cmd, barrier)
	})
}

// createTexture uploads pixels into a sampled image left in shader-read
// layout.
func (m *resourceManager) createTexture(p Pixels) (texture, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return texture{}, errors.Newf("invalid texture size %dx%d", p.Width, p.Height)
	}
	if len(p.RGBA) != p.Width*p.Height*4 {
		return texture{}, errors.Newf("texture of %dx%d needs %d bytes, got %d", p.Width, p.Height, p.Width*p.Height*4, len(p.RGBA))
	}

	staging, err := m.stage(p.RGBA)
	if err != nil {
		return texture{}, err
	}
	defer m.device.DestroyBuffer(staging)

	format := gpu.FormatR8G8B8A8SRGB
	image, err := m.device.CreateImage(gpu.ImageCreateInfo{
		Width:  p.Width,
		Height: p.Height,
		Format: format,
		Usage:  gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
		Memory: gpu.MemoryDeviceLocal,
	})
	if err != nil {
		return texture{}, errors.Wrap(err, "create texture image")
	}
	m.track(ownedImage, uint64(image))

	if err := m.transitionImageLayout(image, format, gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDstOptimal); err != nil {
		return texture{}, err
	}
	err = m.runOneTime(func(cmd gpu.CommandBuffer) {
		m.device.CmdCopyBufferToImage(cmd, staging, image, gpu.Extent2D{Width: p.Width, Height: p.Height})
	})
	if err != nil {
		return texture{}, err
	}
	if err := m.transitionImageLayout(image, format, gpu.ImageLayoutTransferDstOptimal, gpu.ImageLayoutShaderReadOnlyOptimal); err != nil {
		return texture{}, err
	}

	view, err := m.device.CreateImageView(image, format, gpu.AspectColor)
	if err != nil {
		return texture{}, errors.Wrap(err, "create texture view")
	}
	m.track(ownedImageView, uint64(view))
	return texture{image: image, view: view}, nil
}

// releaseAll destroys every tracked object in reverse creation order.
func (m *resourceManager) releaseAll() {
	for i := len(m.owned) - 1; i >= 0; i-- {
		o := m.owned[i]
		switch o.kind {
		case ownedBuffer:
			m.device.DestroyBuffer(gpu.Buffer(o.handle))
		case ownedImage:
			m.device.DestroyImage(gpu.Image(o.handle))
		case ownedImageView:
			m.device.DestroyImageView(gpu.ImageView(o.handle))
		}
	}
	m.owned = nil

	if m.copyFence != 0 {
		m.device.DestroyFence(m.copyFence)
		m.copyFence = 0
	}
	if m.transferPool != 0 {
		m.device.DestroyCommandPool(m.transferPool)
		m.transferPool = 0
	}
}
