// Package gpu is the device contract the renderer is written against.
//
// Handles are opaque non-zero integers handed out by a Device. Enumerations
// and flag sets carry the same numeric values as their Vulkan counterparts so
// a Vulkan backend can convert them with a plain cast.
package gpu

import "fmt"

type (
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	Swapchain           uint64
	RenderPass          uint64
	Framebuffer         uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	PipelineCache       uint64
	Pipeline            uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
)

// Result is the non-error outcome of an acquire or present call.
type Result int

const (
	ResultSuccess Result = iota
	ResultSuboptimal
	ResultOutOfDate
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultSuboptimal:
		return "Suboptimal"
	case ResultOutOfDate:
		return "OutOfDate"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

type Format int

const (
	FormatUndefined      Format = 0
	FormatR8G8B8A8SRGB   Format = 43
	FormatB8G8R8A8UNorm  Format = 44
	FormatB8G8R8A8SRGB   Format = 50
	FormatR32G32Float    Format = 103
	FormatR32G32B32Float Format = 106
	FormatD32Float       Format = 126
	FormatD24UNormS8UInt Format = 129
	FormatD32FloatS8UInt Format = 130
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "Undefined"
	case FormatR8G8B8A8SRGB:
		return "R8G8B8A8_SRGB"
	case FormatB8G8R8A8UNorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8SRGB:
		return "B8G8R8A8_SRGB"
	case FormatR32G32Float:
		return "R32G32_SFLOAT"
	case FormatR32G32B32Float:
		return "R32G32B32_SFLOAT"
	case FormatD32Float:
		return "D32_SFLOAT"
	case FormatD24UNormS8UInt:
		return "D24_UNORM_S8_UINT"
	case FormatD32FloatS8UInt:
		return "D32_SFLOAT_S8_UINT"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// HasStencil reports whether a depth format also carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatD32FloatS8UInt || f == FormatD24UNormS8UInt
}

type ColorSpace int

const ColorSpaceSRGBNonlinear ColorSpace = 0

type PresentMode int

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFORelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int(m))
}

type DescriptorType int

const (
	DescriptorTypeSampler DescriptorType = iota
	DescriptorTypeCombinedImageSampler
	DescriptorTypeSampledImage
	DescriptorTypeStorageImage
	DescriptorTypeUniformTexelBuffer
	DescriptorTypeStorageTexelBuffer
	DescriptorTypeUniformBuffer
	DescriptorTypeStorageBuffer
	DescriptorTypeUniformBufferDynamic
	DescriptorTypeStorageBufferDynamic
	DescriptorTypeInputAttachment
)

var descriptorTypeNames = [...]string{
	"Sampler",
	"CombinedImageSampler",
	"SampledImage",
	"StorageImage",
	"UniformTexelBuffer",
	"StorageTexelBuffer",
	"UniformBuffer",
	"StorageBuffer",
	"UniformBufferDynamic",
	"StorageBufferDynamic",
	"InputAttachment",
}

func (t DescriptorType) String() string {
	if t >= 0 && int(t) < len(descriptorTypeNames) {
		return descriptorTypeNames[t]
	}
	return fmt.Sprintf("DescriptorType(%d)", int(t))
}

type ShaderStage uint32

const (
	StageVertex   ShaderStage = 0x00000001
	StageFragment ShaderStage = 0x00000010
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StageFragment:
		return "Fragment"
	case StageVertex | StageFragment:
		return "Vertex|Fragment"
	}
	return fmt.Sprintf("ShaderStage(%#x)", uint32(s))
}

type BufferUsage uint32

const (
	BufferUsageTransferSrc   BufferUsage = 0x00000001
	BufferUsageTransferDst   BufferUsage = 0x00000002
	BufferUsageUniformBuffer BufferUsage = 0x00000010
	BufferUsageIndexBuffer   BufferUsage = 0x00000040
	BufferUsageVertexBuffer  BufferUsage = 0x00000080
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x00000001
	ImageUsageTransferDst            ImageUsage = 0x00000002
	ImageUsageSampled                ImageUsage = 0x00000004
	ImageUsageColorAttachment        ImageUsage = 0x00000010
	ImageUsageDepthStencilAttachment ImageUsage = 0x00000020
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal  MemoryProperty = 0x00000001
	MemoryHostVisible  MemoryProperty = 0x00000002
	MemoryHostCoherent MemoryProperty = 0x00000004
)

type ImageAspect uint32

const (
	AspectColor   ImageAspect = 0x00000001
	AspectDepth   ImageAspect = 0x00000002
	AspectStencil ImageAspect = 0x00000004
)

type ImageLayout int

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutColorAttachmentOptimal:
		return "ColorAttachmentOptimal"
	case ImageLayoutDepthStencilAttachmentOptimal:
		return "DepthStencilAttachmentOptimal"
	case ImageLayoutShaderReadOnlyOptimal:
		return "ShaderReadOnlyOptimal"
	case ImageLayoutTransferSrcOptimal:
		return "TransferSrcOptimal"
	case ImageLayoutTransferDstOptimal:
		return "TransferDstOptimal"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

type Access uint32

const (
	AccessShaderRead                  Access = 0x00000020
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferWrite               Access = 0x00001000
)

type PipelineStage uint32

const (
	StageTopOfPipe             PipelineStage = 0x00000001
	StageFragmentShader        PipelineStage = 0x00000080
	StageEarlyFragmentTests    PipelineStage = 0x00000100
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageTransfer              PipelineStage = 0x00001000
)

// UndefinedExtent marks a surface whose current extent is chosen by the swapchain.
const UndefinedExtent = -1

type Extent2D struct {
	Width  int
	Height int
}

func (e Extent2D) Area() int {
	return e.Width * e.Height
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount  int
	MaxImageCount  int
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainCreateInfo struct {
	MinImageCount int
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
}

type ImageCreateInfo struct {
	Width  int
	Height int
	Format Format
	Usage  ImageUsage
	Memory MemoryProperty
}

type DescriptorSetLayoutBinding struct {
	Binding int
	Type    DescriptorType
	Count   int
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count int
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset int
	Range  int
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// WriteDescriptorSet carries exactly one of Buffer or Image.
type WriteDescriptorSet struct {
	Set     DescriptorSet
	Binding int
	Type    DescriptorType
	Buffer  *DescriptorBufferInfo
	Image   *DescriptorImageInfo
}

// RenderPassCreateInfo describes the single forward pass. A DepthFormat of
// FormatUndefined omits the depth attachment.
type RenderPassCreateInfo struct {
	ColorFormat Format
	DepthFormat Format
}

type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
}

type VertexAttribute struct {
	Location int
	Format   Format
	Offset   int
}

type GraphicsPipelineCreateInfo struct {
	Stages           []ShaderStageInfo
	VertexStride     int
	VertexAttributes []VertexAttribute
	Layout           PipelineLayout
	RenderPass       RenderPass
	DepthTest        bool
	AllowDerivatives bool
	// Base is the parent of a derivative pipeline, zero otherwise.
	Base Pipeline
	// Cache, when set, is consulted and updated by the driver.
	Cache PipelineCache
}

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
	ClearDepth  float32
	Depth       bool
}

type ImageBarrier struct {
	Image     Image
	Aspect    ImageAspect
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	SrcStage  PipelineStage
	DstStage  PipelineStage
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}
