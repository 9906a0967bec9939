package vkng

import (
	"unsafe"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// allocation pairs a buffer or image with the dedicated memory bound to it.
type allocation[T any] struct {
	object T
	memory core1_0.DeviceMemory
	size   int
}

func (d *Device) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := d.instanceDriver.GetPhysicalDeviceMemoryProperties(d.physicalDevice)
	types := make([]core1_0.MemoryPropertyFlags, len(memProperties.MemoryTypes))
	for i, memoryType := range memProperties.MemoryTypes {
		types[i] = memoryType.PropertyFlags
	}
	return pickMemoryType(types, typeFilter, properties)
}

// pickMemoryType returns the first memory type allowed by typeFilter that
// has every requested property.
func pickMemoryType(types []core1_0.MemoryPropertyFlags, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, flags := range types {
		typeBit := uint32(1 << i)
		if typeFilter&typeBit != 0 && flags&properties == properties {
			return i, nil
		}
	}
	return 0, errors.AssertionFailedf("no memory type matches filter %#b with properties %s", typeFilter, properties)
}

func (d *Device) allocate(size int, typeBits uint32, properties gpu.MemoryProperty) (core1_0.DeviceMemory, error) {
	memoryIndex, err := d.findMemoryType(typeBits, core1_0.MemoryPropertyFlags(properties))
	if err != nil {
		return core1_0.DeviceMemory{}, err
	}

	memory, _, err := d.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryIndex,
	})
	return memory, err
}

func (d *Device) CreateBuffer(size int, usage gpu.BufferUsage, memory gpu.MemoryProperty) (gpu.Buffer, error) {
	buffer, _, err := d.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       core1_0.BufferUsageFlags(usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return 0, err
	}

	reqs := d.deviceDriver.GetBufferMemoryRequirements(buffer)
	mem, err := d.allocate(reqs.Size, reqs.MemoryTypeBits, memory)
	if err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		return 0, err
	}

	if _, err := d.deviceDriver.BindBufferMemory(buffer, mem, 0); err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		d.deviceDriver.FreeMemory(mem, nil)
		return 0, err
	}

	return gpu.Buffer(d.buffers.put(allocation[core1_0.Buffer]{object: buffer, memory: mem, size: size})), nil
}

func (d *Device) freeBuffer(b allocation[core1_0.Buffer]) {
	d.deviceDriver.DestroyBuffer(b.object, nil)
	d.deviceDriver.FreeMemory(b.memory, nil)
}

func (d *Device) DestroyBuffer(buffer gpu.Buffer) {
	if b, ok := d.buffers.take(uint64(buffer)); ok {
		d.freeBuffer(b)
	}
}

func (d *Device) mapBuffer(buffer gpu.Buffer, offset, size int) ([]byte, core1_0.DeviceMemory, error) {
	b, err := d.buffers.get(uint64(buffer))
	if err != nil {
		return nil, core1_0.DeviceMemory{}, err
	}
	if offset < 0 || size < 0 || offset+size > b.size {
		return nil, core1_0.DeviceMemory{}, errors.AssertionFailedf("range [%d, %d) outside buffer of %d bytes", offset, offset+size, b.size)
	}

	ptr, _, err := d.deviceDriver.MapMemory(b.memory, offset, size, 0)
	if err != nil {
		return nil, core1_0.DeviceMemory{}, err
	}
	return unsafe.Slice((*byte)(ptr), size), b.memory, nil
}

func (d *Device) WriteBuffer(buffer gpu.Buffer, offset int, data []byte) error {
	mapped, memory, err := d.mapBuffer(buffer, offset, len(data))
	if err != nil {
		return err
	}
	defer d.deviceDriver.UnmapMemory(memory)

	copy(mapped, data)
	return nil
}

func (d *Device) ReadBuffer(buffer gpu.Buffer, offset, size int) ([]byte, error) {
	mapped, memory, err := d.mapBuffer(buffer, offset, size)
	if err != nil {
		return nil, err
	}
	defer d.deviceDriver.UnmapMemory(memory)

	out := make([]byte, size)
	copy(out, mapped)
	return out, nil
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	image, _, err := d.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        core1_0.Format(info.Format),
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         core1_0.ImageUsageFlags(info.Usage),
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return 0, err
	}

	reqs := d.deviceDriver.GetImageMemoryRequirements(image)
	mem, err := d.allocate(reqs.Size, reqs.MemoryTypeBits, info.Memory)
	if err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		return 0, err
	}

	if _, err := d.deviceDriver.BindImageMemory(image, mem, 0); err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		d.deviceDriver.FreeMemory(mem, nil)
		return 0, err
	}

	return gpu.Image(d.images.put(allocation[core1_0.Image]{object: image, memory: mem, size: reqs.Size})), nil
}

func (d *Device) freeImage(img allocation[core1_0.Image]) {
	d.deviceDriver.DestroyImage(img.object, nil)
	d.deviceDriver.FreeMemory(img.memory, nil)
}

func (d *Device) DestroyImage(image gpu.Image) {
	if img, ok := d.images.take(uint64(image)); ok {
		d.freeImage(img)
	}
}

// image resolves both owned images and swapchain images.
func (d *Device) image(handle gpu.Image) (core1_0.Image, error) {
	if img, ok := d.images.objects[uint64(handle)]; ok {
		return img.object, nil
	}
	return d.swapchainImages.get(uint64(handle))
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format, aspect gpu.ImageAspect) (gpu.ImageView, error) {
	img, err := d.image(image)
	if err != nil {
		return 0, err
	}

	view, _, err := d.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    img,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return 0, err
	}
	return gpu.ImageView(d.views.put(view)), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	if v, ok := d.views.take(uint64(view)); ok {
		d.deviceDriver.DestroyImageView(v, nil)
	}
}

func (d *Device) CreateSampler() (gpu.Sampler, error) {
	sampler, _, err := d.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    d.maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     1,
	})
	if err != nil {
		return 0, err
	}
	return gpu.Sampler(d.samplers.put(sampler)), nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	if s, ok := d.samplers.take(uint64(sampler)); ok {
		d.deviceDriver.DestroySampler(s, nil)
	}
}
