package vkng

import (
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type swapchainEntry struct {
	swapchain khr_swapchain.Swapchain
	images    []gpu.Image
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, []gpu.Image, error) {
	if info.Extent.Area() == 0 {
		return 0, nil, errors.AssertionFailedf("swapchain extent %dx%d has zero area", info.Extent.Width, info.Extent.Height)
	}

	caps, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(d.surface, d.physicalDevice)
	if err != nil {
		return 0, nil, err
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if *d.families.graphics != *d.families.present {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *d.families.graphics, *d.families.present)
	}

	swapchain, _, err := d.swapchainExt.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.surface,

		MinImageCount:    info.MinImageCount,
		ImageFormat:      core1_0.Format(info.Format.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      core1_0.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		return 0, nil, err
	}

	images, _, err := d.swapchainExt.GetSwapchainImages(swapchain)
	if err != nil {
		d.swapchainExt.DestroySwapchain(swapchain, nil)
		return 0, nil, err
	}

	entry := swapchainEntry{swapchain: swapchain}
	for _, image := range images {
		entry.images = append(entry.images, gpu.Image(d.swapchainImages.put(image)))
	}
	return gpu.Swapchain(d.swapchains.put(entry)), entry.images, nil
}

// DestroySwapchain also forgets the swapchain's image handles. Views over
// them must already be gone.
func (d *Device) DestroySwapchain(swapchain gpu.Swapchain) {
	entry, ok := d.swapchains.take(uint64(swapchain))
	if !ok {
		return
	}
	for _, image := range entry.images {
		d.swapchainImages.take(uint64(image))
	}
	d.swapchainExt.DestroySwapchain(entry.swapchain, nil)
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, signal gpu.Semaphore) (int, gpu.Result, error) {
	entry, err := d.swapchains.get(uint64(swapchain))
	if err != nil {
		return 0, gpu.ResultSuccess, err
	}
	sem, err := d.semaphores.get(uint64(signal))
	if err != nil {
		return 0, gpu.ResultSuccess, err
	}

	imageIndex, res, err := d.swapchainExt.AcquireNextImage(entry.swapchain, common.NoTimeout, &sem, nil)
	result, err := swapchainResult(res, err)
	return imageIndex, result, err
}

func (d *Device) Present(swapchain gpu.Swapchain, imageIndex int, wait gpu.Semaphore) (gpu.Result, error) {
	entry, err := d.swapchains.get(uint64(swapchain))
	if err != nil {
		return gpu.ResultSuccess, err
	}
	sem, err := d.semaphores.get(uint64(wait))
	if err != nil {
		return gpu.ResultSuccess, err
	}

	res, err := d.swapchainExt.QueuePresent(d.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{sem},
		Swapchains:     []khr_swapchain.Swapchain{entry.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	return swapchainResult(res, err)
}
