package render

import (
	"fmt"

	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/cockroachdb/errors"
)

// errZeroArea reports a minimized surface. The swapchain stays stale until
// the surface has area again.
var errZeroArea = errors.New("surface has zero area")

type SwapchainState int

const (
	SwapchainUninitialized SwapchainState = iota
	SwapchainReady
	// SwapchainStale means the surface changed and the swapchain must be
	// recreated before the next acquire.
	SwapchainStale
	SwapchainDestroyed
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainUninitialized:
		return "Uninitialized"
	case SwapchainReady:
		return "Ready"
	case SwapchainStale:
		return "Stale"
	case SwapchainDestroyed:
		return "Destroyed"
	}
	return fmt.Sprintf("SwapchainState(%d)", int(s))
}

// swapchainManager owns the swapchain and everything sized by it: image
// views, the render pass, the depth attachment and framebuffers.
type swapchainManager struct {
	device gpu.Device
	window Window
	res    *resourceManager
	cfg    *Config

	state       SwapchainState
	swapchain   gpu.Swapchain
	images      []gpu.Image
	views       []gpu.ImageView
	format      gpu.SurfaceFormat
	presentMode gpu.PresentMode
	extent      gpu.Extent2D

	renderPass   gpu.RenderPass
	depthFormat  gpu.Format
	depthImage   gpu.Image
	depthView    gpu.ImageView
	framebuffers []gpu.Framebuffer
}

func newSwapchainManager(device gpu.Device, window Window, res *resourceManager, cfg *Config) *swapchainManager {
	return &swapchainManager{
		device: device,
		window: window,
		res:    res,
		cfg:    cfg,
	}
}

func chooseSurfaceFormat(formats []gpu.SurfaceFormat, preferred gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	if len(formats) == 0 {
		return gpu.SurfaceFormat{}, errors.New("surface reports no formats")
	}
	for _, f := range formats {
		if f == preferred {
			return f, nil
		}
	}
	return formats[0], nil
}

func choosePresentMode(modes []gpu.PresentMode, preferred []gpu.PresentMode) gpu.PresentMode {
	for _, want := range preferred {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return gpu.PresentModeFIFO
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// chooseExtent prefers the surface's current extent and otherwise clamps the
// framebuffer size into the supported range.
func chooseExtent(caps gpu.SurfaceCapabilities, width, height int) gpu.Extent2D {
	if caps.CurrentExtent.Width != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps gpu.SurfaceCapabilities) int {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func (s *swapchainManager) createSwapchain() error {
	support, err := s.device.SurfaceSupport()
	if err != nil {
		return errors.Wrap(err, "query surface support")
	}
	format, err := chooseSurfaceFormat(support.Formats, s.cfg.SurfaceFormat)
	if err != nil {
		return err
	}
	width, height := s.window.FramebufferSize()
	extent := chooseExtent(support.Capabilities, width, height)
	if extent.Area() == 0 {
		return errZeroArea
	}
	presentMode := choosePresentMode(support.PresentModes, s.cfg.PresentModes)

	swapchain, images, err := s.device.CreateSwapchain(gpu.SwapchainCreateInfo{
		MinImageCount: chooseImageCount(support.Capabilities),
		Format:        format,
		Extent:        extent,
		PresentMode:   presentMode,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}

	s.swapchain = swapchain
	s.images = images
	s.format = format
	s.presentMode = presentMode
	s.extent = extent
	logging.Logger().Info("swapchain created",
		"images", len(images),
		"extent", fmt.Sprintf("%dx%d", extent.Width, extent.Height),
		"format", format.Format,
		"presentMode", presentMode)
	return nil
}

func (s *swapchainManager) createViews() error {
	s.views = make([]gpu.ImageView, 0, len(s.images))
	for _, img := range s.images {
		view, err := s.device.CreateImageView(img, s.format.Format, gpu.AspectColor)
		if err != nil {
			return errors.Wrap(err, "create swapchain image view")
		}
		s.views = append(s.views, view)
	}
	return nil
}

func (s *swapchainManager) createRenderPass() error {
	info := gpu.RenderPassCreateInfo{ColorFormat: s.format.Format}
	if s.cfg.Depth {
		if s.depthFormat == gpu.FormatUndefined {
			format, err := s.device.DepthFormat()
			if err != nil {
				return errors.Wrap(err, "find depth format")
			}
			s.depthFormat = format
		}
		info.DepthFormat = s.depthFormat
	}

	renderPass, err := s.device.CreateRenderPass(info)
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}
	s.renderPass = renderPass
	return nil
}

func (s *swapchainManager) createDepth() error {
	if !s.cfg.Depth {
		return nil
	}
	image, err := s.device.CreateImage(gpu.ImageCreateInfo{
		Width:  s.extent.Width,
		Height: s.extent.Height,
		Format: s.depthFormat,
		Usage:  gpu.ImageUsageDepthStencilAttachment,
		Memory: gpu.MemoryDeviceLocal,
	})
	if err != nil {
		return errors.Wrap(err, "create depth image")
	}
	s.depthImage = image

	view, err := s.device.CreateImageView(image, s.depthFormat, gpu.AspectDepth)
	if err != nil {
		return errors.Wrap(err, "create depth view")
	}
	s.depthView = view

	return s.res.transitionImageLayout(image, s.depthFormat, gpu.ImageLayoutUndefined, gpu.ImageLayoutDepthStencilAttachmentOptimal)
}

func (s *swapchainManager) createFramebuffers() error {
	s.framebuffers = make([]gpu.Framebuffer, 0, len(s.views))
	for _, view := range s.views {
		attachments := []gpu.ImageView{view}
		if s.cfg.Depth {
			attachments = append(attachments, s.depthView)
		}
		fb, err := s.device.CreateFramebuffer(gpu.FramebufferCreateInfo{
			RenderPass:  s.renderPass,
			Attachments: attachments,
			Extent:      s.extent,
		})
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}
		s.framebuffers = append(s.framebuffers, fb)
	}
	return nil
}

func (s *swapchainManager) destroyFramebuffers() {
	for _, fb := range s.framebuffers {
		s.device.DestroyFramebuffer(fb)
	}
	s.framebuffers = nil
}

func (s *swapchainManager) destroyDepth() {
	if s.depthView != 0 {
		s.device.DestroyImageView(s.depthView)
		s.depthView = 0
	}
	if s.depthImage != 0 {
		s.device.DestroyImage(s.depthImage)
		s.depthImage = 0
	}
}

func (s *swapchainManager) destroyRenderPass() {
	if s.renderPass != 0 {
		s.device.DestroyRenderPass(s.renderPass)
		s.renderPass = 0
	}
}

func (s *swapchainManager) destroyViews() {
	for _, view := range s.views {
		s.device.DestroyImageView(view)
	}
	s.views = nil
}

func (s *swapchainManager) destroySwapchain() {
	if s.swapchain != 0 {
		s.device.DestroySwapchain(s.swapchain)
		s.swapchain = 0
	}
	s.images = nil
}

func (s *swapchainManager) markStale(reason string) {
	if s.state == SwapchainReady {
		logging.Logger().Debug("swapchain stale", "reason", reason)
		s.state = SwapchainStale
	}
}

func (s *swapchainManager) imageCount() int {
	return len(s.images)
}

// consistent reports whether every per-image object matches the image
// count.
func (s *swapchainManager) consistent() bool {
	n := len(s.images)
	if len(s.views) != n || len(s.framebuffers) != n {
		return false
	}
	return (s.depthView != 0) == s.cfg.Depth
}
