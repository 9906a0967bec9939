// Package sdlwindow hosts the renderer in an SDL2 window with Vulkan
// support.
package sdlwindow

import (
	"github.com/ashengine/ash/render"
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
)

type Config struct {
	Title  string
	Width  int
	Height int
}

type Window struct {
	window  *sdl.Window
	resized bool
	closed  bool
}

var _ render.Window = (*Window)(nil)

// Open initializes SDL video and creates a resizable Vulkan window. It must
// be called from the thread that will pump events.
func Open(cfg Config) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl video")
	}

	window, err := sdl.CreateWindow(cfg.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width), int32(cfg.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{window: window}, nil
}

// SDL exposes the native window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

func (w *Window) FramebufferSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	return int(width), int(height)
}

func (w *Window) ResizeRequested() bool {
	resized := w.resized
	w.resized = false
	return resized
}

// Closed reports whether the user asked to quit.
func (w *Window) Closed() bool {
	return w.closed
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED,
			sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
			w.resized = true
		case sdl.WINDOWEVENT_CLOSE:
			w.closed = true
		}
	}
}

// PollEvents drains pending events without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks until at least one event arrives, then drains the rest.
// Used while minimized so the loop does not spin.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
