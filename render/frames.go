package render

import (
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

type frameSlot struct {
	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore
	inFlight       gpu.Fence
	// submitted is set between a submit on inFlight and the wait that
	// observes it.
	submitted bool
}

// frameSync cycles through frame slots and remembers which slot's fence
// last used each swapchain image.
type frameSync struct {
	device         gpu.Device
	slots          []frameSlot
	imagesInFlight []gpu.Fence
	current        int
}

func newFrameSync(device gpu.Device) *frameSync {
	return &frameSync{device: device}
}

func (f *frameSync) create(count int) error {
	if count < 1 {
		return errors.Newf("frames in flight must be positive, got %d", count)
	}
	f.slots = make([]frameSlot, count)
	for i := range f.slots {
		slot := &f.slots[i]
		var err error
		if slot.imageAvailable, err = f.device.CreateSemaphore(); err != nil {
			return errors.Wrap(err, "create image available semaphore")
		}
		if slot.renderFinished, err = f.device.CreateSemaphore(); err != nil {
			return errors.Wrap(err, "create render finished semaphore")
		}
		if slot.inFlight, err = f.device.CreateFence(true); err != nil {
			return errors.Wrap(err, "create in flight fence")
		}
	}
	return nil
}

func (f *frameSync) slot() *frameSlot {
	return &f.slots[f.current]
}

func (f *frameSync) wait(slot *frameSlot) error {
	if err := f.device.WaitForFence(slot.inFlight); err != nil {
		return errors.Wrap(err, "wait for frame fence")
	}
	slot.submitted = false
	return nil
}

func (f *frameSync) waitCurrent() error {
	return f.wait(f.slot())
}

// claimImage waits for whichever slot last rendered to image and then
// assigns the image to the current slot.
func (f *frameSync) claimImage(image int) error {
	if image < 0 || image >= len(f.imagesInFlight) {
		return errors.AssertionFailedf("acquired image %d outside %d swapchain images", image, len(f.imagesInFlight))
	}
	current := f.slot()
	if fence := f.imagesInFlight[image]; fence != 0 && fence != current.inFlight {
		for i := range f.slots {
			if f.slots[i].inFlight == fence {
				if err := f.wait(&f.slots[i]); err != nil {
					return err
				}
			}
		}
	}
	f.imagesInFlight[image] = current.inFlight
	return nil
}

// resetCurrent resets the current slot's fence. The fence must already have
// been observed as signaled.
func (f *frameSync) resetCurrent() error {
	slot := f.slot()
	if slot.submitted {
		return errors.AssertionFailedf("reset of frame fence %d before waiting on it", slot.inFlight)
	}
	return f.device.ResetFence(slot.inFlight)
}

func (f *frameSync) markSubmitted() {
	f.slot().submitted = true
}

func (f *frameSync) advance() {
	f.current = (f.current + 1) % len(f.slots)
}

// resizeImages forgets image ownership after the swapchain changed.
func (f *frameSync) resizeImages(count int) {
	f.imagesInFlight = make([]gpu.Fence, count)
}

func (f *frameSync) destroy() {
	for _, slot := range f.slots {
		f.device.DestroySemaphore(slot.renderFinished)
		f.device.DestroySemaphore(slot.imageAvailable)
		f.device.DestroyFence(slot.inFlight)
	}
	f.slots = nil
	f.imagesInFlight = nil
	f.current = 0
}
