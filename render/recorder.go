package render

import (
	"fmt"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

type RecordState int

const (
	RecordDirty RecordState = iota
	RecordRecording
	RecordRecorded
)

func (s RecordState) String() string {
	switch s {
	case RecordDirty:
		return "Dirty"
	case RecordRecording:
		return "Recording"
	case RecordRecorded:
		return "Recorded"
	}
	return fmt.Sprintf("RecordState(%d)", int(s))
}

// recorder owns one command buffer per swapchain image and tracks whether
// their contents still match the scene.
type recorder struct {
	device  gpu.Device
	pool    gpu.CommandPool
	buffers []gpu.CommandBuffer

	state RecordState
	// redirty is set when the scene changes while a pass is recording.
	redirty bool
	passes  int
}

func newRecorder(device gpu.Device) *recorder {
	return &recorder{device: device}
}

func (r *recorder) createPool() error {
	pool, err := r.device.CreateCommandPool(false)
	if err != nil {
		return errors.Wrap(err, "create command pool")
	}
	r.pool = pool
	return nil
}

func (r *recorder) allocate(count int) error {
	buffers, err := r.device.AllocateCommandBuffers(r.pool, count)
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}
	r.buffers = buffers
	r.markDirty()
	return nil
}

func (r *recorder) free() {
	if len(r.buffers) > 0 {
		r.device.FreeCommandBuffers(r.pool, r.buffers)
	}
	r.buffers = nil
}

func (r *recorder) destroy() {
	r.free()
	if r.pool != 0 {
		r.device.DestroyCommandPool(r.pool)
		r.pool = 0
	}
}

func (r *recorder) markDirty() {
	if r.state == RecordRecording {
		r.redirty = true
		return
	}
	r.state = RecordDirty
}

func (r *recorder) dirty() bool {
	return r.state == RecordDirty
}

// record resets the pool and records every buffer with fn. A change signaled
// while fn runs leaves the recorder dirty so the next frame records again.
func (r *recorder) record(fn func(image int, cmd gpu.CommandBuffer) error) error {
	if r.state == RecordRecording {
		return errors.AssertionFailedf("command buffers recorded re-entrantly")
	}
	if err := r.device.ResetCommandPool(r.pool); err != nil {
		return errors.Wrap(err, "reset command pool")
	}

	r.state = RecordRecording
	r.redirty = false
	for i, cmd := range r.buffers {
		if err := r.device.BeginCommandBuffer(cmd, false); err != nil {
			r.state = RecordDirty
			return errors.Wrap(err, "begin command buffer")
		}
		if err := fn(i, cmd); err != nil {
			r.state = RecordDirty
			return err
		}
		if err := r.device.EndCommandBuffer(cmd); err != nil {
			r.state = RecordDirty
			return errors.Wrap(err, "end command buffer")
		}
	}
	r.passes++

	if r.redirty {
		r.state = RecordDirty
	} else {
		r.state = RecordRecorded
	}
	return nil
}
