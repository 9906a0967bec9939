package vkng

import (
	"testing"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

func TestBytesToBytecode(t *testing.T) {
	code := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	if len(code) != 2 {
		t.Fatalf("expected 2 words, got %d", len(code))
	}
	if code[0] != 0x07230203 {
		t.Errorf("expected SPIR-V magic, got %#x", code[0])
	}
	if code[1] != 1 {
		t.Errorf("expected 1, got %d", code[1])
	}
}

func TestRateDevice(t *testing.T) {
	integrated := rateDevice(false, 16384)
	discrete := rateDevice(true, 8192)
	if discrete != 9192 {
		t.Errorf("unexpected discrete score %d", discrete)
	}
	if integrated != 16384 {
		t.Errorf("unexpected integrated score %d", integrated)
	}
	if rateDevice(true, 4096) <= rateDevice(false, 4096) {
		t.Error("discrete device should outrank an integrated one of the same size")
	}
}

func TestPickMemoryType(t *testing.T) {
	types := []core1_0.MemoryPropertyFlags{
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
	}

	tests := []struct {
		name   string
		filter uint32
		props  core1_0.MemoryPropertyFlags
		want   int
	}{
		{"device local", 0b111, core1_0.MemoryPropertyDeviceLocal, 0},
		{"host visible first match", 0b111, core1_0.MemoryPropertyHostVisible, 1},
		{"coherent", 0b111, core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent, 2},
		{"filter skips", 0b100, core1_0.MemoryPropertyHostVisible, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickMemoryType(types, tt.filter, tt.props)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	_, err := pickMemoryType(types, 0b001, core1_0.MemoryPropertyHostVisible)
	if !errors.IsAssertionFailure(err) {
		t.Errorf("expected assertion failure, got %v", err)
	}
}

func TestSwapchainResult(t *testing.T) {
	driverErr := errors.New("driver error")

	res, err := swapchainResult(khr_swapchain.VKErrorOutOfDate, driverErr)
	if err != nil || res != gpu.ResultOutOfDate {
		t.Errorf("out of date: got %s, %v", res, err)
	}

	res, err = swapchainResult(khr_swapchain.VKSuboptimal, nil)
	if err != nil || res != gpu.ResultSuboptimal {
		t.Errorf("suboptimal: got %s, %v", res, err)
	}

	res, err = swapchainResult(common.VkResult(0), nil)
	if err != nil || res != gpu.ResultSuccess {
		t.Errorf("success: got %s, %v", res, err)
	}

	_, err = swapchainResult(resultDeviceLost, driverErr)
	if !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("expected device lost, got %v", err)
	}
}

func TestPoolResult(t *testing.T) {
	driverErr := errors.New("driver error")

	if err := poolResult(resultOutOfPoolMemory, driverErr); !errors.Is(err, gpu.ErrOutOfPoolMemory) {
		t.Errorf("expected out of pool memory, got %v", err)
	}
	if err := poolResult(resultFragmentedPool, driverErr); !errors.Is(err, gpu.ErrFragmentedPool) {
		t.Errorf("expected fragmented pool, got %v", err)
	}
	err := poolResult(common.VkResult(-2), driverErr)
	if gpu.IsPoolExhausted(err) {
		t.Errorf("host memory exhaustion is not pool exhaustion: %v", err)
	}
	if !errors.Is(err, driverErr) {
		t.Errorf("expected the driver error back, got %v", err)
	}
}

func TestArenaSharesCounter(t *testing.T) {
	var counter uint64
	a := newArena[string]("a", &counter)
	b := newArena[int]("b", &counter)

	h1 := a.put("x")
	h2 := b.put(7)
	if h1 == h2 {
		t.Fatalf("handles collide: %d", h1)
	}

	if _, err := b.get(h1); !errors.IsAssertionFailure(err) {
		t.Errorf("expected unknown handle assertion, got %v", err)
	}

	if v, ok := a.take(h1); !ok || v != "x" {
		t.Errorf("take returned %q, %v", v, ok)
	}
	if _, ok := a.take(h1); ok {
		t.Error("second take should miss")
	}
	if a.len() != 0 || b.len() != 1 {
		t.Errorf("unexpected lengths %d, %d", a.len(), b.len())
	}
}
