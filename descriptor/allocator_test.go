package descriptor

import (
	"testing"

	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/gpu/gputest"
	"github.com/cockroachdb/errors"
)

func uniformLayout(t *testing.T, dev *gputest.Device) gpu.DescriptorSetLayout {
	t.Helper()
	layout, err := NewLayoutCache(dev).CreateLayout([]gpu.DescriptorSetLayoutBinding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.StageVertex},
	})
	if err != nil {
		t.Fatal(err)
	}
	return layout
}

func TestAllocatorCreatesPoolLazily(t *testing.T) {
	dev := gputest.NewDevice()
	alloc := NewAllocator(dev, nil, DefaultSetsPerPool)
	if n := dev.Live("DescriptorPool"); n != 0 {
		t.Fatalf("expected no pools before first allocation, got %d", n)
	}

	layout := uniformLayout(t, dev)
	for i := 0; i < 10; i++ {
		if _, err := alloc.Allocate(layout); err != nil {
			t.Fatal(err)
		}
	}
	if n := dev.Live("DescriptorPool"); n != 1 {
		t.Fatalf("expected one pool, got %d", n)
	}
}

func TestAllocatorGrowsOnExhaustion(t *testing.T) {
	dev := gputest.NewDevice()
	alloc := NewAllocator(dev, nil, 2)
	layout := uniformLayout(t, dev)

	seen := make(map[gpu.DescriptorSet]bool)
	for i := 0; i < 5; i++ {
		set, err := alloc.Allocate(layout)
		if err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
		if seen[set] {
			t.Fatalf("set %d handed out twice", set)
		}
		seen[set] = true
	}

	used, free := alloc.PoolCount()
	if used != 3 || free != 0 {
		t.Fatalf("expected 3 used and 0 free pools, got %d and %d", used, free)
	}
	if n := dev.Count("AllocateDescriptorSetFailed"); n != 2 {
		t.Fatalf("expected 2 exhausted attempts, got %d", n)
	}
}

func TestAllocatorFailsTwice(t *testing.T) {
	dev := gputest.NewDevice()
	alloc := NewAllocator(dev, nil, 0)
	layout := uniformLayout(t, dev)

	_, err := alloc.Allocate(layout)
	if err == nil {
		t.Fatal("expected allocation from zero-capacity pools to fail")
	}
	if !errors.IsAssertionFailure(err) {
		t.Fatalf("expected assertion failure, got %v", err)
	}
	if !errors.Is(err, gpu.ErrOutOfPoolMemory) {
		t.Fatalf("expected wrapped pool error, got %v", err)
	}
	if n := dev.Count("AllocateDescriptorSetFailed"); n != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", n)
	}
}

func TestResetPoolsReusesPools(t *testing.T) {
	dev := gputest.NewDevice()
	alloc := NewAllocator(dev, nil, 4)
	layout := uniformLayout(t, dev)

	for i := 0; i < 6; i++ {
		if _, err := alloc.Allocate(layout); err != nil {
			t.Fatal(err)
		}
	}
	created := dev.Count("CreateDescriptorPool")
	if created != 2 {
		t.Fatalf("expected 2 pools, got %d", created)
	}

	if err := alloc.ResetPools(); err != nil {
		t.Fatal(err)
	}
	used, free := alloc.PoolCount()
	if used != 0 || free != 2 {
		t.Fatalf("after reset expected 0 used and 2 free, got %d and %d", used, free)
	}

	for i := 0; i < 6; i++ {
		if _, err := alloc.Allocate(layout); err != nil {
			t.Fatal(err)
		}
	}
	if n := dev.Count("CreateDescriptorPool"); n != created {
		t.Fatalf("reset pools should be reused, pool count went from %d to %d", created, n)
	}
}

func TestAllocatorCleanup(t *testing.T) {
	dev := gputest.NewDevice()
	alloc := NewAllocator(dev, nil, 1)
	layout := uniformLayout(t, dev)

	for i := 0; i < 3; i++ {
		if _, err := alloc.Allocate(layout); err != nil {
			t.Fatal(err)
		}
	}
	if err := alloc.ResetPools(); err != nil {
		t.Fatal(err)
	}
	if _, err := alloc.Allocate(layout); err != nil {
		t.Fatal(err)
	}

	alloc.Cleanup()
	if n := dev.Live("DescriptorPool"); n != 0 {
		t.Fatalf("expected all pools destroyed, %d alive", n)
	}
	if len(dev.Violations) > 0 {
		t.Fatalf("violations: %v", dev.Violations)
	}
}

func TestPoolSizeCounts(t *testing.T) {
	counts := DefaultPoolSizes().counts(1000)
	want := map[gpu.DescriptorType]int{
		gpu.DescriptorTypeCombinedImageSampler: 4000,
		gpu.DescriptorTypeUniformBuffer:        2000,
		gpu.DescriptorTypeUniformBufferDynamic: 1000,
		gpu.DescriptorTypeSampler:              500,
	}
	for _, c := range counts {
		if n, ok := want[c.Type]; ok && n != c.Count {
			t.Errorf("%s: expected %d descriptors, got %d", c.Type, n, c.Count)
		}
	}
	if len(counts) != 11 {
		t.Fatalf("expected 11 pool sizes, got %d", len(counts))
	}
}
