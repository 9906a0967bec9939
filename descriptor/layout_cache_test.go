package descriptor

import (
	"testing"

	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/gpu/gputest"
)

var (
	uboBinding = gpu.DescriptorSetLayoutBinding{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.StageVertex}
	texBinding = gpu.DescriptorSetLayoutBinding{Binding: 1, Type: gpu.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gpu.StageFragment}
)

func TestLayoutCacheIdentity(t *testing.T) {
	dev := gputest.NewDevice()
	cache := NewLayoutCache(dev)

	a, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{uboBinding, texBinding})
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{uboBinding, texBinding})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("identical bindings produced layouts %d and %d", a, b)
	}
	if n := dev.Count("CreateDescriptorSetLayout"); n != 1 {
		t.Fatalf("expected one device layout, got %d", n)
	}
}

func TestLayoutCacheOrderIndependent(t *testing.T) {
	dev := gputest.NewDevice()
	cache := NewLayoutCache(dev)

	a, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{texBinding, uboBinding})
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{uboBinding, texBinding})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("binding order should not produce distinct layouts")
	}

	bindings := dev.LayoutBindings(a)
	if len(bindings) != 2 || bindings[0].Binding != 0 || bindings[1].Binding != 1 {
		t.Fatalf("layout bindings not sorted: %+v", bindings)
	}
}

func TestLayoutCacheDistinctTuples(t *testing.T) {
	dev := gputest.NewDevice()
	cache := NewLayoutCache(dev)

	variants := [][]gpu.DescriptorSetLayoutBinding{
		{uboBinding},
		{{Binding: 1, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.StageVertex}},
		{{Binding: 0, Type: gpu.DescriptorTypeStorageBuffer, Count: 1, Stages: gpu.StageVertex}},
		{{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 2, Stages: gpu.StageVertex}},
		{{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.StageFragment}},
		{uboBinding, texBinding},
	}
	seen := make(map[gpu.DescriptorSetLayout]int)
	for i, v := range variants {
		layout, err := cache.CreateLayout(v)
		if err != nil {
			t.Fatal(err)
		}
		if j, ok := seen[layout]; ok {
			t.Fatalf("variants %d and %d share layout %d", j, i, layout)
		}
		seen[layout] = i
	}
	if cache.Len() != len(variants) {
		t.Fatalf("expected %d cached layouts, got %d", len(variants), cache.Len())
	}
}

func TestLayoutCacheRejectsDuplicateBinding(t *testing.T) {
	cache := NewLayoutCache(gputest.NewDevice())
	_, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{uboBinding, uboBinding})
	if err == nil {
		t.Fatal("expected duplicate binding index to be rejected")
	}
}

func TestLayoutCacheCleanup(t *testing.T) {
	dev := gputest.NewDevice()
	cache := NewLayoutCache(dev)
	if _, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{uboBinding}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.CreateLayout([]gpu.DescriptorSetLayoutBinding{texBinding}); err != nil {
		t.Fatal(err)
	}
	cache.Cleanup()
	if n := dev.Live("DescriptorSetLayout"); n != 0 {
		t.Fatalf("%d layouts leaked", n)
	}
	if cache.Len() != 0 {
		t.Fatal("cache not emptied")
	}
}
