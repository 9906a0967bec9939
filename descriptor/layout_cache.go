package descriptor

import (
	"encoding/binary"
	"slices"

	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

// LayoutCache returns one layout object per distinct set of bindings.
// Binding order does not matter; the (binding, type, count, stages) tuples
// do.
type LayoutCache struct {
	device  gpu.Device
	layouts map[string]gpu.DescriptorSetLayout
}

func NewLayoutCache(device gpu.Device) *LayoutCache {
	return &LayoutCache{
		device:  device,
		layouts: make(map[string]gpu.DescriptorSetLayout),
	}
}

func canonical(bindings []gpu.DescriptorSetLayoutBinding) []gpu.DescriptorSetLayoutBinding {
	sorted := slices.Clone(bindings)
	slices.SortStableFunc(sorted, func(a, b gpu.DescriptorSetLayoutBinding) int {
		return a.Binding - b.Binding
	})
	return sorted
}

func layoutKey(sorted []gpu.DescriptorSetLayoutBinding) string {
	key := make([]byte, 0, len(sorted)*16)
	for _, b := range sorted {
		key = binary.AppendVarint(key, int64(b.Binding))
		key = binary.AppendVarint(key, int64(b.Type))
		key = binary.AppendVarint(key, int64(b.Count))
		key = binary.AppendUvarint(key, uint64(b.Stages))
	}
	return string(key)
}

func (c *LayoutCache) CreateLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	sorted := canonical(bindings)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Binding == sorted[i-1].Binding {
			return 0, errors.AssertionFailedf("binding %d declared twice", sorted[i].Binding)
		}
	}

	key := layoutKey(sorted)
	if layout, ok := c.layouts[key]; ok {
		return layout, nil
	}

	layout, err := c.device.CreateDescriptorSetLayout(sorted)
	if err != nil {
		return 0, errors.Wrap(err, "create descriptor set layout")
	}
	c.layouts[key] = layout
	return layout, nil
}

func (c *LayoutCache) Len() int {
	return len(c.layouts)
}

func (c *LayoutCache) Cleanup() {
	for key, layout := range c.layouts {
		c.device.DestroyDescriptorSetLayout(layout)
		delete(c.layouts, key)
	}
}
