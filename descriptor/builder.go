package descriptor

import (
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

// Builder accumulates bindings and writes for one descriptor set.
//
//	set, layout, err := descriptor.Begin(cache, alloc).
//		BindBuffer(0, uboInfo, gpu.DescriptorTypeUniformBuffer, gpu.StageVertex).
//		Build()
type Builder struct {
	cache    *LayoutCache
	alloc    *Allocator
	bindings []gpu.DescriptorSetLayoutBinding
	writes   []gpu.WriteDescriptorSet
}

func Begin(cache *LayoutCache, alloc *Allocator) *Builder {
	return &Builder{cache: cache, alloc: alloc}
}

func (b *Builder) BindBuffer(binding int, info gpu.DescriptorBufferInfo, typ gpu.DescriptorType, stages gpu.ShaderStage) *Builder {
	b.bindings = append(b.bindings, gpu.DescriptorSetLayoutBinding{
		Binding: binding,
		Type:    typ,
		Count:   1,
		Stages:  stages,
	})
	b.writes = append(b.writes, gpu.WriteDescriptorSet{
		Binding: binding,
		Type:    typ,
		Buffer:  &info,
	})
	return b
}

func (b *Builder) BindImage(binding int, info gpu.DescriptorImageInfo, typ gpu.DescriptorType, stages gpu.ShaderStage) *Builder {
	b.bindings = append(b.bindings, gpu.DescriptorSetLayoutBinding{
		Binding: binding,
		Type:    typ,
		Count:   1,
		Stages:  stages,
	})
	b.writes = append(b.writes, gpu.WriteDescriptorSet{
		Binding: binding,
		Type:    typ,
		Image:   &info,
	})
	return b
}

// Layout resolves the set layout for the accumulated bindings without
// allocating a set.
func (b *Builder) Layout() (gpu.DescriptorSetLayout, error) {
	return b.cache.CreateLayout(b.bindings)
}

// Build allocates the set and applies every write. Nothing is written when
// the allocation fails.
func (b *Builder) Build() (gpu.DescriptorSet, gpu.DescriptorSetLayout, error) {
	layout, err := b.Layout()
	if err != nil {
		return 0, 0, err
	}

	set, err := b.alloc.Allocate(layout)
	if err != nil {
		return 0, 0, errors.Wrap(err, "build descriptor set")
	}

	writes := make([]gpu.WriteDescriptorSet, len(b.writes))
	for i, w := range b.writes {
		w.Set = set
		writes[i] = w
	}
	b.alloc.Device().UpdateDescriptorSets(writes)
	return set, layout, nil
}
