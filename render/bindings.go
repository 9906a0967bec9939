package render

import (
	"github.com/ashengine/ash/descriptor"
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
)

// Descriptor set indices shared with the shaders.
const (
	globalSet   = 0
	materialSet = 1
	objectSet   = 2
)

type material struct {
	texture TextureID
	sets    []gpu.DescriptorSet
}

// renderableBinding holds one uniform buffer and one object set per
// swapchain image.
type renderableBinding struct {
	ubos []gpu.Buffer
	sets []gpu.DescriptorSet
}

type globalBindings struct {
	globalUBOs []gpu.Buffer
	lightUBOs  []gpu.Buffer
	sets       []gpu.DescriptorSet
}

func (r *Renderer) builder() *descriptor.Builder {
	return descriptor.Begin(r.layouts, r.alloc)
}

func globalBuilder(b *descriptor.Builder, global, light gpu.Buffer) *descriptor.Builder {
	return b.
		BindBuffer(0, gpu.DescriptorBufferInfo{Buffer: global, Range: globalUniformSize}, gpu.DescriptorTypeUniformBuffer, gpu.StageVertex).
		BindBuffer(1, gpu.DescriptorBufferInfo{Buffer: light, Range: lightUniformSize}, gpu.DescriptorTypeUniformBuffer, gpu.StageVertex|gpu.StageFragment)
}

func (r *Renderer) materialBuilder(b *descriptor.Builder, view gpu.ImageView) *descriptor.Builder {
	return b.BindImage(0, gpu.DescriptorImageInfo{
		Sampler: r.sampler,
		View:    view,
		Layout:  gpu.ImageLayoutShaderReadOnlyOptimal,
	}, gpu.DescriptorTypeCombinedImageSampler, gpu.StageFragment)
}

func objectBuilder(b *descriptor.Builder, ubo gpu.Buffer) *descriptor.Builder {
	return b.BindBuffer(0, gpu.DescriptorBufferInfo{Buffer: ubo, Range: objectUniformSize}, gpu.DescriptorTypeUniformBuffer, gpu.StageVertex)
}

// createSetLayouts resolves the three set layouts through the cache so the
// pipeline layout exists before any set is allocated.
func (r *Renderer) createSetLayouts() ([]gpu.DescriptorSetLayout, error) {
	global, err := globalBuilder(r.builder(), 0, 0).Layout()
	if err != nil {
		return nil, errors.Wrap(err, "global set layout")
	}
	mat, err := r.materialBuilder(r.builder(), 0).Layout()
	if err != nil {
		return nil, errors.Wrap(err, "material set layout")
	}
	object, err := objectBuilder(r.builder(), 0).Layout()
	if err != nil {
		return nil, errors.Wrap(err, "object set layout")
	}
	return []gpu.DescriptorSetLayout{global, mat, object}, nil
}

// growUniforms appends uniform buffers until bufs has one per image.
func (r *Renderer) growUniforms(bufs []gpu.Buffer, size, images int) ([]gpu.Buffer, error) {
	for len(bufs) < images {
		buf, err := r.res.createUniformBuffer(size)
		if err != nil {
			return nil, errors.Wrap(err, "create uniform buffer")
		}
		bufs = append(bufs, buf)
	}
	return bufs, nil
}

func (r *Renderer) buildGlobalSets(images int) error {
	var err error
	if r.global.globalUBOs, err = r.growUniforms(r.global.globalUBOs, globalUniformSize, images); err != nil {
		return err
	}
	if r.global.lightUBOs, err = r.growUniforms(r.global.lightUBOs, lightUniformSize, images); err != nil {
		return err
	}
	r.global.sets = make([]gpu.DescriptorSet, images)
	for i := range r.global.sets {
		set, _, err := globalBuilder(r.builder(), r.global.globalUBOs[i], r.global.lightUBOs[i]).Build()
		if err != nil {
			return errors.Wrap(err, "build global set")
		}
		r.global.sets[i] = set
	}
	return nil
}

func (r *Renderer) buildMaterialSets(m *material, images int) error {
	view := r.textures[m.texture].view
	m.sets = make([]gpu.DescriptorSet, images)
	for i := range m.sets {
		set, _, err := r.materialBuilder(r.builder(), view).Build()
		if err != nil {
			return errors.Wrap(err, "build material set")
		}
		m.sets[i] = set
	}
	return nil
}

func (r *Renderer) buildObjectSets(b *renderableBinding, images int) error {
	var err error
	if b.ubos, err = r.growUniforms(b.ubos, objectUniformSize, images); err != nil {
		return err
	}
	b.sets = make([]gpu.DescriptorSet, images)
	for i := range b.sets {
		set, _, err := objectBuilder(r.builder(), b.ubos[i]).Build()
		if err != nil {
			return errors.Wrap(err, "build object set")
		}
		b.sets[i] = set
	}
	return nil
}

// rebuildDescriptorSets recycles every pool and rebuilds all per-image sets
// for the current image count.
func (r *Renderer) rebuildDescriptorSets() error {
	if err := r.alloc.ResetPools(); err != nil {
		return err
	}
	images := r.swapchain.imageCount()
	if err := r.buildGlobalSets(images); err != nil {
		return err
	}
	for i := range r.materials {
		if err := r.buildMaterialSets(&r.materials[i], images); err != nil {
			return err
		}
	}
	for i := range r.bindings {
		if err := r.buildObjectSets(&r.bindings[i], images); err != nil {
			return err
		}
	}
	return nil
}
