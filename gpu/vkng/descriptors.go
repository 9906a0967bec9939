package vkng

import (
	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type descriptorSet struct {
	set  core1_0.DescriptorSet
	pool gpu.DescriptorPool
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	var vkBindings []core1_0.DescriptorSetLayoutBinding
	for _, b := range bindings {
		vkBindings = append(vkBindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  core1_0.DescriptorType(b.Type),
			DescriptorCount: b.Count,

			StageFlags: core1_0.ShaderStageFlags(b.Stages),
		})
	}

	layout, _, err := d.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: vkBindings,
	})
	if err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(d.setLayouts.put(layout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	if l, ok := d.setLayouts.take(uint64(layout)); ok {
		d.deviceDriver.DestroyDescriptorSetLayout(l, nil)
	}
}

func (d *Device) CreateDescriptorPool(maxSets int, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	var poolSizes []core1_0.DescriptorPoolSize
	for _, size := range sizes {
		poolSizes = append(poolSizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorType(size.Type),
			DescriptorCount: size.Count,
		})
	}

	pool, _, err := d.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   maxSets,
		PoolSizes: poolSizes,
	})
	if err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(d.descriptorPools.put(pool)), nil
}

// forgetSets drops the handles of every set allocated from pool.
func (d *Device) forgetSets(pool gpu.DescriptorPool) {
	for handle, set := range d.descriptorSets.objects {
		if set.pool == pool {
			delete(d.descriptorSets.objects, handle)
		}
	}
}

func (d *Device) ResetDescriptorPool(pool gpu.DescriptorPool) error {
	p, err := d.descriptorPools.get(uint64(pool))
	if err != nil {
		return err
	}
	if err := checkResult(d.deviceDriver.ResetDescriptorPool(p, 0)); err != nil {
		return err
	}
	d.forgetSets(pool)
	return nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	if p, ok := d.descriptorPools.take(uint64(pool)); ok {
		d.forgetSets(pool)
		d.deviceDriver.DestroyDescriptorPool(p, nil)
	}
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p, err := d.descriptorPools.get(uint64(pool))
	if err != nil {
		return 0, err
	}
	l, err := d.setLayouts.get(uint64(layout))
	if err != nil {
		return 0, err
	}

	sets, res, err := d.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: p,
		SetLayouts:     []core1_0.DescriptorSetLayout{l},
	})
	if err != nil {
		return 0, poolResult(res, err)
	}
	return gpu.DescriptorSet(d.descriptorSets.put(descriptorSet{set: sets[0], pool: pool})), nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.WriteDescriptorSet) {
	var vkWrites []core1_0.WriteDescriptorSet
	for _, w := range writes {
		write := core1_0.WriteDescriptorSet{
			DstSet:          d.descriptorSets.must(uint64(w.Set)).set,
			DstBinding:      w.Binding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorType(w.Type),
		}
		if w.Buffer != nil {
			write.BufferInfo = []core1_0.DescriptorBufferInfo{
				{
					Buffer: d.buffers.must(uint64(w.Buffer.Buffer)).object,
					Offset: w.Buffer.Offset,
					Range:  w.Buffer.Range,
				},
			}
		}
		if w.Image != nil {
			write.ImageInfo = []core1_0.DescriptorImageInfo{
				{
					ImageView:   d.views.must(uint64(w.Image.View)),
					Sampler:     d.samplers.must(uint64(w.Image.Sampler)),
					ImageLayout: core1_0.ImageLayout(w.Image.Layout),
				},
			}
		}
		vkWrites = append(vkWrites, write)
	}

	if err := d.deviceDriver.UpdateDescriptorSets(vkWrites, nil); err != nil {
		logging.Logger().Error("update descriptor sets", "writes", len(vkWrites), "error", err)
	}
}
