// Package descriptor manages descriptor pools, deduplicates descriptor set
// layouts and builds descriptor sets from fluent binding descriptions.
package descriptor

import (
	"github.com/ashengine/ash/gpu"
	"github.com/ashengine/ash/internal/logging"
	"github.com/cockroachdb/errors"
)

// DefaultSetsPerPool is the set capacity of each pool an Allocator creates.
const DefaultSetsPerPool = 1000

// PoolSize weights one descriptor type. A pool created for N sets reserves
// int(Weight*N) descriptors of Type.
type PoolSize struct {
	Type   gpu.DescriptorType
	Weight float32
}

type PoolSizes []PoolSize

// DefaultPoolSizes favors combined image samplers and uniform buffers, the
// two types every material and renderable binds.
func DefaultPoolSizes() PoolSizes {
	return PoolSizes{
		{gpu.DescriptorTypeSampler, 0.5},
		{gpu.DescriptorTypeCombinedImageSampler, 4},
		{gpu.DescriptorTypeSampledImage, 4},
		{gpu.DescriptorTypeStorageImage, 0.5},
		{gpu.DescriptorTypeUniformTexelBuffer, 0.5},
		{gpu.DescriptorTypeStorageTexelBuffer, 0.5},
		{gpu.DescriptorTypeUniformBuffer, 2},
		{gpu.DescriptorTypeStorageBuffer, 0.5},
		{gpu.DescriptorTypeUniformBufferDynamic, 1},
		{gpu.DescriptorTypeStorageBufferDynamic, 0.5},
		{gpu.DescriptorTypeInputAttachment, 0.5},
	}
}

func (s PoolSizes) counts(sets int) []gpu.DescriptorPoolSize {
	sizes := make([]gpu.DescriptorPoolSize, 0, len(s))
	for _, size := range s {
		count := int(size.Weight * float32(sets))
		if count < 1 {
			count = 1
		}
		sizes = append(sizes, gpu.DescriptorPoolSize{Type: size.Type, Count: count})
	}
	return sizes
}

// Allocator hands out descriptor sets from a growing list of pools. Pools are
// never freed individually; ResetPools recycles all of them at once.
type Allocator struct {
	device      gpu.Device
	sizes       PoolSizes
	setsPerPool int

	current   gpu.DescriptorPool
	usedPools []gpu.DescriptorPool
	freePools []gpu.DescriptorPool
}

func NewAllocator(device gpu.Device, sizes PoolSizes, setsPerPool int) *Allocator {
	if sizes == nil {
		sizes = DefaultPoolSizes()
	}
	return &Allocator{
		device:      device,
		sizes:       sizes,
		setsPerPool: setsPerPool,
	}
}

func (a *Allocator) Device() gpu.Device {
	return a.device
}

func (a *Allocator) grabPool() (gpu.DescriptorPool, error) {
	if n := len(a.freePools); n > 0 {
		pool := a.freePools[n-1]
		a.freePools = a.freePools[:n-1]
		return pool, nil
	}

	pool, err := a.device.CreateDescriptorPool(a.setsPerPool, a.sizes.counts(a.setsPerPool))
	if err != nil {
		return 0, errors.Wrap(err, "create descriptor pool")
	}
	logging.Logger().Debug("descriptor pool created", "pools", len(a.usedPools)+1, "sets", a.setsPerPool)
	return pool, nil
}

func (a *Allocator) nextPool() error {
	pool, err := a.grabPool()
	if err != nil {
		return err
	}
	a.current = pool
	a.usedPools = append(a.usedPools, pool)
	return nil
}

// Allocate returns a set of the given layout. When the current pool is
// exhausted a fresh pool is taken and the allocation retried once; a second
// failure is an assertion failure.
func (a *Allocator) Allocate(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	if a.current == 0 {
		if err := a.nextPool(); err != nil {
			return 0, err
		}
	}

	set, err := a.device.AllocateDescriptorSet(a.current, layout)
	if err == nil {
		return set, nil
	}
	if !gpu.IsPoolExhausted(err) {
		return 0, errors.Wrap(err, "allocate descriptor set")
	}

	logging.Logger().Warn("descriptor pool exhausted, growing", "pools", len(a.usedPools), "reason", err)
	if err := a.nextPool(); err != nil {
		return 0, err
	}
	set, err = a.device.AllocateDescriptorSet(a.current, layout)
	if err != nil {
		return 0, errors.WithAssertionFailure(errors.Wrap(err, "descriptor set allocation failed on a fresh pool"))
	}
	return set, nil
}

// ResetPools returns every used pool to the free list. Sets allocated
// before the call become invalid.
func (a *Allocator) ResetPools() error {
	for _, pool := range a.usedPools {
		if err := a.device.ResetDescriptorPool(pool); err != nil {
			return errors.Wrap(err, "reset descriptor pool")
		}
	}
	a.freePools = append(a.freePools, a.usedPools...)
	a.usedPools = a.usedPools[:0]
	a.current = 0
	return nil
}

// PoolCount reports the number of used and free pools.
func (a *Allocator) PoolCount() (used, free int) {
	return len(a.usedPools), len(a.freePools)
}

// Cleanup destroys every pool the allocator ever created.
func (a *Allocator) Cleanup() {
	for _, pool := range a.freePools {
		a.device.DestroyDescriptorPool(pool)
	}
	for _, pool := range a.usedPools {
		a.device.DestroyDescriptorPool(pool)
	}
	a.freePools = nil
	a.usedPools = nil
	a.current = 0
}
