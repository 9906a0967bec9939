package gpu

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfPoolMemory is returned by AllocateDescriptorSet when the pool
	// has no room left for the requested set.
	ErrOutOfPoolMemory = errors.New("descriptor pool out of memory")
	// ErrFragmentedPool is returned by AllocateDescriptorSet when the pool has
	// capacity but cannot satisfy the request contiguously.
	ErrFragmentedPool = errors.New("descriptor pool fragmented")
	ErrDeviceLost     = errors.New("device lost")
)

// IsPoolExhausted reports whether err means a descriptor pool cannot serve
// any more allocations.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrOutOfPoolMemory) || errors.Is(err, ErrFragmentedPool)
}
