package vkng

import "github.com/cockroachdb/errors"

// arena maps the opaque integer handles handed to the renderer back to the
// driver objects they stand for. All arenas of a device share one counter so
// a handle is unique across kinds. Handles start at 1 and are never reused.
type arena[T any] struct {
	kind    string
	next    *uint64
	objects map[uint64]T
}

func newArena[T any](kind string, counter *uint64) *arena[T] {
	return &arena[T]{kind: kind, next: counter, objects: make(map[uint64]T)}
}

func (a *arena[T]) put(obj T) uint64 {
	*a.next++
	a.objects[*a.next] = obj
	return *a.next
}

func (a *arena[T]) get(handle uint64) (T, error) {
	obj, ok := a.objects[handle]
	if !ok {
		return obj, errors.AssertionFailedf("unknown %s handle %d", a.kind, handle)
	}
	return obj, nil
}

// must is get for call sites that have no error return. Unknown handles are
// a programming error there.
func (a *arena[T]) must(handle uint64) T {
	obj, err := a.get(handle)
	if err != nil {
		panic(err)
	}
	return obj
}

func (a *arena[T]) take(handle uint64) (T, bool) {
	obj, ok := a.objects[handle]
	if ok {
		delete(a.objects, handle)
	}
	return obj, ok
}

func (a *arena[T]) len() int {
	return len(a.objects)
}

func (a *arena[T]) each(fn func(T)) {
	for _, obj := range a.objects {
		fn(obj)
	}
}
