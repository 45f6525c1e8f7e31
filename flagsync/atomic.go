package flagsync

import (
	"sync/atomic"
)

// AtomicValue publishes immutable snapshots to lock-free readers. Writers
// must serialize among themselves; readers always observe a complete value.
type AtomicValue[T any] struct {
	value atomic.Value
}

func NewAtomicValue[T any](value T) *AtomicValue[T] {
	v := new(AtomicValue[T])
	v.value.Store(box[T]{value: value})

	return v
}

// box keeps the stored dynamic type constant even when T is an interface
// type or a nil value, both of which atomic.Value rejects.
type box[T any] struct {
	value T
}

//nolint:ireturn
func (v *AtomicValue[T]) Get() (T, bool) {
	var zero T

	stored := v.value.Load()
	if stored == nil {
		return zero, false
	}

	typed, ok := stored.(box[T])
	if !ok {
		return zero, false
	}

	return typed.value, true
}

// Load returns the current value, or the zero value when nothing was stored.
//
//nolint:ireturn
func (v *AtomicValue[T]) Load() T {
	value, _ := v.Get()
	return value
}

func (v *AtomicValue[T]) Set(value T) {
	v.value.Store(box[T]{value: value})
}
