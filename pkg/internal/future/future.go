// Package future provides a minimal completion future.
package future

import "sync"

// Future completes at most once with a value of T and
// runs the registered callbacks on completion.
type Future[T any] struct {
	mu        sync.Mutex
	done      bool
	value     T
	callbacks []func(T)
}

// Complete completes the future. Subsequent calls are no-ops.
func (f *Future[T]) Complete(value T) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = value
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn(value)
	}
}

// ThenAccept runs fn with the completion value, immediately
// if the future already completed.
func (f *Future[T]) ThenAccept(fn func(T)) *Future[T] {
	f.mu.Lock()
	if f.done {
		value := f.value
		f.mu.Unlock()
		fn(value)
		return f
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
	return f
}
