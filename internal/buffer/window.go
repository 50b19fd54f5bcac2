package buffer

import (
	"sync"
)

// Window is a thread-safe ring buffer of fixed capacity that keeps the
// most recent items in arrival order.
type Window[T any] struct {
	mu       sync.RWMutex
	buf      []T
	head     int // oldest item
	count    int
	capacity int

	// Stats
	totalAppended int64
	totalEvicted  int64
	clearCount    int
}

// NewWindow creates a window holding at most capacity items.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds an item, evicting the oldest one when the window is full.
func (w *Window[T]) Append(item T) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == w.capacity {
		var zero T
		w.buf[w.head] = zero // Clear reference for GC
		w.head = (w.head + 1) % w.capacity
		w.count--
		w.totalEvicted++
	}

	tail := (w.head + w.count) % w.capacity
	w.buf[tail] = item
	w.count++
	w.totalAppended++
}

// Snapshot returns a copy of the current contents, oldest first.
func (w *Window[T]) Snapshot() []T {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]T, w.count)
	if w.count == 0 {
		return out
	}

	end := w.head + w.count
	if end <= w.capacity {
		// Contiguous: [head...end)
		copy(out, w.buf[w.head:end])
	} else {
		// Wrapped: [head...cap) + [0...rest)
		n := copy(out, w.buf[w.head:])
		copy(out[n:], w.buf[:end-w.capacity])
	}
	return out
}

// Last returns the newest item, if any.
func (w *Window[T]) Last() (T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		var zero T
		return zero, false
	}
	return w.buf[(w.head+w.count-1)%w.capacity], true
}

// Clear empties the window. Capacity is unchanged.
func (w *Window[T]) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.head = 0
	w.count = 0
	w.clearCount++
}

// Len returns the number of items currently held.
func (w *Window[T]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Cap returns the fixed capacity.
func (w *Window[T]) Cap() int {
	return w.capacity
}

// Stats returns window statistics.
func (w *Window[T]) Stats() WindowStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WindowStats{
		Count:         w.count,
		Capacity:      w.capacity,
		TotalAppended: w.totalAppended,
		TotalEvicted:  w.totalEvicted,
		ClearCount:    w.clearCount,
	}
}

// WindowStats contains window statistics.
type WindowStats struct {
	Count         int
	Capacity      int
	TotalAppended int64
	TotalEvicted  int64
	ClearCount    int
}
