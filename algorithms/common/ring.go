package common

// Ring is a bounded generic ring buffer: once full, new values overwrite the
// oldest. It is not synchronized; each Ring must have a single owning
// goroutine.
type Ring[T any] struct {
	values []T
	head   int
	count  int
}

// NewRing creates a ring buffer holding at most capacity values.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{values: make([]T, capacity)}
}

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int {
	return len(r.values)
}

// Len returns the number of buffered values.
func (r *Ring[T]) Len() int {
	return r.count
}

// Push appends one value, dropping the oldest when the ring is full.
func (r *Ring[T]) Push(v T) {
	n := len(r.values)
	r.values[(r.head+r.count)%n] = v
	if r.count < n {
		r.count++
	} else {
		r.head = (r.head + 1) % n
	}
}

// Append pushes a batch of values. Batches at least as large as the capacity
// keep only their tail.
func (r *Ring[T]) Append(vs []T) {
	n := len(r.values)
	if len(vs) >= n {
		copy(r.values, vs[len(vs)-n:])
		r.head = 0
		r.count = n
		return
	}
	for _, v := range vs {
		r.Push(v)
	}
}

// At returns the value at position i, 0 being the oldest buffered value.
// Out-of-range positions return the zero value.
func (r *Ring[T]) At(i int) T {
	var zero T
	if i < 0 || i >= r.count {
		return zero
	}
	return r.values[(r.head+i)%len(r.values)]
}

// CopyTo copies buffered values oldest-first into dst and returns the number
// copied.
func (r *Ring[T]) CopyTo(dst []T) int {
	n := r.count
	if len(dst) < n {
		n = len(dst)
	}

	first := len(r.values) - r.head
	if first > n {
		first = n
	}
	copy(dst[:first], r.values[r.head:r.head+first])
	copy(dst[first:n], r.values[:n-first])

	return n
}

// Clear resets the ring to empty without releasing storage.
func (r *Ring[T]) Clear() {
	r.head = 0
	r.count = 0
}
