package state

// Ring is a fixed-capacity most-recent-wins buffer. Once full, each push
// overwrites the oldest entry. Not safe for concurrent use; callers hold
// their own lock.
type Ring[T any] struct {
	items []T
	head  int
	count int
}

// NewRing creates a ring holding at most capacity items. Capacity must be
// positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends an item, evicting the oldest when full.
func (r *Ring[T]) Push(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// Len returns the number of items currently held.
func (r *Ring[T]) Len() int { return r.count }

// Last returns the most recently pushed item. The second return is false
// when the ring is empty.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	idx := (r.head - 1 + len(r.items)) % len(r.items)
	return r.items[idx], true
}

// Items returns the held items oldest-first as a fresh slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.count)
	start := (r.head - r.count + len(r.items)) % len(r.items)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

// Tail returns up to n of the most recent items, oldest-first.
func (r *Ring[T]) Tail(n int) []T {
	all := r.Items()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
