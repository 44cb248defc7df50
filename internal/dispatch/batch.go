package dispatch

import "sync"

// Batcher collects items and hands them to flush in groups of size.
type Batcher[T any] struct {
	size  int
	flush func([]T) error
	items []T
	mu    sync.Mutex
}

// NewBatcher creates a batcher. A size below 1 flushes every item.
func NewBatcher[T any](size int, flush func([]T) error) *Batcher[T] {
	if size < 1 {
		size = 1
	}
	return &Batcher[T]{
		size:  size,
		flush: flush,
		items: make([]T, 0, size),
	}
}

// Add appends item, flushing when the batch is full.
func (b *Batcher[T]) Add(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
	if len(b.items) >= b.size {
		return b.flushLocked()
	}
	return nil
}

// Flush hands over whatever is pending. A failed batch stays pending so a
// later Add or Flush retries it.
func (b *Batcher[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// Pending returns the number of items waiting to be flushed.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Batcher[T]) flushLocked() error {
	if len(b.items) == 0 {
		return nil
	}

	batch := make([]T, len(b.items))
	copy(batch, b.items)
	if err := b.flush(batch); err != nil {
		return err
	}
	b.items = b.items[:0]
	return nil
}
