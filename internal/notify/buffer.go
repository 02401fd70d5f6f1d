package notify

import "sync"

const defaultBufferCapacity = 4096

// ringBuffer is a bounded FIFO. When full, the oldest notification is dropped
// to make room.
type ringBuffer struct {
	mu       sync.Mutex
	items    []Notification
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	dropped  int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &ringBuffer{items: make([]Notification, capacity), capacity: capacity}
}

func (b *ringBuffer) enqueue(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}
	b.items[b.head] = n
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// dequeueBatch removes up to n notifications in FIFO order.
func (b *ringBuffer) dequeueBatch(n int) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]Notification, n)
	for i := range out {
		out[i] = b.items[b.tail]
		b.items[b.tail] = Notification{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
