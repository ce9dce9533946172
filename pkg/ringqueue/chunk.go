package ringqueue

import "fmt"

// chunk is one contiguous block of cells. The writer owns head/nextHead and the
// reader owns tail/nextTail; both are only touched under the queue lock.
//
// Unread cells run from nextTail up to head. tail is the cell last handed to the
// reader and stays reserved until the reader calls again, so the writer stops
// (full) when nextHead reaches it.
type chunk struct {
	data []byte

	head     uint32
	nextHead uint32
	tail     uint32
	nextTail uint32
	full     bool

	next *chunk
}

// reset rewinds the cursors. tail starts one before cell 0 so the first read lands on cell 0.
func (c *chunk) reset(cells uint32) {
	c.head = cells - 1
	c.nextHead = 0
	c.tail = cells - 1
	c.nextTail = 0
	c.full = false
	c.next = nil
}

// drained reports whether the reader has consumed every cell the writer placed here.
func (c *chunk) drained() bool {
	return c.nextTail == c.nextHead
}

func (c *chunk) cell(idx, size uint32) []byte {
	off := idx * size
	return c.data[off : off+size : off+size]
}

// newChunk takes a spare chunk if one is cached, otherwise allocates a fresh one.
// Caller must hold q.mu.
func (q *RingQueue) newChunk() (*chunk, error) {
	if q.spares.Length() > 0 {
		c := q.spares.Remove().(*chunk)
		c.reset(q.cellsPerChunk)
		q.stats.spareReuses.Add(1)
		return c, nil
	}

	size := int(q.cellsPerChunk) * int(q.cellSize)
	data, err := q.alloc(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAlloc, err)
	}
	if len(data) < size {
		return nil, fmt.Errorf("%w: allocator returned %d of %d bytes", ErrAlloc, len(data), size)
	}
	c := &chunk{data: data[:size:size]}
	c.reset(q.cellsPerChunk)
	q.stats.chunkAllocs.Add(1)
	return c, nil
}

// retire moves a drained chunk into the spare cache, or drops it when the cache is full.
// Caller must hold q.mu.
func (q *RingQueue) retire(c *chunk) {
	c.next = nil
	q.chunks--
	if q.spares.Length() < q.spareLimit {
		q.spares.Add(c)
		return
	}
	c.data = nil
	q.stats.chunkFrees.Add(1)
}
