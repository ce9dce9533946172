// Package ringqueue implements a bounded FIFO of fixed-size byte cells that hands
// records from one writer goroutine to one reader goroutine.
//
// Cells live in a linked list of fixed-capacity chunks that grows on demand and
// shrinks as the reader drains it, keeping drained chunks in a small cache for
// reuse. Both sides block on a shared condition variable when the queue is full
// or empty, and Stop releases every blocked caller.
//
// A cell returned by ReserveWrite becomes visible to the reader when the writer
// calls ReserveWrite again, or earlier through Publish / WriteHandle.Commit.
// A cell returned by TakeRead stays reserved for the reader until its next call.
package ringqueue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// RingQueue is a bounded multi-chunk circular buffer of cells.
type RingQueue struct {
	cellSize      uint32
	cellsPerChunk uint32
	maxCells      uint32

	mu   sync.Mutex
	cond *sync.Cond

	cells       uint32 // reserved by the writer and not yet taken by the reader
	unpublished uint32 // 1 while the writer's current cell is hidden from the reader
	waiters     uint32
	stopped     bool

	head   *chunk
	tail   *chunk
	chunks int

	spares     *queue.Queue
	spareLimit int
	alloc      Allocator

	writeGen atomic.Uint64
	readGen  atomic.Uint64

	stats counters
}

// New creates a queue of cells of cellSize bytes with room for at least itemCount cells.
// Capacity is rounded up to whole chunks, so MaxCells may exceed itemCount.
// No chunk is allocated until the first ReserveWrite.
func New(cellSize, itemCount uint32, opts ...Option) (*RingQueue, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if cellSize == 0 {
		return nil, fmt.Errorf("%w: cell size must be positive", ErrInvalidParameter)
	}
	if itemCount == 0 {
		return nil, fmt.Errorf("%w: item count must be positive", ErrInvalidParameter)
	}
	if limit := MaxCellSize(o.chunkBytes); cellSize > limit {
		return nil, fmt.Errorf("%w: cell size %d exceeds %d for a %d byte chunk", ErrInvalidParameter, cellSize, limit, o.chunkBytes)
	}

	cpc := max(o.chunkBytes/cellSize, minCellsPerChunk)
	chunks := (uint64(itemCount) + uint64(cpc) - 1) / uint64(cpc)
	maxCells := chunks * uint64(cpc)
	if maxCells > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d items do not fit a 32-bit cell count", ErrInvalidParameter, itemCount)
	}

	q := &RingQueue{
		cellSize:      cellSize,
		cellsPerChunk: cpc,
		maxCells:      uint32(maxCells),
		spares:        queue.New(),
		spareLimit:    o.spareChunks,
		alloc:         o.alloc,
	}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// CellSize returns the byte size of every cell.
func (q *RingQueue) CellSize() uint32 { return q.cellSize }

// CellsPerChunk returns how many cells one chunk holds.
func (q *RingQueue) CellsPerChunk() uint32 { return q.cellsPerChunk }

// MaxCells returns the hard ceiling on live cells.
func (q *RingQueue) MaxCells() uint32 { return q.maxCells }

// Len returns the number of live cells, including the writer's unpublished one.
func (q *RingQueue) Len() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cells
}

// Stopped reports whether Stop or Destroy has been called.
func (q *RingQueue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// ReserveWrite publishes the cell handed out by the previous call and returns the
// next cell to fill. It blocks while the queue is full.
func (q *RingQueue) ReserveWrite() (*WriteHandle, error) {
	return q.reserveWrite(context.Background())
}

// ReserveWriteContext is ReserveWrite with a wait that also ends when ctx is done.
// On ctx expiry the queue is left as if the call never happened.
func (q *RingQueue) ReserveWriteContext(ctx context.Context) (*WriteHandle, error) {
	return q.reserveWrite(ctx)
}

func (q *RingQueue) reserveWrite(ctx context.Context) (*WriteHandle, error) {
	defer q.wakeOnDone(ctx)()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiters++
	defer q.leave()

	for !q.stopped && q.cells == q.maxCells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
	if q.stopped {
		q.cond.Broadcast()
		return nil, ErrStopped
	}

	c := q.head
	switch {
	case c == nil:
		nc, err := q.newChunk()
		if err != nil {
			return nil, err
		}
		q.head, q.tail = nc, nc
		q.chunks = 1
		c = nc
	case c.full:
		nc, err := q.newChunk()
		if err != nil {
			return nil, err
		}
		c.next = nc
		q.head = nc
		q.chunks++
		c = nc
	}

	visible := q.visible()
	q.cells++
	q.unpublished = 1
	if visible == 0 && q.visible() > 0 {
		q.cond.Broadcast()
	}

	idx := c.nextHead
	c.head = idx
	c.nextHead = (idx + 1) % q.cellsPerChunk
	if c.nextHead == c.tail {
		c.full = true
	}

	q.stats.writes.Add(1)
	q.stats.observe(q.cells)
	return &WriteHandle{
		q:    q,
		buf:  c.cell(idx, q.cellSize),
		gen:  q.writeGen.Add(1),
		live: q.cells,
	}, nil
}

// Publish makes the writer's current cell visible to the reader without reserving
// another one. It is a no-op when nothing is pending.
func (q *RingQueue) Publish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.publishLocked()
}

func (q *RingQueue) commit(gen uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.writeGen.Load() != gen {
		return ErrStaleHandle
	}
	q.publishLocked()
	return nil
}

func (q *RingQueue) publishLocked() {
	if q.unpublished == 0 || q.stopped {
		return
	}
	visible := q.visible()
	q.unpublished = 0
	if visible == 0 {
		q.cond.Broadcast()
	}
}

// TakeRead releases the cell handed out by the previous call and returns the
// oldest published cell. It blocks while nothing is published.
func (q *RingQueue) TakeRead() (*ReadHandle, error) {
	return q.takeRead(context.Background(), true)
}

// TakeReadContext is TakeRead with a wait that also ends when ctx is done.
func (q *RingQueue) TakeReadContext(ctx context.Context) (*ReadHandle, error) {
	return q.takeRead(ctx, true)
}

// TryTakeRead is TakeRead without blocking; it returns ErrEmpty when nothing is published.
func (q *RingQueue) TryTakeRead() (*ReadHandle, error) {
	return q.takeRead(context.Background(), false)
}

func (q *RingQueue) takeRead(ctx context.Context, block bool) (*ReadHandle, error) {
	defer q.wakeOnDone(ctx)()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiters++
	defer q.leave()

	for !q.stopped && q.visible() == 0 {
		if !block {
			return nil, ErrEmpty
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
	if q.stopped {
		q.cond.Broadcast()
		return nil, ErrStopped
	}

	c := q.tail
	if c.drained() && c.next != nil {
		// The writer only leaves a chunk once it is full, so it never comes back.
		q.tail = c.next
		q.retire(c)
		c = q.tail
	}

	c.full = false
	c.tail = c.nextTail
	c.nextTail = (c.nextTail + 1) % q.cellsPerChunk

	live := q.cells
	if q.cells == q.maxCells {
		q.cond.Broadcast()
	}
	q.cells--

	q.stats.reads.Add(1)
	return &ReadHandle{
		q:    q,
		buf:  c.cell(c.tail, q.cellSize),
		gen:  q.readGen.Add(1),
		live: live,
	}, nil
}

// Stop wakes every blocked caller, makes all later calls return ErrStopped and
// returns once no goroutine is inside ReserveWrite or TakeRead. It is idempotent.
func (q *RingQueue) Stop() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopLocked()
}

func (q *RingQueue) stopLocked() {
	if !q.stopped {
		q.stopped = true
		q.cond.Broadcast()
	}
	for q.waiters > 0 {
		q.cond.Wait()
	}
}

// Destroy stops the queue if needed and releases every chunk, including the spares.
// Handles obtained earlier become invalid. A nil queue is a no-op.
//
// Stop, join the producer and consumer, then Destroy.
func (q *RingQueue) Destroy() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopLocked()

	for c := q.tail; c != nil; {
		next := c.next
		c.next = nil
		c.data = nil
		q.stats.chunkFrees.Add(1)
		c = next
	}
	for q.spares.Length() > 0 {
		c := q.spares.Remove().(*chunk)
		c.data = nil
		q.stats.chunkFrees.Add(1)
	}
	q.head, q.tail = nil, nil
	q.chunks = 0
	q.cells, q.unpublished = 0, 0
	q.writeGen.Add(1)
	q.readGen.Add(1)
}

// visible is the number of cells the reader may take. Caller must hold q.mu.
func (q *RingQueue) visible() uint32 {
	return q.cells - q.unpublished
}

// leave ends a call started with q.waiters++. Caller must hold q.mu.
func (q *RingQueue) leave() {
	q.waiters--
	if q.stopped && q.waiters == 0 {
		q.cond.Broadcast()
	}
}

// wakeOnDone arranges for a broadcast when ctx is done so waiters can observe it.
// The returned func must be called once the caller no longer waits.
func (q *RingQueue) wakeOnDone(ctx context.Context) func() bool {
	if ctx.Done() == nil {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
}
