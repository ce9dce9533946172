package queue

import "github.com/i5heu/GoChunkRing/pkg/ringqueue"

// QueueValidationInterface is the method set every value queue compared by the
// benchmark provides. It is used both as a type constraint and as a plain interface.
type QueueValidationInterface[T any] interface {
	// Enqueue adds an element to the queue and blocks if the queue is full.
	Enqueue(T)

	// Dequeue removes and returns the oldest element.
	// If the queue is empty (no element is available), it should return a empty T and false, otherwise true.
	Dequeue() (T, bool)

	// FreeSlots returns how many more elements can be enqueued before the queue is full.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64
}

// CellQueue is the writer/reader hand-off of fixed-size cells.
type CellQueue interface {
	// ReserveWrite publishes the previous write cell and returns the next one, blocking while full.
	ReserveWrite() (*ringqueue.WriteHandle, error)

	// Publish makes the current write cell visible without reserving another.
	Publish()

	// TakeRead returns the oldest published cell, blocking while none is available.
	TakeRead() (*ringqueue.ReadHandle, error)

	// CellSize is the byte size of every cell.
	CellSize() uint32

	// Stop releases blocked callers; later calls fail with ringqueue.ErrStopped.
	Stop()

	// Destroy releases the queue memory. Call it after Stop and after joining both sides.
	Destroy()
}

var _ CellQueue = (*ringqueue.RingQueue)(nil)
