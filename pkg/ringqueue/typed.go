package ringqueue

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
)

// Codec converts values of T to and from fixed-size cells.
type Codec[T any] interface {
	Size() uint32
	Encode(dst []byte, v T)
	Decode(src []byte) T
}

// Uint64Codec stores a uint64 as 8 little-endian bytes.
type Uint64Codec struct{}

func (Uint64Codec) Size() uint32                { return 8 }
func (Uint64Codec) Encode(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func (Uint64Codec) Decode(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

// BytesCodec stores byte slices of at most n bytes; shorter values are zero padded.
type BytesCodec uint32

func (c BytesCodec) Size() uint32 { return uint32(c) }

func (c BytesCodec) Encode(dst []byte, v []byte) {
	n := copy(dst, v)
	clear(dst[n:])
}

func (c BytesCodec) Decode(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

// Typed is a value queue on top of a RingQueue. Every Enqueue reserves and
// commits one cell, so values are visible immediately. Each side is serialized
// by its own mutex, which makes both safe for concurrent use.
type Typed[T any] struct {
	q     *RingQueue
	codec Codec[T]

	wmu sync.Mutex
	rmu sync.Mutex
}

// NewTyped creates a typed queue with room for at least capacity values.
func NewTyped[T any](codec Codec[T], capacity uint32, opts ...Option) (*Typed[T], error) {
	q, err := New(codec.Size(), capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &Typed[T]{q: q, codec: codec}, nil
}

// Queue returns the underlying cell queue.
func (t *Typed[T]) Queue() *RingQueue { return t.q }

// Put stores v, blocking while the queue is full.
func (t *Typed[T]) Put(ctx context.Context, v T) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	h, err := t.q.ReserveWriteContext(ctx)
	if err != nil {
		return err
	}
	t.codec.Encode(h.Bytes(), v)
	return h.Commit()
}

// Get removes the oldest value, blocking until one is available.
func (t *Typed[T]) Get(ctx context.Context) (T, error) {
	t.rmu.Lock()
	defer t.rmu.Unlock()

	h, err := t.q.TakeReadContext(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.codec.Decode(h.Bytes()), nil
}

// Enqueue stores v, blocking while the queue is full. Values offered after
// Close are dropped.
func (t *Typed[T]) Enqueue(v T) {
	_ = t.Put(context.Background(), v)
}

// Dequeue removes the oldest value without blocking.
func (t *Typed[T]) Dequeue() (T, bool) {
	t.rmu.Lock()
	defer t.rmu.Unlock()

	var zero T
	h, err := t.q.TryTakeRead()
	if err != nil {
		return zero, false
	}
	return t.codec.Decode(h.Bytes()), true
}

// FreeSlots returns how many more values fit before Enqueue blocks.
func (t *Typed[T]) FreeSlots() uint64 {
	return uint64(t.q.MaxCells() - t.q.Len())
}

// UsedSlots returns how many values are queued.
func (t *Typed[T]) UsedSlots() uint64 {
	return uint64(t.q.Len())
}

// Close stops the queue; blocked and later calls fail with ErrStopped.
func (t *Typed[T]) Close() {
	t.q.Stop()
}

// IsStopped reports whether err is the queue's stop signal.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}
