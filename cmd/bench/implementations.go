package main

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/i5heu/GoChunkRing/internal/queue"
	"github.com/i5heu/GoChunkRing/pkg/ringqueue"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// benchQueue is what every compared implementation exposes to the runner.
type benchQueue = queue.QueueValidationInterface[*int]

// Implementation holds metadata and a constructor for one compared queue.
type Implementation struct {
	name        string
	pkgName     string
	description string
	author      string
	features    []string

	// chunkBytes and spareChunks are zero for non-chunked queues.
	chunkBytes  uint32
	spareChunks int

	newQueue func(capacity uint64) benchQueue
}

// cellsPerChunk reports the geometry a chunked queue ends up with for capacity.
func (impl Implementation) cellsPerChunk(capacity uint64) uint32 {
	if impl.chunkBytes == 0 {
		return 0
	}
	q, err := ringqueue.New(intCodec{}.Size(), uint32(capacity), impl.ringOptions()...)
	if err != nil {
		return 0
	}
	defer q.Destroy()
	return q.CellsPerChunk()
}

func (impl Implementation) ringOptions() []ringqueue.Option {
	return []ringqueue.Option{
		ringqueue.WithChunkBytes(impl.chunkBytes),
		ringqueue.WithSpareChunks(impl.spareChunks),
	}
}

func getImplementations() []Implementation {
	impls := []Implementation{
		{
			name:        "RingQueue 64KiB/1 spare",
			pkgName:     "ringqueue",
			description: "Chunked cell ring with the default geometry.",
			author:      "Mia Heidenstedt <heidenstedt.org>",
			features:    []string{"MPMC", "FIFO", "Blocking", "Chunked"},
			chunkBytes:  ringqueue.DefaultChunkBytes,
			spareChunks: ringqueue.DefaultSpareChunks,
		},
		{
			name:        "RingQueue 4KiB/4 spare",
			pkgName:     "ringqueue",
			description: "Small chunks with a deeper free list.",
			author:      "Mia Heidenstedt <heidenstedt.org>",
			features:    []string{"MPMC", "FIFO", "Blocking", "Chunked"},
			chunkBytes:  4 * 1024,
			spareChunks: 4,
		},
		{
			name:        "RingQueue 256B/no spare",
			pkgName:     "ringqueue",
			description: "Tiny chunks that are freed as soon as they drain.",
			author:      "Mia Heidenstedt <heidenstedt.org>",
			features:    []string{"MPMC", "FIFO", "Blocking", "Chunked"},
			chunkBytes:  256,
			spareChunks: 0,
		},
	}
	for i := range impls {
		impl := &impls[i]
		opts := impl.ringOptions()
		impl.newQueue = func(capacity uint64) benchQueue {
			return newRingBench(uint32(capacity), opts...)
		}
	}

	return append(impls,
		Implementation{
			name:        "Golang Buffered Channel",
			pkgName:     "builtin",
			description: "A buffered channel used as a baseline.",
			author:      "The Go Authors",
			features:    []string{"MPMC", "FIFO", "Blocking"},
			newQueue: func(capacity uint64) benchQueue {
				return newChanQueue(capacity)
			},
		},
		Implementation{
			name:        "Lock-Free Sharded Ring",
			pkgName:     "go-lock-free-ring",
			description: "Sharded lock-free ring; reads are serialized across consumers.",
			author:      "randomizedcoder",
			features:    []string{"MPSC", "Sharded", "Multi-Head-FIFO"},
			newQueue: func(capacity uint64) benchQueue {
				return newShardedQueue(capacity, 4)
			},
		},
	)
}

// intCodec stores a *int by value; Decode allocates a fresh int.
type intCodec struct{}

func (intCodec) Size() uint32 { return 8 }

func (intCodec) Encode(dst []byte, v *int) {
	ringqueue.Uint64Codec{}.Encode(dst, uint64(*v))
}

func (intCodec) Decode(src []byte) *int {
	v := int(ringqueue.Uint64Codec{}.Decode(src))
	return &v
}

func newRingBench(capacity uint32, opts ...ringqueue.Option) *ringqueue.Typed[*int] {
	tq, err := ringqueue.NewTyped[*int](intCodec{}, capacity, opts...)
	if err != nil {
		panic(err)
	}
	return tq
}

// chanQueue adapts a buffered channel to the benchmark interface.
type chanQueue struct {
	ch chan *int
}

func newChanQueue(capacity uint64) *chanQueue {
	return &chanQueue{ch: make(chan *int, capacity)}
}

func (c *chanQueue) Enqueue(v *int) { c.ch <- v }

func (c *chanQueue) Dequeue() (*int, bool) {
	select {
	case v := <-c.ch:
		return v, true
	default:
		return nil, false
	}
}

func (c *chanQueue) FreeSlots() uint64 { return uint64(cap(c.ch) - len(c.ch)) }
func (c *chanQueue) UsedSlots() uint64 { return uint64(len(c.ch)) }

// shardedQueue adapts go-lock-free-ring. The ring accepts one reader, so
// Dequeue is serialized; producers are spread over shards round-robin.
type shardedQueue struct {
	r        *ring.ShardedRing
	capacity uint64

	nextProducer atomic.Uint64
	written      atomic.Uint64
	read         atomic.Uint64

	readMu sync.Mutex
}

func newShardedQueue(capacity, shards uint64) *shardedQueue {
	r, err := ring.NewShardedRing(capacity, shards)
	if err != nil {
		panic(err)
	}
	return &shardedQueue{r: r, capacity: capacity}
}

func (s *shardedQueue) Enqueue(v *int) {
	pid := s.nextProducer.Add(1)
	for !s.r.Write(pid, v) {
		runtime.Gosched()
	}
	s.written.Add(1)
}

func (s *shardedQueue) Dequeue() (*int, bool) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	v, ok := s.r.TryRead()
	if !ok {
		return nil, false
	}
	s.read.Add(1)
	p, _ := v.(*int)
	return p, true
}

func (s *shardedQueue) UsedSlots() uint64 {
	w, r := s.written.Load(), s.read.Load()
	if r > w {
		return 0
	}
	return w - r
}

func (s *shardedQueue) FreeSlots() uint64 {
	used := s.UsedSlots()
	if used > s.capacity {
		return 0
	}
	return s.capacity - used
}
