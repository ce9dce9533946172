package ringqueue

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Stats is a snapshot of queue activity.
type Stats struct {
	Writes      uint64
	Reads       uint64
	ChunkAllocs uint64
	SpareReuses uint64
	ChunkFrees  uint64

	// HighWater is the largest number of live cells seen.
	HighWater uint32
	Live      uint32
	Chunks    int
	Spares    int
}

// counters are written under q.mu but read without it, so writer-side and
// reader-side fields sit on separate cache lines.
type counters struct {
	writes      atomic.Uint64
	chunkAllocs atomic.Uint64
	spareReuses atomic.Uint64
	highWater   atomic.Uint32
	_           cpu.CacheLinePad
	reads       atomic.Uint64
	chunkFrees  atomic.Uint64
	_           cpu.CacheLinePad
}

func (c *counters) observe(live uint32) {
	if live > c.highWater.Load() {
		c.highWater.Store(live)
	}
}

// HighWater returns the occupancy high-water mark without taking the queue lock.
func (q *RingQueue) HighWater() uint32 {
	return q.stats.highWater.Load()
}

// Stats returns a snapshot of the counters together with the current occupancy.
func (q *RingQueue) Stats() Stats {
	q.mu.Lock()
	live, chunks, spares := q.cells, q.chunks, q.spares.Length()
	q.mu.Unlock()

	return Stats{
		Writes:      q.stats.writes.Load(),
		Reads:       q.stats.reads.Load(),
		ChunkAllocs: q.stats.chunkAllocs.Load(),
		SpareReuses: q.stats.spareReuses.Load(),
		ChunkFrees:  q.stats.chunkFrees.Load(),
		HighWater:   q.stats.highWater.Load(),
		Live:        live,
		Chunks:      chunks,
		Spares:      spares,
	}
}
