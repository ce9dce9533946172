package ringqueue

import "fmt"

const (
	// DefaultChunkBytes is the byte budget of one chunk unless overridden with WithChunkBytes.
	DefaultChunkBytes = 64 * 1024

	// DefaultSpareChunks is how many drained chunks are kept for reuse.
	DefaultSpareChunks = 1

	// minCellsPerChunk keeps head, tail and the next free position apart.
	minCellsPerChunk = 3
)

// Allocator returns the backing memory for one chunk of size bytes.
// A returned error is reported to the writer as ErrAlloc.
type Allocator func(size int) ([]byte, error)

// Option customizes a RingQueue at construction.
type Option func(*options)

type options struct {
	chunkBytes  uint32
	spareChunks int
	alloc       Allocator
}

func defaultOptions() options {
	return options{
		chunkBytes:  DefaultChunkBytes,
		spareChunks: DefaultSpareChunks,
		alloc:       heapAlloc,
	}
}

// WithChunkBytes sets the byte budget of a single chunk.
func WithChunkBytes(n uint32) Option {
	return func(o *options) {
		o.chunkBytes = n
	}
}

// WithSpareChunks sets the depth of the drained-chunk cache. Zero disables reuse.
func WithSpareChunks(n int) Option {
	return func(o *options) {
		o.spareChunks = n
	}
}

// WithAllocator replaces the heap allocator used for new chunks.
func WithAllocator(fn Allocator) Option {
	return func(o *options) {
		if fn != nil {
			o.alloc = fn
		}
	}
}

func (o options) validate() error {
	if o.chunkBytes < minCellsPerChunk {
		return fmt.Errorf("%w: chunk budget %d bytes cannot hold %d cells", ErrInvalidParameter, o.chunkBytes, minCellsPerChunk)
	}
	if o.spareChunks < 0 {
		return fmt.Errorf("%w: negative spare chunk count %d", ErrInvalidParameter, o.spareChunks)
	}
	return nil
}

// MaxCellSize returns the largest cell size accepted for the given chunk budget.
func MaxCellSize(chunkBytes uint32) uint32 {
	return chunkBytes / minCellsPerChunk
}

func heapAlloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}
