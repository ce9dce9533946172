package config

import (
	"os"
	"strconv"

	"github.com/i5heu/GoChunkRing/internal/testbench"
	"github.com/i5heu/GoChunkRing/pkg/ringqueue"
)

// Config is an alias for testbench.Config. This allows other programs to import
// the harness configuration without pulling in the entire testbench package.
type Config = testbench.Config

// Environment variables read by QueueDefaultsFromEnv.
const (
	EnvChunkBytes  = "RINGQUEUE_CHUNK_BYTES"
	EnvSpareChunks = "RINGQUEUE_SPARE_CHUNKS"
	EnvCellSize    = "RINGQUEUE_CELL_SIZE"
	EnvItems       = "RINGQUEUE_ITEMS"
)

// QueueDefaults holds the parameters used to build a RingQueue.
type QueueDefaults struct {
	CellSize    uint32
	Items       uint32
	ChunkBytes  uint32
	SpareChunks int
}

// DefaultQueue returns the built-in queue parameters.
func DefaultQueue() QueueDefaults {
	return QueueDefaults{
		CellSize:    64,
		Items:       4096,
		ChunkBytes:  ringqueue.DefaultChunkBytes,
		SpareChunks: ringqueue.DefaultSpareChunks,
	}
}

// QueueDefaultsFromEnv starts from DefaultQueue and overrides every field that has
// a valid value in the environment. Unparsable values are ignored.
func QueueDefaultsFromEnv() QueueDefaults {
	d := DefaultQueue()
	d.CellSize = envUint32(EnvCellSize, d.CellSize)
	d.Items = envUint32(EnvItems, d.Items)
	d.ChunkBytes = envUint32(EnvChunkBytes, d.ChunkBytes)
	if v := os.Getenv(EnvSpareChunks); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			d.SpareChunks = n
		}
	}
	return d
}

// Options converts the defaults to ringqueue options.
func (d QueueDefaults) Options() []ringqueue.Option {
	return []ringqueue.Option{
		ringqueue.WithChunkBytes(d.ChunkBytes),
		ringqueue.WithSpareChunks(d.SpareChunks),
	}
}

// NewQueue builds a RingQueue from the defaults.
func (d QueueDefaults) NewQueue(extra ...ringqueue.Option) (*ringqueue.RingQueue, error) {
	return ringqueue.New(d.CellSize, d.Items, append(d.Options(), extra...)...)
}

func envUint32(name string, def uint32) uint32 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil && n > 0 {
			return uint32(n)
		}
	}
	return def
}
