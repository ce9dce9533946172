package testbench

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoChunkRing/pkg/ringqueue"
)

func newCellQueue(t *testing.T, cellSize, items uint32, opts ...ringqueue.Option) *ringqueue.RingQueue {
	t.Helper()
	q, err := ringqueue.New(cellSize, items, opts...)
	require.NoError(t, err)
	return q
}

func TestRunTimedTestConsumesEverything(t *testing.T) {
	tq, err := ringqueue.NewTyped[uint64](ringqueue.Uint64Codec{}, 256, ringqueue.WithChunkBytes(512))
	require.NoError(t, err)
	defer tq.Queue().Destroy()

	produced, consumed, elapsed := RunTimedTest[uint64](tq, Config{NumProducers: 4, NumConsumers: 4}, 100*time.Millisecond,
		func(i int) uint64 { return uint64(i) })

	assert.Positive(t, produced)
	assert.Equal(t, produced, consumed)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Zero(t, tq.UsedSlots())
}

func TestRecordPipelineDeliversEveryRecordWhenFlushed(t *testing.T) {
	q := newCellQueue(t, 16, 8, ringqueue.WithChunkBytes(48))

	res, err := RunRecordPipeline(q, PipelineConfig{Records: 500, FlushLast: true})
	require.NoError(t, err)
	assert.Equal(t, 500, res.Produced)
	assert.Equal(t, 500, res.Consumed)
	assert.True(t, res.Intact(), "produced %s consumed %s", DigestHex(res.ProducedDigest), DigestHex(res.ConsumedDigest))
	assert.LessOrEqual(t, res.HighWater, q.MaxCells())
	assert.True(t, q.Stopped())
}

func TestRecordPipelineDropsUnflushedLastRecord(t *testing.T) {
	q := newCellQueue(t, 16, 8, ringqueue.WithChunkBytes(48))

	res, err := RunRecordPipeline(q, PipelineConfig{Records: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Produced)
	assert.Equal(t, 99, res.Consumed)
	assert.True(t, res.Intact())
}

func TestRecordPipelineSlowConsumerHitsCapacity(t *testing.T) {
	q := newCellQueue(t, 8, 6, ringqueue.WithChunkBytes(24))

	res, err := RunRecordPipeline(q, PipelineConfig{
		Records:       40,
		ConsumerDelay: time.Millisecond,
		FlushLast:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Consumed)
	assert.Equal(t, q.MaxCells(), res.HighWater)
	assert.True(t, res.Intact())
	assert.Positive(t, res.Throughput())
}

func TestRecordPipelineReportsAllocFailure(t *testing.T) {
	boom := errors.New("no memory")
	allocs := 0
	q := newCellQueue(t, 8, 60, ringqueue.WithChunkBytes(24), ringqueue.WithSpareChunks(0), ringqueue.WithAllocator(func(size int) ([]byte, error) {
		allocs++
		if allocs > 2 {
			return nil, boom
		}
		return make([]byte, size), nil
	}))

	res, err := RunRecordPipeline(q, PipelineConfig{
		Records:       50,
		ConsumerDelay: 5 * time.Millisecond,
		FlushLast:     true,
	})
	require.ErrorIs(t, err, ringqueue.ErrAlloc)
	require.ErrorIs(t, err, boom)
	assert.Less(t, res.Produced, 50)
}

func TestRecordPipelineRejectsEmptyRun(t *testing.T) {
	q := newCellQueue(t, 8, 6)
	defer q.Destroy()
	_, err := RunRecordPipeline(q, PipelineConfig{})
	assert.Error(t, err)
}

func TestFillRecordEncodesIndex(t *testing.T) {
	a := make([]byte, 12)
	b := make([]byte, 12)
	FillRecord(7, a)
	FillRecord(8, b)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte(7), a[0])

	short := make([]byte, 3)
	assert.NotPanics(t, func() { FillRecord(1, short) })
}
