package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoChunkRing/internal/resultstore"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
}

func TestAverageOfRange(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i)
	}
	assert.Equal(t, 2.0, averageOfRange(vals, 0, 0.05))
	assert.Equal(t, 97.0, averageOfRange(vals, 0.95, 1))
	// Too few samples for a 5% slice falls back to the median.
	assert.Equal(t, 2.0, averageOfRange([]float64{1, 2, 3}, 0, 0.05))
}

func TestBuildStatsIsSortedByX(t *testing.T) {
	stats := buildStats(map[float64][]float64{
		20: {5, 1, 3},
		2:  {4},
	})
	require.Len(t, stats, 2)
	assert.Equal(t, 2.0, stats[0].orig)
	assert.Equal(t, 20.0, stats[1].orig)
	assert.Equal(t, 3.0, stats[1].median)
	low, high := statsPoints(stats).YError(1)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.GreaterOrEqual(t, high, 0.0)
}

func TestGrouping(t *testing.T) {
	sessions := []resultstore.FullReport{{
		SystemInfo: resultstore.SystemInfo{NumCPU: 8, SimulatedCPUCount: 2},
		Benchmarks: []resultstore.BenchmarkResult{
			{Implementation: "ring", NumProducers: 1, NumConsumers: 1, NumMessagesConsumed: 1000, ActualElapsed: "1ms", Throughput: 1e6, CellsPerChunk: 32},
			{Implementation: "chan", NumProducers: 1, NumConsumers: 1, NumMessagesConsumed: 0, ActualElapsed: "1ms"},
			{Implementation: "chan", NumProducers: 2, NumConsumers: 2, NumMessagesConsumed: 10, ActualElapsed: "bogus"},
		},
	}}

	byCPU := groupByConcurrency(sessions)
	require.Contains(t, byCPU, 2)
	assert.Equal(t, []float64{1000}, byCPU[2]["ring"][2])
	assert.NotContains(t, byCPU[2], "chan")

	geometry := groupByChunkGeometry(sessions)
	assert.Equal(t, series{"1P/1C spare=0": {32: {1e6}}}, geometry)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "500ns", formatNs(500))
	assert.Equal(t, "1.5µs", formatNs(1500))
	assert.Equal(t, "2.00s", formatNs(2e9))
	assert.Equal(t, "1.2M/s", formatRate(1.2e6))
	assert.Equal(t, "999/s", formatRate(999))
}
