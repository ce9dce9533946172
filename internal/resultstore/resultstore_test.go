package resultstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(session string, implementations ...string) FullReport {
	r := FullReport{
		SessionTime: session,
		SystemInfo: SystemInfo{
			NumCPU:            4,
			TrueCPU:           8,
			SimulatedCPUCount: 4,
			CPUModel:          "test cpu",
			CPUSpeedMHz:       2400,
			GOARCH:            "amd64",
			TotalMemory:       1 << 34,
		},
	}
	for i, name := range implementations {
		r.Benchmarks = append(r.Benchmarks, BenchmarkResult{
			Implementation:      name,
			NumProducers:        1,
			NumConsumers:        1,
			NumMessages:         int64(1000 * (i + 1)),
			NumMessagesConsumed: int64(1000 * (i + 1)),
			TestDuration:        "1s",
			ActualElapsed:       "1.1s",
			Throughput:          float64(900 * (i + 1)),
			CellsPerChunk:       512,
			SpareChunks:         1,
			Timestamp:           1700000000,
			GoVersion:           "go1.24",
		})
	}
	return r
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer store.Close()

	first := sampleReport("2026-01-01T00:00:00Z", "RingQueue", "Buffered Channel")
	second := sampleReport("2026-01-02T00:00:00Z", "RingQueue")

	id1, err := store.Save(ctx, first)
	require.NoError(t, err)
	id2, err := store.Save(ctx, second)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first, sessions[0])
	assert.Equal(t, second, sessions[1])
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Save(ctx, sampleReport("s1", "RingQueue"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "RingQueue", sessions[0].Benchmarks[0].Implementation)
}

func TestJSONAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test-results.json")

	_, err := LoadJSON(path)
	require.Error(t, err)

	require.NoError(t, AppendJSON(path, []FullReport{sampleReport("s1", "A")}))
	require.NoError(t, AppendJSON(path, []FullReport{sampleReport("s2", "B", "C")}))

	sessions, err := LoadJSON(path)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[1].SessionTime)
	assert.Len(t, sessions[1].Benchmarks, 2)
	assert.Equal(t, 4, sessions[0].SystemInfo.CPUs())
}
